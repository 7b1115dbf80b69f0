// Package models provides domain models for the leverage simulator.
package models

import (
	"time"
)

// Role identifies how a position's simulated price is obtained.
type Role string

const (
	RoleUnderlying Role = "UNDERLYING" // price supplied by the user
	RoleCompanion  Role = "COMPANION"  // price derived from the underlying
)

// Position represents one held instrument.
type Position struct {
	Symbol       string  `json:"symbol"`
	CurrentPrice float64 `json:"current_price"` // 0 means not yet fetched
	AvgCost      float64 `json:"avg_cost"`
	Qty          float64 `json:"qty"`
}

// Cost returns the cost basis of the position.
func (p Position) Cost() float64 {
	return p.AvgCost * p.Qty
}

// MarketValue returns the position value at its current price.
func (p Position) MarketValue() float64 {
	return p.CurrentPrice * p.Qty
}

// Portfolio is an underlying instrument plus the leveraged companions
// whose simulated prices are derived from it.
type Portfolio struct {
	Underlying Position   `json:"underlying"`
	Companions []Position `json:"companions"`
}

// Positions returns all positions, underlying first.
func (p Portfolio) Positions() []Position {
	out := make([]Position, 0, 1+len(p.Companions))
	out = append(out, p.Underlying)
	out = append(out, p.Companions...)
	return out
}

// Symbols returns the symbols of all positions, underlying first.
func (p Portfolio) Symbols() []string {
	positions := p.Positions()
	symbols := make([]string, len(positions))
	for i, pos := range positions {
		symbols[i] = pos.Symbol
	}
	return symbols
}

// Clone returns a deep copy so callers can mutate prices without touching
// the shared portfolio.
func (p Portfolio) Clone() Portfolio {
	out := Portfolio{Underlying: p.Underlying}
	if p.Companions != nil {
		out.Companions = make([]Position, len(p.Companions))
		copy(out.Companions, p.Companions)
	}
	return out
}

// WithPrices returns a copy of the portfolio with current prices taken from
// the snapshot. Symbols missing from the snapshot keep their price.
func (p Portfolio) WithPrices(snap QuoteSnapshot) Portfolio {
	out := p.Clone()
	if q, ok := snap.Quotes[out.Underlying.Symbol]; ok {
		out.Underlying.CurrentPrice = q.Price
	}
	for i := range out.Companions {
		if q, ok := snap.Quotes[out.Companions[i].Symbol]; ok {
			out.Companions[i].CurrentPrice = q.Price
		}
	}
	return out
}

// Quote represents the latest known price of a symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	PrevClose     float64   `json:"prev_close"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}

// QuoteSnapshot is a consistent set of quotes taken at one point in time.
type QuoteSnapshot struct {
	ID        int64            `json:"id,omitempty"`
	Source    string           `json:"source"`
	FetchedAt time.Time        `json:"fetched_at"`
	Quotes    map[string]Quote `json:"quotes"`
}

// Price returns the quoted price for symbol, or 0 when absent.
func (s QuoteSnapshot) Price(symbol string) float64 {
	return s.Quotes[symbol].Price
}

// IntradayPoint is one bar close of an intraday series.
type IntradayPoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}
