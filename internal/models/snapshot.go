package models

import (
	"github.com/shopspring/decimal"
)

// Display precision for rounded snapshots.
const (
	CurrencyPlaces = 2
	FractionPlaces = 4 // a fraction at 4 places is a percentage at 2
)

// PositionValuation holds the derived metrics of one position at a
// simulated underlying price.
type PositionValuation struct {
	Symbol             string  `json:"symbol"`
	Role               Role    `json:"role"`
	AvgCost            float64 `json:"avg_cost"`
	Qty                float64 `json:"qty"`
	CurrentPrice       float64 `json:"current_price"`
	SimPrice           float64 `json:"sim_price"`
	SimPnl             float64 `json:"sim_pnl"` // fractional return vs avg cost
	Cost               float64 `json:"cost"`
	CurrentMarketValue float64 `json:"current_market_value"`
	Amount             float64 `json:"amount"`
}

// Totals aggregates the position valuations.
type Totals struct {
	Cost               float64 `json:"cost"`
	CurrentMarketValue float64 `json:"current_market_value"`
	Amount             float64 `json:"amount"`
	Pnl                float64 `json:"pnl"` // fractional
}

// PnlPercent returns the aggregate P&L expressed in percent.
func (t Totals) PnlPercent() float64 {
	return t.Pnl * 100
}

// Snapshot is the full valuation produced for one simulated underlying
// price. A snapshot with Valid false carries no numbers: it is the result
// of an absent or non-numeric price.
type Snapshot struct {
	Valid           bool                `json:"valid"`
	UnderlyingPrice float64             `json:"underlying_price"`
	PctChange       float64             `json:"pct_change"` // underlying move vs current price, fractional
	Underlying      PositionValuation   `json:"underlying"`
	Companions      []PositionValuation `json:"companions"`
	Total           Totals              `json:"total"`
}

// InvalidSnapshot returns the empty snapshot used for invalid input.
func InvalidSnapshot() Snapshot {
	return Snapshot{}
}

// Positions returns all valuations, underlying first.
func (s Snapshot) Positions() []PositionValuation {
	out := make([]PositionValuation, 0, 1+len(s.Companions))
	out = append(out, s.Underlying)
	out = append(out, s.Companions...)
	return out
}

// Rounded returns a copy with currency fields rounded to cents and
// fractional fields to basis-point precision.
func (s Snapshot) Rounded() Snapshot {
	if !s.Valid {
		return s
	}
	out := s
	out.UnderlyingPrice = RoundCurrency(s.UnderlyingPrice)
	out.PctChange = RoundFraction(s.PctChange)
	out.Underlying = s.Underlying.rounded()
	if s.Companions != nil {
		out.Companions = make([]PositionValuation, len(s.Companions))
		for i, c := range s.Companions {
			out.Companions[i] = c.rounded()
		}
	}
	out.Total = Totals{
		Cost:               RoundCurrency(s.Total.Cost),
		CurrentMarketValue: RoundCurrency(s.Total.CurrentMarketValue),
		Amount:             RoundCurrency(s.Total.Amount),
		Pnl:                RoundFraction(s.Total.Pnl),
	}
	return out
}

func (v PositionValuation) rounded() PositionValuation {
	v.SimPrice = RoundCurrency(v.SimPrice)
	v.SimPnl = RoundFraction(v.SimPnl)
	v.Cost = RoundCurrency(v.Cost)
	v.CurrentMarketValue = RoundCurrency(v.CurrentMarketValue)
	v.Amount = RoundCurrency(v.Amount)
	return v
}

// RoundCurrency rounds half away from zero to cents.
func RoundCurrency(v float64) float64 {
	return roundPlaces(v, CurrencyPlaces)
}

// RoundFraction rounds a fractional value to four places.
func RoundFraction(v float64) float64 {
	return roundPlaces(v, FractionPlaces)
}

func roundPlaces(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
