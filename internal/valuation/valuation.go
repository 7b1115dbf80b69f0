// Package valuation maps a simulated underlying price to the derived
// position and portfolio metrics.
package valuation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	apperrors "leverage-sim/internal/errors"
	"leverage-sim/internal/models"
)

// DefaultLeverage models a 2x daily-leveraged ETF.
const DefaultLeverage = 2.0

// Model is the linear single-step leverage model. A companion moves by
// Leverage times the underlying's percentage move from its current price;
// daily-reset compounding is ignored.
type Model struct {
	Leverage float64
}

// NewModel creates a model with the given leverage factor.
func NewModel(leverage float64) Model {
	return Model{Leverage: leverage}
}

// DefaultModel returns the 2x model.
func DefaultModel() Model {
	return NewModel(DefaultLeverage)
}

// PctChange returns the fractional move of simPrice from the underlying's
// current price.
func (m Model) PctChange(underlying models.Position, simPrice float64) (float64, error) {
	if underlying.CurrentPrice == 0 {
		return 0, apperrors.NewDivisionError(underlying.Symbol, "current price")
	}
	return (simPrice - underlying.CurrentPrice) / underlying.CurrentPrice, nil
}

// CompanionPrice derives a companion's simulated price from the
// underlying's fractional move.
func (m Model) CompanionPrice(companion models.Position, pctChange float64) float64 {
	return companion.CurrentPrice * (1 + m.Leverage*pctChange)
}

// Evaluate values the portfolio at a simulated underlying price.
//
// A negative or non-finite price yields an invalid snapshot and no error.
// A zero current price or average cost where one is needed as a divisor
// yields an error wrapping ErrDivisionUndefined. The portfolio is never
// modified.
func (m Model) Evaluate(p models.Portfolio, price float64) (models.Snapshot, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return models.InvalidSnapshot(), nil
	}

	pct, err := m.PctChange(p.Underlying, price)
	if err != nil {
		return models.InvalidSnapshot(), err
	}

	under, err := value(p.Underlying, models.RoleUnderlying, price)
	if err != nil {
		return models.InvalidSnapshot(), err
	}

	companions := make([]models.PositionValuation, len(p.Companions))
	for i, c := range p.Companions {
		if c.CurrentPrice == 0 {
			return models.InvalidSnapshot(), fmt.Errorf("%w: %s current price is zero", apperrors.ErrQuoteUnavailable, c.Symbol)
		}
		v, err := value(c, models.RoleCompanion, m.CompanionPrice(c, pct))
		if err != nil {
			return models.InvalidSnapshot(), err
		}
		companions[i] = v
	}

	total, err := aggregate(append([]models.PositionValuation{under}, companions...))
	if err != nil {
		return models.InvalidSnapshot(), err
	}

	return models.Snapshot{
		Valid:           true,
		UnderlyingPrice: price,
		PctChange:       pct,
		Underlying:      under,
		Companions:      companions,
		Total:           total,
	}, nil
}

// EvaluateInput parses a raw price as entered by a user and evaluates it.
// Empty or non-numeric input yields an invalid snapshot and no error.
func (m Model) EvaluateInput(p models.Portfolio, raw string) (models.Snapshot, error) {
	price, ok := ParsePrice(raw)
	if !ok {
		return models.InvalidSnapshot(), nil
	}
	return m.Evaluate(p, price)
}

// ParsePrice parses a user-entered price. It reports false for empty,
// non-numeric or non-finite input.
func ParsePrice(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseNonNegative validates an edited numeric field such as an average
// cost or quantity.
func ParseNonNegative(field, raw string) (float64, error) {
	v, ok := ParsePrice(raw)
	if !ok {
		return 0, apperrors.NewValidationError(field, raw, "must be a number")
	}
	if v < 0 {
		return 0, apperrors.NewValidationError(field, raw, "must be non-negative")
	}
	return v, nil
}

func value(p models.Position, role models.Role, simPrice float64) (models.PositionValuation, error) {
	if p.AvgCost == 0 {
		return models.PositionValuation{}, apperrors.NewDivisionError(p.Symbol, "average cost")
	}
	return models.PositionValuation{
		Symbol:             p.Symbol,
		Role:               role,
		AvgCost:            p.AvgCost,
		Qty:                p.Qty,
		CurrentPrice:       p.CurrentPrice,
		SimPrice:           simPrice,
		SimPnl:             (simPrice - p.AvgCost) / p.AvgCost,
		Cost:               p.Cost(),
		CurrentMarketValue: p.MarketValue(),
		Amount:             simPrice * p.Qty,
	}, nil
}

func aggregate(vals []models.PositionValuation) (models.Totals, error) {
	costs := make([]float64, len(vals))
	market := make([]float64, len(vals))
	amounts := make([]float64, len(vals))
	for i, v := range vals {
		costs[i] = v.Cost
		market[i] = v.CurrentMarketValue
		amounts[i] = v.Amount
	}

	t := models.Totals{
		Cost:               floats.Sum(costs),
		CurrentMarketValue: floats.Sum(market),
		Amount:             floats.Sum(amounts),
	}
	if t.Cost == 0 {
		return models.Totals{}, apperrors.NewDivisionError("", "total cost")
	}
	t.Pnl = (t.Amount - t.Cost) / t.Cost
	return t, nil
}
