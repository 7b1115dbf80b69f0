package valuation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	apperrors "leverage-sim/internal/errors"
	"leverage-sim/internal/models"
)

// Weight is a position's share of current market value, in percent.
type Weight struct {
	Symbol  string  `json:"symbol"`
	Percent float64 `json:"percent"`
}

// Analytics summarizes the portfolio at current prices.
type Analytics struct {
	TotalCost  float64  `json:"total_cost"`
	TotalValue float64  `json:"total_value"`
	PnlPercent float64  `json:"pnl_percent"`
	Weights    []Weight `json:"weights"`
	Insights   []string `json:"insights"`
}

// Analyze computes cost basis, market value, P&L and position weights at
// current prices.
func Analyze(p models.Portfolio) (Analytics, error) {
	positions := p.Positions()
	costs := make([]float64, len(positions))
	values := make([]float64, len(positions))
	for i, pos := range positions {
		costs[i] = pos.Cost()
		values[i] = pos.MarketValue()
	}

	a := Analytics{
		TotalCost:  floats.Sum(costs),
		TotalValue: floats.Sum(values),
	}
	if a.TotalCost == 0 {
		return Analytics{}, apperrors.NewDivisionError("", "total cost")
	}
	if a.TotalValue == 0 {
		return Analytics{}, apperrors.NewDivisionError("", "total market value")
	}
	a.PnlPercent = (a.TotalValue - a.TotalCost) / a.TotalCost * 100

	shares := make([]float64, len(values))
	copy(shares, values)
	floats.Scale(100/a.TotalValue, shares)
	a.Weights = make([]Weight, len(positions))
	for i, pos := range positions {
		a.Weights[i] = Weight{Symbol: pos.Symbol, Percent: shares[i]}
	}

	a.Insights = insights(a)
	return a, nil
}

func insights(a Analytics) []string {
	direction := "up"
	if a.PnlPercent < 0 {
		direction = "down"
	}
	out := []string{
		fmt.Sprintf("Your portfolio is %s %.2f%% from cost basis", direction, math.Abs(a.PnlPercent)),
	}
	for _, w := range a.Weights {
		out = append(out, fmt.Sprintf("%s represents %.1f%% of your portfolio", w.Symbol, w.Percent))
	}
	if a.PnlPercent < 0 {
		out = append(out, "Your portfolio is currently below cost basis. Consider reviewing your position sizes.")
	}
	return out
}
