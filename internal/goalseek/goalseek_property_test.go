package goalseek

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"leverage-sim/internal/models"
	"leverage-sim/internal/valuation"
)

// Property: for any reachable amount target the solved midpoint values the
// portfolio within tolerance * max(qty) of the target.
func TestProperty_SolveAmountRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	model := valuation.DefaultModel()
	cfg := DefaultConfig()
	solver := NewSolver(model, cfg)

	properties.Property("evaluate(solve(T)) ~ T", prop.ForAll(
		func(underPrice, levPrice, underQty, levQty, frac float64) bool {
			p := models.Portfolio{
				Underlying: models.Position{Symbol: "UND", CurrentPrice: underPrice, AvgCost: 100, Qty: underQty},
				Companions: []models.Position{{Symbol: "LEV", CurrentPrice: levPrice, AvgCost: 20, Qty: levQty}},
			}
			lo, err := model.Evaluate(p, cfg.Low)
			if err != nil {
				return false
			}
			hi, err := model.Evaluate(p, cfg.High)
			if err != nil {
				return false
			}
			target := lo.Total.Amount + frac*(hi.Total.Amount-lo.Total.Amount)

			res, err := solver.Solve(p, models.Target{Mode: models.ModeAmount, Value: target})
			if err != nil || res.Status != models.StatusConverged {
				return false
			}
			snap, err := model.Evaluate(p, res.Midpoint)
			if err != nil {
				return false
			}
			return math.Abs(snap.Total.Amount-target) <= cfg.Tolerance*math.Max(underQty, levQty)
		},
		gen.Float64Range(10, 5000),
		gen.Float64Range(1, 200),
		gen.Float64Range(1, 5000),
		gen.Float64Range(1, 5000),
		gen.Float64Range(0.01, 0.99),
	))

	properties.TestingRun(t)
}

// Property: targets beyond the metric range of the bounds are reported as
// unreachable rather than solved.
func TestProperty_SolveOutOfRangeUnreachable(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	model := valuation.DefaultModel()
	solver := NewSolver(model, DefaultConfig())

	properties.Property("pnl target above range is unreachable", prop.ForAll(
		func(underPrice, excess float64) bool {
			p := models.Portfolio{
				Underlying: models.Position{Symbol: "UND", CurrentPrice: underPrice, AvgCost: 100, Qty: 100},
				Companions: []models.Position{{Symbol: "LEV", CurrentPrice: 15, AvgCost: 20, Qty: 1000}},
			}
			hi, err := model.Evaluate(p, solver.Config().High)
			if err != nil {
				return false
			}
			res, err := solver.Solve(p, models.Target{Mode: models.ModePnl, Value: hi.Total.PnlPercent() + excess})
			return err == nil && res.Status == models.StatusUnreachable && res.Bound == models.BoundHigh
		},
		gen.Float64Range(10, 5000),
		gen.Float64Range(1, 1e6),
	))

	properties.TestingRun(t)
}
