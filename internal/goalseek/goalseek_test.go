package goalseek

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "leverage-sim/internal/errors"
	"leverage-sim/internal/models"
	"leverage-sim/internal/valuation"
)

func testPortfolio() models.Portfolio {
	return models.Portfolio{
		Underlying: models.Position{Symbol: "TSLA", CurrentPrice: 2393, AvgCost: 210.19, Qty: 181},
		Companions: []models.Position{
			{Symbol: "TSLL", CurrentPrice: 10.89, AvgCost: 13.70, Qty: 2500},
		},
	}
}

func maxQty(p models.Portfolio) float64 {
	m := 0.0
	for _, pos := range p.Positions() {
		m = math.Max(m, math.Abs(pos.Qty))
	}
	return m
}

func TestSolve_AmountTarget(t *testing.T) {
	p := testPortfolio()
	model := valuation.DefaultModel()
	cfg := DefaultConfig()

	res, err := NewSolver(model, cfg).Solve(p, models.Target{Mode: models.ModeAmount, Value: 1000000})
	require.NoError(t, err)
	require.Equal(t, models.StatusConverged, res.Status)
	assert.True(t, res.Solved())
	assert.GreaterOrEqual(t, res.Midpoint, cfg.Low)
	assert.LessOrEqual(t, res.Midpoint, cfg.High)
	assert.LessOrEqual(t, res.Interval, cfg.Tolerance)

	snap, err := model.Evaluate(p, res.Midpoint)
	require.NoError(t, err)
	assert.InDelta(t, 1000000, snap.Total.Amount, cfg.Tolerance*maxQty(p))

	assert.Equal(t, models.RoundCurrency(res.Midpoint), res.Price)
	assert.Equal(t, snap.Rounded(), res.Snapshot)
}

func TestSolve_PnlTarget(t *testing.T) {
	p := testPortfolio()
	model := valuation.DefaultModel()

	res, err := NewSolver(model, DefaultConfig()).Solve(p, models.Target{Mode: models.ModePnl, Value: 100})
	require.NoError(t, err)
	require.Equal(t, models.StatusConverged, res.Status)

	snap, err := model.Evaluate(p, res.Midpoint)
	require.NoError(t, err)
	assert.InDelta(t, 100, snap.Total.PnlPercent(), 1e-3)
	assert.InDelta(t, 1.0, res.Snapshot.Total.Pnl, 1e-4)
}

func TestSolve_IterationCount(t *testing.T) {
	res, err := NewSolver(valuation.DefaultModel(), DefaultConfig()).
		Solve(testPortfolio(), models.Target{Mode: models.ModeAmount, Value: 1000000})
	require.NoError(t, err)

	// 10000 / 2^30 < 1e-5
	assert.LessOrEqual(t, res.Iterations, 30)
}

func TestSolve_UnreachableHigh(t *testing.T) {
	p := testPortfolio()
	res, err := NewSolver(valuation.DefaultModel(), DefaultConfig()).
		Solve(p, models.Target{Mode: models.ModeAmount, Value: 1e9})
	require.NoError(t, err)

	assert.Equal(t, models.StatusUnreachable, res.Status)
	assert.False(t, res.Solved())
	assert.Equal(t, models.BoundHigh, res.Bound)
	assert.Equal(t, 10000.0, res.Price)
	assert.Less(t, res.RangeHigh, 1e9)
	assert.Equal(t, 0, res.Iterations)
}

func TestSolve_UnreachableLow(t *testing.T) {
	res, err := NewSolver(valuation.DefaultModel(), DefaultConfig()).
		Solve(testPortfolio(), models.Target{Mode: models.ModePnl, Value: -1000})
	require.NoError(t, err)

	assert.Equal(t, models.StatusUnreachable, res.Status)
	assert.Equal(t, models.BoundLow, res.Bound)
	assert.Equal(t, 0.0, res.Price)
	assert.Greater(t, res.RangeLow, -1000.0)
}

func TestSolve_NonConvergence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 1

	res, err := NewSolver(valuation.DefaultModel(), cfg).
		Solve(testPortfolio(), models.Target{Mode: models.ModeAmount, Value: 1000000})
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproximate, res.Status)
	assert.True(t, res.Solved())
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 5000.0, res.Midpoint)
	assert.Greater(t, res.Interval, cfg.Tolerance)
}

func TestSolve_BoundsWithinTolerance(t *testing.T) {
	p := testPortfolio()
	model := valuation.DefaultModel()
	cfg := Config{Low: 3000, High: 3000.000001, Tolerance: 1e-5, MaxIterations: 10}

	at, err := model.Evaluate(p, 3000)
	require.NoError(t, err)

	res, err := NewSolver(model, cfg).Solve(p, models.Target{Mode: models.ModeAmount, Value: at.Total.Amount})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConverged, res.Status)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, 3000.0, res.Price)
	assert.True(t, res.Snapshot.Valid)
}

func TestSolve_CustomBounds(t *testing.T) {
	p := testPortfolio()
	cfg := DefaultConfig()
	cfg.Low = 2000
	cfg.High = 3000

	// value at current prices lies inside [2000, 3000]
	current, err := valuation.DefaultModel().Evaluate(p, 2393)
	require.NoError(t, err)

	res, err := NewSolver(valuation.DefaultModel(), cfg).
		Solve(p, models.Target{Mode: models.ModeAmount, Value: current.Total.Amount})
	require.NoError(t, err)
	assert.InDelta(t, 2393, res.Midpoint, 1e-4)
}

func TestSolve_InvalidConfig(t *testing.T) {
	target := models.Target{Mode: models.ModeAmount, Value: 1000000}
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative low", Config{Low: -1, High: 10, Tolerance: 1e-5, MaxIterations: 10}},
		{"high not above low", Config{Low: 10, High: 10, Tolerance: 1e-5, MaxIterations: 10}},
		{"infinite high", Config{Low: 0, High: math.Inf(1), Tolerance: 1e-5, MaxIterations: 10}},
		{"zero tolerance", Config{Low: 0, High: 10, Tolerance: 0, MaxIterations: 10}},
		{"zero iterations", Config{Low: 0, High: 10, Tolerance: 1e-5, MaxIterations: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSolver(valuation.DefaultModel(), tt.cfg).Solve(testPortfolio(), target)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
		})
	}
}

func TestSolve_InvalidTarget(t *testing.T) {
	s := NewSolver(valuation.DefaultModel(), DefaultConfig())

	_, err := s.Solve(testPortfolio(), models.Target{Mode: "value", Value: 1})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))

	_, err = s.Solve(testPortfolio(), models.Target{Mode: models.ModeAmount, Value: math.NaN()})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestSolve_PreconditionViolation(t *testing.T) {
	p := testPortfolio()
	p.Underlying.CurrentPrice = 0

	_, err := NewSolver(valuation.DefaultModel(), DefaultConfig()).
		Solve(p, models.Target{Mode: models.ModeAmount, Value: 1000000})
	assert.True(t, apperrors.Is(err, apperrors.ErrDivisionUndefined))
}

func TestSolve_Trace(t *testing.T) {
	var steps []int
	var lastWidth float64 = math.Inf(1)
	narrowing := true

	s := NewSolver(valuation.DefaultModel(), DefaultConfig()).WithTrace(func(i int, low, high, mid, metric float64) {
		steps = append(steps, i)
		if high-low >= lastWidth {
			narrowing = false
		}
		lastWidth = high - low
	})

	res, err := s.Solve(testPortfolio(), models.Target{Mode: models.ModeAmount, Value: 1000000})
	require.NoError(t, err)
	assert.Len(t, steps, res.Iterations)
	assert.True(t, narrowing)
}

func TestSolve_Concurrent(t *testing.T) {
	s := NewSolver(valuation.DefaultModel(), DefaultConfig())
	p := testPortfolio()
	target := models.Target{Mode: models.ModeAmount, Value: 1000000}

	want, err := s.Solve(p, target)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]models.Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.Solve(p, target)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

// shortPortfolio holds enough of the companion short that the total value
// falls as the underlying rises: 1,089,000 at 0 down to about -6.2M at 10000.
func shortPortfolio() models.Portfolio {
	p := testPortfolio()
	p.Companions[0].Qty = -100000
	return p
}

func TestSolve_FallingValue(t *testing.T) {
	p := shortPortfolio()
	model := valuation.DefaultModel()
	cfg := DefaultConfig()

	res, err := NewSolver(model, cfg).Solve(p, models.Target{Mode: models.ModeAmount, Value: 0})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Status != models.StatusConverged {
		t.Fatalf("status = %s, want CONVERGED (range [%g, %g])", res.Status, res.RangeLow, res.RangeHigh)
	}
	if res.RangeLow <= res.RangeHigh {
		t.Fatalf("range [%g, %g] should fall with price", res.RangeLow, res.RangeHigh)
	}

	snap, err := model.Evaluate(p, res.Midpoint)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := math.Abs(snap.Total.Amount); got > cfg.Tolerance*maxQty(p) {
		t.Errorf("amount at %.4f is %.4f, want 0 within %g", res.Midpoint, snap.Total.Amount, cfg.Tolerance*maxQty(p))
	}
	if res.Midpoint < 1490 || res.Midpoint > 1497 {
		t.Errorf("midpoint = %.4f, want about 1493.5", res.Midpoint)
	}
}

func TestSolve_FallingValueUnreachable(t *testing.T) {
	solver := NewSolver(valuation.DefaultModel(), DefaultConfig())

	tests := []struct {
		name  string
		value float64
		bound models.Bound
		price float64
	}{
		{"above the value at price zero", 2e6, models.BoundLow, 0},
		{"below the value at the ceiling", -1e7, models.BoundHigh, 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := solver.Solve(shortPortfolio(), models.Target{Mode: models.ModeAmount, Value: tt.value})
			if err != nil {
				t.Fatalf("Solve: %v", err)
			}
			if res.Status != models.StatusUnreachable {
				t.Fatalf("status = %s, want UNREACHABLE", res.Status)
			}
			if res.Bound != tt.bound || res.Price != tt.price {
				t.Errorf("bound %s at %.2f, want %s at %.2f", res.Bound, res.Price, tt.bound, tt.price)
			}
		})
	}
}

func TestAssumesMonotonic(t *testing.T) {
	model := valuation.DefaultModel()
	p := testPortfolio()
	assert.True(t, AssumesMonotonic(model, p))

	p.Companions[0].Qty = -100
	assert.False(t, AssumesMonotonic(model, p))

	assert.False(t, AssumesMonotonic(valuation.NewModel(-2), testPortfolio()))
}
