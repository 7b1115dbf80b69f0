// Package goalseek inverts the valuation model: it finds the underlying
// price at which the portfolio reaches a target value or P&L.
//
// The search is a bisection over the underlying's simulated price. It
// assumes the targeted metric is monotonic in that price over the search
// bounds. The direction is read from the metric at the two bounds: with
// long positions the metric rises with price, with a large enough short it
// falls and the search runs the other way. A metric that turns inside the
// bounds is not detected and may give a wrong answer. AssumesMonotonic
// reports whether the metric is known to rise with price.
package goalseek

import (
	"fmt"
	"math"

	apperrors "leverage-sim/internal/errors"
	"leverage-sim/internal/models"
	"leverage-sim/internal/valuation"
)

// Config bounds the search.
type Config struct {
	Low           float64 `json:"low"`
	High          float64 `json:"high"`
	Tolerance     float64 `json:"tolerance"`
	MaxIterations int     `json:"max_iterations"`
}

// DefaultConfig searches [0, 10000] down to 1e-5.
func DefaultConfig() Config {
	return Config{
		Low:           0,
		High:          10000,
		Tolerance:     1e-5,
		MaxIterations: 10000,
	}
}

// Validate checks the search bounds.
func (c Config) Validate() error {
	if math.IsNaN(c.Low) || c.Low < 0 {
		return apperrors.NewValidationError("low", c.Low, "must be non-negative")
	}
	if math.IsNaN(c.High) || math.IsInf(c.High, 0) || c.High <= c.Low {
		return apperrors.NewValidationError("high", c.High, "must be finite and greater than low")
	}
	if math.IsNaN(c.Tolerance) || c.Tolerance <= 0 {
		return apperrors.NewValidationError("tolerance", c.Tolerance, "must be positive")
	}
	if c.MaxIterations < 1 {
		return apperrors.NewValidationError("max_iterations", c.MaxIterations, "must be at least 1")
	}
	return nil
}

// TraceFunc observes each bisection step.
type TraceFunc func(iteration int, low, high, mid, metric float64)

// Solver runs goal seeks against a valuation model. It holds no state
// between calls and is safe for concurrent use.
type Solver struct {
	model valuation.Model
	cfg   Config
	trace TraceFunc
}

// NewSolver creates a new Solver.
func NewSolver(model valuation.Model, cfg Config) *Solver {
	return &Solver{
		model: model,
		cfg:   cfg,
	}
}

// WithTrace returns a copy of the solver that reports every step to fn.
func (s *Solver) WithTrace(fn TraceFunc) *Solver {
	c := *s
	c.trace = fn
	return &c
}

// Config returns the search configuration.
func (s *Solver) Config() Config {
	return s.cfg
}

// Solve finds the underlying price at which the target metric is reached.
//
// Expected outcomes are carried by Result.Status: Converged, Approximate
// when the iteration cap was hit before the tolerance, and Unreachable when
// the target lies outside the metric's range over [Low, High]. Bound names
// the end of the search range nearest the target, which is High for a
// target above the range of a rising metric and Low for a falling one.
// An error is
// returned only for a bad configuration or target, or when the portfolio
// cannot be valued (see valuation.Model.Evaluate).
func (s *Solver) Solve(p models.Portfolio, target models.Target) (models.Result, error) {
	if err := s.cfg.Validate(); err != nil {
		return models.Result{}, fmt.Errorf("goal seek config: %w", err)
	}
	if _, err := models.ParseMode(string(target.Mode)); err != nil {
		return models.Result{}, apperrors.NewValidationError("mode", target.Mode, err.Error())
	}
	if math.IsNaN(target.Value) || math.IsInf(target.Value, 0) {
		return models.Result{}, apperrors.NewValidationError("target", target.Value, "must be a finite number")
	}

	lowSnap, err := s.evaluate(p, s.cfg.Low)
	if err != nil {
		return models.Result{}, err
	}
	highSnap, err := s.evaluate(p, s.cfg.High)
	if err != nil {
		return models.Result{}, err
	}

	res := models.Result{
		Target:    target,
		RangeLow:  target.Metric(lowSnap),
		RangeHigh: target.Metric(highSnap),
	}

	falling := res.RangeLow > res.RangeHigh
	below := target.Value < math.Min(res.RangeLow, res.RangeHigh)
	above := target.Value > math.Max(res.RangeLow, res.RangeHigh)
	switch {
	case below && !falling, above && falling:
		return unreachable(res, models.BoundLow, s.cfg.Low, lowSnap), nil
	case below, above:
		return unreachable(res, models.BoundHigh, s.cfg.High, highSnap), nil
	}

	low, high := s.cfg.Low, s.cfg.High
	var (
		mid  float64
		snap models.Snapshot
	)
	iterations := 0
	for high-low > s.cfg.Tolerance && iterations < s.cfg.MaxIterations {
		mid = (low + high) / 2
		snap, err = s.evaluate(p, mid)
		if err != nil {
			return models.Result{}, err
		}

		metric := target.Metric(snap)
		if (metric > target.Value) != falling {
			high = mid
		} else {
			low = mid
		}
		iterations++

		if s.trace != nil {
			s.trace(iterations, low, high, mid, metric)
		}
	}

	// Bounds already within tolerance: value the midpoint once.
	if iterations == 0 {
		mid = (low + high) / 2
		snap, err = s.evaluate(p, mid)
		if err != nil {
			return models.Result{}, err
		}
	}

	res.Status = models.StatusConverged
	if high-low > s.cfg.Tolerance {
		res.Status = models.StatusApproximate
	}
	res.Price = models.RoundCurrency(mid)
	res.Midpoint = mid
	res.Snapshot = snap.Rounded()
	res.Iterations = iterations
	res.Interval = high - low
	return res, nil
}

func (s *Solver) evaluate(p models.Portfolio, price float64) (models.Snapshot, error) {
	snap, err := s.model.Evaluate(p, price)
	if err != nil {
		return models.Snapshot{}, err
	}
	if !snap.Valid {
		// Bounds are validated, so every midpoint is a finite non-negative price.
		panic(fmt.Sprintf("goalseek: invalid snapshot at price %v", price))
	}
	return snap, nil
}

func unreachable(res models.Result, bound models.Bound, price float64, snap models.Snapshot) models.Result {
	res.Status = models.StatusUnreachable
	res.Bound = bound
	res.Price = models.RoundCurrency(price)
	res.Midpoint = price
	res.Snapshot = snap.Rounded()
	return res
}

// AssumesMonotonic reports whether the portfolio's value is known to rise
// with the underlying's price: no short quantity, no negative current price
// and a non-negative leverage factor.
func AssumesMonotonic(model valuation.Model, p models.Portfolio) bool {
	if model.Leverage < 0 {
		return false
	}
	for _, pos := range p.Positions() {
		if pos.Qty < 0 || pos.CurrentPrice < 0 {
			return false
		}
	}
	return true
}
