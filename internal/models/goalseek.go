package models

import (
	"fmt"
	"strings"
)

// Mode selects which aggregate metric a goal seek targets.
type Mode string

const (
	ModeAmount Mode = "amount" // total simulated portfolio value, in currency
	ModePnl    Mode = "pnl"    // total P&L, in percent
)

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAmount:
		return ModeAmount, nil
	case ModePnl:
		return ModePnl, nil
	default:
		return "", fmt.Errorf("unknown goal seek mode %q (must be 'amount' or 'pnl')", s)
	}
}

// Target is what a goal seek aims for.
type Target struct {
	Mode  Mode    `json:"mode"`
	Value float64 `json:"value"`
}

// Metric extracts the targeted metric from a snapshot.
func (t Target) Metric(s Snapshot) float64 {
	if t.Mode == ModePnl {
		return s.Total.PnlPercent()
	}
	return s.Total.Amount
}

// Status classifies a goal seek outcome.
type Status string

const (
	StatusConverged   Status = "CONVERGED"   // interval shrank below tolerance
	StatusApproximate Status = "APPROXIMATE" // iteration cap hit first
	StatusUnreachable Status = "UNREACHABLE" // target outside the metric range of the bounds
)

// Bound names the search bound an unreachable target lies beyond.
type Bound string

const (
	BoundNone Bound = ""
	BoundLow  Bound = "low"
	BoundHigh Bound = "high"
)

// Result is the outcome of a goal seek.
type Result struct {
	Status     Status   `json:"status"`
	Target     Target   `json:"target"`
	Price      float64  `json:"price"`    // rounded to cents
	Midpoint   float64  `json:"midpoint"` // last evaluated midpoint, unrounded
	Snapshot   Snapshot `json:"snapshot"` // rounded for display
	Iterations int      `json:"iterations"`
	Interval   float64  `json:"interval"` // final high-low width
	Bound      Bound    `json:"bound,omitempty"`
	// Reachable metric range over the search bounds.
	RangeLow  float64 `json:"range_low"`
	RangeHigh float64 `json:"range_high"`
}

// Solved reports whether the result carries a usable price.
func (r Result) Solved() bool {
	return r.Status == StatusConverged || r.Status == StatusApproximate
}
