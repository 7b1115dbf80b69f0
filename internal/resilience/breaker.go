// Package resilience protects callers from a failing upstream with a
// circuit breaker.
package resilience

import (
	"sync"
	"time"

	apperrors "leverage-sim/internal/errors"
)

// State represents the state of a circuit breaker.
type State string

const (
	StateClosed   State = "CLOSED"    // Normal operation
	StateOpen     State = "OPEN"      // Failing, rejecting calls
	StateHalfOpen State = "HALF_OPEN" // Letting a trial call through
)

// Config holds circuit breaker configuration.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit. Zero disables the breaker.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes that close it.
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before a trial call.
	Cooldown time.Duration
	// IsFailure decides which errors count against the upstream. Nil
	// counts every error.
	IsFailure func(error) bool
	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns the defaults used for quote providers.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	}
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time

	rejected int64
}

// New creates a closed circuit breaker.
func New(name string, cfg Config) *Breaker {
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 1
	}
	return &Breaker{
		name:  name,
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}
}

// Call runs fn unless the circuit is open. A nil breaker always runs fn.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if b == nil || b.cfg.FailureThreshold <= 0 {
		return fn()
	}

	if err := b.allow(); err != nil {
		return zero, err
	}
	v, err := fn()
	b.record(err)
	if err != nil {
		return zero, err
	}
	return v, nil
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			b.rejected++
			b.mu.Unlock()
			return apperrors.Wrap(apperrors.ErrCircuitOpen, b.name)
		}
		from := b.transition(StateHalfOpen)
		b.mu.Unlock()
		b.notify(from, StateHalfOpen)
		return nil
	}
	b.mu.Unlock()
	return nil
}

func (b *Breaker) record(err error) {
	failed := err != nil && (b.cfg.IsFailure == nil || b.cfg.IsFailure(err))

	b.mu.Lock()
	var from, to State
	switch {
	case failed && b.state == StateHalfOpen:
		from, to = b.transition(StateOpen), StateOpen
	case failed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			from, to = b.transition(StateOpen), StateOpen
		}
	case b.state == StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			from, to = b.transition(StateClosed), StateClosed
		}
	default:
		b.failures = 0
	}
	b.mu.Unlock()

	if to != "" {
		b.notify(from, to)
	}
}

// transition must be called with the lock held. It returns the old state.
func (b *Breaker) transition(to State) State {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
	return from
}

func (b *Breaker) notify(from, to State) {
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// Stats returns a point-in-time view of the breaker.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Name:     b.name,
		State:    b.state,
		Failures: b.failures,
		Rejected: b.rejected,
		OpenedAt: b.openedAt,
	}
}

// Stats holds circuit breaker statistics.
type Stats struct {
	Name     string    `json:"name"`
	State    State     `json:"state"`
	Failures int       `json:"failures"` // consecutive
	Rejected int64     `json:"rejected"`
	OpenedAt time.Time `json:"opened_at,omitempty"`
}
