package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "leverage-sim/internal/errors"
)

var errUpstream = errors.New("upstream down")

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestBreaker(cfg Config) (*Breaker, *clock) {
	c := &clock{t: time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)}
	b := New("test", cfg)
	b.now = c.now
	return b, c
}

func fail() (int, error) { return 0, errUpstream }
func ok() (int, error)   { return 42, nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := Call(b, fail)
		assert.ErrorIs(t, err, errUpstream)
	}
	assert.Equal(t, StateOpen, b.State())

	calls := 0
	_, err := Call(b, func() (int, error) { calls++; return 1, nil })
	assert.ErrorIs(t, err, apperrors.ErrCircuitOpen)
	assert.Zero(t, calls)
	assert.Equal(t, int64(1), b.Stats().Rejected)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 2, Cooldown: time.Minute})

	Call(b, fail)
	v, err := Call(b, ok)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	Call(b, fail)

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 1, b.Stats().Failures)
}

func TestBreaker_HalfOpenTrialCall(t *testing.T) {
	var transitions []State
	b, c := newTestBreaker(Config{
		FailureThreshold: 1,
		Cooldown:         time.Minute,
		OnStateChange:    func(_ string, _, to State) { transitions = append(transitions, to) },
	})

	Call(b, fail)
	require.Equal(t, StateOpen, b.State())

	// A failed trial call reopens the circuit.
	c.t = c.t.Add(2 * time.Minute)
	Call(b, fail)
	assert.Equal(t, StateOpen, b.State())

	c.t = c.t.Add(2 * time.Minute)
	_, err := Call(b, ok)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestBreaker_IgnoresNonFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{
		FailureThreshold: 1,
		Cooldown:         time.Minute,
		IsFailure:        func(err error) bool { return !errors.Is(err, apperrors.ErrSymbolNotFound) },
	})

	_, err := Call(b, func() (int, error) { return 0, apperrors.ErrSymbolNotFound })
	assert.ErrorIs(t, err, apperrors.ErrSymbolNotFound)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_DisabledOrNil(t *testing.T) {
	v, err := Call[int](nil, ok)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	b, _ := newTestBreaker(Config{})
	for i := 0; i < 10; i++ {
		Call(b, fail)
	}
	assert.Equal(t, StateClosed, b.State())
}
