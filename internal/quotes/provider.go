// Package quotes fetches current prices for the simulated positions.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/rs/zerolog"

	apperrors "leverage-sim/internal/errors"
	"leverage-sim/internal/logging"
	"leverage-sim/internal/models"
	"leverage-sim/internal/resilience"
	"leverage-sim/pkg/utils"
)

// Provider fetches the latest quote of a symbol.
type Provider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (models.Quote, error)
}

// IntradayProvider additionally serves an intraday price series.
type IntradayProvider interface {
	Provider
	Intraday(ctx context.Context, symbol string) ([]models.IntradayPoint, error)
}

// FetchSnapshot fetches every symbol from the provider. Symbols that fail
// are left out of the snapshot and reported in the joined error.
func FetchSnapshot(ctx context.Context, p Provider, symbols []string, log zerolog.Logger) (models.QuoteSnapshot, error) {
	snap := models.QuoteSnapshot{
		Source:    p.Name(),
		FetchedAt: time.Now(),
		Quotes:    make(map[string]models.Quote, len(symbols)),
	}

	var errs []error
	for _, symbol := range symbols {
		q, err := p.Quote(ctx, symbol)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if q.Price <= 0 {
			errs = append(errs, apperrors.NewQuoteError(p.Name(), symbol, "no price", nil))
			continue
		}
		snap.Quotes[symbol] = q
		logging.LogQuote(log, q)
	}
	return snap, errors.Join(errs...)
}

// StaticProvider serves fixed prices, typically from configuration.
type StaticProvider struct {
	prices map[string]float64
}

// NewStaticProvider creates a provider that always returns the given prices.
func NewStaticProvider(prices map[string]float64) *StaticProvider {
	cp := make(map[string]float64, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return &StaticProvider{prices: cp}
}

// Name returns the provider name.
func (s *StaticProvider) Name() string {
	return "static"
}

// Quote returns the configured price.
func (s *StaticProvider) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	price, ok := s.prices[symbol]
	if !ok {
		return models.Quote{}, apperrors.NewQuoteError(s.Name(), symbol, "not configured", apperrors.ErrSymbolNotFound)
	}
	return models.Quote{
		Symbol:    symbol,
		Price:     price,
		Source:    s.Name(),
		Timestamp: time.Now(),
	}, nil
}

// RetryingProvider retries a provider with exponential backoff. An
// optional circuit breaker fails calls fast while the upstream is down.
type RetryingProvider struct {
	Provider
	cfg     utils.RetryConfig
	breaker *resilience.Breaker
}

// WithRetry wraps p so failed quotes are retried. Unknown symbols are
// never retried.
func WithRetry(p Provider, cfg utils.RetryConfig) *RetryingProvider {
	cfg.PermanentErrors = append(slices.Clone(cfg.PermanentErrors), apperrors.ErrSymbolNotFound, apperrors.ErrNotConfigured)
	return &RetryingProvider{Provider: p, cfg: cfg}
}

// WithBreaker guards the provider with b. A call whose retries are
// exhausted counts as one failure.
func (r *RetryingProvider) WithBreaker(b *resilience.Breaker) *RetryingProvider {
	r.breaker = b
	return r
}

// Breaker returns the circuit breaker, or nil.
func (r *RetryingProvider) Breaker() *resilience.Breaker {
	return r.breaker
}

// Quote fetches a quote, retrying transient failures.
func (r *RetryingProvider) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	q, err := resilience.Call(r.breaker, func() (models.Quote, error) {
		return utils.RetryWithResult(ctx, r.cfg, func() (models.Quote, error) {
			return r.Provider.Quote(ctx, symbol)
		})
	})
	if err != nil {
		return models.Quote{}, fmt.Errorf("%s quote for %s: %w", r.Provider.Name(), symbol, err)
	}
	return q, nil
}

// Intraday fetches the intraday series when the wrapped provider serves one.
func (r *RetryingProvider) Intraday(ctx context.Context, symbol string) ([]models.IntradayPoint, error) {
	ip, ok := r.Provider.(IntradayProvider)
	if !ok {
		return nil, apperrors.NewQuoteError(r.Provider.Name(), symbol, "intraday series not supported", apperrors.ErrNotConfigured)
	}
	return resilience.Call(r.breaker, func() ([]models.IntradayPoint, error) {
		return utils.RetryWithResult(ctx, r.cfg, func() ([]models.IntradayPoint, error) {
			return ip.Intraday(ctx, symbol)
		})
	})
}

// IsUpstreamFailure reports whether err says something about the health of
// the provider, as opposed to the request or local configuration.
func IsUpstreamFailure(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, apperrors.ErrSymbolNotFound),
		errors.Is(err, apperrors.ErrNotConfigured),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// Close releases the wrapped provider's resources, if it holds any.
func (r *RetryingProvider) Close() error {
	if c, ok := r.Provider.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
