package quotes

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	apperrors "leverage-sim/internal/errors"
	"leverage-sim/internal/models"
)

// SnapshotStore persists fetched snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *models.QuoteSnapshot) error
	LatestSnapshot(ctx context.Context) (models.QuoteSnapshot, error)
}

// Service resolves the reference prices used for valuation.
//
// In frozen mode the first complete snapshot is reused until a refresh is
// requested, so every valuation of a session sees the same current prices.
// In live mode prices are refetched on every call.
type Service struct {
	provider Provider
	store    SnapshotStore
	live     bool
	log      zerolog.Logger

	mu     sync.Mutex
	frozen *models.QuoteSnapshot
}

// NewService creates a quote service. store may be nil.
func NewService(provider Provider, store SnapshotStore, live bool, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		store:    store,
		live:     live,
		log:      log.With().Str("component", "quotes").Logger(),
	}
}

// Provider returns the underlying provider.
func (s *Service) Provider() Provider {
	return s.provider
}

// Snapshot returns quotes for symbols. A partial fetch returns the quotes
// that were obtained along with the error.
func (s *Service) Snapshot(ctx context.Context, symbols []string, refresh bool) (models.QuoteSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.live && !refresh {
		if snap, ok := s.cached(ctx, symbols); ok {
			return snap, nil
		}
	}

	snap, err := FetchSnapshot(ctx, s.provider, symbols, s.log)
	if err != nil {
		if len(snap.Quotes) == 0 {
			return snap, fmt.Errorf("%w: %w", apperrors.ErrQuoteUnavailable, err)
		}
		s.log.Warn().Err(err).Int("fetched", len(snap.Quotes)).Int("requested", len(symbols)).Msg("partial quote snapshot")
		return snap, err
	}

	if s.store != nil {
		if err := s.store.SaveSnapshot(ctx, &snap); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist quote snapshot")
		}
	}
	s.frozen = &snap

	s.log.Debug().
		Str("source", snap.Source).
		Int64("snapshot_id", snap.ID).
		Int("symbols", len(snap.Quotes)).
		Msg("quote snapshot fetched")

	return snap, nil
}

// cached returns the frozen snapshot, falling back to the latest stored
// one, when it covers every symbol.
func (s *Service) cached(ctx context.Context, symbols []string) (models.QuoteSnapshot, bool) {
	if s.frozen != nil && covers(*s.frozen, symbols) {
		return *s.frozen, true
	}
	if s.store == nil {
		return models.QuoteSnapshot{}, false
	}

	snap, err := s.store.LatestSnapshot(ctx)
	if err != nil {
		if !errors.Is(err, apperrors.ErrDataNotFound) {
			s.log.Warn().Err(err).Msg("failed to load stored snapshot")
		}
		return models.QuoteSnapshot{}, false
	}
	if !covers(snap, symbols) {
		return models.QuoteSnapshot{}, false
	}
	s.frozen = &snap
	return snap, true
}

func covers(snap models.QuoteSnapshot, symbols []string) bool {
	for _, sym := range symbols {
		if snap.Price(sym) <= 0 {
			return false
		}
	}
	return true
}

// Price returns the portfolio with current prices filled from a snapshot.
// Positions whose quote could not be fetched keep their configured price;
// the call only fails when some position is left without a price.
func (s *Service) Price(ctx context.Context, p models.Portfolio, refresh bool) (models.Portfolio, models.QuoteSnapshot, error) {
	snap, fetchErr := s.Snapshot(ctx, p.Symbols(), refresh)
	priced := p.WithPrices(snap)

	var missing []string
	for _, pos := range priced.Positions() {
		if pos.CurrentPrice <= 0 {
			missing = append(missing, pos.Symbol)
		}
	}
	if len(missing) > 0 {
		err := fmt.Errorf("%w: no price for %v", apperrors.ErrQuoteUnavailable, missing)
		if fetchErr != nil {
			err = errors.Join(err, fetchErr)
		}
		return priced, snap, err
	}
	if fetchErr != nil {
		s.log.Warn().Err(fetchErr).Msg("using configured prices for unfetched symbols")
	}
	return priced, snap, nil
}

// Intraday returns the intraday series of symbol when the provider
// supports it.
func (s *Service) Intraday(ctx context.Context, symbol string) ([]models.IntradayPoint, error) {
	ip, ok := s.provider.(IntradayProvider)
	if !ok {
		return nil, apperrors.NewQuoteError(s.provider.Name(), symbol, "intraday series not supported", apperrors.ErrNotConfigured)
	}
	return ip.Intraday(ctx, symbol)
}
