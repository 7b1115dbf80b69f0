// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"leverage-sim/internal/models"
)

// QuoteStore defines the interface for quote snapshot persistence.
type QuoteStore interface {
	// Snapshots
	SaveSnapshot(ctx context.Context, snap *models.QuoteSnapshot) error
	LatestSnapshot(ctx context.Context) (models.QuoteSnapshot, error)
	GetSnapshot(ctx context.Context, id int64) (models.QuoteSnapshot, error)
	ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]models.QuoteSnapshot, error)

	// Per-symbol history
	SymbolHistory(ctx context.Context, symbol string, limit int) ([]models.Quote, error)

	// Lifecycle
	Close() error
}

// SnapshotFilter represents filters for listing snapshots.
type SnapshotFilter struct {
	Source string
	Since  time.Time
	Limit  int
}
