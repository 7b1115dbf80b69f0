package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "leverage-sim/internal/errors"
	"leverage-sim/internal/models"
)

// SQLiteStore implements QuoteStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based quote store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- One row per fetch
	CREATE TABLE IF NOT EXISTS quote_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		fetched_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Quotes belonging to a snapshot
	CREATE TABLE IF NOT EXISTS quotes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		snapshot_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		price REAL NOT NULL,
		change REAL,
		change_percent REAL,
		prev_close REAL,
		source TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		UNIQUE(snapshot_id, symbol),
		FOREIGN KEY (snapshot_id) REFERENCES quote_snapshots(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_fetched ON quote_snapshots(fetched_at);
	CREATE INDEX IF NOT EXISTS idx_quotes_symbol ON quotes(symbol, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot stores a snapshot and its quotes in one transaction and sets
// snap.ID.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *models.QuoteSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO quote_snapshots (source, fetched_at) VALUES (?, ?)
	`, snap.Source, snap.FetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read snapshot id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quotes (snapshot_id, symbol, price, change, change_percent, prev_close, source, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, q := range snap.Quotes {
		_, err := stmt.ExecContext(ctx, id, q.Symbol, q.Price, q.Change, q.ChangePercent, q.PrevClose, q.Source, q.Timestamp.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert quote %s: %w", q.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	snap.ID = id
	return nil
}

// LatestSnapshot returns the most recently fetched snapshot.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (models.QuoteSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, fetched_at
		FROM quote_snapshots
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`)
	return s.loadSnapshot(ctx, row)
}

// GetSnapshot returns the snapshot with the given id.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, id int64) (models.QuoteSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, fetched_at
		FROM quote_snapshots
		WHERE id = ?
	`, id)
	return s.loadSnapshot(ctx, row)
}

func (s *SQLiteStore) loadSnapshot(ctx context.Context, row *sql.Row) (models.QuoteSnapshot, error) {
	var snap models.QuoteSnapshot
	if err := row.Scan(&snap.ID, &snap.Source, &snap.FetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.QuoteSnapshot{}, apperrors.ErrDataNotFound
		}
		return models.QuoteSnapshot{}, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	quotes, err := s.snapshotQuotes(ctx, snap.ID)
	if err != nil {
		return models.QuoteSnapshot{}, err
	}
	snap.Quotes = quotes
	return snap, nil
}

func (s *SQLiteStore) snapshotQuotes(ctx context.Context, snapshotID int64) (map[string]models.Quote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, price, change, change_percent, prev_close, source, timestamp
		FROM quotes
		WHERE snapshot_id = ?
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	quotes := make(map[string]models.Quote)
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes[q.Symbol] = q
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quotes: %w", err)
	}

	return quotes, nil
}

// ListSnapshots returns snapshots newest first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]models.QuoteSnapshot, error) {
	query := "SELECT id, source, fetched_at FROM quote_snapshots"
	var conditions []string
	var args []interface{}

	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "fetched_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY fetched_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}

	var snaps []models.QuoteSnapshot
	for rows.Next() {
		var snap models.QuoteSnapshot
		if err := rows.Scan(&snap.ID, &snap.Source, &snap.FetchedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	for i := range snaps {
		quotes, err := s.snapshotQuotes(ctx, snaps[i].ID)
		if err != nil {
			return nil, err
		}
		snaps[i].Quotes = quotes
	}

	return snaps, nil
}

// SymbolHistory returns stored quotes of one symbol, newest first.
func (s *SQLiteStore) SymbolHistory(ctx context.Context, symbol string, limit int) ([]models.Quote, error) {
	query := `
		SELECT symbol, price, change, change_percent, prev_close, source, timestamp
		FROM quotes
		WHERE symbol = ?
		ORDER BY timestamp DESC, id DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []models.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return history, nil
}

func scanQuote(rows *sql.Rows) (models.Quote, error) {
	var q models.Quote
	var change, changePct, prevClose sql.NullFloat64
	if err := rows.Scan(&q.Symbol, &q.Price, &change, &changePct, &prevClose, &q.Source, &q.Timestamp); err != nil {
		return models.Quote{}, fmt.Errorf("failed to scan quote: %w", err)
	}
	q.Change = change.Float64
	q.ChangePercent = changePct.Float64
	q.PrevClose = prevClose.Float64
	return q, nil
}
