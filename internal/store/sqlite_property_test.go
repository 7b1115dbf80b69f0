package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"leverage-sim/internal/models"
)

// Property: saving a snapshot and reading it back by id yields the same
// quotes.
func TestProperty_SnapshotRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	symbols := []string{"TSLA", "TSLL", "QQQ", "QLD", "TQQQ", "SPY", "SSO"}

	properties.Property("snapshot round-trip preserves quotes", prop.ForAll(
		func(count int, basePrice float64, source string) bool {
			ctx := context.Background()
			snap := generateSnapshot(symbols[:count], basePrice, source)

			if err := store.SaveSnapshot(ctx, &snap); err != nil {
				t.Logf("Failed to save snapshot: %v", err)
				return false
			}
			if snap.ID == 0 {
				t.Log("snapshot id not set")
				return false
			}

			got, err := store.GetSnapshot(ctx, snap.ID)
			if err != nil {
				t.Logf("Failed to get snapshot: %v", err)
				return false
			}

			if got.Source != snap.Source || !got.FetchedAt.Equal(snap.FetchedAt) {
				t.Logf("header mismatch: %+v vs %+v", got, snap)
				return false
			}
			if len(got.Quotes) != len(snap.Quotes) {
				t.Logf("Count mismatch: expected %d, got %d", len(snap.Quotes), len(got.Quotes))
				return false
			}
			for sym, orig := range snap.Quotes {
				if !quotesEqual(orig, got.Quotes[sym]) {
					t.Logf("Quote mismatch for %s: saved=%+v, retrieved=%+v", sym, orig, got.Quotes[sym])
					return false
				}
			}
			return true
		},
		gen.IntRange(1, len(symbols)),
		gen.Float64Range(1.0, 5000.0),
		gen.OneConstOf("finnhub", "yahoo", "kite", "static"),
	))

	properties.TestingRun(t)
}

func generateSnapshot(symbols []string, basePrice float64, source string) models.QuoteSnapshot {
	fetched := time.Date(2025, 1, 2, 15, 30, 0, 0, time.UTC)
	snap := models.QuoteSnapshot{
		Source:    source,
		FetchedAt: fetched,
		Quotes:    make(map[string]models.Quote, len(symbols)),
	}
	for i, sym := range symbols {
		price := roundToDecimal(basePrice*(1+float64(i)*0.1), 2)
		prev := roundToDecimal(price*0.98, 2)
		snap.Quotes[sym] = models.Quote{
			Symbol:        sym,
			Price:         price,
			Change:        roundToDecimal(price-prev, 2),
			ChangePercent: roundToDecimal((price-prev)/prev*100, 4),
			PrevClose:     prev,
			Source:        source,
			Timestamp:     fetched.Add(-time.Duration(i) * time.Second),
		}
	}
	return snap
}

// roundToDecimal rounds a float to specified decimal places
func roundToDecimal(val float64, places int) float64 {
	multiplier := math.Pow(10, float64(places))
	return math.Round(val*multiplier) / multiplier
}

func quotesEqual(a, b models.Quote) bool {
	const tolerance = 1e-9
	return a.Symbol == b.Symbol &&
		a.Source == b.Source &&
		a.Timestamp.Equal(b.Timestamp) &&
		floatEqual(a.Price, b.Price, tolerance) &&
		floatEqual(a.Change, b.Change, tolerance) &&
		floatEqual(a.ChangePercent, b.ChangePercent, tolerance) &&
		floatEqual(a.PrevClose, b.PrevClose, tolerance)
}

// floatEqual compares two floats with a tolerance.
func floatEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}
