package quotes

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "leverage-sim/internal/errors"
)

func newFinnhubServer(t *testing.T, handler http.HandlerFunc) *FinnhubProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewFinnhubProvider(FinnhubConfig{
		BaseURL:       srv.URL,
		Token:         "test-token",
		RatePerMinute: 6000,
	}, zerolog.Nop())
	t.Cleanup(func() { p.Close() })
	return p
}

func TestFinnhubProvider_Quote(t *testing.T) {
	p := newFinnhubServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "TSLA", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"c":251.5,"d":3.5,"dp":1.4113,"h":255,"l":240,"o":245,"pc":248,"t":1736870400}`))
	})

	q, err := p.Quote(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, "TSLA", q.Symbol)
	assert.Equal(t, 251.5, q.Price)
	assert.Equal(t, 3.5, q.Change)
	assert.Equal(t, 248.0, q.PrevClose)
	assert.Equal(t, "finnhub", q.Source)
	assert.Equal(t, int64(1736870400), q.Timestamp.Unix())
}

func TestFinnhubProvider_UnknownSymbol(t *testing.T) {
	p := newFinnhubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"c":0,"d":null,"dp":null,"h":0,"l":0,"o":0,"pc":0,"t":0}`))
	})

	_, err := p.Quote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, apperrors.ErrSymbolNotFound)
}

func TestFinnhubProvider_RateLimited(t *testing.T) {
	p := newFinnhubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"API limit reached"}`))
	})

	_, err := p.Quote(context.Background(), "TSLA")
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
}

func TestFinnhubProvider_APIError(t *testing.T) {
	p := newFinnhubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid API key"}`))
	})

	_, err := p.Quote(context.Background(), "TSLA")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrQuoteUnavailable)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestFinnhubProvider_MissingToken(t *testing.T) {
	p := NewFinnhubProvider(FinnhubConfig{BaseURL: "http://127.0.0.1:0"}, zerolog.Nop())
	defer p.Close()

	_, err := p.Quote(context.Background(), "TSLA")
	assert.ErrorIs(t, err, apperrors.ErrNotConfigured)
}

func TestFinnhubProvider_TransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	var logs bytes.Buffer
	p := NewFinnhubProvider(FinnhubConfig{
		BaseURL:       url,
		Token:         "c9secrettoken42",
		RatePerMinute: 6000,
	}, zerolog.New(&logs))
	defer p.Close()

	_, err := p.Quote(context.Background(), "TSLA")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "c9secrettoken42")
	var qe *apperrors.QuoteError
	assert.ErrorAs(t, err, &qe)

	// the failed call is logged at warn, token masked
	assert.Contains(t, logs.String(), `"event":"api_call"`)
	assert.Contains(t, logs.String(), `"symbol":"TSLA"`)
	assert.NotContains(t, logs.String(), "c9secrettoken42")
}
