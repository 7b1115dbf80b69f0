package quotes

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "leverage-sim/internal/errors"
)

const yahooChartFixture = `{
  "chart": {
    "result": [{
      "meta": {
        "symbol": "TSLA",
        "regularMarketPrice": 252.0,
        "chartPreviousClose": 240.0,
        "regularMarketTime": 1736870400
      },
      "timestamp": [1736865000, 1736865300, 1736865600, 1736865900],
      "indicators": {
        "quote": [{
          "close": [248.5, null, 250.25, 252.0]
        }]
      }
    }],
    "error": null
  }
}`

func newYahooServer(t *testing.T, status int, body string) *YahooProvider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/TSLA", r.URL.Path)
		assert.Equal(t, "5m", r.URL.Query().Get("interval"))
		assert.Equal(t, "1d", r.URL.Query().Get("range"))
		assert.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))

		if strings.HasPrefix(body, "{") {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	p := NewYahooProvider(srv.URL, time.Second, zerolog.Nop())
	t.Cleanup(func() { p.Close() })
	return p
}

func TestYahooProvider_Quote(t *testing.T) {
	p := newYahooServer(t, http.StatusOK, yahooChartFixture)

	q, err := p.Quote(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, 252.0, q.Price)
	assert.Equal(t, 240.0, q.PrevClose)
	assert.Equal(t, 12.0, q.Change)
	assert.InDelta(t, 5.0, q.ChangePercent, 1e-9)
	assert.Equal(t, "yahoo", q.Source)
}

func TestYahooProvider_IntradaySkipsNulls(t *testing.T) {
	p := newYahooServer(t, http.StatusOK, yahooChartFixture)

	points, err := p.Intraday(context.Background(), "TSLA")
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 248.5, points[0].Price)
	assert.Equal(t, int64(1736865000), points[0].Time.Unix())
	assert.Equal(t, 250.25, points[1].Price)
	assert.Equal(t, int64(1736865600), points[1].Time.Unix())
	assert.Equal(t, 252.0, points[2].Price)
}

func TestYahooProvider_NotFound(t *testing.T) {
	body := `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`
	p := newYahooServer(t, http.StatusNotFound, body)

	_, err := p.Quote(context.Background(), "TSLA")
	assert.ErrorIs(t, err, apperrors.ErrSymbolNotFound)
}

func TestYahooProvider_RateLimited(t *testing.T) {
	p := newYahooServer(t, http.StatusTooManyRequests, `Too Many Requests`)

	_, err := p.Quote(context.Background(), "TSLA")
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
}

func TestYahooProvider_ServerError(t *testing.T) {
	p := newYahooServer(t, http.StatusBadGateway, `upstream unavailable`)

	_, err := p.Quote(context.Background(), "TSLA")
	var qe *apperrors.QuoteError
	require.ErrorAs(t, err, &qe)
	assert.Contains(t, err.Error(), "status 502")
	assert.True(t, IsUpstreamFailure(err))
}

func TestYahooProvider_LogsUpstreamCall(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(yahooChartFixture))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	p := NewYahooProvider(srv.URL, time.Second, zerolog.New(&buf))
	defer p.Close()

	_, err := p.Quote(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"event":"api_call"`)
	assert.Contains(t, buf.String(), `"endpoint":"/v8/finance/chart/TSLA"`)
	assert.Contains(t, buf.String(), `"status":200`)
}
