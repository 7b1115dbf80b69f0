package quotes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/ratelimit"
	"resty.dev/v3"

	apperrors "leverage-sim/internal/errors"
	"leverage-sim/internal/logging"
	"leverage-sim/internal/models"
	"leverage-sim/internal/security"
)

const (
	finnhubBaseURL  = "https://finnhub.io/api/v1"
	finnhubQuoteURL = "/quote"
)

// FinnhubConfig holds Finnhub client configuration.
type FinnhubConfig struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	RatePerMinute int
}

// finnhubQuote is the /quote response. An unknown symbol comes back with
// every field zero.
type finnhubQuote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

type finnhubError struct {
	Error string `json:"error"`
}

// FinnhubProvider fetches quotes from the Finnhub REST API.
type FinnhubProvider struct {
	c       *resty.Client
	token   string
	limiter ratelimit.Limiter
	log     zerolog.Logger
}

// NewFinnhubProvider creates a new Finnhub provider.
func NewFinnhubProvider(cfg FinnhubConfig, log zerolog.Logger) *FinnhubProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = finnhubBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 60 // free tier
	}

	log = log.With().Str("client", "finnhub").Logger()
	client := resty.New().
		SetLogger(restyLogger{log}).
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	return &FinnhubProvider{
		c:       client,
		token:   cfg.Token,
		limiter: ratelimit.New(cfg.RatePerMinute, ratelimit.Per(time.Minute)),
		log:     log,
	}
}

// Name returns the provider name.
func (f *FinnhubProvider) Name() string {
	return "finnhub"
}

// Quote fetches the latest quote for symbol.
func (f *FinnhubProvider) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	if f.token == "" {
		return models.Quote{}, apperrors.NewQuoteError(f.Name(), symbol, "missing API token", apperrors.ErrNotConfigured)
	}

	f.limiter.Take()

	req := f.c.R().
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"token":  f.token,
		}).
		SetResult(&finnhubQuote{}).
		SetError(&finnhubError{}).
		SetContext(ctx)

	resp, err := req.Get(finnhubQuoteURL)
	// Transport errors carry the request URL, token included.
	err = security.RedactError(err)
	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	logging.LogAPICall(logging.WithSymbol(f.log, symbol), http.MethodGet, finnhubQuoteURL, status, durationOf(resp), err)
	if err != nil {
		return models.Quote{}, apperrors.NewQuoteError(f.Name(), symbol, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode() == http.StatusTooManyRequests {
		return models.Quote{}, apperrors.NewQuoteError(f.Name(), symbol, "rate limited", apperrors.ErrRateLimited)
	}
	if resp.IsError() {
		msg := resp.Status()
		if e, ok := resp.Error().(*finnhubError); ok && e.Error != "" {
			msg = e.Error
		}
		return models.Quote{}, apperrors.NewQuoteError(f.Name(), symbol, msg, nil)
	}

	q, ok := resp.Result().(*finnhubQuote)
	if !ok {
		return models.Quote{}, apperrors.NewQuoteError(f.Name(), symbol, fmt.Sprintf("unexpected response: %s", resp.Status()), nil)
	}
	if q.Current == 0 && q.Timestamp == 0 {
		return models.Quote{}, apperrors.NewQuoteError(f.Name(), symbol, "unknown symbol", apperrors.ErrSymbolNotFound)
	}

	return models.Quote{
		Symbol:        symbol,
		Price:         q.Current,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		PrevClose:     q.PrevClose,
		Source:        f.Name(),
		Timestamp:     time.Unix(q.Timestamp, 0),
	}, nil
}

// Close releases the HTTP client.
func (f *FinnhubProvider) Close() error {
	return f.c.Close()
}

// restyLogger routes resty's logging through zerolog with credentials
// masked.
type restyLogger struct {
	log zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.log.Error().Msg(security.Redact(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.log.Warn().Msg(security.Redact(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.log.Debug().Msg(security.Redact(fmt.Sprintf(format, v...)))
}
