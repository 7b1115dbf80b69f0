package quotes

import (
	"context"
	"net/http"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	apperrors "leverage-sim/internal/errors"
	"leverage-sim/internal/models"
)

// KiteConfig holds configuration for the Kite Connect provider.
type KiteConfig struct {
	APIKey      string
	AccessToken string
	Exchange    string // instrument prefix, e.g. NSE
	BaseURI     string
	Timeout     time.Duration
}

// KiteProvider fetches quotes from Zerodha Kite Connect.
type KiteProvider struct {
	client     *kiteconnect.Client
	exchange   string
	configured bool
}

// NewKiteProvider creates a new Kite Connect provider using an existing
// access token.
func NewKiteProvider(cfg KiteConfig) *KiteProvider {
	client := kiteconnect.New(cfg.APIKey)
	client.SetAccessToken(cfg.AccessToken)
	if cfg.BaseURI != "" {
		client.SetBaseURI(cfg.BaseURI)
	}
	if cfg.Timeout > 0 {
		client.SetHTTPClient(&http.Client{Timeout: cfg.Timeout})
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "NSE"
	}

	return &KiteProvider{
		client:     client,
		exchange:   exchange,
		configured: cfg.APIKey != "" && cfg.AccessToken != "",
	}
}

// Name returns the provider name.
func (k *KiteProvider) Name() string {
	return "kite"
}

// Quote fetches the real-time quote for symbol on the configured exchange.
func (k *KiteProvider) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	if !k.configured {
		return models.Quote{}, apperrors.NewQuoteError(k.Name(), symbol, "missing api key or access token", apperrors.ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return models.Quote{}, err
	}

	instrument := k.exchange + ":" + symbol
	quotes, err := k.client.GetQuote(instrument)
	if err != nil {
		return models.Quote{}, apperrors.NewQuoteError(k.Name(), symbol, "failed to get quote", err)
	}

	q, ok := quotes[instrument]
	if !ok {
		return models.Quote{}, apperrors.NewQuoteError(k.Name(), symbol, "quote not found", apperrors.ErrSymbolNotFound)
	}

	out := models.Quote{
		Symbol:    symbol,
		Price:     q.LastPrice,
		Change:    q.NetChange,
		PrevClose: q.OHLC.Close,
		Source:    k.Name(),
		Timestamp: q.Timestamp.Time,
	}
	if q.OHLC.Close != 0 {
		out.ChangePercent = q.NetChange / q.OHLC.Close * 100
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}
	return out, nil
}
