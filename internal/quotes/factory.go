package quotes

import (
	"fmt"

	"github.com/rs/zerolog"

	"leverage-sim/internal/config"
	apperrors "leverage-sim/internal/errors"
	"leverage-sim/internal/resilience"
	"leverage-sim/pkg/utils"
)

// NewProvider builds the configured quote provider. Network providers are
// wrapped with retries.
func NewProvider(cfg *config.Config, log zerolog.Logger) (Provider, error) {
	var p Provider
	switch cfg.Quotes.Provider {
	case config.ProviderStatic:
		prices := make(map[string]float64)
		for _, pos := range cfg.BuildPortfolio().Positions() {
			if pos.CurrentPrice > 0 {
				prices[pos.Symbol] = pos.CurrentPrice
			}
		}
		return NewStaticProvider(prices), nil
	case config.ProviderFinnhub:
		p = NewFinnhubProvider(FinnhubConfig{
			Token:         cfg.Credentials.Finnhub.Token,
			Timeout:       cfg.Quotes.Timeout,
			RatePerMinute: cfg.Quotes.RatePerMinute,
		}, log)
	case config.ProviderYahoo:
		p = NewYahooProvider("", cfg.Quotes.Timeout, log)
	case config.ProviderKite:
		p = NewKiteProvider(KiteConfig{
			APIKey:      cfg.Credentials.Kite.APIKey,
			AccessToken: cfg.Credentials.Kite.AccessToken,
			Exchange:    cfg.Quotes.Exchange,
			Timeout:     cfg.Quotes.Timeout,
		})
	default:
		return nil, fmt.Errorf("%w: unknown quote provider %q", apperrors.ErrConfigInvalid, cfg.Quotes.Provider)
	}

	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Quotes.Retries
	rp := WithRetry(p, retry)

	if cfg.Quotes.BreakerThreshold > 0 {
		bc := resilience.DefaultConfig()
		bc.FailureThreshold = cfg.Quotes.BreakerThreshold
		if cfg.Quotes.BreakerCooldown > 0 {
			bc.Cooldown = cfg.Quotes.BreakerCooldown
		}
		bc.IsFailure = IsUpstreamFailure
		bc.OnStateChange = func(name string, from, to resilience.State) {
			event := log.Info()
			if to == resilience.StateOpen {
				event = log.Warn()
			}
			event.Str("provider", name).Str("from", string(from)).Str("to", string(to)).Msg("Quote provider circuit changed state")
		}
		rp.WithBreaker(resilience.New(p.Name(), bc))
	}
	return rp, nil
}
