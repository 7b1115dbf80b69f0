package quotes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	apperrors "leverage-sim/internal/errors"
	"leverage-sim/internal/logging"
	"leverage-sim/internal/models"
)

const (
	yahooBaseURL  = "https://query1.finance.yahoo.com"
	yahooChartURL = "/v8/finance/chart/{symbol}"
)

// yahooChartResponse represents the response from the Yahoo Finance chart API
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// YahooProvider is a Yahoo Finance chart API client
type YahooProvider struct {
	c   *resty.Client
	log zerolog.Logger
}

// NewYahooProvider creates a new Yahoo Finance provider. An empty baseURL
// uses the public endpoint.
func NewYahooProvider(baseURL string, timeout time.Duration, log zerolog.Logger) *YahooProvider {
	if baseURL == "" {
		baseURL = yahooBaseURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	log = log.With().Str("client", "yahoo").Logger()
	client := resty.New().
		SetLogger(restyLogger{log}).
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "Mozilla/5.0")

	return &YahooProvider{c: client, log: log}
}

// Name returns the provider name.
func (y *YahooProvider) Name() string {
	return "yahoo"
}

// Quote returns the regular market price from the chart metadata.
func (y *YahooProvider) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	chart, err := y.chart(ctx, symbol)
	if err != nil {
		return models.Quote{}, err
	}

	meta := chart.Chart.Result[0].Meta
	q := models.Quote{
		Symbol:    symbol,
		Price:     meta.RegularMarketPrice,
		PrevClose: meta.ChartPreviousClose,
		Source:    y.Name(),
		Timestamp: time.Unix(meta.RegularMarketTime, 0),
	}
	if meta.ChartPreviousClose != 0 {
		q.Change = meta.RegularMarketPrice - meta.ChartPreviousClose
		q.ChangePercent = q.Change / meta.ChartPreviousClose * 100
	}
	return q, nil
}

// Intraday returns today's 5 minute closes. Bars without a close are
// skipped.
func (y *YahooProvider) Intraday(ctx context.Context, symbol string) ([]models.IntradayPoint, error) {
	chart, err := y.chart(ctx, symbol)
	if err != nil {
		return nil, err
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	closes := result.Indicators.Quote[0].Close

	points := make([]models.IntradayPoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, models.IntradayPoint{
			Time:  time.Unix(ts, 0),
			Price: *closes[i],
		})
	}
	return points, nil
}

func (y *YahooProvider) chart(ctx context.Context, symbol string) (*yahooChartResponse, error) {
	resp, err := y.c.R().
		SetPathParam("symbol", symbol).
		SetQueryParams(map[string]string{
			"interval": "5m",
			"range":    "1d",
		}).
		SetResult(&yahooChartResponse{}).
		SetError(&yahooChartResponse{}).
		SetContext(ctx).
		Get(yahooChartURL)

	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	logging.LogAPICall(y.log, http.MethodGet, "/v8/finance/chart/"+symbol, status, durationOf(resp), err)

	if status == http.StatusTooManyRequests {
		return nil, apperrors.NewQuoteError(y.Name(), symbol, "rate limited", apperrors.ErrRateLimited)
	}
	if err != nil {
		return nil, apperrors.NewQuoteError(y.Name(), symbol, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		if e, ok := resp.Error().(*yahooChartResponse); ok && e.Chart.Error != nil {
			return nil, chartError(y.Name(), symbol, e)
		}
		return nil, apperrors.NewQuoteError(y.Name(), symbol, fmt.Sprintf("status %d", status), nil)
	}

	chart, ok := resp.Result().(*yahooChartResponse)
	if !ok {
		return nil, apperrors.NewQuoteError(y.Name(), symbol, fmt.Sprintf("unexpected response: %s", resp.Status()), nil)
	}
	if chart.Chart.Error != nil {
		return nil, chartError(y.Name(), symbol, chart)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, apperrors.NewQuoteError(y.Name(), symbol, "empty chart", apperrors.ErrSymbolNotFound)
	}
	return chart, nil
}

func chartError(source, symbol string, chart *yahooChartResponse) error {
	if chart.Chart.Error.Code == "Not Found" {
		return apperrors.NewQuoteError(source, symbol, chart.Chart.Error.Description, apperrors.ErrSymbolNotFound)
	}
	return apperrors.NewQuoteError(source, symbol, chart.Chart.Error.Description, nil)
}

// durationOf returns the round trip time of resp, or zero without one.
func durationOf(resp *resty.Response) time.Duration {
	if resp == nil {
		return 0
	}
	return resp.Duration()
}

// Close releases the HTTP client.
func (y *YahooProvider) Close() error {
	return y.c.Close()
}
