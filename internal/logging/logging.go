// Package logging builds the application logger and the event helpers
// logged around valuations, goal seeks and quote fetches.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"leverage-sim/internal/models"
)

// Config selects where log lines go and how the file rotates.
type Config struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultConfig logs at info to the console and to
// ~/.config/levsim/logs/levsim.log.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "levsim", "logs", "levsim.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// New builds a logger for cfg and sets the global level. With neither
// sink enabled it writes to stderr.
func New(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	return zerolog.New(sink(cfg)).With().Timestamp().Logger()
}

func sink(cfg Config) io.Writer {
	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	if cfg.File {
		// An unwritable log directory leaves the console as the only sink.
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	switch len(writers) {
	case 0:
		return os.Stderr
	case 1:
		return writers[0]
	}
	return zerolog.MultiLevelWriter(writers...)
}

// ParseLevel maps a configured level name to a zerolog level. Unknown
// and empty names mean info.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// SetDebugLevel lowers the global level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

type loggerKey struct{}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithSymbol tags every line of logger with symbol.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithOperation tags every line of logger with the operation name.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogValuation records a valuation at a simulated underlying price.
func LogValuation(logger zerolog.Logger, snap models.Snapshot) {
	if !snap.Valid {
		logger.Debug().Str("event", "valuation").Msg("Invalid simulated price")
		return
	}
	logger.Debug().
		Str("event", "valuation").
		Float64("price", snap.UnderlyingPrice).
		Float64("amount", snap.Total.Amount).
		Float64("pnl", snap.Total.Pnl).
		Msg("Portfolio valued")
}

// LogGoalSeek records a goal seek outcome. Unsolved targets log at warn.
func LogGoalSeek(logger zerolog.Logger, res models.Result) {
	event := logger.Info()
	if !res.Solved() {
		event = logger.Warn()
	}
	event.
		Str("event", "goal_seek").
		Str("mode", string(res.Target.Mode)).
		Float64("target", res.Target.Value).
		Str("status", string(res.Status)).
		Float64("price", res.Price).
		Int("iterations", res.Iterations).
		Float64("interval", res.Interval).
		Msg("Goal seek finished")
}

// LogQuote records a quote accepted into a snapshot.
func LogQuote(logger zerolog.Logger, q models.Quote) {
	logger.Debug().
		Str("event", "quote").
		Str("symbol", q.Symbol).
		Str("source", q.Source).
		Float64("price", q.Price).
		Time("quoted_at", q.Timestamp).
		Msg("Quote accepted")
}

// LogAPICall records one upstream HTTP round trip. endpoint must not
// carry credentials; status is 0 when no response arrived.
func LogAPICall(logger zerolog.Logger, method, endpoint string, status int, duration time.Duration, err error) {
	event := logger.Debug()
	if err != nil {
		event = logger.Warn().Err(err)
	}
	event.
		Str("event", "api_call").
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", status).
		Dur("duration", duration).
		Msg("Upstream call")
}
