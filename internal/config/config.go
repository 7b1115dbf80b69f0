// Package config provides configuration management for the simulator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "leverage-sim/internal/errors"
	"leverage-sim/internal/goalseek"
	"leverage-sim/internal/models"
	"leverage-sim/internal/valuation"
)

// Quote providers.
const (
	ProviderFinnhub = "finnhub"
	ProviderYahoo   = "yahoo"
	ProviderKite    = "kite"
	ProviderStatic  = "static"
)

// Reference price policies.
const (
	ReferenceFrozen = "frozen" // reuse the stored snapshot
	ReferenceLive   = "live"   // refetch before every valuation
)

// Config holds all application configuration.
type Config struct {
	Portfolio   PortfolioConfig `mapstructure:"portfolio"`
	Engine      EngineConfig    `mapstructure:"engine"`
	Solver      SolverConfig    `mapstructure:"solver"`
	Scenario    ScenarioConfig  `mapstructure:"scenario"`
	Quotes      QuotesConfig    `mapstructure:"quotes"`
	Server      ServerConfig    `mapstructure:"server"`
	Log         LogConfig       `mapstructure:"log"`
	Credentials Credentials     `mapstructure:"-" json:"-"` // Loaded separately
	Dir         string          `mapstructure:"-"`
}

// PositionConfig describes one held instrument.
type PositionConfig struct {
	Symbol       string  `mapstructure:"symbol"`
	AvgCost      float64 `mapstructure:"avg_cost"`
	Qty          float64 `mapstructure:"qty"`
	CurrentPrice float64 `mapstructure:"current_price"` // static fallback, 0 = fetch
}

// PortfolioConfig holds the simulated positions.
type PortfolioConfig struct {
	AllowShort bool             `mapstructure:"allow_short"`
	Underlying PositionConfig   `mapstructure:"underlying"`
	Companions []PositionConfig `mapstructure:"companions"`
}

// EngineConfig holds valuation model configuration.
type EngineConfig struct {
	LeverageFactor float64 `mapstructure:"leverage_factor"`
}

// SolverConfig holds goal seek configuration.
type SolverConfig struct {
	Low           float64 `mapstructure:"low"`
	High          float64 `mapstructure:"high"`
	Tolerance     float64 `mapstructure:"tolerance"`
	MaxIterations int     `mapstructure:"max_iterations"`
}

// ScenarioConfig holds the values used when a command is run without
// explicit inputs.
type ScenarioConfig struct {
	SimPrice    float64 `mapstructure:"sim_price"`
	TargetValue float64 `mapstructure:"target_value"`
	TargetPnl   float64 `mapstructure:"target_pnl"`
}

// QuotesConfig holds market data configuration.
type QuotesConfig struct {
	Provider         string        `mapstructure:"provider"`  // finnhub, yahoo, kite, static
	Reference        string        `mapstructure:"reference"` // frozen, live
	Exchange         string        `mapstructure:"exchange"`  // instrument prefix for kite, e.g. NSE
	Timeout          time.Duration `mapstructure:"timeout"`
	RatePerMinute    int           `mapstructure:"rate_per_minute"`
	Retries          int           `mapstructure:"retries"`
	DBPath           string        `mapstructure:"db_path"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"` // 0 = no circuit breaker
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// Credentials holds API credentials.
type Credentials struct {
	Finnhub FinnhubCredentials `mapstructure:"finnhub"`
	Kite    KiteCredentials    `mapstructure:"kite"`
	OpenAI  OpenAICredentials  `mapstructure:"openai"`
}

// FinnhubCredentials holds the Finnhub API token.
type FinnhubCredentials struct {
	Token string `mapstructure:"token"`
}

// KiteCredentials holds Zerodha Kite Connect credentials.
type KiteCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
}

// OpenAICredentials holds OpenAI API credentials.
type OpenAICredentials struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"` // empty = api.openai.com
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/levsim"
	}
	return filepath.Join(home, ".config", "levsim")
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	cfg := &Config{Dir: DefaultConfigDir()}
	// Defaults always decode.
	_ = v.Unmarshal(cfg)
	cfg.Credentials.OpenAI.Model = "gpt-4o-mini"
	return cfg
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files
// are created from templates.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir}

	// Load main config
	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	// Load credentials
	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("portfolio.allow_short", false)
	v.SetDefault("portfolio.underlying.symbol", "TSLA")
	v.SetDefault("portfolio.underlying.avg_cost", 210.19)
	v.SetDefault("portfolio.underlying.qty", 181.0)
	v.SetDefault("portfolio.companions", []map[string]interface{}{
		{"symbol": "TSLL", "avg_cost": 13.70, "qty": 2500},
	})

	v.SetDefault("engine.leverage_factor", valuation.DefaultLeverage)

	solver := goalseek.DefaultConfig()
	v.SetDefault("solver.low", solver.Low)
	v.SetDefault("solver.high", solver.High)
	v.SetDefault("solver.tolerance", solver.Tolerance)
	v.SetDefault("solver.max_iterations", solver.MaxIterations)

	v.SetDefault("scenario.sim_price", 2600.0)
	v.SetDefault("scenario.target_value", 1000000.0)
	v.SetDefault("scenario.target_pnl", 100.0)

	v.SetDefault("quotes.provider", ProviderFinnhub)
	v.SetDefault("quotes.reference", ReferenceFrozen)
	v.SetDefault("quotes.exchange", "NSE")
	v.SetDefault("quotes.timeout", "10s")
	v.SetDefault("quotes.rate_per_minute", 60)
	v.SetDefault("quotes.retries", 3)
	v.SetDefault("quotes.breaker_threshold", 5)
	v.SetDefault("quotes.breaker_cooldown", "30s")
	v.SetDefault("quotes.db_path", filepath.Join(configDir, "quotes.db"))

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", true)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "levsim.log"))
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and run on defaults
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("openai.model", "gpt-4o-mini")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplateCredentials(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FINNHUB_TOKEN"); v != "" {
		cfg.Credentials.Finnhub.Token = v
	}
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Credentials.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Kite.AccessToken = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Credentials.OpenAI.BaseURL = v
	}
	if v := os.Getenv("LEVSIM_QUOTE_PROVIDER"); v != "" {
		cfg.Quotes.Provider = strings.ToLower(v)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Quotes.Provider {
	case ProviderFinnhub, ProviderYahoo, ProviderKite, ProviderStatic:
	default:
		return invalid("quotes.provider", c.Quotes.Provider, "must be one of finnhub, yahoo, kite, static")
	}
	switch c.Quotes.Reference {
	case ReferenceFrozen, ReferenceLive:
	default:
		return invalid("quotes.reference", c.Quotes.Reference, "must be 'frozen' or 'live'")
	}
	if c.Quotes.RatePerMinute < 1 {
		return invalid("quotes.rate_per_minute", c.Quotes.RatePerMinute, "must be at least 1")
	}
	if c.Quotes.BreakerThreshold < 0 {
		return invalid("quotes.breaker_threshold", c.Quotes.BreakerThreshold, "must not be negative")
	}

	if err := c.SolverConfig().Validate(); err != nil {
		return fmt.Errorf("%w: solver: %v", apperrors.ErrConfigInvalid, err)
	}

	if c.Engine.LeverageFactor <= 0 {
		return invalid("engine.leverage_factor", c.Engine.LeverageFactor, "must be positive")
	}

	seen := make(map[string]bool)
	positions := append([]PositionConfig{c.Portfolio.Underlying}, c.Portfolio.Companions...)
	for _, p := range positions {
		if p.Symbol == "" {
			return invalid("portfolio.symbol", p.Symbol, "must not be empty")
		}
		if seen[p.Symbol] {
			return invalid("portfolio.symbol", p.Symbol, "duplicate symbol")
		}
		seen[p.Symbol] = true

		if p.AvgCost <= 0 {
			return invalid(p.Symbol+".avg_cost", p.AvgCost, "must be positive")
		}
		if p.Qty < 0 && !c.Portfolio.AllowShort {
			return invalid(p.Symbol+".qty", p.Qty, "must be non-negative unless allow_short is set")
		}
		if p.CurrentPrice < 0 {
			return invalid(p.Symbol+".current_price", p.CurrentPrice, "must be non-negative")
		}
	}

	return nil
}

func invalid(field string, value interface{}, message string) error {
	return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, apperrors.NewValidationError(field, value, message))
}

// BuildPortfolio builds the portfolio with configured static prices.
func (c *Config) BuildPortfolio() models.Portfolio {
	p := models.Portfolio{
		Underlying: c.Portfolio.Underlying.position(),
		Companions: make([]models.Position, len(c.Portfolio.Companions)),
	}
	for i, pc := range c.Portfolio.Companions {
		p.Companions[i] = pc.position()
	}
	return p
}

func (p PositionConfig) position() models.Position {
	return models.Position{
		Symbol:       p.Symbol,
		CurrentPrice: p.CurrentPrice,
		AvgCost:      p.AvgCost,
		Qty:          p.Qty,
	}
}

// Model returns the configured valuation model.
func (c *Config) Model() valuation.Model {
	return valuation.NewModel(c.Engine.LeverageFactor)
}

// SolverConfig returns the goal seek bounds.
func (c *Config) SolverConfig() goalseek.Config {
	return goalseek.Config{
		Low:           c.Solver.Low,
		High:          c.Solver.High,
		Tolerance:     c.Solver.Tolerance,
		MaxIterations: c.Solver.MaxIterations,
	}
}

// IsLiveReference returns true if prices are refetched before every valuation.
func (c *Config) IsLiveReference() bool {
	return c.Quotes.Reference == ReferenceLive
}
