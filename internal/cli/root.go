package cli

import (
	"io"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"leverage-sim/internal/agents"
	"leverage-sim/internal/config"
	"leverage-sim/internal/logging"
	"leverage-sim/internal/quotes"
	"leverage-sim/internal/security"
	"leverage-sim/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-19"
)

// skipSetup marks commands that run without configuration.
const skipSetup = "skip-setup"

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Quotes    *quotes.Service
	Store     store.QuoteStore
	LLMClient *agents.OpenAIClient

	provider  quotes.Provider
	logFixed  bool
	setupDone bool
}

// NewApp creates an application whose logger is built from the loaded
// configuration.
func NewApp() *App {
	return &App{Logger: zerolog.Nop()}
}

// NewAppWithLogger creates an application that logs to logger regardless
// of the configured log settings.
func NewAppWithLogger(logger zerolog.Logger) *App {
	return &App{Logger: logger, logFixed: true}
}

// setup loads configuration from configDir and initializes the quote
// service, the snapshot store and the optional LLM client.
func (a *App) setup(configDir string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	a.Config = cfg

	if !a.logFixed {
		logCfg := logging.DefaultConfig()
		logCfg.Level = cfg.Log.Level
		logCfg.Console = cfg.Log.Console
		logCfg.File = cfg.Log.File
		logCfg.FilePath = cfg.Log.FilePath
		a.Logger = logging.New(logCfg)
	}

	dbPath := cfg.Quotes.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(cfg.Dir, "quotes.db")
	}
	sqliteStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to initialize store, quote history is unavailable")
	} else {
		a.Store = sqliteStore
		a.Logger.Debug().Str("path", dbPath).Msg("SQLite store initialized")
	}

	provider, err := quotes.NewProvider(cfg, a.Logger)
	if err != nil {
		return err
	}
	a.provider = provider

	var snapshots quotes.SnapshotStore
	if a.Store != nil {
		snapshots = a.Store
	}
	a.Quotes = quotes.NewService(provider, snapshots, cfg.IsLiveReference(), a.Logger)
	a.Logger.Debug().
		Str("provider", provider.Name()).
		Str("reference", cfg.Quotes.Reference).
		Msg("Quote service initialized")

	if cfg.Credentials.OpenAI.APIKey != "" {
		a.LLMClient = agents.NewOpenAIClient(cfg.Credentials.OpenAI.APIKey, cfg.Credentials.OpenAI.Model, cfg.Credentials.OpenAI.BaseURL)
		a.Logger.Debug().Str("model", cfg.Credentials.OpenAI.Model).Msg("OpenAI LLM client initialized")
	}

	a.setupDone = true
	return nil
}

// Close releases the store and provider.
func (a *App) Close() error {
	var firstErr error
	if c, ok := a.provider.(io.Closer); ok {
		firstErr = c.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "levsim",
		Short: "Leverage simulator - what-if valuation for a stock and its leveraged companion",
		Long: `levsim values a position in an underlying stock together with a leveraged
companion fund at any hypothetical underlying price, and solves for the
underlying price that reaches a target portfolio value or P&L.

Companion prices move by the leverage factor times the underlying's
percentage move from its current price.

Use 'levsim <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipSetup] == "" && !app.setupDone {
				configDir, _ := cmd.Flags().GetString("config")
				if err := app.setup(configDir); err != nil {
					return err
				}
			}

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/levsim)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addSimulationCommands(rootCmd, app)
	addQuoteCommands(rootCmd, app)
	addAICommands(rootCmd, app)
	rootCmd.AddCommand(newServeCmd(app))

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("levsim v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the simulator configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": app.Config.Dir})
			}
			output.Println(app.Config.Dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			// Load already validated; this re-checks after env overrides.
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Portfolio")
	p := cfg.BuildPortfolio()
	for _, pos := range p.Positions() {
		price := "fetch"
		if pos.CurrentPrice > 0 {
			price = FormatCurrency(pos.CurrentPrice)
		}
		output.Printf("  %-8s qty %-10s avg cost %-12s price %s\n",
			pos.Symbol, FormatQuantity(pos.Qty), FormatCurrency(pos.AvgCost), price)
	}
	output.Printf("  Allow short:     %v\n", cfg.Portfolio.AllowShort)
	output.Println()

	output.Bold("Engine")
	output.Printf("  Leverage factor: %.2fx\n", cfg.Engine.LeverageFactor)
	output.Println()

	output.Bold("Solver")
	output.Printf("  Bounds:          %s .. %s\n", FormatCurrency(cfg.Solver.Low), FormatCurrency(cfg.Solver.High))
	output.Printf("  Tolerance:       %g\n", cfg.Solver.Tolerance)
	output.Printf("  Max iterations:  %d\n", cfg.Solver.MaxIterations)
	output.Println()

	output.Bold("Scenario")
	output.Printf("  Sim price:       %s\n", FormatCurrency(cfg.Scenario.SimPrice))
	output.Printf("  Target value:    %s\n", FormatCurrency(cfg.Scenario.TargetValue))
	output.Printf("  Target P&L:      %.2f%%\n", cfg.Scenario.TargetPnl)
	output.Println()

	output.Bold("Quotes")
	output.Printf("  Provider:        %s\n", cfg.Quotes.Provider)
	output.Printf("  Reference:       %s\n", cfg.Quotes.Reference)
	output.Printf("  Timeout:         %s\n", cfg.Quotes.Timeout)
	output.Printf("  Rate limit:      %d/min\n", cfg.Quotes.RatePerMinute)
	output.Printf("  Retries:         %d\n", cfg.Quotes.Retries)
	output.Printf("  Database:        %s\n", cfg.Quotes.DBPath)
	output.Println()

	output.Bold("Server")
	output.Printf("  Address:         %s\n", cfg.Server.Addr)
	output.Printf("  Allowed origins: %v\n", cfg.Server.AllowedOrigins)
	output.Println()

	output.Bold("Credentials")
	creds := maskedCredentials(cfg.Credentials)
	for _, key := range []string{"finnhub.token", "kite.api_key", "kite.access_token", "openai.api_key", "openai.model", "openai.base_url"} {
		value := creds[key]
		if value == "" {
			value = output.DimText("not set")
		}
		output.Printf("  %-18s %s\n", key+":", value)
	}
}

func maskedCredentials(c config.Credentials) map[string]string {
	return security.RedactFields(map[string]string{
		"finnhub.token":     c.Finnhub.Token,
		"kite.api_key":      c.Kite.APIKey,
		"kite.access_token": c.Kite.AccessToken,
		"openai.api_key":    c.OpenAI.APIKey,
		"openai.model":      c.OpenAI.Model,
		"openai.base_url":   c.OpenAI.BaseURL,
	})
}
