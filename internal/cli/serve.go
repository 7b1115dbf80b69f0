package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"leverage-sim/internal/server"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulator over a JSON HTTP API",
		Long: `Start the HTTP API.

Endpoints:
  GET  /healthz
  POST /api/evaluate                 {"price": 300}
  POST /api/solve                    {"mode": "amount", "value": 1000000}
  GET  /api/analytics
  GET  /api/quotes                   ?refresh=true
  GET  /api/quotes/{symbol}/history  ?limit=50
  GET  /api/quotes/{symbol}/intraday`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			addr := app.Config.Server.Addr
			if cmd.Flags().Changed("addr") {
				addr, _ = cmd.Flags().GetString("addr")
			}

			cfg := server.Config{
				Addr:           addr,
				AllowedOrigins: app.Config.Server.AllowedOrigins,
				Log:            app.Logger,
				Portfolio:      app.Config.BuildPortfolio(),
				Model:          app.Config.Model(),
				Solver:         app.Config.SolverConfig(),
				Quotes:         app.Quotes,
				Version:        Version,
			}
			if app.Store != nil {
				cfg.Store = app.Store
			}
			srv := server.New(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()
			if !output.IsJSON() {
				output.Success("✓ Listening on %s", addr)
				output.Dim("Press Ctrl+C to stop")
			}

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default from config)")
	return cmd
}
