package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "leverage-sim/internal/errors"
	"leverage-sim/internal/models"
	"leverage-sim/internal/store"
)

// addQuoteCommands adds market data commands.
func addQuoteCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "quote",
		Aliases: []string{"quotes"},
		Short:   "Reference prices and quote history",
	}

	cmd.AddCommand(newQuoteShowCmd(app, "show", "Show the reference prices used for valuation", false))
	cmd.AddCommand(newQuoteShowCmd(app, "fetch", "Fetch fresh prices and make them the reference", true))
	cmd.AddCommand(newQuoteHistoryCmd(app))
	cmd.AddCommand(newQuoteSnapshotsCmd(app))
	cmd.AddCommand(newQuoteIntradayCmd(app))

	rootCmd.AddCommand(cmd)
}

func newQuoteShowCmd(app *App, use, short string, refresh bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			snap, err := app.Quotes.Snapshot(cmd.Context(), app.Config.BuildPortfolio().Symbols(), refresh)
			if err != nil && len(snap.Quotes) == 0 {
				return err
			}

			if output.IsJSON() {
				return output.JSON(snap)
			}
			renderQuoteSnapshot(output, snap)
			if err != nil {
				output.Println()
				output.Warning("⚠ Some quotes are missing: %v", err)
			}
			return nil
		},
	}
}

func newQuoteHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history SYMBOL",
		Short: "Show stored quotes of a symbol, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("%w: quote store is unavailable", apperrors.ErrNotConfigured)
			}

			limit, _ := cmd.Flags().GetInt("limit")
			if limit < 1 {
				return apperrors.NewValidationError("limit", limit, "must be at least 1")
			}

			symbol := strings.ToUpper(args[0])
			history, err := app.Store.SymbolHistory(cmd.Context(), symbol, limit)
			if err != nil {
				return err
			}
			if history == nil {
				history = []models.Quote{}
			}

			if output.IsJSON() {
				return output.JSON(history)
			}
			if len(history) == 0 {
				output.Info("No stored quotes for %s", symbol)
				return nil
			}

			table := NewTable(output, "Time", "Price", "Change", "Change %", "Source")
			for _, q := range history {
				table.AddRow(
					q.Timestamp.Local().Format("2006-01-02 15:04:05"),
					FormatCurrency(q.Price),
					output.FormatPnL(q.Change),
					output.FormatPercent(q.ChangePercent),
					q.Source,
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum number of quotes")
	return cmd
}

func newQuoteSnapshotsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List stored quote snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("%w: quote store is unavailable", apperrors.ErrNotConfigured)
			}

			filter := store.SnapshotFilter{}
			filter.Source, _ = cmd.Flags().GetString("source")
			filter.Limit, _ = cmd.Flags().GetInt("limit")
			if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			snaps, err := app.Store.ListSnapshots(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if snaps == nil {
				snaps = []models.QuoteSnapshot{}
			}

			if output.IsJSON() {
				return output.JSON(snaps)
			}
			if len(snaps) == 0 {
				output.Info("No stored snapshots")
				return nil
			}

			table := NewTable(output, "ID", "Fetched", "Source", "Prices")
			for _, s := range snaps {
				table.AddRow(
					fmt.Sprintf("%d", s.ID),
					s.FetchedAt.Local().Format("2006-01-02 15:04:05"),
					s.Source,
					summarizePrices(s),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().String("source", "", "only snapshots from this provider")
	cmd.Flags().Int("limit", 20, "maximum number of snapshots")
	cmd.Flags().Duration("since", 0, "only snapshots newer than this, e.g. 24h")
	return cmd
}

func newQuoteIntradayCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "intraday SYMBOL",
		Short: "Show today's intraday prices of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := strings.ToUpper(args[0])

			points, err := app.Quotes.Intraday(cmd.Context(), symbol)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(points)
			}
			if len(points) == 0 {
				output.Info("No intraday prices for %s", symbol)
				return nil
			}

			low, high := points[0].Price, points[0].Price
			for _, p := range points {
				if p.Price < low {
					low = p.Price
				}
				if p.Price > high {
					high = p.Price
				}
			}

			first, last := points[0], points[len(points)-1]
			output.Bold("%s intraday", symbol)
			output.Printf("  Open:  %s  (%s)\n", FormatCurrency(first.Price), first.Time.Local().Format("15:04"))
			output.Printf("  Last:  %s  (%s)\n", FormatCurrency(last.Price), last.Time.Local().Format("15:04"))
			output.Printf("  Range: %s .. %s\n", FormatCurrency(low), FormatCurrency(high))
			if first.Price != 0 {
				output.Printf("  Move:  %s\n", output.FormatPercent((last.Price-first.Price)/first.Price*100))
			}
			output.Dim("  %d points", len(points))
			return nil
		},
	}
}

func renderQuoteSnapshot(output *Output, snap models.QuoteSnapshot) {
	output.Bold("Quotes from %s at %s", snap.Source, snap.FetchedAt.Local().Format("2006-01-02 15:04:05"))
	output.Println()

	table := NewTable(output, "Symbol", "Price", "Change", "Change %", "Prev Close")
	for _, symbol := range sortedSymbols(snap) {
		q := snap.Quotes[symbol]
		table.AddRow(
			q.Symbol,
			FormatCurrency(q.Price),
			output.FormatPnL(q.Change),
			output.FormatPercent(q.ChangePercent),
			FormatCurrency(q.PrevClose),
		)
	}
	table.Render()
}

func summarizePrices(snap models.QuoteSnapshot) string {
	var parts []string
	for _, symbol := range sortedSymbols(snap) {
		parts = append(parts, fmt.Sprintf("%s %.2f", symbol, snap.Quotes[symbol].Price))
	}
	return strings.Join(parts, ", ")
}

func sortedSymbols(snap models.QuoteSnapshot) []string {
	symbols := make([]string, 0, len(snap.Quotes))
	for s := range snap.Quotes {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
