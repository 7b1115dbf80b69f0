package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"leverage-sim/internal/goalseek"
	"leverage-sim/internal/logging"
	"leverage-sim/internal/models"
	"leverage-sim/internal/valuation"
)

// addSimulationCommands adds valuation and goal seek commands.
func addSimulationCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newEvalCmd(app))
	rootCmd.AddCommand(newSolveCmd(app))
	rootCmd.AddCommand(newAnalyticsCmd(app))
}

type evaluation struct {
	Snapshot  models.Snapshot      `json:"snapshot"`
	Quotes    models.QuoteSnapshot `json:"quotes"`
	Narrative string               `json:"narrative,omitempty"`
}

func newEvalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "eval [PRICE]",
		Aliases: []string{"evaluate"},
		Short:   "Value the portfolio at a simulated underlying price",
		Long: `Value every position at a hypothetical underlying price.

Without PRICE the scenario sim_price from config.toml is used. A price
that is not a non-negative number produces an empty valuation.`,
		Example: `  levsim eval 300
  levsim eval 300 --refresh --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			refresh, _ := cmd.Flags().GetBool("refresh")
			narrate, _ := cmd.Flags().GetBool("ai")

			raw := strconv.FormatFloat(app.Config.Scenario.SimPrice, 'f', -1, 64)
			if len(args) == 1 {
				raw = args[0]
			}

			p, quoteSnap, err := app.Quotes.Price(ctx, app.Config.BuildPortfolio(), refresh)
			if err != nil {
				return err
			}

			snap, err := app.Config.Model().EvaluateInput(p, raw)
			if err != nil {
				return err
			}
			log := logging.WithSymbol(logging.WithOperation(app.Logger, "eval"), p.Underlying.Symbol)
			logging.LogValuation(log, snap)
			snap = snap.Rounded()

			result := evaluation{Snapshot: snap, Quotes: quoteSnap}
			if narrate && snap.Valid {
				narrator, err := app.narrator()
				if err != nil {
					return err
				}
				if result.Narrative, err = narrator.NarrateSnapshot(ctx, snap); err != nil {
					return fmt.Errorf("narrating valuation: %w", err)
				}
			}

			if output.IsJSON() {
				return output.JSON(result)
			}

			if !snap.Valid {
				output.Warning("Enter a valid price: %q is not a non-negative number", raw)
				return nil
			}
			renderSnapshot(output, snap)
			renderNarrative(output, result.Narrative)
			return nil
		},
	}

	cmd.Flags().Bool("refresh", false, "refetch current prices before valuing")
	cmd.Flags().Bool("ai", false, "add an AI commentary of the scenario")

	return cmd
}

func newSolveCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "solve",
		Aliases: []string{"goalseek"},
		Short:   "Find the underlying price that reaches a target",
		Long: `Bisect the underlying price until the portfolio reaches a target.

Modes:
  amount  total simulated portfolio value, in currency
  pnl     total P&L, in percent

Without --target the scenario target_value or target_pnl from config.toml
is used.`,
		Example: `  levsim solve --mode amount --target 1000000
  levsim solve --mode pnl --target 100 --high 5000 --trace`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			modeName, _ := cmd.Flags().GetString("mode")
			mode, err := models.ParseMode(modeName)
			if err != nil {
				return err
			}

			target := app.Config.Scenario.TargetValue
			if mode == models.ModePnl {
				target = app.Config.Scenario.TargetPnl
			}
			if cmd.Flags().Changed("target") {
				target, _ = cmd.Flags().GetFloat64("target")
			}

			cfg := solverConfigFromFlags(cmd, app.Config.SolverConfig())
			refresh, _ := cmd.Flags().GetBool("refresh")
			trace, _ := cmd.Flags().GetBool("trace")
			narrate, _ := cmd.Flags().GetBool("ai")

			p, quoteSnap, err := app.Quotes.Price(ctx, app.Config.BuildPortfolio(), refresh)
			if err != nil {
				return err
			}

			model := app.Config.Model()
			solver := goalseek.NewSolver(model, cfg)
			if trace {
				solver.WithTrace(func(iteration int, low, high, mid, metric float64) {
					if !output.IsJSON() {
						output.Dim("  #%-4d low %-14.6f high %-14.6f mid %-14.6f metric %.4f", iteration, low, high, mid, metric)
					}
				})
			}

			monotonic := goalseek.AssumesMonotonic(model, p)
			if !monotonic && !output.IsJSON() {
				output.Warning("⚠ Portfolio holds short positions; the value may fall as the price rises")
			}

			res, err := solver.Solve(p, models.Target{Mode: mode, Value: target})
			if err != nil {
				return err
			}
			log := logging.WithSymbol(logging.WithOperation(app.Logger, "solve"), p.Underlying.Symbol)
			logging.LogGoalSeek(log, res)

			var narrative string
			if narrate {
				narrator, err := app.narrator()
				if err != nil {
					return err
				}
				if narrative, err = narrator.NarrateResult(ctx, res); err != nil {
					return fmt.Errorf("narrating result: %w", err)
				}
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"result":    res,
					"monotonic": monotonic,
					"quotes":    quoteSnap,
					"narrative": narrative,
				})
			}

			renderResult(output, res)
			renderNarrative(output, narrative)
			return nil
		},
	}

	defaults := goalseek.DefaultConfig()
	cmd.Flags().String("mode", string(models.ModeAmount), "target metric: amount or pnl")
	cmd.Flags().Float64("target", 0, "target value (currency for amount, percent for pnl)")
	cmd.Flags().Float64("low", defaults.Low, "lower search bound for the underlying price")
	cmd.Flags().Float64("high", defaults.High, "upper search bound for the underlying price")
	cmd.Flags().Float64("tolerance", defaults.Tolerance, "stop when the bracket is narrower than this")
	cmd.Flags().Int("max-iterations", defaults.MaxIterations, "maximum bisection steps")
	cmd.Flags().Bool("refresh", false, "refetch current prices before solving")
	cmd.Flags().Bool("trace", false, "print every bisection step")
	cmd.Flags().Bool("ai", false, "add an AI explanation of the result")

	return cmd
}

// solverConfigFromFlags overrides configured bounds with explicitly set flags.
func solverConfigFromFlags(cmd *cobra.Command, cfg goalseek.Config) goalseek.Config {
	if cmd.Flags().Changed("low") {
		cfg.Low, _ = cmd.Flags().GetFloat64("low")
	}
	if cmd.Flags().Changed("high") {
		cfg.High, _ = cmd.Flags().GetFloat64("high")
	}
	if cmd.Flags().Changed("tolerance") {
		cfg.Tolerance, _ = cmd.Flags().GetFloat64("tolerance")
	}
	if cmd.Flags().Changed("max-iterations") {
		cfg.MaxIterations, _ = cmd.Flags().GetInt("max-iterations")
	}
	return cfg
}

func newAnalyticsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show cost basis, market value and weights at current prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			refresh, _ := cmd.Flags().GetBool("refresh")
			narrate, _ := cmd.Flags().GetBool("ai")

			p, _, err := app.Quotes.Price(ctx, app.Config.BuildPortfolio(), refresh)
			if err != nil {
				return err
			}
			a, err := valuation.Analyze(p)
			if err != nil {
				return err
			}

			var narrative string
			if narrate {
				narrator, err := app.narrator()
				if err != nil {
					return err
				}
				if narrative, err = narrator.NarrateAnalytics(ctx, a); err != nil {
					return fmt.Errorf("narrating analytics: %w", err)
				}
			}

			if output.IsJSON() {
				return output.JSON(struct {
					valuation.Analytics
					Narrative string `json:"narrative,omitempty"`
				}{a, narrative})
			}

			output.Box("Portfolio at current prices", []string{
				fmt.Sprintf("Cost basis:    %s", FormatCurrency(a.TotalCost)),
				fmt.Sprintf("Market value:  %s", FormatCurrency(a.TotalValue)),
				fmt.Sprintf("Unrealized:    %s (%s)", output.FormatPnL(a.TotalValue-a.TotalCost), output.FormatPercent(a.PnlPercent)),
			})
			output.Println()

			table := NewTable(output, "Symbol", "Weight")
			for _, w := range a.Weights {
				table.AddRow(w.Symbol, fmt.Sprintf("%.2f%%", w.Percent))
			}
			table.Render()

			if len(a.Insights) > 0 {
				output.Println()
				output.Bold("Insights")
				for _, insight := range a.Insights {
					output.Printf("  • %s\n", insight)
				}
			}
			renderNarrative(output, narrative)
			return nil
		},
	}

	cmd.Flags().Bool("refresh", false, "refetch current prices")
	cmd.Flags().Bool("ai", false, "add an AI commentary")

	return cmd
}

// renderSnapshot prints a valuation as a position table with totals.
func renderSnapshot(output *Output, snap models.Snapshot) {
	output.Bold("Simulated at %s (%s vs current)", FormatCurrency(snap.UnderlyingPrice), output.FormatFraction(snap.PctChange))
	output.Println()

	table := NewTable(output, "Symbol", "Role", "Qty", "Avg Cost", "Current", "Sim Price", "Sim P&L", "Cost", "Value Now", "Sim Value")
	for _, v := range snap.Positions() {
		table.AddRow(
			v.Symbol,
			string(v.Role),
			FormatQuantity(v.Qty),
			FormatCurrency(v.AvgCost),
			FormatCurrency(v.CurrentPrice),
			FormatCurrency(v.SimPrice),
			output.FormatFraction(v.SimPnl),
			FormatCurrency(v.Cost),
			FormatCurrency(v.CurrentMarketValue),
			FormatCurrency(v.Amount),
		)
	}
	table.AddRow(
		output.BoldText("TOTAL"), "", "", "", "", "",
		output.FormatFraction(snap.Total.Pnl),
		FormatCurrency(snap.Total.Cost),
		FormatCurrency(snap.Total.CurrentMarketValue),
		output.BoldText(FormatCurrency(snap.Total.Amount)),
	)
	table.Render()

	output.Println()
	output.Printf("Gain vs cost:   %s\n", output.FormatPnL(snap.Total.Amount-snap.Total.Cost))
	output.Printf("Gain vs now:    %s\n", output.FormatPnL(snap.Total.Amount-snap.Total.CurrentMarketValue))
}

// renderResult prints a goal seek outcome.
func renderResult(output *Output, res models.Result) {
	target := FormatCurrency(res.Target.Value)
	if res.Target.Mode == models.ModePnl {
		target = FormatPercent(res.Target.Value)
	}

	switch res.Status {
	case models.StatusUnreachable:
		output.Error("✗ Target %s is unreachable: beyond the %s search bound", target, res.Bound)
		output.Printf("  Reachable range: %s .. %s\n", formatMetric(res.Target.Mode, res.RangeLow), formatMetric(res.Target.Mode, res.RangeHigh))
		output.Printf("  Closest price:   %s\n", FormatCurrency(res.Price))
		return
	case models.StatusApproximate:
		output.Warning("~ Target %s approximately reached at %s (iteration cap hit, bracket %g)", target, FormatCurrency(res.Price), res.Interval)
	default:
		output.Success("✓ Target %s reached at %s", target, FormatCurrency(res.Price))
	}
	output.Dim("  %d iterations, final bracket %g", res.Iterations, res.Interval)
	output.Println()

	if res.Snapshot.Valid {
		renderSnapshot(output, res.Snapshot)
	}
}

func formatMetric(mode models.Mode, v float64) string {
	if mode == models.ModePnl {
		return FormatPercent(v)
	}
	return FormatCurrency(v)
}

func renderNarrative(output *Output, narrative string) {
	if narrative == "" {
		return
	}
	output.Println()
	output.Bold("AI commentary")
	output.Println(narrative)
}
