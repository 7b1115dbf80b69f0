package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"leverage-sim/internal/agents"
	apperrors "leverage-sim/internal/errors"
	"leverage-sim/internal/goalseek"
)

// narrator returns a narrator when an OpenAI key is configured.
func (a *App) narrator() (*agents.Narrator, error) {
	if a.LLMClient == nil {
		return nil, fmt.Errorf("%w: OpenAI API key not set (credentials.toml or OPENAI_API_KEY)", apperrors.ErrNotConfigured)
	}
	return agents.NewNarrator(a.LLMClient), nil
}

// addAICommands adds LLM backed commands.
func addAICommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAskCmd(app))
}

func newAskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Ask the AI advisor about the portfolio",
		Long: `Ask a free-form question. The advisor values scenarios and runs goal
seeks through tools, so its numbers come from the simulator.`,
		Example: `  levsim ask "what is my P&L if TSLA drops 30%?"
  levsim ask "at what price do I double my money?" --verbose`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			verbose, _ := cmd.Flags().GetBool("verbose")

			if app.LLMClient == nil {
				return fmt.Errorf("%w: OpenAI API key not set (credentials.toml or OPENAI_API_KEY)", apperrors.ErrNotConfigured)
			}

			p, _, err := app.Quotes.Price(ctx, app.Config.BuildPortfolio(), false)
			if err != nil {
				return err
			}

			model := app.Config.Model()
			executor := agents.NewToolExecutor(p, model, goalseek.NewSolver(model, app.Config.SolverConfig()))
			advisor := agents.NewAdvisor(app.LLMClient, executor)

			question := strings.Join(args, " ")
			app.Logger.Debug().Str("question", question).Msg("Asking advisor")

			cot, err := advisor.Ask(ctx, question)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(cot)
			}

			if verbose {
				for _, call := range cot.ToolCalls {
					output.Dim("→ %s(%s)", call.ToolName, call.Arguments)
					output.Dim("  %s", call.Result)
				}
				if len(cot.ToolCalls) > 0 {
					output.Println()
				}
			}
			output.Println(cot.Response)
			return nil
		},
	}

	cmd.Flags().BoolP("verbose", "v", false, "show the tool calls behind the answer")
	return cmd
}
