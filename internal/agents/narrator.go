package agents

import (
	"context"
	"fmt"
	"strings"

	"leverage-sim/internal/models"
	"leverage-sim/internal/valuation"
)

const narratorSystemPrompt = `You explain leveraged portfolio simulations to an individual investor.
The portfolio holds an underlying stock and leveraged companion funds whose simulated price moves by a fixed multiple of the underlying's percentage move from its current price.
Be concise: at most five sentences. Quote the numbers you are given, do not invent new ones, and do not give investment advice.`

const advisorSystemPrompt = `You answer questions about a leveraged portfolio simulation.
Use the tools to value the portfolio at a hypothetical underlying price, to solve for the price that reaches a target, or to read current analytics.
Never guess numbers: call a tool. Keep the answer short and note that the companion model ignores daily rebalancing decay.`

// Narrator turns simulation output into prose.
type Narrator struct {
	llm LLMClient
}

// NewNarrator creates a narrator backed by llm.
func NewNarrator(llm LLMClient) *Narrator {
	return &Narrator{llm: llm}
}

// NarrateSnapshot explains a valuation at a simulated price.
func (n *Narrator) NarrateSnapshot(ctx context.Context, snap models.Snapshot) (string, error) {
	if !snap.Valid {
		return "", fmt.Errorf("cannot narrate an invalid snapshot")
	}
	return n.llm.CompleteWithSystem(ctx, narratorSystemPrompt, buildSnapshotPrompt(snap))
}

// NarrateResult explains a goal seek outcome.
func (n *Narrator) NarrateResult(ctx context.Context, res models.Result) (string, error) {
	return n.llm.CompleteWithSystem(ctx, narratorSystemPrompt, buildResultPrompt(res))
}

// NarrateAnalytics explains the current portfolio analytics.
func (n *Narrator) NarrateAnalytics(ctx context.Context, a valuation.Analytics) (string, error) {
	return n.llm.CompleteWithSystem(ctx, narratorSystemPrompt, buildAnalyticsPrompt(a))
}

func buildSnapshotPrompt(snap models.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Simulated underlying price: %.2f (%+.2f%% from current)\n", snap.UnderlyingPrice, snap.PctChange*100)
	sb.WriteString("Positions:\n")
	for _, v := range snap.Positions() {
		fmt.Fprintf(&sb, "- %s (%s): qty %.4g, avg cost %.2f, current %.2f, simulated %.2f, P&L %+.2f%%, value %.2f\n",
			v.Symbol, strings.ToLower(string(v.Role)), v.Qty, v.AvgCost, v.CurrentPrice, v.SimPrice, v.SimPnl*100, v.Amount)
	}
	fmt.Fprintf(&sb, "Total: cost %.2f, current value %.2f, simulated value %.2f, P&L %+.2f%%\n",
		snap.Total.Cost, snap.Total.CurrentMarketValue, snap.Total.Amount, snap.Total.PnlPercent())
	return sb.String()
}

func buildResultPrompt(res models.Result) string {
	var sb strings.Builder
	unit := ""
	if res.Target.Mode == models.ModePnl {
		unit = "%"
	}
	fmt.Fprintf(&sb, "Goal: total %s of %.2f%s\n", res.Target.Mode, res.Target.Value, unit)
	fmt.Fprintf(&sb, "Reachable range over the search bounds: %.2f%s to %.2f%s\n", res.RangeLow, unit, res.RangeHigh, unit)

	switch res.Status {
	case models.StatusUnreachable:
		fmt.Fprintf(&sb, "Outcome: unreachable, the target lies beyond the %s search bound.\n", res.Bound)
	case models.StatusApproximate:
		fmt.Fprintf(&sb, "Outcome: approximate after %d iterations, the final interval is %.6f wide.\n", res.Iterations, res.Interval)
	default:
		fmt.Fprintf(&sb, "Outcome: converged after %d iterations.\n", res.Iterations)
	}
	if res.Solved() {
		fmt.Fprintf(&sb, "Required underlying price: %.2f\n", res.Price)
		sb.WriteString(buildSnapshotPrompt(res.Snapshot))
	}
	return sb.String()
}

func buildAnalyticsPrompt(a valuation.Analytics) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Cost basis: %.2f\nCurrent value: %.2f\nP&L: %+.2f%%\n", a.TotalCost, a.TotalValue, a.PnlPercent)
	sb.WriteString("Weights:\n")
	for _, w := range a.Weights {
		fmt.Fprintf(&sb, "- %s: %.1f%%\n", w.Symbol, w.Percent)
	}
	if len(a.Insights) > 0 {
		sb.WriteString("Observations:\n")
		for _, in := range a.Insights {
			fmt.Fprintf(&sb, "- %s\n", in)
		}
	}
	return sb.String()
}

// Advisor answers free-form questions by letting the model call the
// valuation tools.
type Advisor struct {
	llm      ToolCaller
	executor ToolExecutorInterface
}

// NewAdvisor creates an advisor.
func NewAdvisor(llm ToolCaller, executor ToolExecutorInterface) *Advisor {
	return &Advisor{llm: llm, executor: executor}
}

// Ask answers question, returning the tool calls made along the way.
func (a *Advisor) Ask(ctx context.Context, question string) (*ChainOfThought, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is empty")
	}
	return a.llm.CompleteWithToolsVerbose(ctx, advisorSystemPrompt, question, GetToolDefinitions(), a.executor)
}
