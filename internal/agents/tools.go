package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"leverage-sim/internal/goalseek"
	"leverage-sim/internal/models"
	"leverage-sim/internal/valuation"
)

// ToolExecutor executes AI tool calls against a priced portfolio.
type ToolExecutor struct {
	portfolio models.Portfolio
	model     valuation.Model
	solver    *goalseek.Solver
}

// NewToolExecutor creates a tool executor. The portfolio must carry current
// prices.
func NewToolExecutor(p models.Portfolio, model valuation.Model, solver *goalseek.Solver) *ToolExecutor {
	return &ToolExecutor{
		portfolio: p.Clone(),
		model:     model,
		solver:    solver,
	}
}

// GetToolDefinitions returns all available tool definitions for OpenAI function calling.
func GetToolDefinitions() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "evaluate_price",
				Description: "Value every position if the underlying traded at the given price. Companion prices move by the leverage factor times the underlying's percentage move.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"price": {
							"type": "number",
							"description": "Simulated underlying price"
						}
					},
					"required": ["price"]
				}`),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "solve_target",
				Description: "Find the underlying price at which the portfolio reaches a target total value (mode amount) or total P&L percent (mode pnl).",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"mode": {
							"type": "string",
							"enum": ["amount", "pnl"],
							"description": "amount targets total value in currency, pnl targets total P&L in percent"
						},
						"value": {
							"type": "number",
							"description": "Target value"
						}
					},
					"required": ["mode", "value"]
				}`),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "get_analytics",
				Description: "Current cost basis, market value, P&L percent and position weights.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {}
				}`),
			},
		},
	}
}

// ExecuteTool executes a tool call and returns the result as a string.
func (te *ToolExecutor) ExecuteTool(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	params := map[string]interface{}{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", fmt.Errorf("failed to parse tool arguments: %w", err)
		}
	}

	switch toolName {
	case "evaluate_price":
		return te.executeEvaluatePrice(params)
	case "solve_target":
		return te.executeSolveTarget(params)
	case "get_analytics":
		return te.executeGetAnalytics()
	default:
		return "", fmt.Errorf("unknown tool: %s", toolName)
	}
}

// Helper to get string param with default
func getStringParam(params map[string]interface{}, key, defaultVal string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return defaultVal
}

// Helper to get float param, reporting presence
func getFloatParam(params map[string]interface{}, key string) (float64, bool) {
	v, ok := params[key].(float64)
	return v, ok
}

func (te *ToolExecutor) executeEvaluatePrice(params map[string]interface{}) (string, error) {
	price, ok := getFloatParam(params, "price")
	if !ok {
		return "", fmt.Errorf("price is required")
	}

	snap, err := te.model.Evaluate(te.portfolio, price)
	if err != nil {
		return "", err
	}
	if !snap.Valid {
		return "", fmt.Errorf("invalid price %v", price)
	}
	return toJSON(snap.Rounded())
}

func (te *ToolExecutor) executeSolveTarget(params map[string]interface{}) (string, error) {
	mode, err := models.ParseMode(getStringParam(params, "mode", string(models.ModeAmount)))
	if err != nil {
		return "", err
	}
	value, ok := getFloatParam(params, "value")
	if !ok {
		return "", fmt.Errorf("value is required")
	}

	res, err := te.solver.Solve(te.portfolio, models.Target{Mode: mode, Value: value})
	if err != nil {
		return "", err
	}
	return toJSON(res)
}

func (te *ToolExecutor) executeGetAnalytics() (string, error) {
	a, err := valuation.Analyze(te.portfolio)
	if err != nil {
		return "", err
	}
	return toJSON(a)
}

func toJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(b), nil
}
