package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Leverage Simulator Configuration

[portfolio]
# Allow negative quantities (short positions). With shorts the portfolio
# value may fall as the underlying rises; goal seek follows that direction.
allow_short = false

[portfolio.underlying]
symbol = "TSLA"
avg_cost = 210.19
qty = 181
# Static price used by the "static" quote provider (0 = fetch)
current_price = 0

[[portfolio.companions]]
symbol = "TSLL"
avg_cost = 13.70
qty = 2500
current_price = 0

[engine]
# Companion move = leverage_factor x underlying move from current price
leverage_factor = 2.0

[solver]
# Search interval for the underlying price
low = 0.0
high = 10000.0
# Stop when the interval is narrower than this
tolerance = 0.00001
# Hard cap on bisection steps
max_iterations = 10000

[scenario]
# Defaults when no price / target is given on the command line
sim_price = 2600.0
target_value = 1000000.0
target_pnl = 100.0

[quotes]
# Quote provider: finnhub, yahoo, kite, static
provider = "finnhub"
# Reference prices: "frozen" reuses the last stored snapshot,
# "live" refetches before every valuation
reference = "frozen"
# Instrument prefix for kite, e.g. NSE
exchange = "NSE"
timeout = "10s"
rate_per_minute = 60
retries = 3
# Stop calling the provider for breaker_cooldown after this many
# consecutive failed quotes (0 = never)
breaker_threshold = 5
breaker_cooldown = "30s"

[server]
addr = ":8080"
allowed_origins = ["*"]

[log]
# debug, info, warn, error
level = "info"
console = true
file = true
`

const credentialsTemplate = `# Leverage Simulator Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[finnhub]
token = ""

[kite]
api_key = ""
access_token = ""

[openai]
api_key = ""
model = "gpt-4o-mini"
# Any OpenAI compatible endpoint; empty uses api.openai.com
base_url = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}
	return nil
}
