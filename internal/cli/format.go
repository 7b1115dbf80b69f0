package cli

import (
	"leverage-sim/pkg/utils"
)

// FormatCurrency formats an amount in the display currency.
func FormatCurrency(amount float64) string {
	return utils.FormatCurrency(amount, utils.DefaultCurrency)
}

// FormatPnL formats P&L with sign.
func FormatPnL(pnl float64) string {
	return utils.FormatPnL(pnl, utils.DefaultCurrency)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	return utils.FormatPercent(value)
}

// FormatQuantity formats a share quantity.
func FormatQuantity(qty float64) string {
	return utils.FormatQuantity(qty)
}
