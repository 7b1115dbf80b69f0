// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a currency code is unknown.
const DefaultCurrency = money.USD

// FormatCurrency formats an amount in the given ISO currency, rounding to
// the currency's minor unit.
func FormatCurrency(amount float64, currency string) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "-"
	}
	code := strings.ToUpper(currency)
	cur := money.GetCurrency(code)
	if cur == nil {
		code = DefaultCurrency
		cur = money.GetCurrency(code)
	}

	minor := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), code).Display()
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatPnL formats a currency P&L with sign.
func FormatPnL(pnl float64, currency string) string {
	formatted := FormatCurrency(pnl, currency)
	if pnl > 0 && RoundTo(pnl, 2) != 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatCompact formats an amount with K/M/B suffixes.
func FormatCompact(amount float64) string {
	abs := math.Abs(amount)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", amount/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", amount/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", amount/1e3)
	}
	return fmt.Sprintf("%.2f", amount)
}

// FormatQuantity formats a share quantity, dropping trailing zeros.
func FormatQuantity(qty float64) string {
	return decimal.NewFromFloat(qty).Round(4).String()
}

// RoundTo rounds half away from zero to the given number of places.
func RoundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
