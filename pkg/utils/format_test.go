package utils

import (
	"math"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		amount   float64
		currency string
		want     string
	}{
		{1000000, "USD", "$1,000,000.00"},
		{72294.39, "USD", "$72,294.39"},
		{0.005, "USD", "$0.01"},
		{-27225, "USD", "-$27,225.00"},
		{1234.5, "usd", "$1,234.50"},
		{1234.5, "ZZZ", "$1,234.50"},
		{math.NaN(), "USD", "-"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCurrency(tt.amount, tt.currency), "%v %s", tt.amount, tt.currency)
	}
}

func TestFormatPnL(t *testing.T) {
	assert.Equal(t, "+$12.50", FormatPnL(12.5, "USD"))
	assert.Equal(t, "-$3.00", FormatPnL(-3, "USD"))
	assert.Equal(t, "$0.00", FormatPnL(0.001, "USD"))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "+33.21%", FormatPercent(33.2057))
	assert.Equal(t, "-5.00%", FormatPercent(-5))
	assert.Equal(t, "0.00%", FormatPercent(0))
}

func TestFormatCompact(t *testing.T) {
	assert.Equal(t, "1.00M", FormatCompact(1e6))
	assert.Equal(t, "2.01B", FormatCompact(2.01e9))
	assert.Equal(t, "-27.50K", FormatCompact(-27500))
	assert.Equal(t, "999.00", FormatCompact(999))
}

func TestFormatQuantity(t *testing.T) {
	assert.Equal(t, "181", FormatQuantity(181))
	assert.Equal(t, "2.5", FormatQuantity(2.5))
	assert.Equal(t, "0.1235", FormatQuantity(0.123456))
}

// Property: a formatted USD amount carries exactly two decimals and a
// leading minus only for amounts that round below zero.
func TestProperty_CurrencyFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("two decimals and correct sign", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatCurrency(amount, "USD")

			parts := strings.Split(formatted, ".")
			if len(parts) != 2 || len(parts[1]) != 2 {
				t.Logf("bad decimals for %f: %s", amount, formatted)
				return false
			}

			negative := RoundTo(amount, 2) < 0
			if negative != strings.HasPrefix(formatted, "-$") {
				t.Logf("bad sign for %f: %s", amount, formatted)
				return false
			}
			return strings.Contains(formatted, "$")
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.TestingRun(t)
}
