// Package money converts between API decimal amounts and stored minor units.
package money

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const scale = 2

// CommissionRate is the share withheld from user withdrawals.
var CommissionRate = decimal.RequireFromString("0.10")

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// ParseAmount parses a positive decimal string ("150", "12.50") into cents.
// More than two fractional digits is rejected rather than rounded.
func ParseAmount(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if !d.Equal(d.Round(scale)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", raw, scale)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount must be greater than zero")
	}
	if d.Mul(hundred).GreaterThan(maxCents) {
		return 0, fmt.Errorf("amount %q is too large", raw)
	}
	return ToCents(d), nil
}

// ToCents converts a decimal amount to minor units, rounding half away from zero.
// Callers holding untrusted input go through ParseAmount, which bounds it.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromCents converts minor units back to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -scale)
}

// Format renders cents as a fixed two-decimal string.
func Format(cents int64) string {
	return FromCents(cents).StringFixed(scale)
}

// Commission returns round(amount*rate, 2) in cents together with the net amount.
func Commission(amountCents int64, rate decimal.Decimal) (commission, net int64) {
	c := FromCents(amountCents).Mul(rate).Round(scale)
	commission = ToCents(c)
	return commission, amountCents - commission
}
