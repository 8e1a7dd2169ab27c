// Package core provides money parsing and handling utilities.
//
// Amounts are decimal.Decimal in memory and integer minor units (cents) at rest.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount bounds amounts and balances. Its cent value is far below the int64 limit.
var MaxAmount = decimal.New(1, 12)

// ParseAmount converts a user supplied decimal string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to two fractional digits. Signs, zero and malformed input are rejected.
//
// Examples:
//   ParseAmount("12.34")  -> 12.34
//   ParseAmount("12,345") -> 12.35
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount checks that d is strictly positive, at most MaxAmount and has
// at most two fractional digits.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	return ValidateBalance(d)
}

// ValidateBalance is ValidateAmount for values that may be zero or negative.
func ValidateBalance(d decimal.Decimal) error {
	if d.Abs().GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	if !d.Equal(d.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// ToCents converts an amount to integer minor units. Values must have passed
// ValidateAmount or ValidateBalance; larger ones do not fit in int64.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromCents converts integer minor units back to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
