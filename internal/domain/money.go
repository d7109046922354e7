package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Money is an amount in major currency units as stored on projects,
// payment requests and invoices.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps a decimal amount.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MoneyFromInt builds a whole-unit amount.
func MoneyFromInt(v int64) Money {
	return Money{Decimal: decimal.NewFromInt(v)}
}

// ParseMoney parses the textual numeric form used by the SQL layer.
func ParseMoney(v string) (Money, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return Money{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return Money{}, err
	}
	return Money{Decimal: d}, nil
}

// Positive reports whether the amount can be charged.
func (m Money) Positive() bool {
	return m.Decimal.GreaterThan(decimal.Zero)
}

// MinorUnits converts to the processor's integer representation (cents),
// rounding half away from zero.
func (m Money) MinorUnits() int64 {
	return m.Decimal.Mul(hundred).Round(0).IntPart()
}

// MoneyFromMinor converts a processor amount back to major units.
func MoneyFromMinor(v int64) Money {
	return Money{Decimal: decimal.New(v, -2)}
}

// SQL returns the value bound to numeric columns.
func (m Money) SQL() string {
	return m.Decimal.String()
}
