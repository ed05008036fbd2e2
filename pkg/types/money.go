package types

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (cents). It serializes as a
// JSON number with two decimals, e.g. 67.50.
type Money int64

var hundred = decimal.NewFromInt(100)

// MoneyFromDecimal converts a major-unit decimal into cents, rounding half
// away from zero.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(d.Mul(hundred).Round(0).IntPart())
}

// ParseMoney parses a major-unit string such as "100.00".
func ParseMoney(value string) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", value, err)
	}
	return MoneyFromDecimal(d), nil
}

// MustParseMoney is ParseMoney for constants and tests.
func MustParseMoney(value string) Money {
	m, err := ParseMoney(value)
	if err != nil {
		panic(err)
	}
	return m
}

// Cents returns the raw minor-unit amount.
func (m Money) Cents() int64 {
	return int64(m)
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// Times multiplies by an integer quantity; exact in cents.
func (m Money) Times(qty int) Money {
	return m * Money(qty)
}

// ApplyRate multiplies by rate and rounds to the nearest cent.
func (m Money) ApplyRate(rate decimal.Decimal) Money {
	return MoneyFromDecimal(m.Decimal().Mul(rate))
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	raw := bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*m = 0
		return nil
	}
	parsed, err := ParseMoney(string(raw))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
