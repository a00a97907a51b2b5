package orders

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a non-negative amount in minor currency units (kobo, cents). Amounts are exchanged
// with clients in major units with at most two decimal places.
type Money int64

var (
	errNegativeAmount = errors.New("amount must not be negative")
	errAmountScale    = errors.New("amount must have at most two decimal places")
	errAmountRange    = errors.New("amount is too large")

	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// ParseMoney parses a major-unit amount such as "5000", "5000.5" or "5000.00".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal converts a major-unit decimal into Money.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return 0, errNegativeAmount
	}
	minor := d.Shift(2)
	if !minor.IsInteger() {
		return 0, errAmountScale
	}
	if minor.GreaterThan(maxMinor) {
		return 0, errAmountRange
	}
	return Money(minor.IntPart()), nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON renders the amount as a bare JSON number with two decimals, e.g. 5000.00.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		return nil
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
