package domain

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is an amount in the currency's minor unit. All arithmetic on order
// totals happens in Cents; decimals only exist at the JSON boundary.
type Cents int64

// MaxAmount bounds every amount accepted from callers, 100 million in major
// units. Sums of bounded amounts stay far inside int64.
const MaxAmount Cents = 100_000_000_00

var (
	hundred   = decimal.NewFromInt(100)
	maxScaled = decimal.NewFromInt(int64(MaxAmount))
)

// ParseCents converts a decimal currency amount into Cents.
// Amounts with more than two fractional digits are rejected rather than
// rounded, and amounts beyond MaxAmount in either direction are rejected.
func ParseCents(d decimal.Decimal) (Cents, error) {
	scaled := d.Mul(hundred)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than two decimal places", d.String())
	}
	if scaled.Abs().GreaterThan(maxScaled) {
		return 0, fmt.Errorf("amount %s exceeds the maximum of %s", d.String(), MaxAmount)
	}
	return Cents(scaled.IntPart()), nil
}

// Decimal returns the amount in major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount with exactly two decimals, e.g. "215.00".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// MarshalJSON renders the amount as a JSON number in major units.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a JSON number or numeric string in major units.
func (c *Cents) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	parsed, err := ParseCents(d)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
