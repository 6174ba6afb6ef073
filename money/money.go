// Package money implements fixed-precision currency amounts.
//
// Every amount is held as a decimal rounded to two minor digits. Binary
// floating point is never used, so sums of many payments do not drift.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of minor digits kept on every amount.
const Scale = 2

var hundred = decimal.NewFromInt(100)

// Money is an immutable currency amount.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{d: decimal.Zero}

// New rounds d to the minor unit.
func New(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

// FromInt returns an amount of whole major units.
func FromInt(units int64) Money {
	return Money{d: decimal.NewFromInt(units)}
}

// FromMinor returns an amount expressed in minor units (cents).
func FromMinor(minor int64) Money {
	return Money{d: decimal.New(minor, -Scale)}
}

// Parse reads an amount such as "1250.50".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return New(d), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// SubClamped subtracts o and floors the result at zero. Balances use it.
func (m Money) SubClamped(o Money) Money {
	return m.Sub(o).ClampZero()
}

// Percent returns p percent of m, rounded half-up to the minor unit.
func (m Money) Percent(p decimal.Decimal) Money {
	return New(m.d.Mul(p).Div(hundred))
}

// ClampZero returns m, or zero when m is negative.
func (m Money) ClampZero() Money {
	if m.d.IsNegative() {
		return Zero
	}
	return m
}

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }

func (m Money) GreaterThanOrEqual(o Money) bool { return m.d.GreaterThanOrEqual(o.d) }

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) IsPositive() bool { return m.d.IsPositive() }

func (m Money) IsNegative() bool { return m.d.IsNegative() }

// MinorUnits returns the amount in cents.
func (m Money) MinorUnits() int64 {
	return m.d.Shift(Scale).IntPart()
}

// Float64 is for presentation only (spreadsheets, charts).
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

func (m Money) String() string { return m.d.StringFixed(Scale) }

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Sum adds all amounts; an empty list sums to zero.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Value stores the amount as a numeric column.
func (m Money) Value() (driver.Value, error) {
	return m.d.StringFixed(Scale), nil
}

// Scan reads numeric, text and integer columns.
func (m *Money) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	*m = New(d)
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both quoted strings and bare JSON numbers.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*m = New(d)
	return nil
}
