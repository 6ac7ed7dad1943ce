// Package core holds the money plan domain: the Money value type, buckets,
// plan accounts and the MoneyPlan aggregate. It performs no I/O; callers load
// and persist snapshots around the command methods.
package core

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Money is an immutable amount quantized to two decimal places. Quantization
// (round half-up) happens at construction and after every arithmetic
// operation, so an unrounded intermediate can never escape the type.
type Money struct {
	amount decimal.Decimal
}

// ZeroMoney returns a zero amount.
func ZeroMoney() Money {
	return Money{amount: decimal.Zero}
}

// MoneyFromString parses a decimal string like "12.34" into Money.
// Returns ErrInvalidAmount for anything that does not parse as a decimal.
func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{amount: quantize(d)}, nil
}

// MoneyFromFloat converts a float64 into Money.
// Non-finite values fail with ErrInvalidAmount.
func MoneyFromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, fmt.Errorf("%w: non-finite value", ErrInvalidAmount)
	}
	return Money{amount: quantize(decimal.NewFromFloat(f))}, nil
}

// MoneyFromInt converts a whole number of currency units into Money.
func MoneyFromInt(n int64) Money {
	return Money{amount: decimal.NewFromInt(n)}
}

// MoneyFromCents converts an integer number of minor units (cents) into
// Money. Used at the storage boundary where amounts are stored as cents.
func MoneyFromCents(cents int64) Money {
	return Money{amount: decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))}
}

// MustMoney parses s and panics on failure. Intended for tests and constants.
func MustMoney(s string) Money {
	m, err := MoneyFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// quantize rounds half-up to the currency's minor unit (cents).
func quantize(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func (m Money) Add(o Money) Money {
	return Money{amount: quantize(m.amount.Add(o.amount))}
}

func (m Money) Sub(o Money) Money {
	return Money{amount: quantize(m.amount.Sub(o.amount))}
}

// Mul scales the amount by a scalar, re-quantizing the result.
func (m Money) Mul(scalar float64) (Money, error) {
	if math.IsNaN(scalar) || math.IsInf(scalar, 0) {
		return Money{}, fmt.Errorf("%w: non-finite multiplier", ErrInvalidAmount)
	}
	return Money{amount: quantize(m.amount.Mul(decimal.NewFromFloat(scalar)))}, nil
}

// Div divides the amount by a scalar, re-quantizing the result.
// Division by zero or a non-finite scalar fails with ErrInvalidAmount.
func (m Money) Div(scalar float64) (Money, error) {
	if math.IsNaN(scalar) || math.IsInf(scalar, 0) {
		return Money{}, fmt.Errorf("%w: non-finite divisor", ErrInvalidAmount)
	}
	if scalar == 0 {
		return Money{}, fmt.Errorf("%w: division by zero", ErrInvalidAmount)
	}
	return Money{amount: quantize(m.amount.Div(decimal.NewFromFloat(scalar)))}, nil
}

func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg()}
}

func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs()}
}

// Cmp returns -1, 0 or 1 comparing quantized amounts.
func (m Money) Cmp(o Money) int {
	return m.amount.Cmp(o.amount)
}

func (m Money) Equal(o Money) bool       { return m.amount.Equal(o.amount) }
func (m Money) LessThan(o Money) bool    { return m.amount.LessThan(o.amount) }
func (m Money) GreaterThan(o Money) bool { return m.amount.GreaterThan(o.amount) }
func (m Money) IsZero() bool             { return m.amount.IsZero() }
func (m Money) IsNegative() bool         { return m.amount.IsNegative() }
func (m Money) IsPositive() bool         { return m.amount.IsPositive() }

// Decimal returns the underlying quantized decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

// Cents returns the amount as an integer number of minor units.
func (m Money) Cents() int64 {
	return m.amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// String formats the amount with exactly two decimal places, e.g. "1000.00".
func (m Money) String() string {
	return m.amount.StringFixed(2)
}
