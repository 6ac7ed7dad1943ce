package core

import (
	"errors"
	"math"
	"testing"
)

func TestMoneyFromString(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true},  // half-up on the third decimal
		{"1.004", "1.00", true},  // rounds down
		{"-2.505", "-2.51", true}, // half-up away from zero
		{"1000", "1000.00", true},
		{"-1", "-1.00", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := MoneyFromString(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
			}
		}
	}
}

func TestMoneyFromFloat(t *testing.T) {
	m, err := MoneyFromFloat(12.345)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.String() != "12.35" {
		t.Errorf("expected 12.35, got %s", m)
	}

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := MoneyFromFloat(bad); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("expected ErrInvalidAmount for %v, got %v", bad, err)
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := MustMoney("10.00")
	b := MustMoney("3.33")

	if got := a.Add(b).String(); got != "13.33" {
		t.Errorf("Add: expected 13.33, got %s", got)
	}
	if got := a.Sub(b).String(); got != "6.67" {
		t.Errorf("Sub: expected 6.67, got %s", got)
	}

	m, err := a.Mul(0.333)
	if err != nil {
		t.Fatalf("Mul: %v", err)
	}
	if got := m.String(); got != "3.33" {
		t.Errorf("Mul: expected 3.33, got %s", got)
	}

	d, err := a.Div(3)
	if err != nil {
		t.Fatalf("Div: %v", err)
	}
	if got := d.String(); got != "3.33" {
		t.Errorf("Div: expected 3.33, got %s", got)
	}
}

func TestMoneyDivByZero(t *testing.T) {
	if _, err := MustMoney("5.00").Div(0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestMoneyOrdering(t *testing.T) {
	small := MustMoney("1.00")
	big := MustMoney("2.00")

	if !small.LessThan(big) || big.LessThan(small) {
		t.Error("LessThan misordered")
	}
	if !big.GreaterThan(small) {
		t.Error("GreaterThan misordered")
	}
	if small.Cmp(big) != -1 || big.Cmp(small) != 1 || small.Cmp(small) != 0 {
		t.Error("Cmp misordered")
	}
	if !MustMoney("1.0").Equal(MustMoney("1.00")) {
		t.Error("Equal should compare quantized amounts")
	}
	if !ZeroMoney().IsZero() || small.IsZero() {
		t.Error("IsZero wrong")
	}
	if !MustMoney("-0.01").IsNegative() {
		t.Error("IsNegative wrong")
	}
}

func TestMoneyCentsRoundTrip(t *testing.T) {
	m := MoneyFromCents(123456)
	if m.String() != "1234.56" {
		t.Fatalf("expected 1234.56, got %s", m)
	}
	if m.Cents() != 123456 {
		t.Fatalf("expected 123456 cents, got %d", m.Cents())
	}
	if got := MustMoney("-0.05").Cents(); got != -5 {
		t.Fatalf("expected -5 cents, got %d", got)
	}
}
