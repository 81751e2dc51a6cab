// Package core holds the domain model shared by the stores, the ledger and
// the reporting views.
//
// Monetary totals are carried as integer cents. Unit prices stay float64 as
// entered and are multiplied through shopspring/decimal before rounding.
package core

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// Both dot (12.34) and comma (12,34) separators are accepted and the third
// decimal place is rounded half-up. Zero, negative and malformed amounts are
// rejected with ErrInvalidAmount.
//
//	ParseDecimalToCents("12.34")  -> 1234
//	ParseDecimalToCents("12,345") -> 1235
func ParseDecimalToCents(s string) (int64, error) {
	cents, err := parseCents(s)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseOptionalCents behaves like ParseDecimalToCents but maps an empty
// string to zero and allows a zero amount.
func ParseOptionalCents(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return parseCents(s)
}

func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if strings.Contains(fracPart, ".") {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
		return 0, ErrInvalidAmount
	}
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	return iv*100 + frac, nil
}

// Money is an amount in cents. It serializes as a plain decimal number
// (12.34), never as an object.
type Money struct {
	Cents int64
}

// Cents builds a Money value.
func Cents(c int64) Money {
	return Money{Cents: c}
}

// MoneyFromDecimal rounds d half away from zero to cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Shift(2).Round(0).IntPart()}
}

// MoneyFromFloat rounds a float amount to cents.
func MoneyFromFloat(f float64) Money {
	return MoneyFromDecimal(decimal.NewFromFloat(f))
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Euros returns the value as float64 for display. Use Cents for arithmetic.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().StringFixed(2)), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		m.Cents = 0
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(b))
	}
	*m = MoneyFromDecimal(d)
	return nil
}
