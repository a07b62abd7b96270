// Package core provides the domain value types of the tracker together with
// money parsing and formatting utilities.
//
// All amounts are carried as integer cents. The two parsers mirror the two
// input surfaces: ParseCentavosInput for raw keystroke-style input where the
// trailing two digits are cents, ParseDecimalToCents for decimal strings.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseCentavosInput converts raw user input to cents by stripping every
// non-digit rune and treating the trailing two digits as cents, so "12345"
// and "123,45" both yield 123.45. Empty or digit-less input is zero, which
// callers use to clear a draft.
func ParseCentavosInput(s string) Money {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return Money{}
	}
	cents, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		// Overflow on absurdly long input; treat as cleared.
		return Money{}
	}
	return Money{Cents: cents}
}

// ParseDecimalToCents converts a decimal string to cents with half-up
// rounding on the third decimal place. Both dot and comma separators are
// accepted. Only positive amounts are valid.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.346") -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracCents = d1 * 10
		if len(fracPart) > 1 {
			d2 := int64(fracPart[1] - '0')
			fracCents += d2
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// Reais returns the value in major currency units as a float64 for display.
// Use cents for every calculation and comparison.
func (m Money) Reais() float64 {
	return float64(m.Cents) / 100.0
}

// String renders the amount as a two-decimal string with a comma separator,
// the way the input widget redisplays it on blur ("1234,50").
func (m Money) String() string {
	sign := ""
	cents := m.Cents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + strconv.FormatInt(cents/100, 10) + "," + pad2(cents%100)
}

func pad2(v int64) string {
	if v < 10 {
		return "0" + strconv.FormatInt(v, 10)
	}
	return strconv.FormatInt(v, 10)
}
