// Package ptnum parses numbers written in Portuguese locale conventions,
// where the comma is the decimal separator and the dot groups thousands.
package ptnum

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrEmpty is returned when the input contains no digits after cleanup.
var ErrEmpty = errors.New("ptnum: empty value")

// Parse converts a Portuguese or plain formatted amount into a decimal.
// Currency symbols and spaces are stripped. "1.234,56" and "1234.56"
// both parse to the same value.
func Parse(s string) (decimal.Decimal, error) {
	cleaned := clean(s)
	if cleaned == "" {
		return decimal.Zero, ErrEmpty
	}

	hasDot := strings.Contains(cleaned, ".")
	hasComma := strings.Contains(cleaned, ",")

	switch {
	case hasDot && hasComma:
		// European format: dots are thousands separators.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case hasComma:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ParseOrZero is Parse with failures collapsed to zero, for contexts where
// a missing amount is acceptable.
func ParseOrZero(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func clean(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-', r == '+':
			b.WriteRune(r)
		}
	}
	return b.String()
}
