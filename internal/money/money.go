package money

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ParseMinor reads a plain decimal amount such as "399.00" into cents.
func ParseMinor(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || strings.ContainsAny(trimmed, "eE") {
		return 0, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if amount.Exponent() < -2 {
		return 0, ErrTooManyDecimals
	}
	cents := amount.Shift(2)
	if cents.Abs().GreaterThan(maxMinor) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

func FormatMinor(value int64) string {
	return decimal.New(value, -2).StringFixed(2)
}

// UnitPrice is the price of one credit in a package, rounded to cents.
func UnitPrice(priceCents, credits int64) string {
	if credits <= 0 {
		return FormatMinor(0)
	}
	unit := decimal.New(priceCents, -2).Div(decimal.NewFromInt(credits))
	return unit.StringFixedBank(2)
}

// FormatBRL renders cents the way receipts show them, e.g. "R$ 1.234,56".
func FormatBRL(cents int64) string {
	raw := FormatMinor(cents)
	negative := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")
	whole, frac, _ := strings.Cut(raw, ".")
	var grouped strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(digit)
	}
	sign := ""
	if negative {
		sign = "-"
	}
	return sign + "R$ " + grouped.String() + "," + frac
}
