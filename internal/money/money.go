// Package money parses and formats the monetary fields of a project.
// Amounts are stored as the text the user typed; parsing only validates it.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var ErrNegative = errors.New("amount must not be negative")

// Amount is a validated monetary value together with its original text.
type Amount struct {
	Text  string
	Value decimal.Decimal
}

// ParseAmount accepts an empty string as zero. Otherwise text must be a
// non-negative decimal; a decimal comma is accepted.
func ParseAmount(text string) (Amount, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return Amount{Text: "0", Value: decimal.Zero}, nil
	}
	v, err := decimal.NewFromString(strings.Replace(t, ",", ".", 1))
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", text, err)
	}
	if v.IsNegative() {
		return Amount{}, fmt.Errorf("parse amount %q: %w", text, ErrNegative)
	}
	return Amount{Text: t, Value: v}, nil
}

// AmountFromValue decodes a stored field. Unreadable values count as zero.
func AmountFromValue(v any) Amount {
	switch x := v.(type) {
	case string:
		if a, err := ParseAmount(x); err == nil {
			return a
		}
		return Amount{Text: x, Value: decimal.Zero}
	case float64:
		return Amount{Text: strconv.FormatFloat(x, 'f', -1, 64), Value: decimal.NewFromFloat(x)}
	case int64:
		return Amount{Text: strconv.FormatInt(x, 10), Value: decimal.NewFromInt(x)}
	case int:
		return Amount{Text: strconv.Itoa(x), Value: decimal.NewFromInt(int64(x))}
	default:
		return Amount{Text: "0", Value: decimal.Zero}
	}
}

var brl = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders "R$ 1.234,50". The digits come from the decimal text, so
// no cent is lost to floating point.
func FormatBRL(a decimal.Decimal) string {
	a = a.Round(2)
	whole, cents, _ := strings.Cut(a.Abs().StringFixed(2), ".")
	sign := ""
	if a.IsNegative() {
		sign = "-"
	}
	return "R$ " + sign + groupThousands(whole) + "," + cents
}

// groupThousands inserts the pt-BR thousands separator into a run of digits.
func groupThousands(digits string) string {
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
		return brl.Sprint(number.Decimal(n))
	}
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Sum adds the values of amounts.
func Sum(amounts ...Amount) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.Value)
	}
	return total
}
