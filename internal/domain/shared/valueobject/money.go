package valueobject

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Currency represents an ISO 4217 currency code
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	CNY Currency = "CNY"
	JPY Currency = "JPY"
)

// DefaultCurrency is used when a caller does not specify one
const DefaultCurrency = USD

// Tolerance is the largest absolute difference treated as equality when
// comparing monetary amounts. It absorbs rounding in derived totals.
var Tolerance = decimal.New(1, -2)

// nonMonetary lists ISO 4217 codes that are not legal tender: the "no
// currency" and testing codes and the precious metals.
var nonMonetary = map[string]bool{
	"XXX": true,
	"XTS": true,
	"XAU": true,
	"XAG": true,
	"XPT": true,
	"XPD": true,
}

// ParseCurrency validates and normalises an ISO 4217 code
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", errors.New("currency cannot be empty")
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("invalid currency %q: %w", code, err)
	}
	if nonMonetary[unit.String()] {
		return "", fmt.Errorf("currency %q is not a monetary currency", code)
	}
	return Currency(unit.String()), nil
}

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}

// Money is an immutable monetary amount in a single currency
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, cur Currency) (Money, error) {
	if cur == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: amount, currency: cur}, nil
}

// MustMoney creates Money and panics on an empty currency
func MustMoney(amount decimal.Decimal, cur Currency) Money {
	m, err := NewMoney(amount, cur)
	if err != nil {
		panic(err)
	}
	return m
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// Min returns the smaller of both amounts. Both must share a currency.
func (m Money) Min(other Money) (Money, error) {
	if err := m.sameCurrency(other, "compare"); err != nil {
		return Money{}, err
	}
	if other.amount.LessThan(m.amount) {
		return other, nil
	}
	return m, nil
}

// Compare returns -1, 0 or 1, treating amounts within Tolerance as equal
func (m Money) Compare(other Money) (int, error) {
	if err := m.sameCurrency(other, "compare"); err != nil {
		return 0, err
	}
	return CompareWithTolerance(m.amount, other.amount), nil
}

func (m Money) sameCurrency(other Money, op string) error {
	if m.currency != other.currency {
		return fmt.Errorf("cannot %s money with different currencies: %s and %s", op, m.currency, other.currency)
	}
	return nil
}

// String returns a string representation of the Money
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}

// WithinTolerance reports whether |a - b| <= Tolerance
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// CompareWithTolerance compares a and b, returning 0 when they are within Tolerance
func CompareWithTolerance(a, b decimal.Decimal) int {
	if WithinTolerance(a, b) {
		return 0
	}
	return a.Cmp(b)
}

// MaxZero returns max(0, d)
func MaxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
