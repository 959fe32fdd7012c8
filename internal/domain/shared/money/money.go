package money

import (
	"bytes"
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFinite   = errors.New("money: amount must be a finite number")
	ErrNotPositive = errors.New("money: amount must be positive")
	ErrInvalid     = errors.New("money: invalid amount")
)

// Money is a signed amount in currency units. Decimal arithmetic keeps
// balances exact, so a settled account sums to precisely zero.
type Money struct {
	amount decimal.Decimal
}

// Zero is the empty balance.
var Zero = Money{}

// New wraps a decimal amount.
func New(d decimal.Decimal) Money {
	return Money{amount: d}
}

// FromFloat converts a float rejecting NaN and infinities.
func FromFloat(v float64) (Money, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Money{}, ErrNotFinite
	}
	return Money{amount: decimal.NewFromFloat(v)}, nil
}

// Parse reads a decimal text amount such as "50" or "-12.75".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalid
	}
	return Money{amount: d}, nil
}

// MustParse parses and panics on failure; useful in tests and fixtures.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Positive returns m or ErrNotPositive.
func Positive(m Money) (Money, error) {
	if !m.IsPositive() {
		return Money{}, ErrNotPositive
	}
	return m, nil
}

func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

func (m Money) Sub(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// Neg returns the negated amount.
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg()}
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Equal compares numerically, so 50 equals 50.00.
func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount)
}

func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

// Float64 is lossy and meant for presentation and validation only.
func (m Money) Float64() float64 {
	return m.amount.InexactFloat64()
}

func (m Money) String() string {
	return m.amount.String()
}

// MarshalJSON emits a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.amount.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return ErrInvalid
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return ErrInvalid
	}
	m.amount = d
	return nil
}
