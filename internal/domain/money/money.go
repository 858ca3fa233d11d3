// Package money implements non-negative amounts in the smallest currency unit.
package money

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientAmount is returned when a subtraction would go below zero.
	ErrInsufficientAmount = errors.New("insufficient amount")
	// ErrNegativeAmount is returned when constructing Money from a negative value.
	ErrNegativeAmount = errors.New("negative amount")
)

// Zero is the additive identity.
var Zero = Money{}

// Money is an immutable non-negative whole amount. Every operation returns a
// new value.
type Money struct {
	amount decimal.Decimal
}

// New returns Money for the given whole amount.
func New(v int64) (Money, error) {
	if v < 0 {
		return Money{}, errors.Wrapf(ErrNegativeAmount, "%d", v)
	}
	return Money{amount: decimal.NewFromInt(v)}, nil
}

// MustNew is like New but panics on negative input. Intended for constants
// and tests.
func MustNew(v int64) Money {
	m, err := New(v)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDecimal converts d to Money, rounding half-up to a whole unit.
func FromDecimal(d decimal.Decimal) (Money, error) {
	r := d.Round(0)
	if r.IsNegative() {
		return Money{}, errors.Wrapf(ErrNegativeAmount, "%s", d)
	}
	return Money{amount: r}, nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{amount: m.amount.Add(o.amount)}
}

// Sub returns m - o, or ErrInsufficientAmount when o exceeds m.
func (m Money) Sub(o Money) (Money, error) {
	if m.amount.LessThan(o.amount) {
		return Money{}, errors.Wrapf(ErrInsufficientAmount, "%s - %s", m, o)
	}
	return Money{amount: m.amount.Sub(o.amount)}, nil
}

// Times multiplies m by a quantity. A negative quantity panics.
func (m Money) Times(quantity int) Money {
	if quantity < 0 {
		panic("money: negative quantity")
	}
	return Money{amount: m.amount.Mul(decimal.NewFromInt(int64(quantity)))}
}

// Min returns the smaller of m and o.
func (m Money) Min(o Money) Money {
	if o.LessThan(m) {
		return o
	}
	return m
}

// Cmp compares m and o numerically, returning -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	return m.amount.Cmp(o.amount)
}

func (m Money) Equal(o Money) bool    { return m.amount.Equal(o.amount) }
func (m Money) LessThan(o Money) bool { return m.amount.LessThan(o.amount) }
func (m Money) IsZero() bool          { return m.amount.IsZero() }

// Int64 returns the amount as an integer.
func (m Money) Int64() int64 {
	return m.amount.IntPart()
}

// Decimal returns the amount as a decimal for persistence.
func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

func (m Money) String() string {
	return m.amount.String()
}

// Sum adds all amounts, starting from Zero.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
