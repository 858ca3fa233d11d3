// Package discount implements coupon discount policies.
package discount

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
)

// Type identifies a discount policy as stored with a coupon.
type Type string

const (
	// FixedAmount subtracts a flat amount, capped at the base price.
	FixedAmount Type = "FIXED_AMOUNT"
	// Percentage takes a percentage off the base price.
	Percentage Type = "PERCENTAGE"
)

var (
	// ErrUnknownType is returned when a stored policy identifier has no
	// matching policy.
	ErrUnknownType = errors.New("unknown discount type")
	// ErrInvalidValue is returned for negative discount parameters.
	ErrInvalidValue = errors.New("invalid discount value")
)

var hundred = decimal.NewFromInt(100)

// Policy is a resolved discount policy. The zero value is not usable; obtain
// one from a Provider.
type Policy struct {
	typ Type
}

// Type returns the policy identifier.
func (p Policy) Type() Type { return p.typ }

// Apply returns the discounted price of base for the given parameter. The
// result is always within [0, base]; a percentage above 100 fails with
// money.ErrInsufficientAmount.
func (p Policy) Apply(base money.Money, value decimal.Decimal) (money.Money, error) {
	if value.IsNegative() {
		return money.Money{}, errors.Wrapf(ErrInvalidValue, "%s", value)
	}

	switch p.typ {
	case FixedAmount:
		return applyFixed(base, value)
	case Percentage:
		return applyPercentage(base, value)
	default:
		return money.Money{}, errors.Wrapf(ErrUnknownType, "%q", p.typ)
	}
}

func applyFixed(base money.Money, value decimal.Decimal) (money.Money, error) {
	amount, err := money.FromDecimal(value)
	if err != nil {
		return money.Money{}, err
	}
	return base.Sub(amount.Min(base))
}

func applyPercentage(base money.Money, value decimal.Decimal) (money.Money, error) {
	if value.GreaterThan(hundred) {
		return money.Money{}, errors.Wrapf(money.ErrInsufficientAmount, "%s%% of %s", value, base)
	}
	// Round the remaining price, not the discount, so the half-up rule
	// applies to what the member pays.
	discounted := base.Decimal().Mul(hundred.Sub(value)).Div(hundred)
	return money.FromDecimal(discounted)
}
