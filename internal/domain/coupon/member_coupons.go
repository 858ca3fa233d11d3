package coupon

import (
	"github.com/go-faster/errors"

	"github.com/pilyang/jwp-shopping-order/internal/domain/discount"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
)

type applied struct {
	coupon *MemberCoupon
	policy discount.Policy
}

// MemberCoupons is the ordered set of coupons applied to one order. Order
// matters: each coupon discounts the price left by the previous one.
type MemberCoupons struct {
	items []applied
}

// Of resolves the discount policy of every coupon up front, keeping the
// given order.
func Of(coupons []*MemberCoupon, provider discount.Provider) (MemberCoupons, error) {
	items := make([]applied, 0, len(coupons))
	for _, c := range coupons {
		p, err := provider.Policy(c.coupon.DiscountType)
		if err != nil {
			return MemberCoupons{}, errors.Wrapf(err, "member coupon %d", c.id)
		}
		items = append(items, applied{coupon: c, policy: p})
	}
	return MemberCoupons{items: items}, nil
}

// Apply uses every coupon in order on total and returns the final price.
// Any failure aborts the fold.
func (mc MemberCoupons) Apply(total money.Money) (money.Money, error) {
	price := total
	for _, a := range mc.items {
		next, err := a.coupon.Use(price, a.policy)
		if err != nil {
			return money.Money{}, err
		}
		price = next
	}
	return price, nil
}

// Coupons returns the coupons in application order.
func (mc MemberCoupons) Coupons() []*MemberCoupon {
	out := make([]*MemberCoupon, len(mc.items))
	for i, a := range mc.items {
		out[i] = a.coupon
	}
	return out
}

func (mc MemberCoupons) Len() int { return len(mc.items) }
