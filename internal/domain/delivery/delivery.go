// Package delivery computes delivery fees from the discounted item total.
package delivery

import (
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
)

// Policy computes the delivery fee for an order.
type Policy interface {
	FeeFor(actualItemTotal money.Money) money.Money
}

// Flat charges the same fee for every order.
type Flat struct {
	Fee money.Money
}

func (p Flat) FeeFor(money.Money) money.Money {
	return p.Fee
}

// FreeOver charges Fee unless the item total reaches Threshold.
type FreeOver struct {
	Fee       money.Money
	Threshold money.Money
}

func (p FreeOver) FeeFor(total money.Money) money.Money {
	if total.LessThan(p.Threshold) {
		return p.Fee
	}
	return money.Zero
}

// FromConfig returns FreeOver when freeThreshold is positive and Flat
// otherwise.
func FromConfig(fee, freeThreshold money.Money) Policy {
	if freeThreshold.IsZero() {
		return Flat{Fee: fee}
	}
	return FreeOver{Fee: fee, Threshold: freeThreshold}
}
