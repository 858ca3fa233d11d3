package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilyang/jwp-shopping-order/internal/domain/cart"
	"github.com/pilyang/jwp-shopping-order/internal/domain/coupon"
	"github.com/pilyang/jwp-shopping-order/internal/domain/delivery"
	"github.com/pilyang/jwp-shopping-order/internal/domain/discount"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
)

func TestMake(t *testing.T) {
	items := []*cart.CartItem{
		cart.Restore(10, alice.ID, chicken, 2),
		cart.Restore(11, alice.ID, pizza, 1),
	}
	fees := delivery.FreeOver{Fee: money.MustNew(3000), Threshold: money.MustNew(30000)}

	t.Run("free delivery over threshold", func(t *testing.T) {
		o, err := Make(items, nil, alice, discount.NewRegistry(), fees)
		require.NoError(t, err)

		assert.Zero(t, o.ID())
		assert.Equal(t, alice.ID, o.MemberID())
		assert.Equal(t, int64(40000), o.OriginalPrice().Int64())
		assert.True(t, o.DeliveryFee().IsZero())
		assert.False(t, o.CreatedAt().IsZero())
	})

	t.Run("fee is computed from the discounted total", func(t *testing.T) {
		huge := coupon.Restore(1, alice.ID, coupon.Coupon{
			ID: 9, DiscountType: discount.FixedAmount, Value: fixed1000.Value.Mul(fixed1000.Value),
		}, false, nil)

		o, err := Make(items, []*coupon.MemberCoupon{huge}, alice, discount.NewRegistry(), fees)
		require.NoError(t, err)

		assert.True(t, o.ActualPrice().IsZero())
		assert.Equal(t, int64(40000), o.DiscountedPrice().Int64())
		assert.Equal(t, int64(3000), o.DeliveryFee().Int64())
	})

	t.Run("no items", func(t *testing.T) {
		_, err := Make(nil, nil, alice, discount.NewRegistry(), fees)
		require.ErrorIs(t, err, ErrNoCartItem)
	})

	t.Run("foreign coupon is rejected before any coupon is used", func(t *testing.T) {
		mine := coupon.Restore(1, alice.ID, fixed1000, false, nil)
		theirs := coupon.Restore(2, bob.ID, fixed1000, false, nil)

		_, err := Make(items, []*coupon.MemberCoupon{mine, theirs}, alice, discount.NewRegistry(), fees)

		var ime *coupon.IllegalMemberError
		require.ErrorAs(t, err, &ime)
		assert.False(t, mine.Used())
	})
}

func TestItemFrom_IsASnapshot(t *testing.T) {
	c := cart.Restore(10, alice.ID, chicken, 2)
	item := ItemFrom(c)

	require.NoError(t, c.ChangeQuantity(5))

	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, int64(20000), item.TotalPrice().Int64())
	assert.Equal(t, "chicken", item.Name)
}

func TestOrder_AssignID(t *testing.T) {
	o, err := Make([]*cart.CartItem{cart.Restore(10, alice.ID, chicken, 1)}, nil, alice,
		discount.NewRegistry(), delivery.Flat{Fee: money.Zero})
	require.NoError(t, err)

	o.AssignID(42)
	assert.Equal(t, int64(42), o.ID())
	require.NoError(t, o.CheckOwner(alice))

	var ime *IllegalMemberError
	require.ErrorAs(t, o.CheckOwner(bob), &ime)
}
