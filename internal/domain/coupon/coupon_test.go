package coupon

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilyang/jwp-shopping-order/internal/domain/discount"
	"github.com/pilyang/jwp-shopping-order/internal/domain/member"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
)

var (
	owner    = member.Member{ID: 1}
	stranger = member.Member{ID: 2}

	fixed300  = Coupon{ID: 1, Name: "300 off", DiscountType: discount.FixedAmount, Value: decimal.NewFromInt(300)}
	fixed3000 = Coupon{ID: 2, Name: "3000 off", DiscountType: discount.FixedAmount, Value: decimal.NewFromInt(3000)}
	pct10     = Coupon{ID: 3, Name: "10%", DiscountType: discount.Percentage, Value: decimal.NewFromInt(10)}
	pct120    = Coupon{ID: 4, Name: "broken", DiscountType: discount.Percentage, Value: decimal.NewFromInt(120)}
	unknown   = Coupon{ID: 5, Name: "bogo", DiscountType: "BUY_ONE_GET_ONE", Value: decimal.NewFromInt(1)}
)

func policyFor(t *testing.T, c Coupon) discount.Policy {
	t.Helper()
	p, err := discount.NewRegistry().Policy(c.DiscountType)
	require.NoError(t, err)
	return p
}

func TestMemberCoupon_Use(t *testing.T) {
	tests := []struct {
		name      string
		coupon    Coupon
		used      bool
		original  int64
		want      int64
		wantSaved int64
		wantErr   error
	}{
		{name: "fixed", coupon: fixed300, original: 2000, want: 1700, wantSaved: 300},
		{name: "fixed larger than price", coupon: fixed3000, original: 500, want: 0, wantSaved: 500},
		{name: "percentage", coupon: pct10, original: 2000, want: 1800, wantSaved: 200},
		{name: "already used", coupon: fixed300, used: true, original: 2000, wantErr: ErrAlreadyUsed},
		{name: "percentage over 100", coupon: pct120, original: 2000, wantErr: ErrDiscountExceedsPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := Restore(10, owner.ID, tt.coupon, tt.used, nil)

			got, err := mc.Use(money.MustNew(tt.original), policyFor(t, tt.coupon))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.used, mc.Used())
				_, recorded := mc.DiscountedPrice()
				assert.False(t, recorded)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Int64())
			assert.True(t, mc.Used())

			saved, ok := mc.DiscountedPrice()
			require.True(t, ok)
			assert.Equal(t, tt.wantSaved, saved.Int64())
		})
	}
}

func TestMemberCoupon_UseTwice(t *testing.T) {
	mc := Restore(10, owner.ID, fixed300, false, nil)
	p := policyFor(t, fixed300)

	_, err := mc.Use(money.MustNew(2000), p)
	require.NoError(t, err)

	_, err = mc.Use(money.MustNew(2000), p)
	require.ErrorIs(t, err, ErrAlreadyUsed)

	saved, _ := mc.DiscountedPrice()
	assert.Equal(t, int64(300), saved.Int64())
}

func TestMemberCoupon_CheckOwner(t *testing.T) {
	mc := Restore(10, owner.ID, fixed300, false, nil)

	require.NoError(t, mc.CheckOwner(owner))

	var ime *IllegalMemberError
	require.ErrorAs(t, mc.CheckOwner(stranger), &ime)
	assert.Equal(t, int64(10), ime.MemberCouponID)
	assert.Equal(t, stranger.ID, ime.MemberID)
}

func TestMemberCoupons_Apply(t *testing.T) {
	reg := discount.NewRegistry()

	t.Run("applies in submission order", func(t *testing.T) {
		a := Restore(1, owner.ID, fixed300, false, nil)
		b := Restore(2, owner.ID, pct10, false, nil)

		mcs, err := Of([]*MemberCoupon{a, b}, reg)
		require.NoError(t, err)

		got, err := mcs.Apply(money.MustNew(2000))
		require.NoError(t, err)
		// (2000 - 300) * 0.9
		assert.Equal(t, int64(1530), got.Int64())

		savedA, _ := a.DiscountedPrice()
		savedB, _ := b.DiscountedPrice()
		assert.Equal(t, int64(300), savedA.Int64())
		assert.Equal(t, int64(170), savedB.Int64())
		assert.Equal(t, []*MemberCoupon{a, b}, mcs.Coupons())
	})

	t.Run("reversed order gives a different price", func(t *testing.T) {
		a := Restore(1, owner.ID, fixed300, false, nil)
		b := Restore(2, owner.ID, pct10, false, nil)

		mcs, err := Of([]*MemberCoupon{b, a}, reg)
		require.NoError(t, err)

		got, err := mcs.Apply(money.MustNew(2000))
		require.NoError(t, err)
		// 2000 * 0.9 - 300
		assert.Equal(t, int64(1500), got.Int64())
	})

	t.Run("empty keeps the total", func(t *testing.T) {
		mcs, err := Of(nil, reg)
		require.NoError(t, err)

		got, err := mcs.Apply(money.MustNew(2000))
		require.NoError(t, err)
		assert.Equal(t, int64(2000), got.Int64())
		assert.Zero(t, mcs.Len())
	})

	t.Run("same instance twice fails", func(t *testing.T) {
		a := Restore(1, owner.ID, fixed300, false, nil)

		mcs, err := Of([]*MemberCoupon{a, a}, reg)
		require.NoError(t, err)

		_, err = mcs.Apply(money.MustNew(2000))
		require.ErrorIs(t, err, ErrAlreadyUsed)
	})

	t.Run("unknown policy fails at resolution", func(t *testing.T) {
		_, err := Of([]*MemberCoupon{Restore(1, owner.ID, unknown, false, nil)}, reg)
		require.ErrorIs(t, err, discount.ErrUnknownType)
	})
}

// --- Service ---

type mockCouponRepo struct {
	catalog map[int64]Coupon
	issued  map[[2]int64]bool
	err     error
}

func (m *mockCouponRepo) List(context.Context) ([]Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]Coupon, 0, len(m.catalog))
	for _, c := range m.catalog {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCouponRepo) FindByID(_ context.Context, id int64) (*Coupon, error) {
	c, ok := m.catalog[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *mockCouponRepo) FindByMemberID(context.Context, int64) ([]*MemberCoupon, error) {
	return nil, m.err
}

func (m *mockCouponRepo) FindAllByIDsForUpdate(context.Context, []int64) ([]*MemberCoupon, error) {
	return nil, nil
}

func (m *mockCouponRepo) UpdateStatus(context.Context, *MemberCoupon) error { return nil }

func (m *mockCouponRepo) Issue(_ context.Context, memberID, couponID int64) (*MemberCoupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	key := [2]int64{memberID, couponID}
	if m.issued[key] {
		return nil, ErrAlreadyIssued
	}
	m.issued[key] = true
	return Restore(int64(len(m.issued)), memberID, m.catalog[couponID], false, nil), nil
}

func TestService_Issue(t *testing.T) {
	repo := &mockCouponRepo{
		catalog: map[int64]Coupon{fixed300.ID: fixed300},
		issued:  make(map[[2]int64]bool),
	}
	svc := NewService(repo)

	mc, err := svc.Issue(context.Background(), owner, fixed300.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, mc.MemberID())
	assert.False(t, mc.Used())

	_, err = svc.Issue(context.Background(), owner, fixed300.ID)
	require.ErrorIs(t, err, ErrAlreadyIssued)

	_, err = svc.Issue(context.Background(), owner, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_ListError(t *testing.T) {
	svc := NewService(&mockCouponRepo{err: errors.New("db down")})

	_, err := svc.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list coupons")
}
