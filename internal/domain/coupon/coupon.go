package coupon

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/pilyang/jwp-shopping-order/internal/domain/discount"
	"github.com/pilyang/jwp-shopping-order/internal/domain/member"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
)

var (
	// ErrNotFound is returned when a coupon or member coupon does not exist.
	ErrNotFound = errors.New("coupon not found")
	// ErrAlreadyUsed is returned when a member coupon is spent twice.
	ErrAlreadyUsed = errors.New("coupon already used")
	// ErrDiscountExceedsPrice is returned when a coupon would take the price
	// below zero.
	ErrDiscountExceedsPrice = errors.New("discount exceeds price")
	// ErrAlreadyIssued is returned when a member already holds the coupon.
	ErrAlreadyIssued = errors.New("coupon already issued")
)

// IllegalMemberError indicates a member tried to use a coupon they do not
// own.
type IllegalMemberError struct {
	MemberCouponID int64
	MemberID       int64
}

func (e *IllegalMemberError) Error() string {
	return fmt.Sprintf("member coupon %d is not owned by member %d", e.MemberCouponID, e.MemberID)
}

// Coupon is a catalog entry describing a discount.
type Coupon struct {
	ID           int64
	Name         string
	DiscountType discount.Type
	Value        decimal.Decimal
}

// MemberCoupon is a coupon issued to one member. It moves from unused to
// used exactly once.
type MemberCoupon struct {
	id              int64
	memberID        int64
	coupon          Coupon
	used            bool
	discountedPrice *money.Money
}

// Restore rebuilds a persisted member coupon. discountedPrice is nil for
// unused coupons.
func Restore(id, memberID int64, c Coupon, used bool, discountedPrice *money.Money) *MemberCoupon {
	return &MemberCoupon{
		id:              id,
		memberID:        memberID,
		coupon:          c,
		used:            used,
		discountedPrice: discountedPrice,
	}
}

func (mc *MemberCoupon) ID() int64       { return mc.id }
func (mc *MemberCoupon) MemberID() int64 { return mc.memberID }
func (mc *MemberCoupon) Coupon() Coupon  { return mc.coupon }
func (mc *MemberCoupon) Used() bool      { return mc.used }

// DiscountedPrice returns the amount saved when the coupon was used.
func (mc *MemberCoupon) DiscountedPrice() (money.Money, bool) {
	if mc.discountedPrice == nil {
		return money.Money{}, false
	}
	return *mc.discountedPrice, true
}

// Use applies the coupon to original and returns the price after discount.
// The saved amount is recorded and the coupon becomes used. On failure the
// coupon is left untouched.
func (mc *MemberCoupon) Use(original money.Money, policy discount.Policy) (money.Money, error) {
	if mc.used {
		return money.Money{}, errors.Wrapf(ErrAlreadyUsed, "member coupon %d", mc.id)
	}

	discounted, err := policy.Apply(original, mc.coupon.Value)
	if err != nil {
		if errors.Is(err, money.ErrInsufficientAmount) {
			return money.Money{}, errors.Wrapf(ErrDiscountExceedsPrice, "member coupon %d: %v", mc.id, err)
		}
		return money.Money{}, errors.Wrapf(err, "member coupon %d", mc.id)
	}

	saved, err := original.Sub(discounted)
	if err != nil {
		return money.Money{}, errors.Wrapf(ErrDiscountExceedsPrice, "member coupon %d: %v", mc.id, err)
	}

	mc.used = true
	mc.discountedPrice = &saved
	return discounted, nil
}

// CheckOwner fails with *IllegalMemberError unless m holds the coupon.
func (mc *MemberCoupon) CheckOwner(m member.Member) error {
	if mc.memberID != m.ID {
		return &IllegalMemberError{MemberCouponID: mc.id, MemberID: m.ID}
	}
	return nil
}

// Repository provides lookup and mutation of coupons and member coupons.
type Repository interface {
	List(ctx context.Context) ([]Coupon, error)
	FindByID(ctx context.Context, id int64) (*Coupon, error)
	// FindByMemberID returns the member's unused coupons.
	FindByMemberID(ctx context.Context, memberID int64) ([]*MemberCoupon, error)
	// FindAllByIDsForUpdate locks and returns the distinct member coupons for
	// ids in ascending id order. The locks are held until the enclosing
	// transaction ends.
	FindAllByIDsForUpdate(ctx context.Context, ids []int64) ([]*MemberCoupon, error)
	UpdateStatus(ctx context.Context, mc *MemberCoupon) error
	// Issue gives couponID to memberID, failing with ErrAlreadyIssued when
	// the member already holds it.
	Issue(ctx context.Context, memberID, couponID int64) (*MemberCoupon, error)
}
