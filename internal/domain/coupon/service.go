package coupon

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/pilyang/jwp-shopping-order/internal/domain/member"
)

// Service exposes the coupon catalog and member coupon issuance.
type Service struct {
	repo Repository
}

// NewService creates a coupon Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the coupon catalog.
func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	coupons, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return coupons, nil
}

// MemberCoupons returns the unused coupons held by m.
func (s *Service) MemberCoupons(ctx context.Context, m member.Member) ([]*MemberCoupon, error) {
	coupons, err := s.repo.FindByMemberID(ctx, m.ID)
	if err != nil {
		return nil, errors.Wrap(err, "find member coupons")
	}
	return coupons, nil
}

// Issue gives a catalog coupon to m.
func (s *Service) Issue(ctx context.Context, m member.Member, couponID int64) (*MemberCoupon, error) {
	if _, err := s.repo.FindByID(ctx, couponID); err != nil {
		return nil, err
	}

	mc, err := s.repo.Issue(ctx, m.ID, couponID)
	if err != nil {
		if errors.Is(err, ErrAlreadyIssued) {
			return nil, err
		}
		return nil, errors.Wrap(err, "issue coupon")
	}

	zctx.From(ctx).Info("Coupon issued",
		zap.Int64("member_id", m.ID),
		zap.Int64("coupon_id", couponID),
		zap.Int64("member_coupon_id", mc.ID()),
	)
	return mc, nil
}
