package order

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pilyang/jwp-shopping-order/internal/domain/cart"
	"github.com/pilyang/jwp-shopping-order/internal/domain/coupon"
	"github.com/pilyang/jwp-shopping-order/internal/domain/delivery"
	"github.com/pilyang/jwp-shopping-order/internal/domain/discount"
	"github.com/pilyang/jwp-shopping-order/internal/domain/member"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
)

// ProductPriceUpdatedError indicates the client saw a stale unit price.
type ProductPriceUpdatedError struct {
	CartItemID int64
	Requested  money.Money
	Current    money.Money
}

func (e *ProductPriceUpdatedError) Error() string {
	return fmt.Sprintf("price of cart item %d changed: requested %s, current %s",
		e.CartItemID, e.Requested, e.Current)
}

// QuantityNotMatchedError indicates the client saw a stale quantity.
type QuantityNotMatchedError struct {
	CartItemID int64
	Requested  int
	Current    int
}

func (e *QuantityNotMatchedError) Error() string {
	return fmt.Sprintf("quantity of cart item %d changed: requested %d, current %d",
		e.CartItemID, e.Requested, e.Current)
}

// RequestedItem is a cart line as the client last saw it.
type RequestedItem struct {
	CartItemID int64
	Quantity   int
	Price      money.Money
}

// PlaceRequest holds the input for placing an order. CouponIDs are member
// coupon ids applied in the given order.
type PlaceRequest struct {
	CartItems []RequestedItem
	CouponIDs []int64
}

// Service encapsulates order placement and lookup.
type Service struct {
	tx       Transactor
	orders   Repository
	policies discount.Provider
	fees     delivery.Policy

	tracer trace.Tracer
	placed metric.Int64Counter
	failed metric.Int64Counter
}

// NewService creates an order Service. orders serves read paths outside a
// transaction.
func NewService(
	tx Transactor,
	orders Repository,
	policies discount.Provider,
	fees delivery.Policy,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter("shop/order")
	placed, err := meter.Int64Counter("shop.orders.placed",
		metric.WithDescription("Orders placed successfully"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "placed counter")
	}
	failed, err := meter.Int64Counter("shop.orders.failed",
		metric.WithDescription("Order placements rejected or failed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed counter")
	}

	return &Service{
		tx:       tx,
		orders:   orders,
		policies: policies,
		fees:     fees,
		tracer:   tp.Tracer("shop/order"),
		placed:   placed,
		failed:   failed,
	}, nil
}

// Place validates the request against current cart state, settles coupons
// and persists the order in one transaction. Coupon rows stay locked until
// the transaction ends, so a concurrent order using the same coupon
// observes it as used.
func (s *Service) Place(ctx context.Context, m member.Member, req PlaceRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Place", trace.WithAttributes(
		attribute.Int64("member.id", m.ID),
		attribute.Int("order.cart_items", len(req.CartItems)),
		attribute.Int("order.coupons", len(req.CouponIDs)),
	))
	defer span.End()

	o, err := s.place(ctx, m, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "place order")
		s.failed.Add(ctx, 1)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", o.ID()))
	s.placed.Add(ctx, 1)
	zctx.From(ctx).Info("Order placed",
		zap.Int64("order_id", o.ID()),
		zap.Int64("member_id", m.ID),
		zap.Stringer("original_price", o.OriginalPrice()),
		zap.Stringer("actual_price", o.ActualPrice()),
		zap.Stringer("delivery_fee", o.DeliveryFee()),
	)
	return o, nil
}

func (s *Service) place(ctx context.Context, m member.Member, req PlaceRequest) (*Order, error) {
	if len(req.CartItems) == 0 {
		return nil, ErrNoCartItem
	}

	ids := make([]int64, len(req.CartItems))
	for i, it := range req.CartItems {
		if slices.Contains(ids[:i], it.CartItemID) {
			return nil, errors.Wrapf(ErrDuplicateCartItem, "cart item %d", it.CartItemID)
		}
		ids[i] = it.CartItemID
	}

	var placed *Order
	err := s.tx.InTx(ctx, func(r Repositories) error {
		items, err := r.CartItems.FindAllByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if err := matchRequest(req.CartItems, items); err != nil {
			return err
		}
		for _, it := range items {
			if err := it.CheckOwner(m); err != nil {
				return err
			}
		}

		coupons, err := lockCoupons(ctx, r.Coupons, req.CouponIDs)
		if err != nil {
			return err
		}

		o, err := Make(items, coupons, m, s.policies, s.fees)
		if err != nil {
			return err
		}

		id, err := r.Orders.Insert(ctx, o)
		if err != nil {
			return errors.Wrap(err, "insert order")
		}
		o.AssignID(id)

		for _, c := range o.Coupons() {
			if err := r.Coupons.UpdateStatus(ctx, c); err != nil {
				return errors.Wrapf(err, "update member coupon %d", c.ID())
			}
		}
		if err := r.CartItems.DeleteByIDs(ctx, ids); err != nil {
			return errors.Wrap(err, "delete ordered cart items")
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// matchRequest compares what the client saw with current state, index by
// index. Price is checked before quantity.
func matchRequest(requested []RequestedItem, current []*cart.CartItem) error {
	if len(requested) != len(current) {
		return errors.Wrapf(cart.ErrNotFound, "requested %d cart items, found %d", len(requested), len(current))
	}
	for i, req := range requested {
		cur := current[i]
		if price := cur.Product().Price; !price.Equal(req.Price) {
			return &ProductPriceUpdatedError{CartItemID: cur.ID(), Requested: req.Price, Current: price}
		}
		if cur.Quantity() != req.Quantity {
			return &QuantityNotMatchedError{CartItemID: cur.ID(), Requested: req.Quantity, Current: cur.Quantity()}
		}
	}
	return nil
}

// lockCoupons locks the requested member coupons and returns them in the
// requested order. A repeated id maps to the same instance.
func lockCoupons(ctx context.Context, repo coupon.Repository, ids []int64) ([]*coupon.MemberCoupon, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	distinct := slices.Clone(ids)
	slices.Sort(distinct)
	distinct = slices.Compact(distinct)

	locked, err := repo.FindAllByIDsForUpdate(ctx, distinct)
	if err != nil {
		return nil, errors.Wrap(err, "lock member coupons")
	}

	byID := make(map[int64]*coupon.MemberCoupon, len(locked))
	for _, c := range locked {
		byID[c.ID()] = c
	}

	out := make([]*coupon.MemberCoupon, len(ids))
	for i, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, errors.Wrapf(coupon.ErrNotFound, "member coupon %d", id)
		}
		out[i] = c
	}
	return out, nil
}

// Find returns an order placed by m.
func (s *Service) Find(ctx context.Context, m member.Member, id int64) (*Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := o.CheckOwner(m); err != nil {
		return nil, err
	}
	return o, nil
}

// FindAll returns every order placed by m, newest first.
func (s *Service) FindAll(ctx context.Context, m member.Member) ([]*Order, error) {
	orders, err := s.orders.FindAllByMemberID(ctx, m.ID)
	if err != nil {
		return nil, errors.Wrap(err, "find orders")
	}
	return orders, nil
}
