package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pilyang/jwp-shopping-order/internal/domain/coupon"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
	"github.com/pilyang/jwp-shopping-order/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (member_id, original_price, actual_price, delivery_fee, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	insertOrderItemSQL = `INSERT INTO order_item (order_id, product_id, name, image_url, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)`

	insertOrderCouponSQL = `INSERT INTO order_coupon (order_id, member_coupon_id, position) VALUES ($1, $2, $3)`

	orderColumns = `id, member_id, original_price, actual_price, delivery_fee, created_at FROM orders`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` WHERE id = $1`

	getOrdersByMemberSQL = `SELECT ` + orderColumns + ` WHERE member_id = $1 ORDER BY id DESC`

	getOrderItemsSQL = `SELECT order_id, product_id, name, image_url, price, quantity
		FROM order_item WHERE order_id = ANY($1) ORDER BY order_id, id`

	getOrderCouponsSQL = `SELECT oc.order_id, ` + memberCouponColumns + `
		FROM order_coupon oc
		JOIN member_coupon mc ON mc.id = oc.member_coupon_id
		JOIN coupon c ON c.id = mc.coupon_id
		WHERE oc.order_id = ANY($1)
		ORDER BY oc.order_id, oc.position`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	q querier
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{q: pool}
}

// Insert persists the order, its item snapshots and the applied coupons in
// application order.
func (r *OrderRepository) Insert(ctx context.Context, o *order.Order) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, insertOrderSQL,
		o.MemberID(),
		o.OriginalPrice().Decimal(),
		o.ActualPrice().Decimal(),
		o.DeliveryFee().Decimal(),
		o.CreatedAt(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting order: %w", err)
	}

	b := &pgx.Batch{}
	for _, it := range o.Items() {
		b.Queue(insertOrderItemSQL, id, it.ProductID, it.Name, it.ImageURL, it.Price.Decimal(), it.Quantity)
	}
	for pos, c := range o.Coupons() {
		b.Queue(insertOrderCouponSQL, id, c.ID(), pos)
	}
	if err := r.q.SendBatch(ctx, b).Close(); err != nil {
		return 0, fmt.Errorf("inserting lines of order %d: %w", id, err)
	}

	return id, nil
}

// FindByID returns an order with its items and coupons, or
// order.ErrNotFound.
func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.q.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	h, err := pgx.CollectExactlyOneRow(rows, scanOrderHeader)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", id, order.ErrNotFound)
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	orders, err := r.assemble(ctx, []orderHeader{h})
	if err != nil {
		return nil, err
	}
	return orders[0], nil
}

// FindAllByMemberID returns the member's orders, newest first.
func (r *OrderRepository) FindAllByMemberID(ctx context.Context, memberID int64) ([]*order.Order, error) {
	rows, err := r.q.Query(ctx, getOrdersByMemberSQL, memberID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of member %d: %w", memberID, err)
	}
	headers, err := pgx.CollectRows(rows, scanOrderHeader)
	if err != nil {
		return nil, fmt.Errorf("listing orders of member %d: %w", memberID, err)
	}
	return r.assemble(ctx, headers)
}

type orderHeader struct {
	id, memberID                            int64
	originalPrice, actualPrice, deliveryFee money.Money
	createdAt                               time.Time
}

// assemble loads items and coupons for all headers with one query each.
func (r *OrderRepository) assemble(ctx context.Context, headers []orderHeader) ([]*order.Order, error) {
	if len(headers) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(headers))
	for i, h := range headers {
		ids[i] = h.id
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	coupons, err := r.coupons(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*order.Order, len(headers))
	for i, h := range headers {
		out[i] = order.Restore(h.id, h.memberID, items[h.id], coupons[h.id],
			h.originalPrice, h.actualPrice, h.deliveryFee, h.createdAt)
	}
	return out, nil
}

func (r *OrderRepository) items(ctx context.Context, orderIDs []int64) (map[int64][]order.Item, error) {
	rows, err := r.q.Query(ctx, getOrderItemsSQL, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("getting order items: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]order.Item, len(orderIDs))
	for rows.Next() {
		var (
			orderID int64
			it      order.Item
			price   decimal.Decimal
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.ImageURL, &price, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		if it.Price, err = money.FromDecimal(price); err != nil {
			return nil, fmt.Errorf("order %d item price: %w", orderID, err)
		}
		out[orderID] = append(out[orderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("getting order items: %w", err)
	}
	return out, nil
}

func (r *OrderRepository) coupons(ctx context.Context, orderIDs []int64) (map[int64][]*coupon.MemberCoupon, error) {
	rows, err := r.q.Query(ctx, getOrderCouponsSQL, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("getting order coupons: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]*coupon.MemberCoupon, len(orderIDs))
	for rows.Next() {
		var orderID int64
		mc, err := readMemberCoupon(rows.Scan, &orderID)
		if err != nil {
			return nil, fmt.Errorf("scanning order coupon: %w", err)
		}
		out[orderID] = append(out[orderID], mc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("getting order coupons: %w", err)
	}
	return out, nil
}

func scanOrderHeader(row pgx.CollectableRow) (orderHeader, error) {
	var (
		h                     orderHeader
		original, actual, fee decimal.Decimal
	)
	if err := row.Scan(&h.id, &h.memberID, &original, &actual, &fee, &h.createdAt); err != nil {
		return h, err
	}

	var err error
	if h.originalPrice, err = money.FromDecimal(original); err != nil {
		return h, fmt.Errorf("order %d original price: %w", h.id, err)
	}
	if h.actualPrice, err = money.FromDecimal(actual); err != nil {
		return h, fmt.Errorf("order %d actual price: %w", h.id, err)
	}
	if h.deliveryFee, err = money.FromDecimal(fee); err != nil {
		return h, fmt.Errorf("order %d delivery fee: %w", h.id, err)
	}
	return h, nil
}
