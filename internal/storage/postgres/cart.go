package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pilyang/jwp-shopping-order/internal/domain/cart"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
	"github.com/pilyang/jwp-shopping-order/internal/domain/product"
)

const (
	cartItemColumns = `ci.id, ci.member_id, ci.quantity, p.id, p.name, p.price, p.image_url
		FROM cart_item ci JOIN product p ON p.id = ci.product_id`

	getCartItemsByIDsSQL = `SELECT ` + cartItemColumns + ` WHERE ci.id = ANY($1)`

	getCartItemByIDSQL = `SELECT ` + cartItemColumns + ` WHERE ci.id = $1`

	getCartItemsByMemberSQL = `SELECT ` + cartItemColumns + ` WHERE ci.member_id = $1 ORDER BY ci.id`

	addCartItemSQL = `INSERT INTO cart_item (member_id, product_id, quantity) VALUES ($1, $2, 1)
		ON CONFLICT (member_id, product_id) DO UPDATE SET quantity = cart_item.quantity + 1
		RETURNING id`

	updateCartItemQuantitySQL = `UPDATE cart_item SET quantity = $2 WHERE id = $1`

	deleteCartItemSQL = `DELETE FROM cart_item WHERE id = $1`

	deleteCartItemsSQL = `DELETE FROM cart_item WHERE id = ANY($1)`
)

var _ cart.Repository = (*CartItemRepository)(nil)

// CartItemRepository implements cart.Repository backed by PostgreSQL.
type CartItemRepository struct {
	q querier
}

// NewCartItemRepository returns a CartItemRepository that uses the given pool.
func NewCartItemRepository(pool *pgxpool.Pool) *CartItemRepository {
	return &CartItemRepository{q: pool}
}

// FindAllByIDs returns the cart items for ids in the order of ids.
func (r *CartItemRepository) FindAllByIDs(ctx context.Context, ids []int64) ([]*cart.CartItem, error) {
	rows, err := r.q.Query(ctx, getCartItemsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting cart items: %w", err)
	}
	found, err := pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("getting cart items: %w", err)
	}

	byID := make(map[int64]*cart.CartItem, len(found))
	for _, it := range found {
		byID[it.ID()] = it
	}

	out := make([]*cart.CartItem, len(ids))
	for i, id := range ids {
		it, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("cart item %d: %w", id, cart.ErrNotFound)
		}
		out[i] = it
	}
	return out, nil
}

// FindByID returns a single cart item, or cart.ErrNotFound.
func (r *CartItemRepository) FindByID(ctx context.Context, id int64) (*cart.CartItem, error) {
	rows, err := r.q.Query(ctx, getCartItemByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting cart item %d: %w", id, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanCartItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cart item %d: %w", id, cart.ErrNotFound)
		}
		return nil, fmt.Errorf("getting cart item %d: %w", id, err)
	}
	return it, nil
}

// FindByMemberID returns the member's cart ordered by id.
func (r *CartItemRepository) FindByMemberID(ctx context.Context, memberID int64) ([]*cart.CartItem, error) {
	rows, err := r.q.Query(ctx, getCartItemsByMemberSQL, memberID)
	if err != nil {
		return nil, fmt.Errorf("listing cart of member %d: %w", memberID, err)
	}
	return pgx.CollectRows(rows, scanCartItem)
}

// Add inserts a cart line or increments the existing one.
func (r *CartItemRepository) Add(ctx context.Context, memberID, productID int64) (int64, error) {
	var id int64
	if err := r.q.QueryRow(ctx, addCartItemSQL, memberID, productID).Scan(&id); err != nil {
		return 0, fmt.Errorf("adding product %d to cart: %w", productID, err)
	}
	return id, nil
}

// UpdateQuantity stores the item's current quantity.
func (r *CartItemRepository) UpdateQuantity(ctx context.Context, item *cart.CartItem) error {
	tag, err := r.q.Exec(ctx, updateCartItemQuantitySQL, item.ID(), item.Quantity())
	if err != nil {
		return fmt.Errorf("updating cart item %d: %w", item.ID(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cart item %d: %w", item.ID(), cart.ErrNotFound)
	}
	return nil
}

// DeleteByID removes one cart item.
func (r *CartItemRepository) DeleteByID(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, deleteCartItemSQL, id)
	if err != nil {
		return fmt.Errorf("deleting cart item %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cart item %d: %w", id, cart.ErrNotFound)
	}
	return nil
}

// DeleteByIDs removes every listed cart item.
func (r *CartItemRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if _, err := r.q.Exec(ctx, deleteCartItemsSQL, ids); err != nil {
		return fmt.Errorf("deleting cart items: %w", err)
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (*cart.CartItem, error) {
	var (
		id, memberID int64
		quantity     int
		p            product.Product
		price        decimal.Decimal
	)
	if err := row.Scan(&id, &memberID, &quantity, &p.ID, &p.Name, &price, &p.ImageURL); err != nil {
		return nil, err
	}
	m, err := money.FromDecimal(price)
	if err != nil {
		return nil, fmt.Errorf("product %d price: %w", p.ID, err)
	}
	p.Price = m
	return cart.Restore(id, memberID, p, quantity), nil
}
