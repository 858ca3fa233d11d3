// Package cart manages the per-member shopping cart.
package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/pilyang/jwp-shopping-order/internal/domain/member"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
	"github.com/pilyang/jwp-shopping-order/internal/domain/product"
)

var (
	// ErrNotFound is returned when a cart item does not exist.
	ErrNotFound = errors.New("cart item not found")
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// IllegalMemberError indicates a member touched a cart item they do not own.
type IllegalMemberError struct {
	CartItemID int64
	MemberID   int64
}

func (e *IllegalMemberError) Error() string {
	return fmt.Sprintf("cart item %d is not owned by member %d", e.CartItemID, e.MemberID)
}

// CartItem is a product line in a member's cart. Quantity is always
// positive.
type CartItem struct {
	id       int64
	memberID int64
	product  product.Product
	quantity int
}

// New returns an unsaved cart item.
func New(memberID int64, p product.Product, quantity int) (*CartItem, error) {
	if quantity < 1 {
		return nil, errors.Wrapf(ErrInvalidQuantity, "got %d", quantity)
	}
	return &CartItem{memberID: memberID, product: p, quantity: quantity}, nil
}

// Restore rebuilds a persisted cart item.
func Restore(id, memberID int64, p product.Product, quantity int) *CartItem {
	return &CartItem{id: id, memberID: memberID, product: p, quantity: quantity}
}

func (c *CartItem) ID() int64                { return c.id }
func (c *CartItem) MemberID() int64          { return c.memberID }
func (c *CartItem) Product() product.Product { return c.product }
func (c *CartItem) Quantity() int            { return c.quantity }

// TotalPrice returns unit price times quantity.
func (c *CartItem) TotalPrice() money.Money {
	return c.product.Price.Times(c.quantity)
}

// ChangeQuantity sets a new quantity.
func (c *CartItem) ChangeQuantity(quantity int) error {
	if quantity < 1 {
		return errors.Wrapf(ErrInvalidQuantity, "got %d", quantity)
	}
	c.quantity = quantity
	return nil
}

// CheckOwner fails with *IllegalMemberError unless m owns the item.
func (c *CartItem) CheckOwner(m member.Member) error {
	if c.memberID != m.ID {
		return &IllegalMemberError{CartItemID: c.id, MemberID: m.ID}
	}
	return nil
}

// Repository defines persistence operations for cart items.
type Repository interface {
	// FindAllByIDs returns items in the order of ids. A missing id fails with
	// ErrNotFound.
	FindAllByIDs(ctx context.Context, ids []int64) ([]*CartItem, error)
	FindByID(ctx context.Context, id int64) (*CartItem, error)
	FindByMemberID(ctx context.Context, memberID int64) ([]*CartItem, error)
	// Add inserts a line with quantity 1, or increments the existing line
	// for the same member and product, and returns its id.
	Add(ctx context.Context, memberID, productID int64) (int64, error)
	UpdateQuantity(ctx context.Context, item *CartItem) error
	DeleteByID(ctx context.Context, id int64) error
	DeleteByIDs(ctx context.Context, ids []int64) error
}
