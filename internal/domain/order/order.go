package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/pilyang/jwp-shopping-order/internal/domain/cart"
	"github.com/pilyang/jwp-shopping-order/internal/domain/coupon"
	"github.com/pilyang/jwp-shopping-order/internal/domain/delivery"
	"github.com/pilyang/jwp-shopping-order/internal/domain/discount"
	"github.com/pilyang/jwp-shopping-order/internal/domain/member"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
)

var (
	// ErrNoCartItem is returned when an order is placed without cart items.
	ErrNoCartItem = errors.New("order has no cart items")
	// ErrDuplicateCartItem is returned when a cart item is requested twice.
	ErrDuplicateCartItem = errors.New("duplicate cart item")
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
)

// IllegalMemberError indicates a member asked for an order they did not
// place.
type IllegalMemberError struct {
	OrderID  int64
	MemberID int64
}

func (e *IllegalMemberError) Error() string {
	return fmt.Sprintf("order %d is not owned by member %d", e.OrderID, e.MemberID)
}

// Item is an immutable snapshot of a cart item taken when the order is
// made. Later product changes do not affect it.
type Item struct {
	ProductID int64
	Name      string
	ImageURL  string
	Price     money.Money
	Quantity  int
}

// ItemFrom snapshots a cart item.
func ItemFrom(c *cart.CartItem) Item {
	p := c.Product()
	return Item{
		ProductID: p.ID,
		Name:      p.Name,
		ImageURL:  p.ImageURL,
		Price:     p.Price,
		Quantity:  c.Quantity(),
	}
}

// TotalPrice returns unit price times quantity.
func (i Item) TotalPrice() money.Money {
	return i.Price.Times(i.Quantity)
}

// Order is a placed order with its price breakdown. Only the id changes
// after construction.
type Order struct {
	id            int64
	memberID      int64
	items         []Item
	coupons       []*coupon.MemberCoupon
	originalPrice money.Money
	actualPrice   money.Money
	deliveryFee   money.Money
	createdAt     time.Time
}

// Make prices cartItems with coupons applied in the given order and returns
// an unsaved order. Coupons are mutated into the used state; on error some
// of them may already be used and the caller must discard them.
func Make(
	cartItems []*cart.CartItem,
	coupons []*coupon.MemberCoupon,
	m member.Member,
	provider discount.Provider,
	fees delivery.Policy,
) (*Order, error) {
	if len(cartItems) == 0 {
		return nil, ErrNoCartItem
	}
	for _, c := range coupons {
		if err := c.CheckOwner(m); err != nil {
			return nil, err
		}
	}

	original := money.Zero
	for _, c := range cartItems {
		original = original.Add(c.TotalPrice())
	}

	applied, err := coupon.Of(coupons, provider)
	if err != nil {
		return nil, err
	}
	actual, err := applied.Apply(original)
	if err != nil {
		return nil, err
	}

	items := make([]Item, len(cartItems))
	for i, c := range cartItems {
		items[i] = ItemFrom(c)
	}

	return &Order{
		memberID:      m.ID,
		items:         items,
		coupons:       applied.Coupons(),
		originalPrice: original,
		actualPrice:   actual,
		deliveryFee:   fees.FeeFor(actual),
		createdAt:     time.Now().UTC(),
	}, nil
}

// Restore rebuilds a persisted order.
func Restore(
	id, memberID int64,
	items []Item,
	coupons []*coupon.MemberCoupon,
	originalPrice, actualPrice, deliveryFee money.Money,
	createdAt time.Time,
) *Order {
	return &Order{
		id:            id,
		memberID:      memberID,
		items:         items,
		coupons:       coupons,
		originalPrice: originalPrice,
		actualPrice:   actualPrice,
		deliveryFee:   deliveryFee,
		createdAt:     createdAt,
	}
}

// AssignID sets the id given by storage.
func (o *Order) AssignID(id int64) { o.id = id }

func (o *Order) ID() int64                       { return o.id }
func (o *Order) MemberID() int64                 { return o.memberID }
func (o *Order) Items() []Item                   { return o.items }
func (o *Order) Coupons() []*coupon.MemberCoupon { return o.coupons }
func (o *Order) OriginalPrice() money.Money      { return o.originalPrice }
func (o *Order) ActualPrice() money.Money        { return o.actualPrice }
func (o *Order) DeliveryFee() money.Money        { return o.deliveryFee }
func (o *Order) CreatedAt() time.Time            { return o.createdAt }

// DiscountedPrice returns the total saved by coupons.
func (o *Order) DiscountedPrice() money.Money {
	saved, err := o.originalPrice.Sub(o.actualPrice)
	if err != nil {
		return money.Zero
	}
	return saved
}

// TotalPrice returns what the member pays: actual price plus delivery.
func (o *Order) TotalPrice() money.Money {
	return o.actualPrice.Add(o.deliveryFee)
}

// CheckOwner fails with *IllegalMemberError unless m placed the order.
func (o *Order) CheckOwner(m member.Member) error {
	if o.memberID != m.ID {
		return &IllegalMemberError{OrderID: o.id, MemberID: m.ID}
	}
	return nil
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Insert stores the order with its items and coupon links and returns
	// the new id.
	Insert(ctx context.Context, o *Order) (int64, error)
	FindByID(ctx context.Context, id int64) (*Order, error)
	FindAllByMemberID(ctx context.Context, memberID int64) ([]*Order, error)
}

// Repositories are bound to one transaction.
type Repositories struct {
	CartItems cart.Repository
	Coupons   coupon.Repository
	Orders    Repository
}

// Transactor runs fn in a single transaction. A non-nil error from fn rolls
// the transaction back.
type Transactor interface {
	InTx(ctx context.Context, fn func(Repositories) error) error
}
