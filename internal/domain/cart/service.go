package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/pilyang/jwp-shopping-order/internal/domain/member"
	"github.com/pilyang/jwp-shopping-order/internal/domain/product"
)

// Service encapsulates cart operations performed by a member.
type Service struct {
	items    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(items Repository, products product.Repository) *Service {
	return &Service{items: items, products: products}
}

// List returns the member's cart items.
func (s *Service) List(ctx context.Context, m member.Member) ([]*CartItem, error) {
	items, err := s.items.FindByMemberID(ctx, m.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}
	return items, nil
}

// Add puts productID in the member's cart and returns the cart item id.
func (s *Service) Add(ctx context.Context, m member.Member, productID int64) (int64, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return 0, err
	}

	id, err := s.items.Add(ctx, m.ID, productID)
	if err != nil {
		return 0, errors.Wrap(err, "add cart item")
	}
	return id, nil
}

// UpdateQuantity changes the quantity of a cart item the member owns. A
// quantity of zero removes the item.
func (s *Service) UpdateQuantity(ctx context.Context, m member.Member, id int64, quantity int) error {
	item, err := s.owned(ctx, m, id)
	if err != nil {
		return err
	}

	if quantity == 0 {
		return s.delete(ctx, id)
	}
	if err := item.ChangeQuantity(quantity); err != nil {
		return err
	}
	if err := s.items.UpdateQuantity(ctx, item); err != nil {
		return errors.Wrap(err, "update cart item")
	}
	return nil
}

// Remove deletes a cart item the member owns.
func (s *Service) Remove(ctx context.Context, m member.Member, id int64) error {
	if _, err := s.owned(ctx, m, id); err != nil {
		return err
	}
	return s.delete(ctx, id)
}

func (s *Service) owned(ctx context.Context, m member.Member, id int64) (*CartItem, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := item.CheckOwner(m); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) delete(ctx context.Context, id int64) error {
	if err := s.items.DeleteByID(ctx, id); err != nil {
		return errors.Wrap(err, "delete cart item")
	}
	return nil
}
