package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilyang/jwp-shopping-order/internal/domain/member"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
	"github.com/pilyang/jwp-shopping-order/internal/domain/product"
)

// --- Mock implementations ---

type mockCartRepo struct {
	byID    map[int64]*CartItem
	nextID  int64
	deleted []int64
	updated []int64
}

func newCartRepo(items ...*CartItem) *mockCartRepo {
	m := &mockCartRepo{byID: make(map[int64]*CartItem), nextID: 100}
	for _, it := range items {
		m.byID[it.ID()] = it
	}
	return m
}

func (m *mockCartRepo) FindAllByIDs(_ context.Context, ids []int64) ([]*CartItem, error) {
	out := make([]*CartItem, 0, len(ids))
	for _, id := range ids {
		it, ok := m.byID[id]
		if !ok {
			return nil, ErrNotFound
		}
		out = append(out, it)
	}
	return out, nil
}

func (m *mockCartRepo) FindByID(_ context.Context, id int64) (*CartItem, error) {
	it, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return it, nil
}

func (m *mockCartRepo) FindByMemberID(_ context.Context, memberID int64) ([]*CartItem, error) {
	var out []*CartItem
	for _, it := range m.byID {
		if it.MemberID() == memberID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockCartRepo) Add(_ context.Context, memberID, productID int64) (int64, error) {
	for _, it := range m.byID {
		if it.MemberID() == memberID && it.Product().ID == productID {
			it.quantity++
			return it.ID(), nil
		}
	}
	m.nextID++
	m.byID[m.nextID] = Restore(m.nextID, memberID, product.Product{ID: productID}, 1)
	return m.nextID, nil
}

func (m *mockCartRepo) UpdateQuantity(_ context.Context, item *CartItem) error {
	m.updated = append(m.updated, item.ID())
	return nil
}

func (m *mockCartRepo) DeleteByID(_ context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	delete(m.byID, id)
	return nil
}

func (m *mockCartRepo) DeleteByIDs(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		_ = m.DeleteByID(ctx, id)
	}
	return nil
}

type mockProductRepo struct {
	byID map[int64]product.Product
}

func (m *mockProductRepo) List(context.Context) ([]product.Product, error) { return nil, nil }

func (m *mockProductRepo) FindByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) Create(context.Context, product.Product) (int64, error) { return 0, nil }
func (m *mockProductRepo) Update(context.Context, product.Product) error { return nil }
func (m *mockProductRepo) Delete(context.Context, int64) error { return nil }

// --- Helpers ---

var (
	owner    = member.Member{ID: 1, Email: "a@a.com"}
	stranger = member.Member{ID: 2, Email: "b@b.com"}
	chicken  = product.Product{ID: 10, Name: "chicken", Price: money.MustNew(20000), ImageURL: "chicken.png"}
)

// --- Tests ---

func TestCartItem(t *testing.T) {
	item := Restore(1, owner.ID, chicken, 3)

	assert.Equal(t, int64(60000), item.TotalPrice().Int64())

	require.NoError(t, item.ChangeQuantity(5))
	assert.Equal(t, 5, item.Quantity())

	require.ErrorIs(t, item.ChangeQuantity(0), ErrInvalidQuantity)
	require.ErrorIs(t, item.ChangeQuantity(-1), ErrInvalidQuantity)
	assert.Equal(t, 5, item.Quantity())

	require.NoError(t, item.CheckOwner(owner))

	var ime *IllegalMemberError
	require.ErrorAs(t, item.CheckOwner(stranger), &ime)
	assert.Equal(t, int64(1), ime.CartItemID)
	assert.Equal(t, stranger.ID, ime.MemberID)
}

func TestNew_RejectsNonPositiveQuantity(t *testing.T) {
	_, err := New(owner.ID, chicken, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	item, err := New(owner.ID, chicken, 2)
	require.NoError(t, err)
	assert.Zero(t, item.ID())
}

func TestService_Add(t *testing.T) {
	repo := newCartRepo()
	svc := NewService(repo, &mockProductRepo{byID: map[int64]product.Product{chicken.ID: chicken}})

	id, err := svc.Add(context.Background(), owner, chicken.ID)
	require.NoError(t, err)

	again, err := svc.Add(context.Background(), owner, chicken.ID)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 2, repo.byID[id].Quantity())

	_, err = svc.Add(context.Background(), owner, 999)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestService_UpdateQuantity(t *testing.T) {
	tests := []struct {
		name        string
		member      member.Member
		quantity    int
		wantErr     error
		wantIllegal bool
		wantDeleted bool
	}{
		{name: "change quantity", member: owner, quantity: 4},
		{name: "zero deletes", member: owner, quantity: 0, wantDeleted: true},
		{name: "negative rejected", member: owner, quantity: -1, wantErr: ErrInvalidQuantity},
		{name: "not owner", member: stranger, quantity: 4, wantIllegal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newCartRepo(Restore(1, owner.ID, chicken, 1))
			svc := NewService(repo, &mockProductRepo{})

			err := svc.UpdateQuantity(context.Background(), tt.member, 1, tt.quantity)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, repo.updated)
			case tt.wantIllegal:
				var ime *IllegalMemberError
				require.ErrorAs(t, err, &ime)
				assert.Empty(t, repo.updated)
				assert.Empty(t, repo.deleted)
			case tt.wantDeleted:
				require.NoError(t, err)
				assert.Equal(t, []int64{1}, repo.deleted)
			default:
				require.NoError(t, err)
				assert.Equal(t, []int64{1}, repo.updated)
				assert.Equal(t, tt.quantity, repo.byID[1].Quantity())
			}
		})
	}
}

func TestService_Remove(t *testing.T) {
	repo := newCartRepo(Restore(1, owner.ID, chicken, 1))
	svc := NewService(repo, &mockProductRepo{})

	var ime *IllegalMemberError
	require.ErrorAs(t, svc.Remove(context.Background(), stranger, 1), &ime)

	require.NoError(t, svc.Remove(context.Background(), owner, 1))
	assert.Equal(t, []int64{1}, repo.deleted)

	err := svc.Remove(context.Background(), owner, 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}
