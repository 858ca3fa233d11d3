//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/pilyang/jwp-shopping-order/internal/domain/cart"
	"github.com/pilyang/jwp-shopping-order/internal/domain/coupon"
	"github.com/pilyang/jwp-shopping-order/internal/domain/delivery"
	"github.com/pilyang/jwp-shopping-order/internal/domain/discount"
	"github.com/pilyang/jwp-shopping-order/internal/domain/member"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
	"github.com/pilyang/jwp-shopping-order/internal/domain/order"
	"github.com/pilyang/jwp-shopping-order/internal/domain/product"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "shop",
				"POSTGRES_PASSWORD": "shop",
				"POSTGRES_DB":       "shop",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := pg.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := pg.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}
	databaseURL := fmt.Sprintf("postgres://shop:shop@%s:%s/shop?sslmode=disable", host, port.Port())

	if err := Migrate(databaseURL); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	testPool, err = NewPool(ctx, databaseURL)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	return m.Run()
}

type fixture struct {
	member  member.Member
	product product.Product
}

func newFixture(t *testing.T, email string) fixture {
	t.Helper()
	ctx := context.Background()

	id, err := NewMemberRepository(testPool).Upsert(ctx, email, "x")
	require.NoError(t, err)

	p := product.Product{Name: "chicken", Price: money.MustNew(10000), ImageURL: "chicken.png"}
	p.ID, err = NewProductRepository(testPool).Create(ctx, p)
	require.NoError(t, err)

	return fixture{member: member.Member{ID: id, Email: email}, product: p}
}

func newOrderService(t *testing.T) *order.Service {
	t.Helper()
	svc, err := order.NewService(
		NewStore(testPool),
		NewOrderRepository(testPool),
		discount.NewRegistry(),
		delivery.Flat{Fee: money.MustNew(3000)},
		tracenoop.NewTracerProvider(),
		metricnoop.NewMeterProvider(),
	)
	require.NoError(t, err)
	return svc
}

func TestCartItemRepository_AddIncrements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "cart@example.com")
	repo := NewCartItemRepository(testPool)

	first, err := repo.Add(ctx, f.member.ID, f.product.ID)
	require.NoError(t, err)
	second, err := repo.Add(ctx, f.member.ID, f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	item, err := repo.FindByID(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity())
	assert.Equal(t, int64(20000), item.TotalPrice().Int64())

	_, err = repo.FindAllByIDs(ctx, []int64{first, -1})
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestCouponRepository_IssueTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "issue@example.com")
	repo := NewCouponRepository(testPool)

	require.NoError(t, repo.Upsert(ctx, coupon.Coupon{
		ID: 9001, Name: "10%", DiscountType: discount.Percentage, Value: decimal.NewFromInt(10),
	}))

	mc, err := repo.Issue(ctx, f.member.ID, 9001)
	require.NoError(t, err)
	assert.False(t, mc.Used())
	assert.Equal(t, discount.Percentage, mc.Coupon().DiscountType)

	_, err = repo.Issue(ctx, f.member.ID, 9001)
	require.ErrorIs(t, err, coupon.ErrAlreadyIssued)
}

func TestPlace_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "roundtrip@example.com")
	carts := NewCartItemRepository(testPool)
	coupons := NewCouponRepository(testPool)

	cartID, err := carts.Add(ctx, f.member.ID, f.product.ID)
	require.NoError(t, err)
	require.NoError(t, coupons.Upsert(ctx, coupon.Coupon{
		ID: 9002, Name: "1000 off", DiscountType: discount.FixedAmount, Value: decimal.NewFromInt(1000),
	}))
	mc, err := coupons.Issue(ctx, f.member.ID, 9002)
	require.NoError(t, err)

	svc := newOrderService(t)
	placed, err := svc.Place(ctx, f.member, order.PlaceRequest{
		CartItems: []order.RequestedItem{{CartItemID: cartID, Quantity: 1, Price: f.product.Price}},
		CouponIDs: []int64{mc.ID()},
	})
	require.NoError(t, err)

	got, err := svc.Find(ctx, f.member, placed.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.OriginalPrice().Int64())
	assert.Equal(t, int64(9000), got.ActualPrice().Int64())
	assert.Equal(t, int64(3000), got.DeliveryFee().Int64())
	require.Len(t, got.Items(), 1)
	assert.Equal(t, "chicken", got.Items()[0].Name)
	require.Len(t, got.Coupons(), 1)
	saved, ok := got.Coupons()[0].DiscountedPrice()
	require.True(t, ok)
	assert.Equal(t, int64(1000), saved.Int64())

	_, err = carts.FindByID(ctx, cartID)
	require.ErrorIs(t, err, cart.ErrNotFound, "ordered cart item is removed")

	unused, err := coupons.FindByMemberID(ctx, f.member.ID)
	require.NoError(t, err)
	assert.Empty(t, unused)

	all, err := svc.FindAll(ctx, f.member)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPlace_ConcurrentOrdersShareOneCoupon(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "race@example.com")
	carts := NewCartItemRepository(testPool)
	coupons := NewCouponRepository(testPool)

	other := product.Product{Name: "pizza", Price: money.MustNew(20000)}
	var err error
	other.ID, err = NewProductRepository(testPool).Create(ctx, other)
	require.NoError(t, err)

	cartA, err := carts.Add(ctx, f.member.ID, f.product.ID)
	require.NoError(t, err)
	cartB, err := carts.Add(ctx, f.member.ID, other.ID)
	require.NoError(t, err)

	require.NoError(t, coupons.Upsert(ctx, coupon.Coupon{
		ID: 9003, Name: "500 off", DiscountType: discount.FixedAmount, Value: decimal.NewFromInt(500),
	}))
	mc, err := coupons.Issue(ctx, f.member.ID, 9003)
	require.NoError(t, err)

	svc := newOrderService(t)
	requests := []order.PlaceRequest{
		{
			CartItems: []order.RequestedItem{{CartItemID: cartA, Quantity: 1, Price: f.product.Price}},
			CouponIDs: []int64{mc.ID()},
		},
		{
			CartItems: []order.RequestedItem{{CartItemID: cartB, Quantity: 1, Price: other.Price}},
			CouponIDs: []int64{mc.ID()},
		},
	}

	var (
		wg   sync.WaitGroup
		errs = make([]error, len(requests))
	)
	for i, req := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Place(ctx, f.member, req)
		}()
	}
	wg.Wait()

	var succeeded, alreadyUsed int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, coupon.ErrAlreadyUsed):
			alreadyUsed++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, alreadyUsed)

	remaining, err := carts.FindByMemberID(ctx, f.member.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1, "the losing order keeps its cart item")
}

func TestCouponRepository_CopyIssue(t *testing.T) {
	ctx := context.Background()
	a := newFixture(t, "copy-a@example.com")
	b := newFixture(t, "copy-b@example.com")
	repo := NewCouponRepository(testPool)

	require.NoError(t, repo.Upsert(ctx, coupon.Coupon{
		ID: 9004, Name: "copied", DiscountType: discount.FixedAmount, Value: decimal.NewFromInt(100),
	}))

	n, err := repo.CopyIssue(ctx, 9004, []int64{a.member.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.CopyIssue(ctx, 9004, []int64{b.member.ID, a.member.ID})
	require.ErrorIs(t, err, coupon.ErrAlreadyIssued)

	holders, err := repo.Holders(ctx, 9004)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.member.ID}, holders, "a failed copy writes nothing")

	n, err = repo.IssueMany(ctx, 9004, []int64{b.member.ID, a.member.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRepositories_NotFoundKeepsContext(t *testing.T) {
	ctx := context.Background()

	_, err := NewProductRepository(testPool).FindByID(ctx, -7)
	require.ErrorIs(t, err, product.ErrNotFound)
	assert.Contains(t, err.Error(), "product -7")

	_, err = NewCouponRepository(testPool).FindByID(ctx, -8)
	require.ErrorIs(t, err, coupon.ErrNotFound)
	assert.Contains(t, err.Error(), "coupon -8")

	_, err = NewOrderRepository(testPool).FindByID(ctx, -9)
	require.ErrorIs(t, err, order.ErrNotFound)
	assert.Contains(t, err.Error(), "order -9")
}
