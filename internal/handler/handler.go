// Package handler exposes the shop over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pilyang/jwp-shopping-order/internal/domain/cart"
	"github.com/pilyang/jwp-shopping-order/internal/domain/coupon"
	"github.com/pilyang/jwp-shopping-order/internal/domain/member"
	"github.com/pilyang/jwp-shopping-order/internal/domain/order"
	"github.com/pilyang/jwp-shopping-order/internal/domain/product"
	"github.com/pilyang/jwp-shopping-order/pkg/httpmiddleware"
)

// CartService manages a member's cart.
type CartService interface {
	List(ctx context.Context, m member.Member) ([]*cart.CartItem, error)
	Add(ctx context.Context, m member.Member, productID int64) (int64, error)
	UpdateQuantity(ctx context.Context, m member.Member, id int64, quantity int) error
	Remove(ctx context.Context, m member.Member, id int64) error
}

// CouponService serves the coupon catalog and member coupons.
type CouponService interface {
	List(ctx context.Context) ([]coupon.Coupon, error)
	MemberCoupons(ctx context.Context, m member.Member) ([]*coupon.MemberCoupon, error)
	Issue(ctx context.Context, m member.Member, couponID int64) (*coupon.MemberCoupon, error)
}

// OrderPlacer places orders, deduplicating by idempotency key.
type OrderPlacer interface {
	PlaceOnce(ctx context.Context, m member.Member, key string, req order.PlaceRequest) (int64, bool, error)
}

// OrderReader reads placed orders.
type OrderReader interface {
	Find(ctx context.Context, m member.Member, id int64) (*order.Order, error)
	FindAll(ctx context.Context, m member.Member) ([]*order.Order, error)
}

// Authenticator resolves Basic credentials to a member.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*member.Member, error)
}

// Deps are the services behind the API.
type Deps struct {
	Products product.Repository
	Carts    CartService
	Coupons  CouponService
	Placer   OrderPlacer
	Orders   OrderReader
	Auth     Authenticator
}

// RateLimit is a per-member request budget.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// Config holds non-dependency settings.
type Config struct {
	// OrderRateLimit caps POST /orders per member. Zero Max disables it.
	OrderRateLimit RateLimit
}

// Handler serves the REST API.
type Handler struct {
	Deps
	cfg      Config
	validate *validator.Validate
}

// New returns a Handler.
func New(cfg Config, deps Deps) *Handler {
	return &Handler{
		Deps:     deps,
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register mounts every route on r. ctx bounds background work such as rate
// limiter eviction.
func (h *Handler) Register(ctx context.Context, r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Post("/products", h.createProduct)
	r.Put("/products/{id}", h.updateProduct)
	r.Delete("/products/{id}", h.deleteProduct)
	r.Get("/coupons", h.listCoupons)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Get("/cart-items", h.listCartItems)
		r.Post("/cart-items", h.addCartItem)
		r.Patch("/cart-items/{id}", h.updateCartItem)
		r.Delete("/cart-items/{id}", h.removeCartItem)

		r.Get("/members/me/coupons", h.listMemberCoupons)
		r.Post("/members/me/coupons", h.issueCoupon)

		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.With(h.orderRateLimit(ctx)).Post("/orders", h.placeOrder)
	})
}

func (h *Handler) orderRateLimit(ctx context.Context) func(http.Handler) http.Handler {
	lim := h.cfg.OrderRateLimit
	if lim.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
		Max:     lim.Max,
		Window:  lim.Window,
		KeyFunc: memberKey,
	})
}
