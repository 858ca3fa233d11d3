// Package app wires the API server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pilyang/jwp-shopping-order/internal/domain/cart"
	"github.com/pilyang/jwp-shopping-order/internal/domain/coupon"
	"github.com/pilyang/jwp-shopping-order/internal/domain/discount"
	"github.com/pilyang/jwp-shopping-order/internal/domain/member"
	"github.com/pilyang/jwp-shopping-order/internal/domain/order"
	"github.com/pilyang/jwp-shopping-order/internal/handler"
	"github.com/pilyang/jwp-shopping-order/internal/storage/cache"
	"github.com/pilyang/jwp-shopping-order/internal/storage/postgres"
	"github.com/pilyang/jwp-shopping-order/pkg/health"
	"github.com/pilyang/jwp-shopping-order/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		return errors.Wrap(err, "migrate")
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return err
	}
	rdb, err := cache.NewClient(ctx, redisOpts)
	if err != nil {
		return errors.Wrap(err, "connect redis")
	}
	defer func() { _ = rdb.Close() }()

	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.Add(health.Readiness, "redis", 2*time.Second, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	routes, err := newRouter(ctx, cfg, pool, rdb, healthSvc, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           routes,
	}
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newRouter builds the repositories and services over pool and rdb and
// returns the fully wrapped HTTP handler.
func newRouter(
	ctx context.Context,
	cfg *Config,
	pool *pgxpool.Pool,
	rdb *redis.Client,
	healthSvc *health.Health,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (http.Handler, error) {
	// Repositories.
	products := postgres.NewProductRepository(pool)
	members := postgres.NewMemberRepository(pool)
	cartItems := postgres.NewCartItemRepository(pool)
	coupons := postgres.NewCouponRepository(pool)
	orders := postgres.NewOrderRepository(pool)

	// Domain services.
	orderSvc, err := order.NewService(
		postgres.NewStore(pool),
		orders,
		discount.NewRegistry(),
		cfg.DeliveryPolicy(),
		tp,
		mp,
	)
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}

	h := handler.New(
		handler.Config{OrderRateLimit: handler.RateLimit{
			Max:    cfg.OrderRateLimit.Max,
			Window: cfg.OrderRateLimit.Window,
		}},
		handler.Deps{
			Products: products,
			Carts:    cart.NewService(cartItems, products),
			Coupons:  coupon.NewService(coupons),
			Placer: order.NewIdempotent(orderSvc, cache.NewIdempotencyStore(
				rdb, cfg.Redis.IdempotencyTTL, cfg.Redis.IdempotencyLockTTL,
			)),
			Orders:   orderSvc,
			Auth:     member.NewAuthenticator(members),
		},
	)

	r := chi.NewRouter()
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Group(func(r chi.Router) {
		r.Use(httpmiddleware.LogRequests())
		h.Register(ctx, r)
	})

	return httpmiddleware.Wrap(r,
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.RequestID(),
		httpmiddleware.Recovery(),
		httpmiddleware.Instrument("shop-api", tp, mp),
	), nil
}
