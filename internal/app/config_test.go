package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
)

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/shop")
	t.Setenv("REDIS_URL", "redis://:secret@cache:6380/2")
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: defaultAddr}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://u:p@db:5432/shop", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)

	opts, err := cfg.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
}

func TestApplyPlatformDefaults_ExplicitWins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform")
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit"}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://explicit", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestRedisOptions_Fields(t *testing.T) {
	cfg := Config{Redis: RedisConfig{Addr: "localhost:6379", Password: "pw", DB: 1}}
	opts, err := cfg.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 1, opts.DB)

	cfg.Redis.URL = "http://not-redis"
	_, err = cfg.RedisOptions()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{DatabaseURL: "postgres://x", OrderRateLimit: RateLimitConfig{Max: 1, Window: time.Minute}}
	require.NoError(t, valid.validate())

	for name, mutate := range map[string]func(*Config){
		"NoDatabase":  func(c *Config) { c.DatabaseURL = "" },
		"NegativeFee": func(c *Config) { c.Delivery.Fee = -1 },
		"NoWindow":    func(c *Config) { c.OrderRateLimit.Window = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			require.Error(t, cfg.validate())
		})
	}
}

func TestDeliveryPolicy(t *testing.T) {
	cfg := Config{Delivery: DeliveryConfig{Fee: 3000, FreeThreshold: 50000}}
	p := cfg.DeliveryPolicy()

	assert.Equal(t, int64(3000), p.FeeFor(money.MustNew(49999)).Int64())
	assert.True(t, p.FeeFor(money.MustNew(50000)).IsZero())

	cfg.Delivery.FreeThreshold = 0
	assert.Equal(t, int64(3000), cfg.DeliveryPolicy().FeeFor(money.MustNew(1_000_000)).Int64())
}
