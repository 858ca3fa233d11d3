package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/pilyang/jwp-shopping-order/internal/domain/delivery"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr           string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL    string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Delivery       DeliveryConfig
	Redis          RedisConfig
	OrderRateLimit RateLimitConfig
	Graceful       GracefulConfig
}

// DeliveryConfig sets the delivery fee charged on the discounted item total.
type DeliveryConfig struct {
	Fee           int64 `default:"3000" usage:"Flat delivery fee"`
	FreeThreshold int64 `default:"0" usage:"Discounted total from which delivery is free; 0 disables" flag:"free-delivery-threshold"`
}

// RedisConfig locates the idempotency store.
type RedisConfig struct {
	Addr               string        `default:"localhost:6379" usage:"Redis address"`
	Password           string        `usage:"Redis password"`
	DB                 int           `default:"0" usage:"Redis database"`
	URL                string        `usage:"Redis URL; overrides Addr, Password and DB (SHOP_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	IdempotencyTTL     time.Duration `default:"24h" usage:"How long idempotency keys are remembered" flag:"idempotency-ttl"`
	IdempotencyLockTTL time.Duration `default:"30s" usage:"How long an unreleased in-flight claim blocks its key" flag:"idempotency-lock-ttl"`
}

// RateLimitConfig caps order placement per member.
type RateLimitConfig struct {
	Max    int           `default:"10" usage:"Max orders per member per window; 0 disables"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML files,
// then applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps DATABASE_URL, REDIS_URL and PORT, as set by
// hosting platforms, onto the SHOP_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.URL == "" {
		c.Redis.URL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}
	if c.Delivery.Fee < 0 || c.Delivery.FreeThreshold < 0 {
		return errors.New("delivery fee and threshold must not be negative")
	}
	if c.OrderRateLimit.Max > 0 && c.OrderRateLimit.Window <= 0 {
		return errors.New("order rate limit window must be positive")
	}
	return nil
}

// DeliveryPolicy builds the configured delivery policy.
func (c *Config) DeliveryPolicy() delivery.Policy {
	return delivery.FromConfig(money.MustNew(c.Delivery.Fee), money.MustNew(c.Delivery.FreeThreshold))
}

// RedisOptions returns client options, preferring the URL form.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.Redis.URL != "" {
		opts, err := redis.ParseURL(c.Redis.URL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis URL")
		}
		return opts, nil
	}
	return &redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}, nil
}
