package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/couponables/internal/domain/coupon"
)

// Storage backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (COUPON_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Store        string `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (COUPON_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
	AdminKey     string `usage:"API key granted manage_coupons and redeem_coupons on startup" flag:"admin-key"`
	Calc         CalcConfig
	Generator    GeneratorConfig
	Notify       NotifyConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// CalcConfig controls how discounts are rounded and floored.
type CalcConfig struct {
	Precision int32  `default:"2" usage:"Decimal places of calculated amounts"`
	RoundMode string `default:"half_up" usage:"Rounding mode: half_up, half_down, half_even, half_odd" flag:"round-mode"`
	Floor     string `default:"0" usage:"Lowest amount a calculation may return"`
}

// GeneratorConfig controls random code generation.
type GeneratorConfig struct {
	CodeLength  int `default:"7" usage:"Length of generated codes" flag:"code-length"`
	MaxAttempts int `default:"5" usage:"Attempts to find a free code" flag:"max-attempts"`
}

// NotifyConfig controls where coupon events go.
type NotifyConfig struct {
	RedisURL  string `usage:"Redis URL for event publishing (COUPON_NOTIFY_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	Channel   string `default:"couponables.events" usage:"Redis channel for events"`
	QueueSize int    `default:"1024" usage:"Pending events before new ones are dropped" flag:"queue-size"`
	Workers   int    `default:"4" usage:"Event delivery workers"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from flags, environment variables and YAML
// config files, then applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "COUPON",
		Files:     []string{"config.yaml", "/etc/couponables/config.yaml"},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	ac.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the standard DATABASE_URL, REDIS_URL and PORT
// variables set by hosting platforms.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Notify.RedisURL == "" {
		c.Notify.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set COUPON_DATABASE_URL or DATABASE_URL")
		}
	case StoreMemory:
	default:
		return errors.Errorf("unknown store %q", c.Store)
	}
	if _, err := c.Calc.Build(); err != nil {
		return err
	}
	if c.Generator.CodeLength <= 0 {
		return errors.New("code length must be positive")
	}
	return nil
}

// Build converts c to the calculator settings.
func (c CalcConfig) Build() (coupon.CalcConfig, error) {
	if c.Precision < 0 {
		return coupon.CalcConfig{}, errors.Errorf("calc precision must not be negative, got %d", c.Precision)
	}
	mode, err := coupon.ParseRoundingMode(c.RoundMode)
	if err != nil {
		return coupon.CalcConfig{}, errors.Wrap(err, "calc")
	}
	floor := decimal.Zero
	if c.Floor != "" {
		floor, err = decimal.NewFromString(c.Floor)
		if err != nil {
			return coupon.CalcConfig{}, errors.Wrap(err, "calc floor")
		}
	}
	return coupon.CalcConfig{
		Precision: c.Precision,
		Mode:      mode,
		Floor:     floor,
	}, nil
}
