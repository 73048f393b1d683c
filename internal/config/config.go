package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	PricingFile string `env:"PRICING_FILE" envDefault:"pricing.yaml" validate:"required"`

	StripeSecretKey  string `env:"STRIPE_SECRET_KEY"`
	StripeSuccessURL string `env:"STRIPE_SUCCESS_URL" validate:"omitempty,url"`
	StripeCancelURL  string `env:"STRIPE_CANCEL_URL" validate:"omitempty,url"`

	EmailProvider string `env:"EMAIL_PROVIDER"`
	ResendAPIKey  string `env:"RESEND_API_KEY"`
	EmailFrom     string `env:"EMAIL_FROM" validate:"omitempty,email"`

	AdminJWTSecret string `env:"ADMIN_JWT_SECRET,required" validate:"required,min=32"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`

	LowStockThreshold int `env:"LOW_STOCK_THRESHOLD" envDefault:"5" validate:"gte=0"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if c.StripeEnabled() {
		if strings.TrimSpace(c.StripeSuccessURL) == "" || strings.TrimSpace(c.StripeCancelURL) == "" {
			return fmt.Errorf("STRIPE_SUCCESS_URL and STRIPE_CANCEL_URL are required when STRIPE_SECRET_KEY is set")
		}
	}

	if c.EmailEnabled() {
		if strings.TrimSpace(c.ResendAPIKey) == "" || strings.TrimSpace(c.EmailFrom) == "" {
			return fmt.Errorf("RESEND_API_KEY and EMAIL_FROM are required when EMAIL_PROVIDER is set")
		}
	}

	return nil
}

// StripeEnabled reports whether online checkout can be offered. Without it
// the store still takes cash-on-delivery orders.
func (c *Config) StripeEnabled() bool {
	return strings.TrimSpace(c.StripeSecretKey) != ""
}

// EmailEnabled reports whether order emails go out; unset means they are
// silently dropped.
func (c *Config) EmailEnabled() bool {
	return strings.TrimSpace(c.EmailProvider) != ""
}
