// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port        int `yaml:"port"`
	MetricsPort int `yaml:"metrics_port"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type SecurityConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	// PlanIDs maps UPPERCASED internal plan ids to Stripe plan/price ids,
	// required for recurring plans only.
	PlanIDs map[string]string `yaml:"plan_ids"`
}

type LemonSqueezyConfig struct {
	APIKey        string `yaml:"api_key"`
	StoreID       string `yaml:"store_id"`
	SigningSecret string `yaml:"signing_secret"`
	BaseURL       string `yaml:"base_url"`
	// VariantIDs maps UPPERCASED internal plan ids to provider variant ids.
	VariantIDs map[string]string `yaml:"variant_ids"`
}

type PaymentConfig struct {
	DefaultProvider  string             `yaml:"default_provider"`
	EnabledProviders []string           `yaml:"enabled_providers"`
	CallTimeout      time.Duration      `yaml:"call_timeout"`
	Stripe           StripeConfig       `yaml:"stripe"`
	LemonSqueezy     LemonSqueezyConfig `yaml:"lemonsqueezy"`
}

type PlanConfig struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	PriceMinorUnits int64  `yaml:"price_minor_units"`
	CreditGrant     int64  `yaml:"credit_grant"`
	BillingType     string `yaml:"billing_type"` // one_time | recurring
}

type WorkerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Security SecurityConfig `yaml:"security"`
	Payment  PaymentConfig  `yaml:"payment"`
	Plans    []PlanConfig   `yaml:"plans"`
	Worker   WorkerConfig   `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Security.JWTSecret == "" {
		return nil, errors.New("security.jwt_secret is required")
	}
	if len(cfg.Plans) == 0 {
		return nil, errors.New("at least one plan is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// applyEnvOverrides lets secrets come from the environment so the YAML file
// can be committed without them.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		c.Security.JWTSecret = v
	}
	if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
		c.Payment.Stripe.SecretKey = v
	}
	if v := os.Getenv("STRIPE_WEBHOOK_SECRET"); v != "" {
		c.Payment.Stripe.WebhookSecret = v
	}
	if v := os.Getenv("LEMONSQUEEZY_API_KEY"); v != "" {
		c.Payment.LemonSqueezy.APIKey = v
	}
	if v := os.Getenv("LEMONSQUEEZY_SIGNING_SECRET"); v != "" {
		c.Payment.LemonSqueezy.SigningSecret = v
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.MetricsPort <= 0 {
		c.Server.MetricsPort = 9090
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = time.Hour
	}
	if c.Security.TokenTTL <= 0 {
		c.Security.TokenTTL = 30 * time.Minute
	}
	if c.Payment.CallTimeout <= 0 {
		c.Payment.CallTimeout = 15 * time.Second
	}
	if c.Payment.DefaultProvider == "" && len(c.Payment.EnabledProviders) > 0 {
		c.Payment.DefaultProvider = c.Payment.EnabledProviders[0]
	}
	if len(c.Payment.EnabledProviders) == 0 {
		c.Payment.EnabledProviders = []string{"mock"}
		if c.Payment.DefaultProvider == "" {
			c.Payment.DefaultProvider = "mock"
		}
	}
	if c.Payment.LemonSqueezy.BaseURL == "" {
		c.Payment.LemonSqueezy.BaseURL = "https://api.lemonsqueezy.com"
	}
	if c.Worker.Interval <= 0 {
		c.Worker.Interval = time.Minute
	}
	if c.Worker.StaleAfter <= 0 {
		c.Worker.StaleAfter = 10 * time.Minute
	}
}
