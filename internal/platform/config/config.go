package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process level configuration. Variable names follow the
// original deployment so existing environments keep working.
type Config struct {
	Addr        string
	Environment string
	LogLevel    string

	RedisURL    string
	DatabaseURL string

	KafkaBrokers string
	AuditTopic   string

	BootstrapAPIKey string
	AllowedAPIKeys  []string

	StripeAPIKey       string
	PayPalClientID     string
	PayPalClientSecret string
	PayPalMode         string

	ProviderTimeout time.Duration
	StoreTimeout    time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:               ":" + envOr("PORT", "3001"),
		Environment:        envOr("NODE_ENV", "development"),
		LogLevel:           envOr("LOG_LEVEL", "info"),
		RedisURL:           envOr("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		KafkaBrokers:       os.Getenv("KAFKA_BROKERS"),
		AuditTopic:         envOr("AUDIT_TOPIC", "paygate.audit"),
		BootstrapAPIKey:    os.Getenv("BOOTSTRAP_API_KEY"),
		StripeAPIKey:       os.Getenv("STRIPE_API_KEY"),
		PayPalClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
		PayPalMode:         envOr("PAYPAL_MODE", "sandbox"),
		ProviderTimeout:    durationOr("PROVIDER_TIMEOUT", 30*time.Second),
		StoreTimeout:       durationOr("STORE_TIMEOUT", 5*time.Second),
	}

	if keys := os.Getenv("ALLOWED_API_KEYS"); keys != "" {
		for _, k := range strings.Split(keys, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.AllowedAPIKeys = append(cfg.AllowedAPIKeys, k)
			}
		}
	}

	return cfg
}

// IsProduction reports whether the process runs in production mode.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
