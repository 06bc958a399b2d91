package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DBSource string
	Port     string
	Env      string
	LogLevel slog.Level

	GatewaySecretKey string
	GatewayBaseURL   string
	GatewayTimeout   time.Duration
	// WebhookSecret may be empty outside production; the webhook endpoint then
	// refuses every delivery.
	WebhookSecret string

	PublicBaseURL string
	Currency      string
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PAYSTACK_BASE_URL", "https://api.paystack.co")
	v.SetDefault("GATEWAY_TIMEOUT", "10s")
	v.SetDefault("CHECKOUT_CURRENCY", "NGN")

	dbSource := v.GetString("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	secretKey := v.GetString("PAYSTACK_SECRET_KEY")
	if secretKey == "" {
		return nil, fmt.Errorf("PAYSTACK_SECRET_KEY environment variable is required")
	}

	port := v.GetString("SERVER_PORT")
	env := v.GetString("ENVIRONMENT")

	// Callback URLs differ between deployments; only local development gets a default.
	publicBaseURL := strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/")
	if publicBaseURL == "" {
		if env != "development" {
			return nil, fmt.Errorf("PUBLIC_BASE_URL environment variable is required in %s", env)
		}
		publicBaseURL = "http://localhost:" + port
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	timeout := v.GetDuration("GATEWAY_TIMEOUT")
	if timeout <= 0 {
		return nil, fmt.Errorf("GATEWAY_TIMEOUT must be positive, got %q", v.GetString("GATEWAY_TIMEOUT"))
	}

	cfg := &Config{
		DBSource:         dbSource,
		Port:             port,
		Env:              env,
		LogLevel:         level,
		GatewaySecretKey: secretKey,
		GatewayBaseURL:   strings.TrimRight(v.GetString("PAYSTACK_BASE_URL"), "/"),
		GatewayTimeout:   timeout,
		WebhookSecret:    v.GetString("PAYSTACK_WEBHOOK_SECRET"),
		PublicBaseURL:    publicBaseURL,
		Currency:         strings.ToUpper(v.GetString("CHECKOUT_CURRENCY")),
	}
	if cfg.IsProduction() && cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("PAYSTACK_WEBHOOK_SECRET environment variable is required in production")
	}
	return cfg, nil
}
