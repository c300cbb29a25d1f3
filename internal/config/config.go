package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the commerce assistant service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// Conversation context window and cache bounds.
	ContextTTL      time.Duration
	SweepInterval   time.Duration
	MaxTurns        int
	MaxSearches     int
	MaxProductViews int

	// Shopify integration.
	WebhookSecret        string
	StorefrontShop       string
	StorefrontAPIVersion string
	StorefrontToken      string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "behold"),
		AllowAnyOrigin:       false,
		ContextTTL:           2 * time.Hour,
		SweepInterval:        60 * time.Minute,
		MaxTurns:             5,
		MaxSearches:          3,
		MaxProductViews:      10,
		WebhookSecret:        trimmedEnv("SHOPIFY_WEBHOOK_SECRET"),
		StorefrontShop:       trimmedEnv("SHOPIFY_SHOP"),
		StorefrontAPIVersion: envOrDefault("SHOPIFY_API_VERSION", "2025-07"),
		StorefrontToken:      trimmedEnv("SHOPIFY_STOREFRONT_TOKEN"),
		DatabaseURL:          trimmedEnv("DATABASE_URL"),
		ShutdownTimeout:      15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextTTL, err = durationFromEnv("APP_CONTEXT_TTL", cfg.ContextTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.SweepInterval, err = durationFromEnv("APP_CONTEXT_SWEEP_INTERVAL", cfg.SweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTurns, err = intFromEnv("APP_MAX_CONTEXT_TURNS", cfg.MaxTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxSearches, err = intFromEnv("APP_MAX_TRACKED_SEARCHES", cfg.MaxSearches)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxProductViews, err = intFromEnv("APP_MAX_TRACKED_PRODUCT_VIEWS", cfg.MaxProductViews)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.ContextTTL < time.Minute {
		return Config{}, fmt.Errorf("APP_CONTEXT_TTL must be at least 1m")
	}
	if cfg.SweepInterval < time.Second {
		return Config{}, fmt.Errorf("APP_CONTEXT_SWEEP_INTERVAL must be at least 1s")
	}
	if cfg.MaxTurns <= 0 {
		return Config{}, fmt.Errorf("APP_MAX_CONTEXT_TURNS must be positive")
	}
	if cfg.MaxSearches <= 0 {
		return Config{}, fmt.Errorf("APP_MAX_TRACKED_SEARCHES must be positive")
	}
	if cfg.MaxProductViews <= 0 {
		return Config{}, fmt.Errorf("APP_MAX_TRACKED_PRODUCT_VIEWS must be positive")
	}
	// Refusing to start without a secret beats deciding per request whether
	// to accept unverified webhooks.
	if cfg.WebhookSecret == "" {
		return Config{}, fmt.Errorf("SHOPIFY_WEBHOOK_SECRET must be set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
