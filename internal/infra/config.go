package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv               string
	Port                 string
	DatabaseURL          string
	JWTSecret            string
	PaymentWebhookSecret string
	ProviderAPIKey       string
	ProviderBaseURL      string
	providerOverrides    map[string]string
	GeoIPDBPath          string
	DefaultLocale        string
	ProviderTimeout      time.Duration
	HTTPReadTimeout      time.Duration
	HTTPWriteTimeout     time.Duration
	HTTPIdleTimeout      time.Duration
	RateLimitPerMin      int
	DBMaxConns           int
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. Required entries are validated once here, not
// checked ad hoc at call time.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:               getEnv("APP_ENV", "development"),
		Port:                 getEnv("PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		ProviderAPIKey:       os.Getenv("PROVIDER_API_KEY"),
		ProviderBaseURL:      strings.TrimRight(os.Getenv("PROVIDER_BASE_URL"), "/"),
		providerOverrides:    map[string]string{},
		GeoIPDBPath:          os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:        getEnv("DEFAULT_LOCALE", "en"),
		ProviderTimeout:      time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 30)),
		HTTPReadTimeout:      time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:     time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:      time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:      getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		DBMaxConns:           getEnvInt("DB_MAX_CONNS", 10),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.PaymentWebhookSecret == "" {
		return nil, fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required")
	}
	if cfg.ProviderAPIKey == "" {
		return nil, fmt.Errorf("PROVIDER_API_KEY is required")
	}
	if cfg.ProviderBaseURL == "" {
		return nil, fmt.Errorf("PROVIDER_BASE_URL is required")
	}

	return cfg, nil
}

// ProviderEndpoint resolves the endpoint for a registry key. A per-kind
// PROVIDER_ENDPOINT_<KEY> variable overrides the base URL convention.
func (c *Config) ProviderEndpoint(key string) string {
	if c.providerOverrides == nil {
		c.providerOverrides = map[string]string{}
	}
	if v, ok := c.providerOverrides[key]; ok {
		return v
	}
	envKey := "PROVIDER_ENDPOINT_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	if v, ok := os.LookupEnv(envKey); ok && v != "" {
		v = strings.TrimRight(v, "/")
		c.providerOverrides[key] = v
		return v
	}
	endpoint := c.ProviderBaseURL + "/" + key
	c.providerOverrides[key] = endpoint
	return endpoint
}

// ProviderEndpoints resolves endpoints for every given registry key.
func (c *Config) ProviderEndpoints(keys []string) map[string]string {
	endpoints := make(map[string]string, len(keys))
	for _, key := range keys {
		endpoints[key] = c.ProviderEndpoint(key)
	}
	return endpoints
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
