package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string

	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	RefreshCookieName string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite

	GuestListTTL     time.Duration
	CatalogCacheTTL  time.Duration
	SettingsCacheTTL time.Duration
	ReportsCacheTTL  time.Duration
	IdempotencyTTL   time.Duration
	CheckoutTTL      time.Duration
	LockTTL          time.Duration

	PaymentGateway   string
	PaymentKeyID     string
	PaymentKeySecret string
	PaymentBaseURL   string
	WebhookSecret    string

	CurrencyCode         string
	DefaultGSTPercentage float64

	BodyLimitBytes  int64
	RateLimitAuth   string
	RateLimitVerify string

	MigrateOnStart    bool
	WorkerConcurrency int
	NotifyEmailFrom   string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		AccessTokenTTL:    parseDuration(k.String("ACCESS_TOKEN_TTL"), "15m"),
		RefreshTokenTTL:   parseDuration(k.String("REFRESH_TOKEN_TTL"), "720h"),
		RefreshCookieName: valueOrDefault(k.String("REFRESH_COOKIE_NAME"), "refresh_token"),
		CookieDomain:      strings.TrimSpace(k.String("COOKIE_DOMAIN")),
		CookieSecure:      parseBool(k.String("COOKIE_SECURE")),
		CookieSameSite:    parseSameSite(k.String("COOKIE_SAMESITE")),

		GuestListTTL:     parseDuration(k.String("GUEST_LIST_TTL"), "720h"),
		CatalogCacheTTL:  parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		SettingsCacheTTL: parseDuration(k.String("SETTINGS_CACHE_TTL"), "5m"),
		ReportsCacheTTL:  parseDuration(k.String("REPORTS_CACHE_TTL"), "2m"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CheckoutTTL:      parseDuration(k.String("CHECKOUT_TTL"), "30m"),
		LockTTL:          parseDuration(k.String("LOCK_TTL"), "10s"),

		PaymentGateway:   strings.ToLower(valueOrDefault(k.String("PAYMENT_GATEWAY"), "mock")),
		PaymentKeyID:     k.String("PAYMENT_KEY_ID"),
		PaymentKeySecret: k.String("PAYMENT_KEY_SECRET"),
		PaymentBaseURL:   valueOrDefault(k.String("PAYMENT_BASE_URL"), "https://api.razorpay.com"),
		WebhookSecret:    k.String("PAYMENT_WEBHOOK_SECRET"),

		CurrencyCode:         strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "INR")),
		DefaultGSTPercentage: parseFloat(k.String("DEFAULT_GST_PERCENTAGE"), 18),

		BodyLimitBytes:  int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		RateLimitAuth:   valueOrDefault(k.String("RATE_LIMIT_AUTH"), "10-M"),
		RateLimitVerify: valueOrDefault(k.String("RATE_LIMIT_VERIFY"), "20-M"),

		MigrateOnStart:    parseBool(k.String("MIGRATE_ON_START")),
		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 5),
		NotifyEmailFrom:   valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "orders@parfum.local"),

		SMTPHost:     strings.TrimSpace(k.String("SMTP_HOST")),
		SMTPPort:     parseInt(k.String("SMTP_PORT"), 587),
		SMTPUsername: k.String("SMTP_USERNAME"),
		SMTPPassword: k.String("SMTP_PASSWORD"),
	}

	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	switch cfg.PaymentGateway {
	case "mock":
	case "razorpay":
		if cfg.PaymentKeyID == "" || cfg.PaymentKeySecret == "" {
			return nil, errors.New("PAYMENT_KEY_ID and PAYMENT_KEY_SECRET are required for the razorpay gateway")
		}
	default:
		return nil, fmt.Errorf("unknown PAYMENT_GATEWAY %q", cfg.PaymentGateway)
	}
	if cfg.PaymentKeySecret == "" {
		// the mock gateway signs with the same secret the verifier checks
		cfg.PaymentKeySecret = cfg.JWTSecret
	}
	if cfg.WebhookSecret == "" {
		cfg.WebhookSecret = cfg.PaymentKeySecret
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
