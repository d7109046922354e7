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
	AppEnv      string
	LogLevel    string
	Port        string
	DatabaseURL string
	DBMaxConns  int32
	JWTSecret   string
	AppURL      string

	StripeSecretKey       string
	StripeWebhookSecret   string
	StripePriceIDs        map[string]string
	PaymentCurrency       string
	WebhookBodyLimitBytes int64

	TrialDays      int
	LoginTokenTTL  time.Duration
	SessionTTL     time.Duration
	FinalizeWindow time.Duration

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
	MigrateOnStart     bool

	SweepInterval      time.Duration
	SweepBatch         int
	SweepResyncBackoff time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  int32(getEnvInt("DB_MAX_CONNS", 10)),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		AppURL:      strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePriceIDs: map[string]string{
			"pro":        os.Getenv("STRIPE_PRICE_PRO"),
			"enterprise": os.Getenv("STRIPE_PRICE_ENTERPRISE"),
		},
		PaymentCurrency:       strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),
		WebhookBodyLimitBytes: int64(getEnvInt("WEBHOOK_BODY_LIMIT_BYTES", 65536)),

		TrialDays:      getEnvInt("TRIAL_DAYS", 15),
		LoginTokenTTL:  time.Second * time.Duration(getEnvInt("LOGIN_TOKEN_TTL_SECONDS", 300)),
		SessionTTL:     time.Hour * time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)),
		FinalizeWindow: time.Hour * time.Duration(getEnvInt("CHECKOUT_FINALIZE_WINDOW_HOURS", 24)),

		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		MigrateOnStart:     getEnvBool("MIGRATE_ON_START", false),

		SweepInterval:      time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 300)),
		SweepBatch:         getEnvInt("SWEEP_BATCH", 50),
		SweepResyncBackoff: time.Minute * time.Duration(getEnvInt("SWEEP_RESYNC_BACKOFF_MINUTES", 360)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.LoginTokenTTL <= 0 {
		return nil, fmt.Errorf("LOGIN_TOKEN_TTL_SECONDS must be positive")
	}

	if cfg.TrialDays < 0 {
		return nil, fmt.Errorf("TRIAL_DAYS must not be negative")
	}

	return cfg, nil
}

// PriceID returns the configured processor price for a paid plan.
func (c *Config) PriceID(plan string) string {
	if c == nil {
		return ""
	}
	return c.StripePriceIDs[plan]
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

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
