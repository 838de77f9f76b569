package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetDurationEnv returns a duration environment variable or a default value.
func GetDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		log.Printf("invalid duration for %s=%q, using %s", key, val, defaultVal)
	}
	return defaultVal
}

// GetDecimalEnv returns a decimal environment variable or a default value.
func GetDecimalEnv(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
		log.Printf("invalid decimal for %s=%q, using %s", key, val, defaultVal)
	}
	return defaultVal
}

// IsProduction checks if the app runs in production mode.
func IsProduction() bool {
	return GetEnv("ENV", "development") == "production"
}

// Settings groups everything the checkout and settlement services read from
// the environment.
type Settings struct {
	Port        string
	CORSOrigins string
	JWTSecret   string

	StripeSecretKey     string
	StripeWebhookSecret string
	SuccessURL          string
	CancelURL           string
	ProcessorTimeout    time.Duration

	ExchangeRateURL      string
	ExchangeRateTimeout  time.Duration
	ExchangeRateCacheTTL time.Duration
	FallbackBRLRate      decimal.Decimal
	RateMargin           decimal.Decimal

	ClaimStaleAfter      time.Duration
	ReferralRewardPoints int64

	NotificationWebhookURL string
	NotificationTimeout    time.Duration
	AdminUserID            uint

	PricingFile string
}

// Load reads Settings from the environment, applying defaults.
func Load() *Settings {
	return &Settings{
		Port:        GetEnv("PORT", "3000"),
		CORSOrigins: GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		JWTSecret:   GetEnv("JWT_SECRET", "scholarpay"),

		StripeSecretKey:     GetEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		SuccessURL:          GetEnv("CHECKOUT_SUCCESS_URL", "http://localhost:5173/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:           GetEnv("CHECKOUT_CANCEL_URL", "http://localhost:5173/checkout/cancel"),
		ProcessorTimeout:    GetDurationEnv("PROCESSOR_TIMEOUT", 15*time.Second),

		ExchangeRateURL:      GetEnv("EXCHANGE_RATE_URL", "https://open.er-api.com/v6/latest"),
		ExchangeRateTimeout:  GetDurationEnv("EXCHANGE_RATE_TIMEOUT", 5*time.Second),
		ExchangeRateCacheTTL: GetDurationEnv("EXCHANGE_RATE_CACHE_TTL", 10*time.Minute),
		FallbackBRLRate:      GetDecimalEnv("EXCHANGE_RATE_FALLBACK_BRL", decimal.RequireFromString("5.60")),
		RateMargin:           GetDecimalEnv("EXCHANGE_RATE_MARGIN", decimal.RequireFromString("0.04")),

		ClaimStaleAfter:      GetDurationEnv("SETTLEMENT_CLAIM_STALE_AFTER", 5*time.Second),
		ReferralRewardPoints: int64(GetIntEnv("REFERRAL_REWARD_POINTS", 180)),

		NotificationWebhookURL: GetEnv("NOTIFICATION_WEBHOOK_URL", ""),
		NotificationTimeout:    GetDurationEnv("NOTIFICATION_TIMEOUT", 10*time.Second),
		AdminUserID:            uint(GetIntEnv("ADMIN_USER_ID", 0)),

		PricingFile: GetEnv("PRICING_FILE", ""),
	}
}
