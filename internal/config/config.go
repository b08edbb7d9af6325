// Package config handles application configuration.
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string
	// IdleShutdownTimeout enables scale-to-zero: the server exits after
	// being idle this long. Zero disables it.
	IdleShutdownTimeout time.Duration

	// Database
	DatabaseURL string

	// Authentication. Tokens are issued by the platform's main application
	// and verified here with the shared HS256 secret.
	JWTSecret string

	// Stripe (card payments)
	StripeSecretKey     string
	StripeWebhookSecret string

	// Coinpay (crypto payments). Request and callback signing keys are
	// derived from CoinpaySecret with distinct HKDF labels so a leaked
	// callback key cannot forge outbound requests.
	CoinpayAPIURL      string
	CoinpayMerchantID  string
	CoinpaySecret      string
	CoinpayRequestKey  []byte
	CoinpayCallbackKey []byte

	// Identity-provider webhook (Svix signing secret)
	AccountWebhookSecret string

	// Commerce policy
	SignupBonusCoins      int64
	VoucherReservationTTL time.Duration
	MaxPendingAge         time.Duration // Orders pending longer than this are swept to failed
	SweepInterval         time.Duration
	OrderPollSeconds      int // Hint returned to status-polling clients

	// CORS
	CORSOrigins []string

	// Object storage (S3-compatible) for the hosted catalog document and
	// ledger snapshot exports
	StorageEnabled   bool
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageRegion    string
	CatalogKey       string
	SnapshotPrefix   string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnvInt("PORT", 8080),
		BaseURL:             getEnv("BASE_URL", "http://localhost:8080"),
		IdleShutdownTimeout: getEnvDuration("IDLE_SHUTDOWN_TIMEOUT", 0),
		DatabaseURL:         getEnv("DATABASE_URL", "file:commerce.db?_journal=WAL&_timeout=5000"),
		JWTSecret:           getEnv("JWT_SECRET", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		CoinpayAPIURL:     getEnv("COINPAY_API_URL", ""),
		CoinpayMerchantID: getEnv("COINPAY_MERCHANT_ID", ""),
		CoinpaySecret:     getEnv("COINPAY_SECRET", ""),

		AccountWebhookSecret: getEnv("ACCOUNT_WEBHOOK_SECRET", ""),

		SignupBonusCoins:      int64(getEnvInt("SIGNUP_BONUS_COINS", 100)),
		VoucherReservationTTL: getEnvDuration("VOUCHER_RESERVATION_TTL", 30*time.Minute),
		MaxPendingAge:         getEnvDuration("MAX_PENDING_AGE", 24*time.Hour),
		SweepInterval:         getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		OrderPollSeconds:      getEnvInt("ORDER_POLL_SECONDS", 3),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),
		CatalogKey:       getEnv("CATALOG_KEY", "config/catalog.json"),
		SnapshotPrefix:   getEnv("SNAPSHOT_PREFIX", "exports/ledger/"),
	}

	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	// A random secret keeps local development working; production must set
	// its own so tokens survive restarts.
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = generateRandomSecret(64)
	}

	if cfg.CoinpaySecret != "" {
		if cfg.CoinpayMerchantID == "" {
			return nil, fmt.Errorf("COINPAY_MERCHANT_ID is required when COINPAY_SECRET is set")
		}
		cfg.CoinpayRequestKey = deriveKey(cfg.CoinpaySecret, "coinpay-request-signing")
		cfg.CoinpayCallbackKey = deriveKey(cfg.CoinpaySecret, "coinpay-callback-verification")
	}

	if cfg.MaxPendingAge < cfg.SweepInterval {
		return nil, fmt.Errorf("MAX_PENDING_AGE (%s) must not be shorter than SWEEP_INTERVAL (%s)", cfg.MaxPendingAge, cfg.SweepInterval)
	}

	return cfg, nil
}

// CardPaymentsEnabled returns true if the Stripe gateway is configured.
func (c *Config) CardPaymentsEnabled() bool {
	return c.StripeSecretKey != ""
}

// CryptoPaymentsEnabled returns true if the coinpay gateway is configured.
func (c *Config) CryptoPaymentsEnabled() bool {
	return c.CoinpayAPIURL != "" && c.CoinpaySecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

func generateRandomSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback (should never happen)
		return "dev-secret-change-me-" + base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

// deriveKey creates a 32-byte key from a shared secret using HKDF-SHA256.
// The info label binds each derived key to a single purpose.
func deriveKey(secret, label string) []byte {
	salt := []byte("commerce-api-key-derivation-v1")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, []byte(label))

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		// This should never happen with valid inputs
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
