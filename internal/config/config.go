package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort      string
	ServerHost      string
	ShutdownTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string // "json" or "console"

	// Database
	DatabaseURL  string
	DatabaseType string // "postgres" or "sqlite"

	// JWT
	JWTSecret     string
	JWTExpiration int // hours

	// Stripe
	StripeSecretKey      string
	StripePublishableKey string
	StripeWebhookSecret  string

	// View credits
	ViewPackagePrice    int64  // in cents
	ViewPackageCurrency string // e.g., "usd", "zar"
	ViewPackageSize     int    // views granted per package

	// NDA
	NDAVersion        string
	NDAValidityMonths int

	// SAFE notes
	CommissionRate  float64 // fraction of investment amount, e.g. 0.05
	AutoExecuteSAFE bool

	// Storage
	StorageBackend    string // "local" or "s3"
	UploadDir         string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// Idempotency
	RedisAddr      string
	RedisPassword  string
	IdempotencyTTL time.Duration

	// Rate limiting on mutating routes
	RateLimitRPS   float64
	RateLimitBurst int

	// Email
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	FromEmail    string

	// Telegram
	TelegramBotToken string

	// App
	AppURL        string
	AppName       string
	AdminEmail    string
	AdminPassword string
	SeedDemo      bool
}

func Load() *Config {
	// .env is optional; real env vars win
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		ServerHost:      getEnv("SERVER_HOST", "0.0.0.0"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Database
		DatabaseURL:  getEnv("DATABASE_URL", "angelmatch.db"),
		DatabaseType: getEnv("DATABASE_TYPE", "sqlite"),

		// JWT
		JWTSecret:     getEnv("JWT_SECRET", "your-super-secret-key-change-in-production"),
		JWTExpiration: getEnvInt("JWT_EXPIRATION", 72),

		// Stripe
		StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
		StripePublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
		StripeWebhookSecret:  getEnv("STRIPE_WEBHOOK_SECRET", ""),

		// View credits
		ViewPackagePrice:    getEnvInt64("VIEW_PACKAGE_PRICE", 50000), // $500 in cents
		ViewPackageCurrency: getEnv("VIEW_PACKAGE_CURRENCY", "usd"),
		ViewPackageSize:     getEnvInt("VIEW_PACKAGE_SIZE", 4),

		// NDA
		NDAVersion:        getEnv("NDA_VERSION", "2.0"),
		NDAValidityMonths: getEnvInt("NDA_VALIDITY_MONTHS", 24),

		// SAFE notes
		CommissionRate:  getEnvFloat("COMMISSION_RATE", 0.05),
		AutoExecuteSAFE: getEnvBool("AUTO_EXECUTE_SAFE", true),

		// Storage
		StorageBackend:    getEnv("STORAGE_BACKEND", "local"),
		UploadDir:         getEnv("UPLOAD_DIR", "./uploads"),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Region:          getEnv("S3_REGION", "auto"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),

		// Idempotency
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		// Rate limiting
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),

		// Email
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		FromEmail:    getEnv("FROM_EMAIL", "noreply@angelmatch.io"),

		// Telegram
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		// App
		AppURL:        getEnv("APP_URL", "http://localhost:8080"),
		AppName:       getEnv("APP_NAME", "AngelMatch"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@angelmatch.io"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin12345"),
		SeedDemo:      getEnvBool("SEED_DEMO", false),
	}
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}

// StripeEnabled reports whether real Stripe calls should be made.
func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
