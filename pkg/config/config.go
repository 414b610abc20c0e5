package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	FrontendURL string

	JWTSecret       string
	JWTAccessExpiry time.Duration
	EncryptionKey   string
	AdminToken      string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	// Gmail push notifications
	GoogleProjectID          string
	GooglePubSubTopic        string
	GooglePubSubSubscription string
	GoogleCredentials        string
	FirebaseCredentials      string

	DBDriver    string
	DatabaseURL string
	RedisURL    string
	SentryDSN   string

	AIProvider    string
	GeminiAPIKey  string
	GeminiModel   string
	OllamaBaseURL string
	OllamaModel   string
	AITimeout     time.Duration

	SyncQueryMode         string
	SyncMaxResults        int
	SyncItemDelay         time.Duration
	SyncRateLimitCooldown time.Duration
	SyncMaxAttempts       int
	SyncJitter            time.Duration
	SyncLockTTL           time.Duration
	ProviderTimeout       time.Duration
	DashboardPageSize     int

	CronSchedule string
	CronTimezone string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		JWTSecret:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTAccessExpiry: getDuration("JWT_ACCESS_EXPIRY", 24*time.Hour),
		EncryptionKey:   getEnv("ENCRYPTION_KEY", ""),
		AdminToken:      getEnv("ADMIN_TOKEN", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:8080/auth/google/callback"),

		GoogleProjectID:          getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:        getEnv("GOOGLE_PUBSUB_TOPIC", ""),
		GooglePubSubSubscription: getEnv("GOOGLE_PUBSUB_SUBSCRIPTION", ""),
		GoogleCredentials:        getEnv("GOOGLE_CREDENTIALS", ""),
		FirebaseCredentials:      getEnv("FIREBASE_CREDENTIALS", ""),

		DBDriver:    getEnv("DB_DRIVER", "postgres"),
		DatabaseURL: getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=email_analyzer port=5432 sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", ""),
		SentryDSN:   getEnv("SENTRY_DSN", ""),

		AIProvider:    getEnv("AI_PROVIDER", "gemini"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),
		AITimeout:     getDuration("AI_TIMEOUT", 30*time.Second),

		SyncQueryMode:         getEnv("SYNC_QUERY_MODE", "unread"),
		SyncMaxResults:        getInt("SYNC_MAX_RESULTS", 50),
		SyncItemDelay:         getDuration("SYNC_ITEM_DELAY", 4100*time.Millisecond),
		SyncRateLimitCooldown: getDuration("SYNC_RATE_LIMIT_COOLDOWN", 5*time.Second),
		SyncMaxAttempts:       getInt("SYNC_MAX_ATTEMPTS", 3),
		SyncJitter:            getDuration("SYNC_JITTER", 0),
		SyncLockTTL:           getDuration("SYNC_LOCK_TTL", 30*time.Minute),
		ProviderTimeout:       getDuration("PROVIDER_TIMEOUT", 20*time.Second),
		DashboardPageSize:     getInt("DASHBOARD_PAGE_SIZE", 100),

		CronSchedule: getEnv("CRON_SCHEDULE", "9 8 * * *"),
		CronTimezone: getEnv("CRON_TIMEZONE", "Asia/Kolkata"),
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
