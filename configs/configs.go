// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// DBDSN is the Postgres connection string.
	DBDSN string

	// Engine contains the polling cadences and worker settings.
	Engine EngineConfig

	// Provider contains settings for the quote provider.
	Provider ProviderConfig

	// Feed contains Kafka settings for the tick feed. An empty broker
	// disables the feed.
	Feed FeedConfig

	// SMTP contains email delivery settings.
	SMTP SMTPConfig

	// TelegramToken is the bot token for push delivery. Empty falls
	// back to log-only delivery.
	TelegramToken string

	// ServerPort is the HTTP API listen port.
	ServerPort string
}

// EngineConfig holds scheduler settings.
type EngineConfig struct {
	// PollEvery is how often instruments are polled for new quotes.
	PollEvery time.Duration

	// CheckIntervalsEvery is how often interval subscriptions are checked.
	CheckIntervalsEvery time.Duration

	// FetchTimeout bounds a single provider fetch.
	FetchTimeout time.Duration

	// Workers is the number of concurrent instrument pollers.
	Workers int
}

// ProviderConfig holds quote provider settings.
type ProviderConfig struct {
	// BaseURL is the quote API root (e.g., "https://query2.finance.yahoo.com").
	BaseURL string

	// RequestTimeout bounds a single HTTP request.
	RequestTimeout time.Duration

	// RequestsPerSecond throttles outgoing requests.
	RequestsPerSecond int
}

// FeedConfig holds Kafka connection settings for the tick feed.
type FeedConfig struct {
	// Broker is the Kafka broker address (e.g., "localhost:9092").
	Broker string

	// Topic is the Kafka topic for tick events.
	Topic string
}

// SMTPConfig holds email relay settings.
type SMTPConfig struct {
	// Addr is the relay address as host:port.
	Addr string

	// From is the sender address on outgoing notifications.
	From string

	// Username and Password authenticate against the relay. An empty
	// username means an unauthenticated relay.
	Username string
	Password string
}

// getDatabaseDSN constructs the Postgres DSN from environment variables.
func getDatabaseDSN() string {
	dbUser := getEnv("PG_USER", "finotif")
	dbPassword := getEnv("PG_PASSWORD", "finotif")
	dbHost := getEnv("PG_HOST", "localhost")
	dbPort := getEnv("PG_PORT", "5432")
	dbName := getEnv("PG_DB", "finotif")
	sslMode := getEnv("PG_SSLMODE", "disable")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPassword, dbHost, dbPort, dbName, sslMode,
	)
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		DBDSN: getDatabaseDSN(),
		Engine: EngineConfig{
			PollEvery:           getEnvDuration("POLL_EVERY", time.Minute),
			CheckIntervalsEvery: getEnvDuration("CHECK_INTERVALS_EVERY", time.Minute),
			FetchTimeout:        getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
			Workers:             getEnvInt("POLL_WORKERS", 4),
		},
		Provider: ProviderConfig{
			BaseURL:           getEnv("QUOTE_BASE_URL", "https://query2.finance.yahoo.com"),
			RequestTimeout:    getEnvDuration("QUOTE_REQUEST_TIMEOUT", 10*time.Second),
			RequestsPerSecond: getEnvInt("QUOTE_REQUESTS_PER_SECOND", 2),
		},
		Feed: FeedConfig{
			Broker: getEnv("KAFKA_BROKER", ""),
			Topic:  getEnv("KAFKA_TICK_TOPIC", "finotif_ticks"),
		},
		SMTP: SMTPConfig{
			Addr:     getEnv("SMTP_ADDR", "localhost:25"),
			From:     getEnv("SMTP_FROM", "alerts@finotif.local"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
		},
		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		ServerPort:    getEnv("SERVER_PORT", "8080"),
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
