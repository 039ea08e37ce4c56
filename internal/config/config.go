// Package config loads handler configuration from .env and the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the handler binary needs at startup.
type Config struct {
	Port     string
	LogLevel string

	TableServiceURL string
	BlobServiceURL  string
	QueueServiceURL string

	TransactionsTable string
	EntitiesTable     string
	RatesTable        string

	ReportsContainer  string
	UploadsContainer  string
	IngestQueue       string
	NotificationQueue string

	RateCacheTTL      time.Duration
	RateFetchTimeout  time.Duration
	RateFetchAttempts int
	FetchTimeout      time.Duration

	NightlyTenants []string
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded, relying on environment variables", "error", err)
	}

	cfg := &Config{
		Port:     getEnv("FUNCTIONS_CUSTOMHANDLER_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		TableServiceURL: os.Getenv("TABLE_SERVICE_URL"),
		BlobServiceURL:  os.Getenv("BLOB_SERVICE_URL"),
		QueueServiceURL: os.Getenv("QUEUE_SERVICE_URL"),

		TransactionsTable: getEnv("TRANSACTIONS_TABLE", "classifiedtransactions"),
		EntitiesTable:     getEnv("ENTITIES_TABLE", "entities"),
		RatesTable:        getEnv("RATES_TABLE", "statutoryrates"),

		ReportsContainer:  getEnv("REPORTS_CONTAINER", "tax-reports"),
		UploadsContainer:  getEnv("UPLOADS_CONTAINER", "uploads"),
		IngestQueue:       getEnv("INGEST_QUEUE", "ingest-queue"),
		NotificationQueue: getEnv("NOTIFICATION_QUEUE", "tax-notifications"),

		RateCacheTTL:      getEnvAsDuration("RATE_CACHE_TTL", 24*time.Hour),
		RateFetchTimeout:  getEnvAsDuration("RATE_FETCH_TIMEOUT", 5*time.Second),
		RateFetchAttempts: getEnvAsInt("RATE_FETCH_ATTEMPTS", 3),
		FetchTimeout:      getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),

		NightlyTenants: splitList(os.Getenv("NIGHTLY_TENANTS")),
	}

	if cfg.TableServiceURL == "" {
		return nil, fmt.Errorf("TABLE_SERVICE_URL environment variable is required")
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid FUNCTIONS_CUSTOMHANDLER_PORT %q: %w", cfg.Port, err)
	}

	slog.Info("configuration loaded",
		"port", cfg.Port,
		"log_level", cfg.LogLevel,
		"transactions_table", cfg.TransactionsTable,
		"nightly_tenants", len(cfg.NightlyTenants),
	)
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	slog.Debug("environment variable not set, using default", "key", key, "default", fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		slog.Warn("invalid integer, using default", "key", key, "value", valueStr, "default", fallback)
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", valueStr, "default", fallback.String())
		return fallback
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
