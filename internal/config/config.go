// Package config centralises configuration parsing for the site tracker.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultFeedURL is the published export of the branch build-out sheet.
const DefaultFeedURL = "https://docs.google.com/spreadsheets/d/e/2PACX-1vTI8Y2Xs0F1dQ9MCBXFueCvIu4FpR0kZZchEUxYIQJzRlZ-qCuYW5hFNATbVJ5e8eYCmYI8mK6Ny6IH/pub?gid=0&single=true&output=csv"

// Config captures runtime configuration values for the site tracker.
type Config struct {
	HTTPAddress         string
	CORSOrigin          string
	FeedURL             string // Set to empty with no S3 bucket to disable the feed.
	FeedS3Bucket        string // When set, the feed is read from S3 instead of FeedURL.
	FeedS3Key           string
	FeedS3Region        string
	FeedS3Endpoint      string
	FeedS3PathStyle     bool
	FeedTimeout         time.Duration
	FeedRefreshInterval time.Duration // Zero loads the feed once at startup.
	KafkaBrokers        []string      // Empty disables event publishing and the row stream.
	EventsTopic         string
	RowsTopics          []string
	ConsumerGroupID     string
	SchemaRegistryURL   string
	PostgresURL         string // Empty disables the import audit log.
	AssistantWebhookURL string
	AssistantTimeout    time.Duration
	SeedFile            string
	ViewCacheSize       int
	MaxImportBytes      int
	LogLevel            string
	LogFormat           string
}

// Load reads environment variables into Config, applying sensible defaults for local dev.
func Load() Config {
	return Config{
		HTTPAddress:         getEnv("HTTP_ADDRESS", ":8080"),
		CORSOrigin:          getEnv("CORS_ORIGIN", "http://localhost:5173"),
		FeedURL:             getEnvAllowEmpty("FEED_URL", DefaultFeedURL),
		FeedS3Bucket:        getEnv("FEED_S3_BUCKET", ""),
		FeedS3Key:           getEnv("FEED_S3_KEY", "activities.csv"),
		FeedS3Region:        getEnv("FEED_S3_REGION", "us-east-1"),
		FeedS3Endpoint:      getEnv("FEED_S3_ENDPOINT", ""),
		FeedS3PathStyle:     getBoolEnv("FEED_S3_PATH_STYLE", false),
		FeedTimeout:         getDurationEnv("FEED_TIMEOUT", 15*time.Second),
		FeedRefreshInterval: getDurationEnv("FEED_REFRESH_INTERVAL", 0),
		KafkaBrokers:        splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		EventsTopic:         getEnv("EVENTS_TOPIC", "activity_events"),
		RowsTopics:          splitAndTrim(getEnv("ROWS_TOPICS", "activity_rows")),
		ConsumerGroupID:     getEnv("CONSUMER_GROUP_ID", "sitetracker"),
		SchemaRegistryURL:   getEnv("SCHEMA_REGISTRY_URL", ""),
		PostgresURL:         getEnv("POSTGRES_URL", ""),
		AssistantWebhookURL: getEnv("ASSISTANT_WEBHOOK_URL", ""),
		AssistantTimeout:    getDurationEnv("ASSISTANT_TIMEOUT", 30*time.Second),
		SeedFile:            getEnv("SEED_FILE", ""),
		ViewCacheSize:       getIntEnv("VIEW_CACHE_SIZE", 64),
		MaxImportBytes:      getIntEnv("MAX_IMPORT_BYTES", 16<<20),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// getEnvAllowEmpty is getEnv, except a variable set to "" yields "".
func getEnvAllowEmpty(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
