// Package config handles loading and validating configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the edge detection engine.
type Config struct {
	// Input feeds
	MarketFeedPath   string
	TradeFeedPath    string
	SnapshotFeedPath string
	LeaderboardPath  string

	// Output
	OutputPath string

	// Detection thresholds
	LateEntryThreshold time.Duration
	DedupBucketWidth   time.Duration

	// Flagging thresholds
	MinCoOccurrence int
	MinROI          float64
	MinVolume       float64

	// Valuation
	PayoutRatio float64

	// Workers
	WorkerCount int

	// Metrics
	PrometheusPort int
	EnableMetrics  bool

	// UI
	EnableTUI bool

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > hardcoded defaults
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		// Feeds
		MarketFeedPath:   getEnv("MARKET_FEED_PATH", "./data/markets.json"),
		TradeFeedPath:    getEnv("TRADE_FEED_PATH", "./data/trades.json"),
		SnapshotFeedPath: getEnv("SNAPSHOT_FEED_PATH", "./data/snapshots.json"),
		LeaderboardPath:  getEnv("LEADERBOARD_PATH", ""),

		// Output
		OutputPath: getEnv("OUTPUT_PATH", "./out/trader_scores.csv"),

		// Thresholds
		LateEntryThreshold: time.Duration(getEnvInt("LATE_ENTRY_THRESHOLD_HOURS", 24)) * time.Hour,
		DedupBucketWidth:   time.Duration(getEnvInt("DEDUP_BUCKET_MINUTES", 1)) * time.Minute,
		MinCoOccurrence:    getEnvInt("MIN_CO_OCCURRENCE", 2),
		MinROI:             getEnvFloat("MIN_ROI", 0.0),
		MinVolume:          getEnvFloat("MIN_VOLUME", 0.0),

		// Valuation: profit per unit staked on a winning position
		PayoutRatio: getEnvFloat("PAYOUT_RATIO", 1.0),

		// Workers
		WorkerCount: getEnvInt("WORKER_COUNT", 5),

		// Metrics
		PrometheusPort: getEnvInt("PROMETHEUS_PORT", 9090),
		EnableMetrics:  getEnvBool("ENABLE_METRICS", false),

		// UI
		EnableTUI: getEnvBool("ENABLE_TUI", false),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.MarketFeedPath == "" {
		return fmt.Errorf("MARKET_FEED_PATH is required")
	}

	if c.TradeFeedPath == "" {
		return fmt.Errorf("TRADE_FEED_PATH is required")
	}

	if c.LateEntryThreshold <= 0 {
		return fmt.Errorf("LATE_ENTRY_THRESHOLD_HOURS must be positive")
	}

	if c.DedupBucketWidth <= 0 {
		return fmt.Errorf("DEDUP_BUCKET_MINUTES must be positive")
	}

	if c.MinCoOccurrence < 1 {
		return fmt.Errorf("MIN_CO_OCCURRENCE must be at least 1")
	}

	if c.PayoutRatio <= 0 {
		return fmt.Errorf("PAYOUT_RATIO must be positive")
	}

	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}

	if c.PrometheusPort < 1 || c.PrometheusPort > 65535 {
		return fmt.Errorf("PROMETHEUS_PORT must be between 1 and 65535")
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
