package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. Loaded once at
// process start and immutable thereafter.
type Config struct {
	// HTTP
	Port string

	// Environment: "development" or "production"
	Environment string

	// Network selects which token network payouts settle on
	Network string

	// Payout
	TreasuryAccount string
	EntryFee        int64
	RewardAmount    int64

	// Retention
	CompletedRetention     time.Duration
	DedupRetention         time.Duration
	CompletedSweepInterval time.Duration
	DedupSweepInterval     time.Duration

	// Registry
	ReleaseDelay time.Duration

	// Storage: "memory" or "sqlite"
	StorageType string
	DataDir     string

	// Optional integrations
	ElasticsearchURL string
	NatsURL          string

	// Logging
	LogLevel string
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Only return error if file exists but couldn't be loaded
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Port:             getEnvWithDefault("HTTP_PORT", "8080"),
		Environment:      getEnvWithDefault("ENVIRONMENT", "development"),
		Network:          getEnvWithDefault("TOKEN_NETWORK", "testnet"),
		TreasuryAccount:  os.Getenv("TREASURY_ACCOUNT"),
		StorageType:      getEnvWithDefault("STORAGE_TYPE", "memory"),
		DataDir:          getEnvWithDefault("DATA_DIR", "./data"),
		ElasticsearchURL: os.Getenv("ELASTICSEARCH_URL"),
		NatsURL:          os.Getenv("NATS_URL"),
		LogLevel:         getEnvWithDefault("LOG_LEVEL", "INFO"),
	}

	var err error
	if cfg.EntryFee, err = getInt64WithDefault("ENTRY_FEE", 10); err != nil {
		return nil, err
	}
	if cfg.RewardAmount, err = getInt64WithDefault("REWARD_AMOUNT", 20); err != nil {
		return nil, err
	}
	if cfg.CompletedRetention, err = getDurationWithDefault("COMPLETED_RETENTION", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DedupRetention, err = getDurationWithDefault("DEDUP_RETENTION", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CompletedSweepInterval, err = getDurationWithDefault("COMPLETED_SWEEP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.DedupSweepInterval, err = getDurationWithDefault("DEDUP_SWEEP_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ReleaseDelay, err = getDurationWithDefault("RELEASE_DELAY", 30*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks if all required configuration is present
func (c *Config) validate() error {
	if c.TreasuryAccount == "" {
		return fmt.Errorf("TREASURY_ACCOUNT is required")
	}
	if c.EntryFee <= 0 {
		return fmt.Errorf("ENTRY_FEE must be positive")
	}
	if c.RewardAmount <= 0 {
		return fmt.Errorf("REWARD_AMOUNT must be positive")
	}
	if c.CompletedRetention <= 0 || c.DedupRetention <= 0 {
		return fmt.Errorf("retention windows must be positive")
	}
	if c.StorageType != "memory" && c.StorageType != "sqlite" {
		return fmt.Errorf("STORAGE_TYPE must be memory or sqlite, got %q", c.StorageType)
	}
	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// getEnvWithDefault returns environment variable value or default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt64WithDefault(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getDurationWithDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
