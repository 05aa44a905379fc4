// pkg/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Data source
	SourceEndpoint string

	// Object storage
	S3 *S3Config

	// Warehouse
	Postgres  *PostgresConfig
	TableName string

	// Staging keys (fixed per purpose, not per run)
	RawKey       string
	ProcessedKey string

	// Retry settings applied to transient node failures
	RetryAttempts int
	RetryDelay    time.Duration

	// Scheduling
	RunInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		// Default values mirror the production pipeline
		SourceEndpoint: getEnv("SOURCE_ENDPOINT", "https://raw.githubusercontent.com/nytimes/covid-19-data/master/us-states.csv"),
		TableName:      getEnv("DB_TABLE_NAME", "covid_state_metrics"),
		RawKey:         getEnv("RAW_KEY", "raw/covid_us_states_raw.csv"),
		ProcessedKey:   getEnv("PROCESSED_KEY", "processed/covid_us_states_processed.csv"),
		RetryAttempts:  getEnvAsInt("RETRY_ATTEMPTS", 3),
		RetryDelay:     time.Duration(getEnvAsInt("RETRY_DELAY_MS", 1000)) * time.Millisecond,
		RunInterval:    time.Duration(getEnvAsInt("RUN_INTERVAL_HOURS", 24)) * time.Hour,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
	}

	s3Config, err := LoadS3Config()
	if err != nil {
		return nil, errors.New("failed to load S3 configuration: " + err.Error())
	}
	cfg.S3 = s3Config

	pgConfig, err := LoadPostgresConfig()
	if err != nil {
		return nil, errors.New("failed to load PostgreSQL configuration: " + err.Error())
	}
	cfg.Postgres = pgConfig

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.SourceEndpoint == "" {
		return errors.New("source endpoint is required")
	}

	if c.S3 == nil {
		return errors.New("s3 configuration is required")
	}

	if c.Postgres == nil {
		return errors.New("postgreSQL configuration is required")
	}

	if c.TableName == "" {
		return errors.New("destination table name is required")
	}

	if c.RawKey == "" || c.ProcessedKey == "" {
		return errors.New("staging keys are required")
	}

	if c.RetryAttempts < 0 {
		return errors.New("retry attempts cannot be negative")
	}

	if c.RunInterval <= 0 {
		return errors.New("run interval must be positive")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
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
