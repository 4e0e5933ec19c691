// Package config provides configuration management for the scheduling engine.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration so the service starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Database Configuration:
//   - DATABASE_TYPE: Database type - "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./scheduler.db)
//   - POSTGRES_HOST: PostgreSQL host (required if using PostgreSQL)
//   - POSTGRES_PORT: PostgreSQL port (default: 5432)
//   - POSTGRES_DB: PostgreSQL database name (required if using PostgreSQL)
//   - POSTGRES_USER: PostgreSQL username (required if using PostgreSQL)
//   - POSTGRES_PASSWORD: PostgreSQL password
//   - POSTGRES_SSL_MODE: PostgreSQL SSL mode (default: disable)
//
// Redis Configuration (optional; enables cross-instance sync locking):
//   - REDIS_ADDRESS: Redis server address (empty disables redis locks)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//
// Scheduling:
//   - SCHEDULE_DAY_END_HOUR: end-of-day boundary for "after X" windows (default: 20)
//   - SCHEDULE_BUSINESS_START_HOUR: default business window start (default: 9)
//   - SCHEDULE_BUSINESS_END_HOUR: default business window end (default: 17)
//   - SCHEDULE_SLOT_INCREMENT: candidate step size (default: 30m)
//   - SCHEDULE_SEARCH_HORIZON: how far ahead to search for alternatives (default: 72h)
//   - SCHEDULE_MAX_ALTERNATIVES: alternatives returned when a slot is taken (default: 3)
//
// Calendar Sync:
//   - SYNC_CALLBACK_URL: public HTTPS address for push notifications
//   - SYNC_RENEWAL_LEAD: renew subscriptions expiring within this window (default: 24h)
//   - SYNC_RENEWAL_SPEC: cron spec for the renewal sweep (default: @every 1h)
//   - ICS_FEED_URL: optional ICS feed merged into busy periods
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the scheduling engine.
// Load it with Load() and call Validate() before use.
type Config struct {
	// Application settings
	Port     string
	LogLevel string

	// Database configuration
	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis configuration for per-key sync locking
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	// Scheduling parameters
	DayEndHour        int
	BusinessStartHour int
	BusinessEndHour   int
	SlotIncrement     time.Duration
	SearchHorizon     time.Duration
	MaxAlternatives   int

	// Calendar sync parameters
	SyncCallbackURL string
	RenewalLead     time.Duration
	RenewalSpec     string
	ICSFeedURL      string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./scheduler.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", ""),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", ""),
		PostgresUser:     getEnv("POSTGRES_USER", ""),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DayEndHour:        getEnvInt("SCHEDULE_DAY_END_HOUR", 20),
		BusinessStartHour: getEnvInt("SCHEDULE_BUSINESS_START_HOUR", 9),
		BusinessEndHour:   getEnvInt("SCHEDULE_BUSINESS_END_HOUR", 17),
		SlotIncrement:     getEnvDuration("SCHEDULE_SLOT_INCREMENT", 30*time.Minute),
		SearchHorizon:     getEnvDuration("SCHEDULE_SEARCH_HORIZON", 72*time.Hour),
		MaxAlternatives:   getEnvInt("SCHEDULE_MAX_ALTERNATIVES", 3),

		SyncCallbackURL: getEnv("SYNC_CALLBACK_URL", ""),
		RenewalLead:     getEnvDuration("SYNC_RENEWAL_LEAD", 24*time.Hour),
		RenewalSpec:     getEnv("SYNC_RENEWAL_SPEC", "@every 1h"),
		ICSFeedURL:      getEnv("ICS_FEED_URL", ""),
	}
}

// Validate checks the configuration for values that would prevent a safe start
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT %q: %w", c.Port, err)
	}

	switch c.DatabaseType {
	case "sqlite":
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required for sqlite")
		}
	case "postgres":
		if c.PostgresHost == "" || c.PostgresDB == "" || c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_HOST, POSTGRES_DB and POSTGRES_USER are required for postgres")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_TYPE %q", c.DatabaseType)
	}

	if c.RedisDB < 0 || c.RedisDB > 15 {
		return fmt.Errorf("REDIS_DB must be between 0 and 15, got %d", c.RedisDB)
	}

	if c.BusinessStartHour < 0 || c.BusinessStartHour > 23 {
		return fmt.Errorf("SCHEDULE_BUSINESS_START_HOUR must be between 0 and 23")
	}
	if c.BusinessEndHour <= c.BusinessStartHour || c.BusinessEndHour > 24 {
		return fmt.Errorf("SCHEDULE_BUSINESS_END_HOUR must be after the start hour and at most 24")
	}
	if c.DayEndHour <= 0 || c.DayEndHour > 24 {
		return fmt.Errorf("SCHEDULE_DAY_END_HOUR must be between 1 and 24")
	}

	if c.SlotIncrement <= 0 {
		return fmt.Errorf("SCHEDULE_SLOT_INCREMENT must be positive")
	}
	if c.SearchHorizon < c.SlotIncrement {
		return fmt.Errorf("SCHEDULE_SEARCH_HORIZON must be at least one slot increment")
	}
	if c.MaxAlternatives < 0 {
		return fmt.Errorf("SCHEDULE_MAX_ALTERNATIVES must not be negative")
	}

	if c.RenewalLead <= 0 {
		return fmt.Errorf("SYNC_RENEWAL_LEAD must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
