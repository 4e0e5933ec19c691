package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, 20, cfg.DayEndHour)
	assert.Equal(t, 9, cfg.BusinessStartHour)
	assert.Equal(t, 17, cfg.BusinessEndHour)
	assert.Equal(t, 30*time.Minute, cfg.SlotIncrement)
	assert.Equal(t, 72*time.Hour, cfg.SearchHorizon)
	assert.Equal(t, 3, cfg.MaxAlternatives)
	assert.Equal(t, 24*time.Hour, cfg.RenewalLead)
	assert.Equal(t, "@every 1h", cfg.RenewalSpec)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SCHEDULE_SLOT_INCREMENT", "15m")
	t.Setenv("SCHEDULE_MAX_ALTERNATIVES", "5")
	t.Setenv("SYNC_RENEWAL_LEAD", "12h")
	t.Setenv("REDIS_ADDRESS", "redis:6379")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.SlotIncrement)
	assert.Equal(t, 5, cfg.MaxAlternatives)
	assert.Equal(t, 12*time.Hour, cfg.RenewalLead)
	assert.Equal(t, "redis:6379", cfg.RedisAddress)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = "not-a-port" }},
		{"unknown database", func(c *Config) { c.DatabaseType = "oracle" }},
		{"sqlite without path", func(c *Config) { c.DatabaseType = "sqlite"; c.DatabasePath = "" }},
		{"postgres without host", func(c *Config) { c.DatabaseType = "postgres" }},
		{"redis db out of range", func(c *Config) { c.RedisDB = 16 }},
		{"end before start", func(c *Config) { c.BusinessEndHour = 8 }},
		{"zero increment", func(c *Config) { c.SlotIncrement = 0 }},
		{"horizon below increment", func(c *Config) { c.SearchHorizon = time.Minute }},
		{"negative alternatives", func(c *Config) { c.MaxAlternatives = -1 }},
		{"zero renewal lead", func(c *Config) { c.RenewalLead = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidatePostgres(t *testing.T) {
	cfg := Load()
	cfg.DatabaseType = "postgres"
	cfg.PostgresHost = "localhost"
	cfg.PostgresDB = "scheduler"
	cfg.PostgresUser = "scheduler"

	assert.NoError(t, cfg.Validate())
}
