package storage

import (
	"fmt"

	"appointment-scheduler/internal/common/errors"
	"appointment-scheduler/internal/config"
	"appointment-scheduler/internal/storage/postgres"
	"appointment-scheduler/internal/storage/sqlite"
)

// NewStorage creates a storage adapter based on configuration
func NewStorage(cfg *config.Config) (Storage, error) {
	switch cfg.DatabaseType {
	case "sqlite":
		return sqlite.NewAdapter(&sqlite.Config{
			DatabasePath: cfg.DatabasePath,
		})

	case "postgres":
		return postgres.NewAdapter(&postgres.Config{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			Database: cfg.PostgresDB,
			Username: cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			SSLMode:  cfg.PostgresSSLMode,
		})

	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType))
	}
}
