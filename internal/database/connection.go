// Package database manages the Postgres connection to the state store that
// backs the generation pipeline.
package database

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/jqsirls/character-canary/pkg/shared/logging"
)

// Config holds the state-store connection settings.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns the development defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		User:            "canary_reader",
		Database:        "storyteller",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// LoadFromEnv overrides settings from STATESTORE_* environment variables.
// Unparsable numeric values keep the existing value.
func (c *Config) LoadFromEnv() {
	if host := os.Getenv("STATESTORE_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv("STATESTORE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Port = p
		}
	}
	if user := os.Getenv("STATESTORE_USER"); user != "" {
		c.User = user
	}
	if password := os.Getenv("STATESTORE_PASSWORD"); password != "" {
		c.Password = password
	}
	if name := os.Getenv("STATESTORE_NAME"); name != "" {
		c.Database = name
	}
	if sslMode := os.Getenv("STATESTORE_SSL_MODE"); sslMode != "" {
		c.SSLMode = sslMode
	}
}

// Validate checks the configuration before a connection is attempted.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535")
	}
	if c.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("max open connections must be greater than 0")
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("max idle connections must be non-negative")
	}
	return nil
}

// ConnectionString renders the lib/pq keyword DSN.
func (c *Config) ConnectionString() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// Connect opens and pings a connection pool for the given configuration.
func Connect(config *Config, logger *logrus.Logger) (*sqlx.DB, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	db, err := sqlx.Connect("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to state store: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	logger.WithFields(logging.DatabaseFields("connect", config.Database).
		Custom("host", config.Host).
		Custom("ssl_mode", config.SSLMode).
		ToLogrus()).Info("Connected to state store")

	return db, nil
}

// ConnectURL opens a connection pool from a postgres:// URL, the form the
// state-store credential arrives in from the parameter store.
func ConnectURL(url string, logger *logrus.Logger) (*sqlx.DB, error) {
	dsn, err := pq.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid state-store URL: %w", err)
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to state store: %w", err)
	}

	defaults := DefaultConfig()
	db.SetMaxOpenConns(defaults.MaxOpenConns)
	db.SetMaxIdleConns(defaults.MaxIdleConns)
	db.SetConnMaxLifetime(defaults.ConnMaxLifetime)
	db.SetConnMaxIdleTime(defaults.ConnMaxIdleTime)

	logger.WithFields(logging.DatabaseFields("connect", "state store").ToLogrus()).
		Info("Connected to state store")

	return db, nil
}
