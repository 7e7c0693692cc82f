// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS vault_operations (
			operation_id SERIAL PRIMARY KEY,
			op_id UUID NOT NULL UNIQUE,
			op_type VARCHAR(32) NOT NULL,
			account VARCHAR(128) NOT NULL,
			shares NUMERIC(78, 0) NOT NULL,
			amount NUMERIC(78, 0) NOT NULL,
			fee NUMERIC(78, 0) NOT NULL DEFAULT 0,
			payout JSONB,
			op_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_vault_operations_timestamp ON vault_operations(op_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_vault_operations_account ON vault_operations(account);
		CREATE INDEX IF NOT EXISTS idx_vault_operations_type ON vault_operations(op_type);

		CREATE TABLE IF NOT EXISTS reward_distributions (
			distribution_id SERIAL PRIMARY KEY,
			op_id UUID NOT NULL UNIQUE,
			total NUMERIC(78, 0) NOT NULL,
			exclusive_cut NUMERIC(78, 0) NOT NULL,
			receiver_cut NUMERIC(78, 0) NOT NULL,
			for_shareholders NUMERIC(78, 0) NOT NULL,
			distribution_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_reward_distributions_timestamp ON reward_distributions(distribution_timestamp DESC);

		CREATE TABLE IF NOT EXISTS reward_collections (
			collection_id SERIAL PRIMARY KEY,
			op_id UUID NOT NULL UNIQUE,
			account VARCHAR(128) NOT NULL,
			amount NUMERIC(78, 0) NOT NULL,
			collection_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_reward_collections_account ON reward_collections(account);

		CREATE TABLE IF NOT EXISTS vault_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			total_shares NUMERIC(78, 0) NOT NULL,
			in_position BOOLEAN NOT NULL,
			position_id BIGINT,
			tick_lower INTEGER,
			tick_upper INTEGER,
			idle_balances JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_vault_snapshots_timestamp ON vault_snapshots(snapshot_timestamp DESC);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
