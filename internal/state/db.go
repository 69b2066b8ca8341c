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
//
// Amount columns are NUMERIC(40, 0): wide enough for any 128-bit balance the
// engine can produce. The price accumulators are NUMERIC(78, 0) because the
// UQ64.64 cumulative sums are unbounded monotone counters and 78 digits covers
// a full 256-bit value.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS swap_receipts (
			receipt_id SERIAL PRIMARY KEY,
			pair_id VARCHAR(100) NOT NULL,
			trader VARCHAR(255) NOT NULL,
			recipient VARCHAR(255) NOT NULL,
			asset_in VARCHAR(50) NOT NULL,
			asset_out VARCHAR(50) NOT NULL,
			amount_in NUMERIC(40, 0) NOT NULL,
			amount_out NUMERIC(40, 0) NOT NULL,
			fee_rate_bps INTEGER NOT NULL,
			reserve_a NUMERIC(40, 0) NOT NULL,
			reserve_b NUMERIC(40, 0) NOT NULL,
			executed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_swap_receipts_pair_time ON swap_receipts(pair_id, executed_at DESC);
		CREATE INDEX IF NOT EXISTS idx_swap_receipts_trader ON swap_receipts(trader);

		CREATE TABLE IF NOT EXISTS liquidity_receipts (
			receipt_id SERIAL PRIMARY KEY,
			pair_id VARCHAR(100) NOT NULL,
			action VARCHAR(10) NOT NULL,
			provider VARCHAR(255) NOT NULL,
			amount_a NUMERIC(40, 0) NOT NULL,
			amount_b NUMERIC(40, 0) NOT NULL,
			shares NUMERIC(40, 0) NOT NULL,
			total_shares NUMERIC(40, 0) NOT NULL,
			executed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_liquidity_receipts_pair_time ON liquidity_receipts(pair_id, executed_at DESC);
		CREATE INDEX IF NOT EXISTS idx_liquidity_receipts_provider ON liquidity_receipts(provider);

		CREATE TABLE IF NOT EXISTS flash_receipts (
			receipt_id SERIAL PRIMARY KEY,
			pair_id VARCHAR(100) NOT NULL,
			initiator VARCHAR(255) NOT NULL,
			receiver VARCHAR(255) NOT NULL,
			borrowed_a NUMERIC(40, 0) NOT NULL,
			borrowed_b NUMERIC(40, 0) NOT NULL,
			fee_a NUMERIC(40, 0) NOT NULL,
			fee_b NUMERIC(40, 0) NOT NULL,
			executed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_flash_receipts_pair_time ON flash_receipts(pair_id, executed_at DESC);

		CREATE TABLE IF NOT EXISTS oracle_checkpoints (
			checkpoint_id SERIAL PRIMARY KEY,
			cycle_number INTEGER NOT NULL,
			pair_id VARCHAR(100) NOT NULL,
			price_a_cumulative NUMERIC(78, 0) NOT NULL,
			price_b_cumulative NUMERIC(78, 0) NOT NULL,
			reserve_a NUMERIC(40, 0) NOT NULL,
			reserve_b NUMERIC(40, 0) NOT NULL,
			pair_timestamp BIGINT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_oracle_checkpoints_pair_time ON oracle_checkpoints(pair_id, pair_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_oracle_checkpoints_cycle ON oracle_checkpoints(cycle_number DESC);

		CREATE TABLE IF NOT EXISTS fee_parameters (
			params_id SERIAL PRIMARY KEY,
			pair_id VARCHAR(100) NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			dynamic_enabled BOOLEAN NOT NULL,
			baseline_fee_bps INTEGER NOT NULL,
			min_fee_bps INTEGER NOT NULL,
			max_fee_bps INTEGER NOT NULL,
			ramp_up_multiplier INTEGER NOT NULL,
			ema_alpha BIGINT NOT NULL,
			decay_window_seconds BIGINT NOT NULL,
			decay_threshold_seconds BIGINT NOT NULL,
			flash_fee_floor_bps INTEGER NOT NULL,
			CONSTRAINT uq_fee_parameters_pair_version UNIQUE (pair_id, version)
		);
		CREATE INDEX IF NOT EXISTS idx_fee_parameters_pair_active ON fee_parameters(pair_id, is_active, activated_at DESC);

		-- Checkpoint counter table for persistent global cycle tracking
		CREATE TABLE IF NOT EXISTS checkpoint_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO checkpoint_counter (id, current_cycle)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
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
