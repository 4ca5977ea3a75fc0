// Package db persists an append-only audit log of the rule engine's
// activity — reports, note changes, rule fires — to PostgreSQL. It is
// wired in as an optional action-dispatcher observer and is never
// consulted by rule conditions: this is a write path for offline
// review, not a historical query engine.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/flightops/ruled/pkg/config"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS flight_reports (
	id BIGSERIAL PRIMARY KEY,
	identifier TEXT NOT NULL,
	stream_ts DOUBLE PRECISION NOT NULL,
	lat DOUBLE PRECISION NOT NULL,
	lon DOUBLE PRECISION NOT NULL,
	alt_baro DOUBLE PRECISION,
	ground_speed DOUBLE PRECISION,
	track DOUBLE PRECISION,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_flight_reports_identifier ON flight_reports (identifier);
CREATE INDEX IF NOT EXISTS idx_flight_reports_stream_ts ON flight_reports (stream_ts);

CREATE TABLE IF NOT EXISTS flight_notes (
	id BIGSERIAL PRIMARY KEY,
	identifier TEXT NOT NULL,
	note_name TEXT NOT NULL,
	note_value TEXT,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rule_fires (
	id BIGSERIAL PRIMARY KEY,
	identifier TEXT NOT NULL,
	rule_name TEXT NOT NULL,
	partner_identifier TEXT,
	stream_ts DOUBLE PRECISION NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_rule_fires_rule_name ON rule_fires (rule_name);

CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_login TIMESTAMPTZ
);
`

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	config config.DatabaseConfig
}

// Connect establishes a connection to the PostgreSQL database.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB, config: cfg}, nil
}

// InitSchema creates the audit-log tables if they do not already exist.
// Safe to call on every startup.
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// CleanupOldData deletes audit rows older than maxAge, preventing
// unbounded growth of a log nothing but humans ever reads.
func (db *DB) CleanupOldData(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().UTC().Add(-maxAge)

	if _, err := db.ExecContext(ctx, `DELETE FROM flight_reports WHERE recorded_at < $1`, cutoff); err != nil {
		return fmt.Errorf("failed to delete old reports: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM rule_fires WHERE recorded_at < $1`, cutoff); err != nil {
		return fmt.Errorf("failed to delete old rule fires: %w", err)
	}
	return nil
}

// GetStats returns audit-log row counts (report_records,
// rule_fire_records). The admin API's /stats endpoint does not include
// them; it serves the in-memory engine.Stats only.
func (db *DB) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var reportCount int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flight_reports`).Scan(&reportCount); err != nil {
		return nil, err
	}
	stats["report_records"] = reportCount

	var fireCount int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rule_fires`).Scan(&fireCount); err != nil {
		return nil, err
	}
	stats["rule_fire_records"] = fireCount

	return stats, nil
}
