package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/flightops/ruled/pkg/config"
	"github.com/flightops/ruled/pkg/flight"
)

// HistoryRepository persists the append-only audit trail described in
// the flight-history sink: every processed report, every note change,
// and every rule fire. Nothing here is read back by the engine — it is
// a write path for offline review, grounded on the teacher's upsert
// repository but without any upsert (every insert is a new row, since
// this is a log, not current-state storage).
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// EnsureHealthy verifies the underlying connection is alive before a
// flush and transparently reconnects with backoff if it has dropped,
// so a transient database outage doesn't take the audit sink down
// with it for the rest of the process's life.
func (r *HistoryRepository) EnsureHealthy(cfg config.DatabaseConfig) error {
	if HealthCheck(r.db) {
		return nil
	}
	newDB, err := EnsureConnection(r.db, cfg)
	if err != nil {
		return fmt.Errorf("history sink: %w", err)
	}
	r.db = newDB
	return nil
}

// RecordReport logs one processed flight report.
func (r *HistoryRepository) RecordReport(ctx context.Context, ident string, streamTS float64, f *flight.Flight) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO flight_reports (identifier, stream_ts, lat, lon, alt_baro, ground_speed, track)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ident, streamTS, f.LastReport.Lat, f.LastReport.Lon, f.LastReport.AltBaro, f.LastReport.GroundSpeed, f.LastReport.Track,
	)
	if err != nil {
		return fmt.Errorf("failed to record report: %w", err)
	}
	return nil
}

// RecordNote logs a note being set or cleared on a flight.
func (r *HistoryRepository) RecordNote(ctx context.Context, ident, noteName string, value *string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO flight_notes (identifier, note_name, note_value) VALUES ($1, $2, $3)`,
		ident, noteName, value,
	)
	if err != nil {
		return fmt.Errorf("failed to record note: %w", err)
	}
	return nil
}

// RecordRuleFire logs a rule match, optionally naming the paired
// flight for proximity-style rules.
func (r *HistoryRepository) RecordRuleFire(ctx context.Context, ident, ruleName string, partnerIdent *string, streamTS float64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rule_fires (identifier, rule_name, partner_identifier, stream_ts)
		 VALUES ($1, $2, $3, $4)`,
		ident, ruleName, partnerIdent, streamTS,
	)
	if err != nil {
		return fmt.Errorf("failed to record rule fire: %w", err)
	}
	return nil
}

// RuleFireCount represents one row of the per-rule summary returned
// by RuleFireCounts.
type RuleFireCount struct {
	RuleName string
	Count    int64
}

// RuleFireCounts summarizes how often each rule has fired since the
// given cutoff.
func (r *HistoryRepository) RuleFireCounts(ctx context.Context, since time.Time) ([]RuleFireCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rule_name, COUNT(*) FROM rule_fires WHERE recorded_at >= $1 GROUP BY rule_name ORDER BY COUNT(*) DESC`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []RuleFireCount
	for rows.Next() {
		var c RuleFireCount
		if err := rows.Scan(&c.RuleName, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// RecentReports returns the most recent reports logged for one
// flight, newest first, for operator drill-down after an alert.
func (r *HistoryRepository) RecentReports(ctx context.Context, ident string, limit int) ([]ReportRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT stream_ts, lat, lon, alt_baro, ground_speed, track, recorded_at
		 FROM flight_reports
		 WHERE identifier = $1
		 ORDER BY recorded_at DESC
		 LIMIT $2`,
		ident, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportRecord
	for rows.Next() {
		var rec ReportRecord
		var altBaro, groundSpeed, track sql.NullFloat64
		if err := rows.Scan(&rec.StreamTS, &rec.Lat, &rec.Lon, &altBaro, &groundSpeed, &track, &rec.RecordedAt); err != nil {
			return nil, err
		}
		rec.AltBaro = altBaro.Float64
		rec.GroundSpeed = groundSpeed.Float64
		rec.Track = track.Float64
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReportRecord is one logged report row.
type ReportRecord struct {
	StreamTS    float64
	Lat         float64
	Lon         float64
	AltBaro     float64
	GroundSpeed float64
	Track       float64
	RecordedAt  time.Time
}
