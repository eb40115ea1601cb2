// Package usagelog persists closed appliance sessions. Entries are
// append-only and indexed by end timestamp and appliance; the store
// trims itself to a configured window after each append so the log
// never grows without bound.
package usagelog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ParamSingh24/PrakashAI/internal/ledger"
)

// Entry is one recorded on/off session.
type Entry struct {
	ID              string    `json:"id"`
	ApplianceID     string    `json:"applianceId"`
	Start           time.Time `json:"startTs"`
	End             time.Time `json:"endTs"`
	DurationSeconds float64   `json:"durationSeconds"`
	EnergyKWh       float64   `json:"energyKWh"`
	Trigger         string    `json:"trigger"`
}

// Store is an append-only SQLite store for usage entries. All public
// methods are safe for concurrent use (SQLite serializes writes).
type Store struct {
	db        *sql.DB
	retention int
}

// NewStore creates a usage log store over db, keeping at most retention
// entries (0 disables trimming). The schema is created on first use.
func NewStore(db *sql.DB, retention int) (*Store, error) {
	s := &Store{db: db, retention: retention}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate usage log schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_log (
		id               TEXT PRIMARY KEY,
		appliance_id     TEXT NOT NULL,
		start_ts         TEXT NOT NULL,
		end_ts           TEXT NOT NULL,
		duration_seconds REAL NOT NULL,
		energy_kwh       REAL NOT NULL,
		trigger_kind     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_log_end ON usage_log(end_ts);
	CREATE INDEX IF NOT EXISTS idx_usage_log_appliance ON usage_log(appliance_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append persists an entry. If e.ID is empty a UUIDv7 is generated.
// After the insert the log is trimmed to the retention window, oldest
// entries first.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate usage entry ID: %w", err)
		}
		e.ID = id.String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_log
			(id, appliance_id, start_ts, end_ts, duration_seconds, energy_kwh, trigger_kind)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.ApplianceID,
		e.Start.UTC().Format(time.RFC3339Nano),
		e.End.UTC().Format(time.RFC3339Nano),
		e.DurationSeconds,
		e.EnergyKWh,
		e.Trigger,
	)
	if err != nil {
		return fmt.Errorf("insert usage entry: %w", err)
	}

	return s.trim(ctx)
}

// RecordSession adapts a closed ledger session into a usage entry, so
// the store plugs straight into the ledger as its recorder.
func (s *Store) RecordSession(ctx context.Context, sess ledger.Session) error {
	return s.Append(ctx, Entry{
		ApplianceID:     sess.ApplianceID,
		Start:           sess.Start,
		End:             sess.End,
		DurationSeconds: sess.DurationSeconds,
		EnergyKWh:       sess.EnergyKWh,
		Trigger:         string(sess.Trigger),
	})
}

func (s *Store) trim(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM usage_log WHERE id NOT IN
			(SELECT id FROM usage_log ORDER BY end_ts DESC, id DESC LIMIT ?)`,
		s.retention,
	)
	if err != nil {
		return fmt.Errorf("trim usage log: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 returns
// everything.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, appliance_id, start_ts, end_ts, duration_seconds, energy_kwh, trigger_kind
		 FROM usage_log ORDER BY end_ts DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage log: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ByAppliance returns up to limit entries for one appliance, newest
// first. limit <= 0 returns everything.
func (s *Store) ByAppliance(ctx context.Context, applianceID string, limit int) ([]Entry, error) {
	query := `SELECT id, appliance_id, start_ts, end_ts, duration_seconds, energy_kwh, trigger_kind
		 FROM usage_log WHERE appliance_id = ? ORDER BY end_ts DESC, id DESC`
	args := []any{applianceID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage log: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// All returns every retained entry, oldest first. The projection engine
// consumes this.
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, appliance_id, start_ts, end_ts, duration_seconds, energy_kwh, trigger_kind
		 FROM usage_log ORDER BY end_ts ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query usage log: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Count returns the number of retained entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usage_log`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count usage log: %w", err)
	}
	return n, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			start, end string
		)
		if err := rows.Scan(&e.ID, &e.ApplianceID, &start, &end,
			&e.DurationSeconds, &e.EnergyKWh, &e.Trigger); err != nil {
			return nil, fmt.Errorf("scan usage entry: %w", err)
		}
		var err error
		if e.Start, err = time.Parse(time.RFC3339Nano, start); err != nil {
			return nil, fmt.Errorf("parse start timestamp: %w", err)
		}
		if e.End, err = time.Parse(time.RFC3339Nano, end); err != nil {
			return nil, fmt.Errorf("parse end timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
