// Package autonomous runs the unattended hourly home review: it hands
// the model a snapshot of the whole home and lets it act through the
// tool registry, recording every run in a bounded action log.
package autonomous

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ParamSingh24/PrakashAI/internal/chat"
)

// Record is one completed (or failed) autonomous run.
type Record struct {
	ID        string                `json:"id"`
	Timestamp time.Time             `json:"timestamp"`
	Action    string                `json:"action"`
	Reasoning string                `json:"reasoning"`
	ToolCalls []chat.ToolCallRecord `json:"toolCalls,omitempty"`
	Result    string                `json:"result"`
}

// Stats summarizes the retained action log.
type Stats struct {
	TotalRuns      int        `json:"totalRuns"`
	FailedRuns     int        `json:"failedRuns"`
	TotalToolCalls int        `json:"totalToolCalls"`
	LastRun        *time.Time `json:"lastRun,omitempty"`
}

// ResultOK and ResultFailed are the two run outcomes.
const (
	ResultOK     = "completed"
	ResultFailed = "failed"
)

// Store is the bounded SQLite action log.
type Store struct {
	db        *sql.DB
	retention int
}

// NewStore creates the action log over db, keeping at most retention
// records (0 disables trimming).
func NewStore(db *sql.DB, retention int) (*Store, error) {
	s := &Store{db: db, retention: retention}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS autonomous_log (
			id         TEXT PRIMARY KEY,
			timestamp  TEXT NOT NULL,
			action     TEXT NOT NULL,
			reasoning  TEXT NOT NULL,
			tool_calls TEXT,
			result     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_autonomous_log_ts ON autonomous_log(timestamp);
	`)
	if err != nil {
		return fmt.Errorf("migrate autonomous log: %w", err)
	}
	return nil
}

// Append stores one run record and trims the log to the retention
// window.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate record ID: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	var toolCalls []byte
	if len(rec.ToolCalls) > 0 {
		var err error
		toolCalls, err = json.Marshal(rec.ToolCalls)
		if err != nil {
			return fmt.Errorf("marshal tool calls: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO autonomous_log (id, timestamp, action, reasoning, tool_calls, result)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.Action,
		rec.Reasoning,
		nullableString(toolCalls),
		rec.Result,
	)
	if err != nil {
		return fmt.Errorf("insert autonomous record: %w", err)
	}

	if s.retention > 0 {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM autonomous_log WHERE id NOT IN
				(SELECT id FROM autonomous_log ORDER BY timestamp DESC, id DESC LIMIT ?)`,
			s.retention,
		)
		if err != nil {
			return fmt.Errorf("trim autonomous log: %w", err)
		}
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT id, timestamp, action, reasoning, tool_calls, result
		 FROM autonomous_log ORDER BY timestamp DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query autonomous log: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var ts string
		var toolCalls sql.NullString
		if err := rows.Scan(&rec.ID, &ts, &rec.Action, &rec.Reasoning, &toolCalls, &rec.Result); err != nil {
			return nil, fmt.Errorf("scan autonomous record: %w", err)
		}
		rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &rec.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshal tool calls: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats summarizes the retained log.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	records, err := s.Recent(ctx, 0)
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	st.TotalRuns = len(records)
	for _, rec := range records {
		if rec.Result == ResultFailed {
			st.FailedRuns++
		}
		st.TotalToolCalls += len(rec.ToolCalls)
	}
	if len(records) > 0 {
		ts := records[0].Timestamp
		st.LastRun = &ts
	}
	return st, nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
