// Package chat persists the conversation history: one entry per
// orchestration turn, with the tool calls the turn made attached as an
// audit record. The history is bounded and doubles as the model's
// conversation context via RecentMessages.
package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ParamSingh24/PrakashAI/internal/llm"
)

// ToolCallRecord is the audit trail of one tool execution within a
// turn.
type ToolCallRecord struct {
	ToolName  string         `json:"toolName"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Response  string         `json:"response"`
	ExecMs    int64          `json:"execMs"`
	Timestamp time.Time      `json:"timestamp"`
	ErrorFlag bool           `json:"errorFlag,omitempty"`
}

// Entry is one completed orchestration turn.
type Entry struct {
	ID          string           `json:"id"`
	Timestamp   time.Time        `json:"timestamp"`
	SessionID   string           `json:"sessionId"`
	UserMessage string           `json:"userMessage"`
	AIResponse  string           `json:"aiResponse"`
	ToolCalls   []ToolCallRecord `json:"toolCalls,omitempty"`
}

// Stats summarizes the retained history.
type Stats struct {
	TotalEntries   int        `json:"totalEntries"`
	TotalToolCalls int        `json:"totalToolCalls"`
	Oldest         *time.Time `json:"oldest,omitempty"`
	Newest         *time.Time `json:"newest,omitempty"`
}

// Store is a bounded SQLite store for chat entries.
type Store struct {
	db        *sql.DB
	retention int
}

// NewStore creates a chat store over db, keeping at most retention
// entries (0 disables trimming).
func NewStore(db *sql.DB, retention int) (*Store, error) {
	s := &Store{db: db, retention: retention}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate chat schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_history (
		id           TEXT PRIMARY KEY,
		timestamp    TEXT NOT NULL,
		session_id   TEXT,
		user_message TEXT NOT NULL,
		ai_response  TEXT NOT NULL,
		tool_calls   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_chat_timestamp ON chat_history(timestamp);
	CREATE INDEX IF NOT EXISTS idx_chat_session ON chat_history(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append persists a turn. If e.ID is empty a UUIDv7 is generated; a
// zero timestamp is stamped with the current time. The history is then
// trimmed to the retention window.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate chat entry ID: %w", err)
		}
		e.ID = id.String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	var toolCalls []byte
	if len(e.ToolCalls) > 0 {
		var err error
		toolCalls, err = json.Marshal(e.ToolCalls)
		if err != nil {
			return fmt.Errorf("marshal tool calls: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (id, timestamp, session_id, user_message, ai_response, tool_calls)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.SessionID,
		e.UserMessage,
		e.AIResponse,
		nullableString(toolCalls),
	)
	if err != nil {
		return fmt.Errorf("insert chat entry: %w", err)
	}

	if s.retention > 0 {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM chat_history WHERE id NOT IN
				(SELECT id FROM chat_history ORDER BY timestamp DESC, id DESC LIMIT ?)`,
			s.retention,
		)
		if err != nil {
			return fmt.Errorf("trim chat history: %w", err)
		}
	}
	return nil
}

// Recent returns up to limit entries, oldest first, so they can feed
// straight into the model context.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, timestamp, session_id, user_message, ai_response, tool_calls
		 FROM chat_history ORDER BY timestamp DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	// Reverse from newest-first to oldest-first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// RecentMessages converts the recent window into alternating user and
// assistant messages for the model.
func (s *Store) RecentMessages(ctx context.Context, limit int) ([]llm.Message, error) {
	entries, err := s.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(entries)*2)
	for _, e := range entries {
		messages = append(messages,
			llm.Message{Role: "user", Content: e.UserMessage},
			llm.Message{Role: "assistant", Content: e.AIResponse},
		)
	}
	return messages, nil
}

// Search returns entries whose user message or response contains the
// query, newest first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, session_id, user_message, ai_response, tool_calls
		 FROM chat_history
		 WHERE user_message LIKE ? OR ai_response LIKE ?
		 ORDER BY timestamp DESC, id DESC LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search chat history: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Stats reports totals over the retained history.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		st           Stats
		oldest, newest sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(timestamp), MAX(timestamp) FROM chat_history`,
	).Scan(&st.TotalEntries, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("chat stats: %w", err)
	}

	if oldest.Valid {
		if t, err := time.Parse(time.RFC3339Nano, oldest.String); err == nil {
			st.Oldest = &t
		}
	}
	if newest.Valid {
		if t, err := time.Parse(time.RFC3339Nano, newest.String); err == nil {
			st.Newest = &t
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT tool_calls FROM chat_history WHERE tool_calls IS NOT NULL`)
	if err != nil {
		return Stats{}, fmt.Errorf("chat stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return Stats{}, fmt.Errorf("chat stats: %w", err)
		}
		var calls []ToolCallRecord
		if json.Unmarshal([]byte(raw), &calls) == nil {
			st.TotalToolCalls += len(calls)
		}
	}
	return st, rows.Err()
}

// Clear removes every entry and reports how many were removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_history`)
	if err != nil {
		return 0, fmt.Errorf("clear chat history: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			ts        string
			toolCalls sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &e.SessionID, &e.UserMessage, &e.AIResponse, &toolCalls); err != nil {
			return nil, fmt.Errorf("scan chat entry: %w", err)
		}
		var err error
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse chat timestamp: %w", err)
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &e.ToolCalls); err != nil {
				return nil, fmt.Errorf("parse tool call records: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
