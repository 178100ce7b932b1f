package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/agentflow/core/graph/emit"
	"github.com/agentflow/core/graph/failure"
)

// SQLiteStore is a SQLite-backed Store, an optional queryable alternative
// to FileStore for decision-log replay: the same AppendAttempt/ReadByGoal
// contract, backed by a single-file database instead of jsonl files.
// modernc.org/sqlite is a pure-Go driver, so this backend needs no cgo.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.Mutex // serializes writes; SQLite allows one writer at a time
	path string
}

// NewSQLiteStore opens (creating if necessary) a SQLite database at path
// and migrates it to the current schema. path may be ":memory:" for a
// throwaway database, useful in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: configure sqlite: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			attempt_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			record TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_agent ON attempts(agent_id)`,
		`CREATE TABLE IF NOT EXISTS tool_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			record TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS summaries (
			agent_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			record TEXT NOT NULL,
			PRIMARY KEY (agent_id, session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS failure_stats (
			goal_id TEXT PRIMARY KEY,
			stats TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS failure_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			goal_id TEXT NOT NULL,
			record TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			event_id TEXT PRIMARY KEY,
			event TEXT NOT NULL,
			emitted INTEGER NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate sqlite: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendAttempt implements Store.
func (s *SQLiteStore) AppendAttempt(ctx context.Context, agentID, sessionID string, record AttemptRecord) error {
	b, err := json.Marshal(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (agent_id, session_id, attempt_id, run_id, node_id, record) VALUES (?, ?, ?, ?, ?, ?)`,
		agentID, sessionID, record.AttemptID, record.RunID, record.NodeID, string(b))
	return err
}

// AppendToolLog implements Store.
func (s *SQLiteStore) AppendToolLog(ctx context.Context, agentID, sessionID string, record ToolLogRecord) error {
	b, err := json.Marshal(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tool_logs (agent_id, session_id, record) VALUES (?, ?, ?)`, agentID, sessionID, string(b))
	return err
}

// WriteSummary implements Store, overwriting any prior summary for the
// same agentID/sessionID pair (summary.json is written exactly once in
// the filesystem layout, but a retried write must still be idempotent).
func (s *SQLiteStore) WriteSummary(ctx context.Context, agentID, sessionID string, summary SummaryRecord) error {
	b, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO summaries (agent_id, session_id, record) VALUES (?, ?, ?)
		 ON CONFLICT(agent_id, session_id) DO UPDATE SET record = excluded.record`,
		agentID, sessionID, string(b))
	return err
}

// WriteFailureStats implements failure.Sink.
func (s *SQLiteStore) WriteFailureStats(goalID string, stats map[string]any) error {
	b, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO failure_stats (goal_id, stats) VALUES (?, ?)
		 ON CONFLICT(goal_id) DO UPDATE SET stats = excluded.stats`, goalID, string(b))
	return err
}

// AppendFailureRecord implements failure.Sink.
func (s *SQLiteStore) AppendFailureRecord(goalID string, record failure.Record) error {
	b, err := json.Marshal(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`INSERT INTO failure_records (goal_id, record) VALUES (?, ?)`, goalID, string(b))
	return err
}

// ReadByGoal implements Store: every attempt ever appended for agentID, in
// insertion order. goalID narrows nothing here — the attempts table has
// no goal column, matching FileStore's equivalent scan-everything
// behavior — but SQLiteStore's value over FileStore is that this query
// runs as indexed SQL rather than a full directory walk.
func (s *SQLiteStore) ReadByGoal(ctx context.Context, agentID, goalID string) ([]AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM attempts WHERE agent_id = ? ORDER BY id ASC`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AttemptRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec AttemptRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("store: corrupt attempt row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PendingEvents implements Store's transactional-outbox read side.
func (s *SQLiteStore) PendingEvents(ctx context.Context, limit int) ([]emit.Event, error) {
	query := `SELECT event FROM outbox WHERE emitted = 0 ORDER BY rowid ASC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []emit.Event
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var ev emit.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("store: corrupt outbox row: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// MarkEventsEmitted implements Store's transactional-outbox write side.
func (s *SQLiteStore) MarkEventsEmitted(ctx context.Context, eventIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range eventIDs {
		if _, err := s.db.ExecContext(ctx, `UPDATE outbox SET emitted = 1 WHERE event_id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}

// StageEvent records ev in the outbox table for crash recovery, matching
// FileStore's signature so the executor's optional outbox-staging path
// works against either backend. The event ID is synthesized from the
// run/step/node triple since emit.Event carries no identifier of its own.
func (s *SQLiteStore) StageEvent(ev emit.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	eventID := fmt.Sprintf("%s:%d:%s:%s", ev.RunID, ev.Step, ev.NodeID, ev.Msg)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.db.Exec(
		`INSERT INTO outbox (event_id, event, emitted) VALUES (?, ?, 0)
		 ON CONFLICT(event_id) DO UPDATE SET event = excluded.event`, eventID, string(b))
}
