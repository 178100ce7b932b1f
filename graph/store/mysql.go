package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql"

	"github.com/agentflow/core/graph/emit"
	"github.com/agentflow/core/graph/failure"
)

// MySQLStore is a MySQL-backed Store: an optional shared, durable backend
// for multi-instance runtimes where several processes append to the same
// decision/failure log, an alternative to the single-process filesystem
// layout of FileStore.
type MySQLStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewMySQLStore opens a connection pool against dsn (a
// github.com/go-sql-driver/mysql data source name) and migrates it to the
// current schema.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS attempts (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			agent_id VARCHAR(191) NOT NULL,
			session_id VARCHAR(191) NOT NULL,
			attempt_id VARCHAR(191) NOT NULL,
			run_id VARCHAR(191) NOT NULL,
			node_id VARCHAR(191) NOT NULL,
			record JSON NOT NULL,
			INDEX idx_attempts_agent (agent_id)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS tool_logs (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			agent_id VARCHAR(191) NOT NULL,
			session_id VARCHAR(191) NOT NULL,
			record JSON NOT NULL
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS summaries (
			agent_id VARCHAR(191) NOT NULL,
			session_id VARCHAR(191) NOT NULL,
			record JSON NOT NULL,
			PRIMARY KEY (agent_id, session_id)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS failure_stats (
			goal_id VARCHAR(191) PRIMARY KEY,
			stats JSON NOT NULL
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS failure_records (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			goal_id VARCHAR(191) NOT NULL,
			record JSON NOT NULL
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS outbox (
			event_id VARCHAR(191) PRIMARY KEY,
			event JSON NOT NULL,
			emitted TINYINT NOT NULL DEFAULT 0
		) ENGINE=InnoDB`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate mysql: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// AppendAttempt implements Store.
func (s *MySQLStore) AppendAttempt(ctx context.Context, agentID, sessionID string, record AttemptRecord) error {
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
func (s *MySQLStore) AppendToolLog(ctx context.Context, agentID, sessionID string, record ToolLogRecord) error {
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
// same agentID/sessionID pair.
func (s *MySQLStore) WriteSummary(ctx context.Context, agentID, sessionID string, summary SummaryRecord) error {
	b, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO summaries (agent_id, session_id, record) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE record = VALUES(record)`,
		agentID, sessionID, string(b))
	return err
}

// WriteFailureStats implements failure.Sink.
func (s *MySQLStore) WriteFailureStats(goalID string, stats map[string]any) error {
	b, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO failure_stats (goal_id, stats) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE stats = VALUES(stats)`, goalID, string(b))
	return err
}

// AppendFailureRecord implements failure.Sink.
func (s *MySQLStore) AppendFailureRecord(goalID string, record failure.Record) error {
	b, err := json.Marshal(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`INSERT INTO failure_records (goal_id, record) VALUES (?, ?)`, goalID, string(b))
	return err
}

// ReadByGoal implements Store: every attempt ever appended for agentID,
// in insertion order. Multiple processes sharing one MySQLStore is the
// scenario FileStore cannot serve; this query is what makes that possible.
func (s *MySQLStore) ReadByGoal(ctx context.Context, agentID, goalID string) ([]AttemptRecord, error) {
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
func (s *MySQLStore) PendingEvents(ctx context.Context, limit int) ([]emit.Event, error) {
	query := `SELECT event FROM outbox WHERE emitted = 0 ORDER BY event_id ASC`
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
func (s *MySQLStore) MarkEventsEmitted(ctx context.Context, eventIDs []string) error {
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
// FileStore's signature.
func (s *MySQLStore) StageEvent(ev emit.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	eventID := fmt.Sprintf("%s:%d:%s:%s", ev.RunID, ev.Step, ev.NodeID, ev.Msg)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.db.Exec(
		`INSERT INTO outbox (event_id, event, emitted) VALUES (?, ?, 0)
		 ON DUPLICATE KEY UPDATE event = VALUES(event)`, eventID, string(b))
}
