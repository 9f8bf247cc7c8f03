// Package audit journals tool calls, dispatch outcomes and storage operations to
// SQLite. Message bodies and object contents are never stored.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type ToolCall struct {
	ID         string
	Toolset    string
	Tool       string
	DurationMS int64
	ResultSize int
	Error      string
	CreatedAt  time.Time
}

type Dispatch struct {
	ID            string
	Kind          string
	RecipientKind string
	Recipient     string
	MessageID     string
	Error         string
	CreatedAt     time.Time
}

type StorageOp struct {
	ID        string
	Op        string
	Target    string
	Count     int
	Error     string
	CreatedAt time.Time
}

// Stats summarizes the journal for the status command.
type Stats struct {
	ToolCalls        int
	ToolErrors       int
	Dispatches       int
	DispatchFailures int
	StorageOps       int
}

type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) RecordToolCall(ctx context.Context, c ToolCall) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_calls (id, toolset, tool_name, duration_ms, result_size, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Toolset, c.Tool, c.DurationMS, c.ResultSize, c.Error, c.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) RecordDispatch(ctx context.Context, d Dispatch) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches (id, kind, recipient_kind, recipient, message_id, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Kind, d.RecipientKind, d.Recipient, d.MessageID, d.Error, d.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) RecordStorageOp(ctx context.Context, o StorageOp) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO storage_operations (id, op, target, count, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.Op, o.Target, o.Count, o.Error, o.CreatedAt,
	)
	return err
}

// RecentToolCalls returns up to limit calls, newest first.
func (s *SQLiteStore) RecentToolCalls(ctx context.Context, limit int) ([]ToolCall, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, toolset, tool_name, duration_ms, result_size, error, created_at
		 FROM tool_calls ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ToolCall
	for rows.Next() {
		var c ToolCall
		if err := rows.Scan(&c.ID, &c.Toolset, &c.Tool, &c.DurationMS, &c.ResultSize, &c.Error, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecentDispatches returns up to limit dispatch outcomes, newest first.
func (s *SQLiteStore) RecentDispatches(ctx context.Context, limit int) ([]Dispatch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, recipient_kind, recipient, message_id, error, created_at
		 FROM dispatches ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Dispatch
	for rows.Next() {
		var d Dispatch
		if err := rows.Scan(&d.ID, &d.Kind, &d.RecipientKind, &d.Recipient, &d.MessageID, &d.Error, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM tool_calls),
		(SELECT COUNT(*) FROM tool_calls WHERE error != ''),
		(SELECT COUNT(*) FROM dispatches),
		(SELECT COUNT(*) FROM dispatches WHERE error != ''),
		(SELECT COUNT(*) FROM storage_operations)`,
	).Scan(&st.ToolCalls, &st.ToolErrors, &st.Dispatches, &st.DispatchFailures, &st.StorageOps)
	return st, err
}

// Prune deletes entries older than the retention window and returns the number removed.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	var total int64
	for _, table := range []string{"tool_calls", "dispatches", "storage_operations"} {
		res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE created_at < ?", cutoff)
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
