package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

var _ Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal opens (and creates if needed) the journal database at dbPath.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; reads go through the same handle.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	j := &SQLiteJournal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	schema := `
	-- Every tool invocation
	CREATE TABLE IF NOT EXISTS tool_calls (
		id TEXT PRIMARY KEY,
		tool TEXT NOT NULL,
		status TEXT NOT NULL,
		error_type TEXT,
		message TEXT,
		args TEXT,
		duration_ms INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	-- Per-trade outcomes of a logTrades call
	CREATE TABLE IF NOT EXISTS trade_writes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		sheet TEXT NOT NULL,
		trade_index INTEGER NOT NULL,
		row_number INTEGER NOT NULL,
		status TEXT NOT NULL,
		error_type TEXT,
		message TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tool_calls_created ON tool_calls(created_at);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_tool ON tool_calls(tool);
	CREATE INDEX IF NOT EXISTS idx_trade_writes_batch ON trade_writes(batch_id);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// RecordCall stores a tool call. A missing ID or timestamp is filled in.
func (j *SQLiteJournal) RecordCall(ctx context.Context, call *ToolCall) error {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO tool_calls (id, tool, status, error_type, message, args, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, call.ID, call.Tool, call.Status, call.ErrorType, call.Message, call.Args, call.Duration.Milliseconds(), call.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record tool call: %w", err)
	}
	return nil
}

// RecentCalls returns tool calls, newest first.
func (j *SQLiteJournal) RecentCalls(ctx context.Context, filter CallFilter) ([]ToolCall, error) {
	query := "SELECT id, tool, status, error_type, message, args, duration_ms, created_at FROM tool_calls WHERE 1=1"
	args := []interface{}{}

	if filter.Tool != "" {
		query += " AND tool = ?"
		args = append(args, filter.Tool)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since)
	}

	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	defer rows.Close()

	var calls []ToolCall
	for rows.Next() {
		var c ToolCall
		var errorType, message, argsText sql.NullString
		var durationMS int64
		if err := rows.Scan(&c.ID, &c.Tool, &c.Status, &errorType, &message, &argsText, &durationMS, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tool call: %w", err)
		}
		c.ErrorType = errorType.String
		c.Message = message.String
		c.Args = argsText.String
		c.Duration = time.Duration(durationMS) * time.Millisecond
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// RecordTradeWrites stores the outcomes of one batch in a single transaction.
func (j *SQLiteJournal) RecordTradeWrites(ctx context.Context, writes []TradeWrite) error {
	if len(writes) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trade_writes (batch_id, sheet, trade_index, row_number, status, error_type, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, w := range writes {
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, w.BatchID, w.Sheet, w.TradeIndex, w.Row, w.Status, w.ErrorType, w.Message, w.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert trade write: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// TradeWrites returns the outcomes recorded for batchID in trade order.
func (j *SQLiteJournal) TradeWrites(ctx context.Context, batchID string) ([]TradeWrite, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT batch_id, sheet, trade_index, row_number, status, error_type, message, created_at
		FROM trade_writes WHERE batch_id = ? ORDER BY trade_index
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade writes: %w", err)
	}
	defer rows.Close()

	var writes []TradeWrite
	for rows.Next() {
		var w TradeWrite
		var errorType, message sql.NullString
		if err := rows.Scan(&w.BatchID, &w.Sheet, &w.TradeIndex, &w.Row, &w.Status, &errorType, &message, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade write: %w", err)
		}
		w.ErrorType = errorType.String
		w.Message = message.String
		writes = append(writes, w)
	}
	return writes, rows.Err()
}
