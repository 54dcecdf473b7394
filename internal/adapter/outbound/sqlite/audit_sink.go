// Package sqlite provides SQLite-backed audit persistence.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id             TEXT PRIMARY KEY,
	correlation_id TEXT,
	timestamp      TEXT NOT NULL,
	category       TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	user_id        TEXT,
	resource_type  TEXT,
	resource_path  TEXT,
	action_type    TEXT,
	details        TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_correlation ON audit_entries(correlation_id);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_entries(timestamp);
`

// AuditSink implements audit.Sink on a local SQLite database. Entries are
// insert-only; nothing here updates or deletes rows.
type AuditSink struct {
	db *sql.DB
}

// NewAuditSink opens (or creates) the database at path and ensures the
// schema exists.
func NewAuditSink(path string) (*AuditSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}
	return &AuditSink{db: db}, nil
}

// Append inserts entries in a single transaction.
func (s *AuditSink) Append(ctx context.Context, entries ...audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO audit_entries
		(id, correlation_id, timestamp, category, event_type, user_id, resource_type, resource_path, action_type, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.CorrelationID, e.Timestamp.UTC().Format(time.RFC3339Nano),
			string(e.Category), e.EventType, e.UserID,
			e.ResourceType, e.ResourcePath, e.ActionType, string(details),
		); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
	}
	return tx.Commit()
}

// Flush is a no-op: Append commits synchronously.
func (s *AuditSink) Flush(ctx context.Context) error {
	return nil
}

// Close closes the database.
func (s *AuditSink) Close() error {
	return s.db.Close()
}

// Recent returns the n most recent entries, newest first.
func (s *AuditSink) Recent(ctx context.Context, n int) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, correlation_id, timestamp, category,
		event_type, user_id, resource_type, resource_path, action_type, details
		FROM audit_entries ORDER BY timestamp DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var ts, category, details string
		if err := rows.Scan(&e.ID, &e.CorrelationID, &ts, &category,
			&e.EventType, &e.UserID, &e.ResourceType, &e.ResourcePath,
			&e.ActionType, &details); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Category = audit.Category(category)
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		if details != "" && details != "null" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Compile-time interface verification.
var _ audit.Sink = (*AuditSink)(nil)
