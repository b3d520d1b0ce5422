// Package sqlite provides a SQLite-backed implementation of checkoutlog.Repository.
//
// WAL mode is enabled on Open so that the HTTP handlers appending entries
// never block a reader inspecting the log.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jcmexdev/regaloshop/internal/checkoutlog"

	// Pure-Go driver, no CGO.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkout_logs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,

    -- One attempt has a STARTED row followed by one terminal row.
    attempt_id      TEXT        NOT NULL,

    -- Empty until the attempt COMPLETED.
    order_id        TEXT        NOT NULL DEFAULT '',

    status          TEXT        NOT NULL,
    request_id      TEXT        NOT NULL DEFAULT '',

    -- JSON purchase intent, written on STARTED only.
    payload         TEXT,

    error_messages  TEXT        NOT NULL DEFAULT '[]',
    trace_id        TEXT        NOT NULL DEFAULT '',
    span_id         TEXT        NOT NULL DEFAULT '',
    updated_at      TEXT        NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checkout_logs_attempt ON checkout_logs(attempt_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_checkout_logs_order ON checkout_logs(order_id);
CREATE INDEX IF NOT EXISTS idx_checkout_logs_trace ON checkout_logs(trace_id);
`

// Repository is the SQLite implementation of checkoutlog.Repository.
type Repository struct {
	db *sql.DB
}

var _ checkoutlog.Repository = (*Repository)(nil)

// Open opens (or creates) the log database at path and applies the schema.
//
//	repo, err := sqlite.Open("./data/checkout.db")
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply checkout log schema: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Save inserts a new log entry. It is safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *checkoutlog.Entry) error {
	const q = `
		INSERT INTO checkout_logs
			(attempt_id, order_id, status, request_id, payload, error_messages, trace_id, span_id, updated_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.AttemptID,
		entry.OrderID,
		string(entry.Status),
		entry.RequestID,
		nullableString(entry.Payload),
		entry.ErrorMessages,
		entry.TraceID,
		entry.SpanID,
		formatTime(entry.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save checkout log for %q: %w", entry.AttemptID, err)
	}
	return nil
}

// History returns every entry of an attempt, oldest first.
func (r *Repository) History(ctx context.Context, attemptID string) ([]checkoutlog.Entry, error) {
	const q = `
		SELECT attempt_id, order_id, status, request_id, COALESCE(payload, ''), error_messages,
		       trace_id, span_id, updated_at
		FROM   checkout_logs
		WHERE  attempt_id = ?
		ORDER  BY updated_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, attemptID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: history for %q: %w", attemptID, err)
	}
	defer rows.Close()

	var out []checkoutlog.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

// GetLatest returns the most recent entry of an attempt.
func (r *Repository) GetLatest(ctx context.Context, attemptID string) (*checkoutlog.Entry, error) {
	const q = `
		SELECT attempt_id, order_id, status, request_id, COALESCE(payload, ''), error_messages,
		       trace_id, span_id, updated_at
		FROM   checkout_logs
		WHERE  attempt_id = ?
		ORDER  BY updated_at DESC, id DESC
		LIMIT  1`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, q, attemptID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: checkout attempt %q not found", attemptID)
	}
	return entry, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*checkoutlog.Entry, error) {
	var entry checkoutlog.Entry
	var updatedAt string
	err := row.Scan(
		&entry.AttemptID,
		&entry.OrderID,
		&entry.Status,
		&entry.RequestID,
		&entry.Payload,
		&entry.ErrorMessages,
		&entry.TraceID,
		&entry.SpanID,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: scan checkout log: %w", err)
	}

	entry.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// nullableString stores NULL instead of an empty payload on non-STARTED rows.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
