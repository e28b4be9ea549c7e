package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLDB is the database interface used by all stores. *sql.DB satisfies it;
// tests can substitute a wrapper.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Compile-time check that *sql.DB satisfies SQLDB.
var _ SQLDB = (*sql.DB)(nil)

// InitDB initializes the database schema.
// PRE: db is a valid database connection
// POST: All tables are created, WAL mode enabled
func InitDB(db *sql.DB) error {
	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS registration (
		id TEXT PRIMARY KEY,
		registration_number TEXT NOT NULL DEFAULT '',
		student_name TEXT NOT NULL,
		parent_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		amount_due_paise INTEGER NOT NULL DEFAULT 0,
		consent_accepted INTEGER NOT NULL DEFAULT 0,
		consent_at TEXT,
		email_status TEXT NOT NULL DEFAULT 'unsent',
		email_status_at TEXT,
		email_error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS email_queue (
		id TEXT PRIMARY KEY,
		enqueued_at TEXT NOT NULL,
		recipient_email TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_attempt_at TEXT,
		last_error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS payment_submission (
		id TEXT PRIMARY KEY,
		reference_number TEXT NOT NULL,
		payer_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		pan TEXT NOT NULL DEFAULT '',
		amount_paise INTEGER NOT NULL,
		payment_date TEXT,
		submitted_at TEXT NOT NULL,
		transaction_id TEXT NOT NULL DEFAULT '',
		verified INTEGER NOT NULL DEFAULT 0,
		receipt_status TEXT NOT NULL DEFAULT 'pending',
		receipt_number TEXT NOT NULL DEFAULT '',
		receipt_sent_at TEXT
	);

	CREATE TABLE IF NOT EXISTS email_quota (
		day TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_email_queue_enqueued_at ON email_queue(enqueued_at);
	CREATE INDEX IF NOT EXISTS idx_payment_submission_reference ON payment_submission(reference_number);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}
