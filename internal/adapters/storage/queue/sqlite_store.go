package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"stablepost/internal/adapters/storage"
	domain "stablepost/internal/domain/queue"
)

const (
	dateLayout = "2006-01-02T15:04:05.999999999Z07:00"
)

const entryColumns = `id, enqueued_at, recipient_email, display_name, location, status, attempts, last_attempt_at, last_error`

// SQLiteStore implements the queue Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new queue store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a queue entry by its ID.
// PRE: id is non-empty
// POST: Returns the entry or domain.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM email_queue WHERE id = ?`, id)
	return scanEntry(row)
}

// GetByRecipient retrieves the entry for a recipient email, if queued.
// PRE: email is non-empty
// POST: Returns the entry or domain.ErrNotFound
func (s *SQLiteStore) GetByRecipient(ctx context.Context, email string) (domain.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM email_queue WHERE recipient_email = ? ORDER BY enqueued_at ASC LIMIT 1`, email)
	return scanEntry(row)
}

// Save persists a queue entry (insert or update).
// PRE: entry has been validated
// POST: Entry is persisted
func (s *SQLiteStore) Save(ctx context.Context, e domain.Entry) error {
	lastAttemptAt := ""
	if !e.LastAttemptAt.IsZero() {
		lastAttemptAt = e.LastAttemptAt.Format(dateLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO email_queue (id, enqueued_at, recipient_email, display_name, location, status, attempts, last_attempt_at, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, attempts=excluded.attempts,
		   last_attempt_at=excluded.last_attempt_at, last_error=excluded.last_error`,
		e.ID, e.EnqueuedAt.Format(dateLayout), e.RecipientKey, e.DisplayName, e.Location,
		e.Status, e.Attempts, lastAttemptAt, e.LastError)
	return err
}

// ListOldestFirst returns entries in FIFO order by enqueued_at.
// PRE: limit > 0, or 0 for no limit
// POST: Returns entries ordered oldest first
func (s *SQLiteStore) ListOldestFirst(ctx context.Context, limit int) ([]domain.Entry, error) {
	if limit <= 0 {
		limit = -1 // SQLite: LIMIT -1 means no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM email_queue ORDER BY enqueued_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Count returns the number of entries still in the queue.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_queue`).Scan(&n)
	return n, err
}

// Delete removes a queue entry.
// PRE: id is non-empty
// POST: Entry is removed
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM email_queue WHERE id = ?`, id)
	return err
}

// scanEntry scans a single row into an Entry.
func scanEntry(row *sql.Row) (domain.Entry, error) {
	var e domain.Entry
	var enqueuedAt, lastAttemptAt string
	err := row.Scan(&e.ID, &enqueuedAt, &e.RecipientKey, &e.DisplayName, &e.Location,
		&e.Status, &e.Attempts, &lastAttemptAt, &e.LastError)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entry{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Entry{}, err
	}
	e.EnqueuedAt, _ = time.Parse(dateLayout, enqueuedAt)
	if lastAttemptAt != "" {
		e.LastAttemptAt, _ = time.Parse(dateLayout, lastAttemptAt)
	}
	return e, nil
}

// scanEntries scans multiple rows into a slice of Entries.
func scanEntries(rows *sql.Rows) ([]domain.Entry, error) {
	var entries []domain.Entry
	for rows.Next() {
		var e domain.Entry
		var enqueuedAt, lastAttemptAt string
		err := rows.Scan(&e.ID, &enqueuedAt, &e.RecipientKey, &e.DisplayName, &e.Location,
			&e.Status, &e.Attempts, &lastAttemptAt, &e.LastError)
		if err != nil {
			return nil, err
		}
		e.EnqueuedAt, _ = time.Parse(dateLayout, enqueuedAt)
		if lastAttemptAt != "" {
			e.LastAttemptAt, _ = time.Parse(dateLayout, lastAttemptAt)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
