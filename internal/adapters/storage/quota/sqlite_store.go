package quota

import (
	"context"

	"stablepost/internal/adapters/storage"
)

// SQLiteStore implements the quota Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new quota store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Usage returns the send count recorded for day (0 if absent).
// PRE: day is non-empty
// POST: Returns the count or an error if the store is unreachable
func (s *SQLiteStore) Usage(ctx context.Context, day string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(count), 0) FROM email_quota WHERE day = ?`, day).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Increment adds one to day's counter, creating it at 1 if absent.
// PRE: day is non-empty
// POST: Counter incremented atomically in a single statement
func (s *SQLiteStore) Increment(ctx context.Context, day string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO email_quota (day, count) VALUES (?, 1)
		 ON CONFLICT(day) DO UPDATE SET count = count + 1`, day)
	return err
}

// DeleteExcept removes counters for every day other than keep.
// PRE: keep is non-empty
// POST: Only keep's counter (if any) remains
func (s *SQLiteStore) DeleteExcept(ctx context.Context, keep string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM email_quota WHERE day != ?`, keep)
	return err
}
