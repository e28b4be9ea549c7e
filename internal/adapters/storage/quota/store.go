package quota

import "context"

// Store defines the interface for daily send-counter persistence. It mirrors
// the small key-value surface the quota tracker needs: one integer per
// calendar day.
type Store interface {
	// Usage returns the send count recorded for day (0 if absent).
	// PRE: day is a quota.DayKeyLayout-formatted string
	// POST: Returns the count or an error if the store is unreachable
	Usage(ctx context.Context, day string) (int, error)

	// Increment adds one to day's counter, creating it at 1 if absent.
	// PRE: day is non-empty
	// POST: Counter incremented atomically in a single statement
	Increment(ctx context.Context, day string) error

	// DeleteExcept removes counters for every day other than keep.
	// PRE: keep is non-empty
	// POST: Only keep's counter (if any) remains
	DeleteExcept(ctx context.Context, keep string) error
}
