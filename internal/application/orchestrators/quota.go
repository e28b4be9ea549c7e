package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	quotaStore "stablepost/internal/adapters/storage/quota"
	domain "stablepost/internal/domain/quota"
)

// QuotaTracker enforces the daily outbound email allowance. All sends in
// the system pass through one tracker so the counter reflects every
// delivery path, not just the queue.
type QuotaTracker struct {
	store    quotaStore.Store
	limit    int
	now      func() time.Time
	location *time.Location
}

// NewQuotaTracker creates a tracker. limit <= 0 falls back to the default
// daily limit.
func NewQuotaTracker(store quotaStore.Store, limit int, now func() time.Time, loc *time.Location) *QuotaTracker {
	if limit <= 0 {
		limit = domain.DefaultDailyLimit
	}
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &QuotaTracker{store: store, limit: limit, now: now, location: loc}
}

// Limit returns the configured daily limit.
func (t *QuotaTracker) Limit() int { return t.limit }

// todayKey returns the counter key for the current business day.
func (t *QuotaTracker) todayKey() string {
	return domain.DayKey(t.now(), t.location)
}

// CanSendToday reports whether another send is allowed right now.
// The tracker fails closed: when the counter cannot be read, the answer is
// false and the error explains why. Sending blind could overrun the
// provider cap, which suspends the whole account.
// PRE: ctx is valid
// POST: (true, nil) only when the counter was read and is under the limit
func (t *QuotaTracker) CanSendToday(ctx context.Context) (bool, error) {
	count, err := t.store.Usage(ctx, t.todayKey())
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrQuotaUnavailable, err)
	}
	return count < t.limit, nil
}

// RecordSend increments today's counter by one. Called once per accepted
// delivery, immediately after the provider call succeeds.
// PRE: a send just completed
// POST: Counter incremented atomically
func (t *QuotaTracker) RecordSend(ctx context.Context) error {
	day := t.todayKey()
	if err := t.store.Increment(ctx, day); err != nil {
		return fmt.Errorf("increment quota counter: %w", err)
	}
	return nil
}

// UsageToday returns today's counter.
// POST: Counter.Day is today's key, Count >= 0
func (t *QuotaTracker) UsageToday(ctx context.Context) (domain.Counter, error) {
	day := t.todayKey()
	count, err := t.store.Usage(ctx, day)
	if err != nil {
		return domain.Counter{}, fmt.Errorf("read quota counter: %w", err)
	}
	return domain.Counter{Day: day, Count: count}, nil
}

// Remaining returns how many sends are left today, never negative.
func (t *QuotaTracker) Remaining(ctx context.Context) (int, error) {
	c, err := t.UsageToday(ctx)
	if err != nil {
		return 0, err
	}
	return c.Remaining(t.limit), nil
}

// ResetIfStale removes counters from previous days. The day key embeds the
// date, so stale counters are already inert; this just keeps the table from
// accumulating one row per day forever.
// POST: Only today's counter remains
func (t *QuotaTracker) ResetIfStale(ctx context.Context) error {
	day := t.todayKey()
	if err := t.store.DeleteExcept(ctx, day); err != nil {
		return fmt.Errorf("prune stale quota counters: %w", err)
	}
	slog.Debug("quota_counters_pruned", "keep", day)
	return nil
}
