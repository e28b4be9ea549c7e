package queue

import (
	"context"

	domain "stablepost/internal/domain/queue"
)

// Store defines the interface for send-queue persistence.
type Store interface {
	// GetByID retrieves a queue entry by its ID.
	// PRE: id is non-empty
	// POST: Returns the entry or domain.ErrNotFound
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// GetByRecipient retrieves the entry for a recipient email, if queued.
	// PRE: email is non-empty
	// POST: Returns the entry or domain.ErrNotFound
	GetByRecipient(ctx context.Context, email string) (domain.Entry, error)

	// Save persists a queue entry (insert or update).
	// PRE: entry has been validated
	// POST: Entry is persisted
	Save(ctx context.Context, e domain.Entry) error

	// ListOldestFirst returns entries in FIFO order by enqueued_at.
	// PRE: limit > 0, or 0 for no limit
	// POST: Returns entries ordered oldest first
	ListOldestFirst(ctx context.Context, limit int) ([]domain.Entry, error)

	// Count returns the number of entries still in the queue.
	Count(ctx context.Context) (int, error)

	// Delete removes a queue entry.
	// PRE: id is non-empty
	// POST: Entry is removed
	Delete(ctx context.Context, id string) error
}
