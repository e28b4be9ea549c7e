package payment

import (
	"context"

	domain "stablepost/internal/domain/payment"
)

// Store defines the interface for payment-submission persistence.
type Store interface {
	// GetByID retrieves a submission by its ID.
	// PRE: id is non-empty
	// POST: Returns the submission or domain.ErrNotFound
	GetByID(ctx context.Context, id string) (domain.Submission, error)

	// Save persists a submission (insert or update).
	// PRE: s has been validated
	// POST: Submission is persisted
	Save(ctx context.Context, s domain.Submission) error

	// ListIssuedByReference returns submissions for a reference whose
	// receipt was already issued. The duplicate guard scans these.
	// PRE: ref is non-empty
	// POST: Returns matching submissions, oldest first
	ListIssuedByReference(ctx context.Context, ref string) ([]domain.Submission, error)

	// CountIssued returns how many receipts have ever been issued, used to
	// derive the next receipt-number sequence.
	CountIssued(ctx context.Context) (int, error)
}
