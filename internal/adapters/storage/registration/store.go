package registration

import (
	"context"
	"time"

	domain "stablepost/internal/domain/registration"
)

// Store defines the interface for main-record persistence. The email status
// columns are the record of truth for delivery outcomes; UpdateEmailStatus
// touches only those columns so unrelated fields are never clobbered.
type Store interface {
	// GetByEmail retrieves a registration by its normalized email key.
	// PRE: email is non-empty
	// POST: Returns the registration or domain.ErrNotFound
	GetByEmail(ctx context.Context, email string) (domain.Registration, error)

	// GetByNumber retrieves a registration by registration number.
	// PRE: number is non-empty
	// POST: Returns the registration or domain.ErrNotFound
	GetByNumber(ctx context.Context, number string) (domain.Registration, error)

	// Save persists a registration (insert or update).
	// PRE: r has been validated
	// POST: Registration is persisted
	Save(ctx context.Context, r domain.Registration) error

	// UpdateEmailStatus updates only the email status columns for email.
	// PRE: email identifies an existing row; status is a domain status constant
	// POST: email_status, email_status_at and email_error updated, nothing else
	UpdateEmailStatus(ctx context.Context, email, status string, at time.Time, errMsg string) error

	// CountByLocation returns how many registrations exist for a location,
	// used to derive the next registration-number sequence.
	CountByLocation(ctx context.Context, location string) (int, error)
}
