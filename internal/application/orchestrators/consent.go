package orchestrators

import (
	"context"
	"log/slog"
	"strings"
	"time"

	registrationStore "stablepost/internal/adapters/storage/registration"
	domain "stablepost/internal/domain/registration"
)

// AcceptConsentInput carries a terms-and-conditions acceptance.
type AcceptConsentInput struct {
	Email         string
	AcceptedTerms bool
}

// AcceptConsentDeps holds dependencies for the consent flow.
type AcceptConsentDeps struct {
	Registrations registrationStore.Store
	// LocationCodes maps lower-cased location names to short codes used in
	// registration numbers, e.g. "bangalore" -> "BLR".
	LocationCodes map[string]string
	Now           func() time.Time
	Location      *time.Location
}

// ExecuteAcceptConsent records acceptance and assigns the registration
// number. Accepting twice is a no-op that returns the existing record, so
// a double-submitted form never burns a second number.
// PRE: input.Email identifies an existing registration
// POST: ConsentAccepted true, RegistrationNumber assigned exactly once
func ExecuteAcceptConsent(ctx context.Context, input AcceptConsentInput, deps AcceptConsentDeps) (domain.Registration, error) {
	if !input.AcceptedTerms {
		return domain.Registration{}, NewValidationError(domain.ErrConsentRequired)
	}

	addr := domain.NormalizeEmail(input.Email)
	reg, err := deps.Registrations.GetByEmail(ctx, addr)
	if err != nil {
		return domain.Registration{}, err
	}

	if reg.ConsentAccepted && reg.RegistrationNumber != "" {
		slog.Info("consent_already_recorded", "email", addr, "registration_number", reg.RegistrationNumber)
		return reg, nil
	}

	code, ok := deps.LocationCodes[strings.ToLower(strings.TrimSpace(reg.Location))]
	if !ok {
		return domain.Registration{}, NewValidationError(domain.ErrUnknownLocation)
	}

	seq, err := deps.Registrations.CountByLocation(ctx, reg.Location)
	if err != nil {
		return domain.Registration{}, err
	}

	now := deps.Now()
	reg.ConsentAccepted = true
	reg.ConsentAt = now
	reg.RegistrationNumber = domain.NewRegistrationNumber(code, now, deps.Location, seq+1)

	if err := deps.Registrations.Save(ctx, reg); err != nil {
		return domain.Registration{}, err
	}

	slog.Info("consent_recorded", "email", addr, "registration_number", reg.RegistrationNumber)
	return reg, nil
}
