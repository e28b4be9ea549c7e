package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	emailAdapter "stablepost/internal/adapters/email"
	"stablepost/internal/adapters/render"
	queueStore "stablepost/internal/adapters/storage/queue"
	registrationStore "stablepost/internal/adapters/storage/registration"
	queueDomain "stablepost/internal/domain/queue"
	domain "stablepost/internal/domain/registration"
)

// EnquiryInput carries a new enquiry form submission.
type EnquiryInput struct {
	StudentName string
	ParentName  string
	Email       string
	Phone       string
	Location    string
}

// EnquiryDeps holds dependencies for the enquiry flow.
type EnquiryDeps struct {
	Registrations registrationStore.Store
	Queue         queueStore.Store
	Tracker       *QuotaTracker
	Sender        emailAdapter.Sender
	Renderer      *render.Renderer
	FromAddress   string
	ReplyTo       string
	AmountPaise   int64 // default amount due, attached to the new record
	GenerateID    func() string
	Now           func() time.Time
}

// ExecuteEnquiry records a new enquiry and sends (or queues) the welcome
// email. The registration row is written before any delivery attempt so an
// enquiry is never lost to a provider outage.
//
// Delivery decision:
//   - quota available: send now; failure falls through to the queue
//   - quota exhausted or unreadable: enqueue without attempting
//
// PRE: input.Email is the form's raw address
// POST: A registration row exists with email_status reflecting the outcome;
// undelivered welcomes have a queue entry
func ExecuteEnquiry(ctx context.Context, input EnquiryInput, deps EnquiryDeps) (domain.Registration, error) {
	now := deps.Now()
	addr := domain.NormalizeEmail(input.Email)

	reg := domain.Registration{
		ID:             deps.GenerateID(),
		StudentName:    input.StudentName,
		ParentName:     input.ParentName,
		Email:          addr,
		Phone:          input.Phone,
		Location:       input.Location,
		AmountDuePaise: deps.AmountPaise,
		EmailStatus:    domain.StatusUnsent,
		EmailStatusAt:  now,
		CreatedAt:      now,
	}

	// A malformed address is recorded as failed and never enqueued.
	// Retrying cannot fix the input.
	if err := reg.Validate(); err != nil {
		if errors.Is(err, domain.ErrInvalidEmail) {
			reg.EmailStatus = domain.StatusFailed
			reg.EmailError = queueDomain.TruncateError(err.Error())
			if saveErr := deps.Registrations.Save(ctx, reg); saveErr != nil {
				return domain.Registration{}, saveErr
			}
			slog.Warn("enquiry_invalid_email", "email", addr)
			return reg, NewValidationError(err)
		}
		return domain.Registration{}, NewValidationError(err)
	}

	if existing, err := deps.Registrations.GetByEmail(ctx, addr); err == nil {
		slog.Info("enquiry_duplicate", "email", addr, "registration_id", existing.ID)
		return existing, domain.ErrAlreadyRegistered
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Registration{}, err
	}

	if err := deps.Registrations.Save(ctx, reg); err != nil {
		return domain.Registration{}, err
	}

	ok, quotaErr := deps.Tracker.CanSendToday(ctx)
	if !ok {
		if err := enqueueWelcome(ctx, deps, reg, now); err != nil {
			return reg, err
		}
		reg.EmailStatus = domain.StatusQueued
		if quotaErr != nil {
			slog.Error("enquiry_quota_unreadable", "email", addr, "error", quotaErr.Error())
			return reg, quotaErr
		}
		slog.Info("enquiry_queued", "email", addr, "reason", "quota_exhausted")
		return reg, nil
	}

	subject, html, err := deps.Renderer.Welcome(reg.StudentName, reg.Location, reg.Email)
	if err != nil {
		return reg, err
	}

	_, sendErr := deps.Sender.Send(ctx, emailAdapter.SendRequest{
		To:      []string{reg.Email},
		From:    deps.FromAddress,
		Subject: subject,
		HTML:    html,
		ReplyTo: deps.ReplyTo,
	})
	if sendErr != nil {
		// The attempt counts as a failure on the queue entry so retry
		// history starts at one. The record shows the failed attempt;
		// a successful retry flips it to sent.
		entry, err := enqueueWelcomeEntry(ctx, deps, reg, now)
		if err != nil {
			return reg, err
		}
		entry.MarkFailed(sendErr, now)
		if err := deps.Queue.Save(ctx, entry); err != nil {
			return reg, err
		}
		if err := deps.Registrations.UpdateEmailStatus(ctx, reg.Email, domain.StatusFailed, now, queueDomain.TruncateError(sendErr.Error())); err != nil {
			return reg, err
		}
		reg.EmailStatus = domain.StatusFailed
		reg.EmailError = queueDomain.TruncateError(sendErr.Error())
		slog.Warn("enquiry_send_failed_queued", "email", addr, "error", sendErr.Error())
		return reg, nil
	}

	if err := deps.Tracker.RecordSend(ctx); err != nil {
		slog.Error("quota_record_failed", "email", addr, "error", err.Error())
	}
	if err := deps.Registrations.UpdateEmailStatus(ctx, reg.Email, domain.StatusSent, now, ""); err != nil {
		return reg, err
	}
	reg.EmailStatus = domain.StatusSent
	slog.Info("welcome_sent", "email", addr, "location", reg.Location)
	return reg, nil
}

// enqueueWelcome creates (or refreshes) the queue entry and marks the
// registration queued.
func enqueueWelcome(ctx context.Context, deps EnquiryDeps, reg domain.Registration, now time.Time) error {
	if _, err := enqueueWelcomeEntry(ctx, deps, reg, now); err != nil {
		return err
	}
	return deps.Registrations.UpdateEmailStatus(ctx, reg.Email, domain.StatusQueued, now, "")
}

// enqueueWelcomeEntry returns the recipient's queue entry, creating a
// pending one if none exists. One entry per recipient: a re-enqueue of the
// same address reuses the existing row and its attempt history.
func enqueueWelcomeEntry(ctx context.Context, deps EnquiryDeps, reg domain.Registration, now time.Time) (queueDomain.Entry, error) {
	existing, err := deps.Queue.GetByRecipient(ctx, reg.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, queueDomain.ErrNotFound) {
		return queueDomain.Entry{}, err
	}

	entry := queueDomain.Entry{
		ID:           deps.GenerateID(),
		EnqueuedAt:   now,
		RecipientKey: reg.Email,
		DisplayName:  reg.StudentName,
		Location:     reg.Location,
		Status:       queueDomain.StatusPending,
	}
	if err := deps.Queue.Save(ctx, entry); err != nil {
		return queueDomain.Entry{}, err
	}
	slog.Info("welcome_enqueued", "email", reg.Email, "entry_id", entry.ID)
	return entry, nil
}
