package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	emailAdapter "stablepost/internal/adapters/email"
	"stablepost/internal/adapters/render"
	queueStore "stablepost/internal/adapters/storage/queue"
	registrationStore "stablepost/internal/adapters/storage/registration"
	queueDomain "stablepost/internal/domain/queue"
	registrationDomain "stablepost/internal/domain/registration"
)

// maxSummaryErrors bounds the error list in a drain summary so a large
// backlog of failures cannot bloat responses or logs.
const maxSummaryErrors = 5

// DrainSummary reports the outcome of one queue sweep.
type DrainSummary struct {
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Remaining int      `json:"remaining"`
	Errors    []string `json:"errors,omitempty"`
}

// QueueProcessor drains the welcome-email send queue in FIFO order,
// stopping at the first entry the quota will not cover. Entries behind a
// blocked one wait for the next sweep, preserving enqueue order.
type QueueProcessor struct {
	Queue         queueStore.Store
	Registrations registrationStore.Store
	Tracker       *QuotaTracker
	Sender        emailAdapter.Sender
	Renderer      *render.Renderer
	FromAddress   string
	ReplyTo       string

	// SendDelay spaces provider calls so a large drain does not trip
	// rate limits. Sleep is injectable for tests; nil means time.Sleep.
	SendDelay time.Duration
	Sleep     func(time.Duration)
	Now       func() time.Time
}

// Drain processes every queued entry it can, oldest first.
// PRE: ctx is valid
// POST: Sent entries are deleted, failures keep their entry with an
// incremented attempt count, and the summary reflects the final queue size
func (p *QueueProcessor) Drain(ctx context.Context) (DrainSummary, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	entries, err := p.Queue.ListOldestFirst(ctx, 0)
	if err != nil {
		return DrainSummary{}, fmt.Errorf("list queue entries: %w", err)
	}

	var summary DrainSummary
	blocked := false
	for i, entry := range entries {
		// A sent entry still in the table is a leftover from a crash
		// between delivery and cleanup. Remove it without re-sending.
		if entry.IsSent() {
			if err := p.Queue.Delete(ctx, entry.ID); err != nil {
				summary.Remaining += len(entries) - i
				return summary, fmt.Errorf("delete sent entry %s: %w", entry.ID, err)
			}
			continue
		}

		if blocked {
			summary.Remaining++
			continue
		}

		ok, quotaErr := p.Tracker.CanSendToday(ctx)
		if !ok {
			blocked = true
			summary.Remaining++
			if quotaErr != nil {
				summary.addError(quotaErr.Error())
				slog.Error("queue_drain_quota_unreadable", "error", quotaErr.Error())
			} else {
				slog.Info("queue_drain_quota_exhausted", "processed", i, "remaining", len(entries)-i)
			}
			continue
		}

		if err := p.processEntry(ctx, entry, &summary); err != nil {
			summary.addError(err.Error())
		}

		if p.SendDelay > 0 && i < len(entries)-1 && !blocked {
			sleep(p.SendDelay)
		}
	}

	slog.Info("queue_drain_complete", "sent", summary.Sent, "failed", summary.Failed, "remaining", summary.Remaining)
	return summary, nil
}

// processEntry attempts delivery for one entry. On success the entry is
// deleted and the registration marked sent; on failure the entry stays with
// its failure recorded. A validation failure is terminal: the entry is
// removed because no retry can succeed.
func (p *QueueProcessor) processEntry(ctx context.Context, entry queueDomain.Entry, summary *DrainSummary) error {
	now := p.Now()

	subject, html, err := p.Renderer.Welcome(entry.DisplayName, entry.Location, entry.RecipientKey)
	if err != nil {
		return p.recordFailure(ctx, entry, err, now, summary)
	}

	_, sendErr := p.Sender.Send(ctx, emailAdapter.SendRequest{
		To:      []string{entry.RecipientKey},
		From:    p.FromAddress,
		Subject: subject,
		HTML:    html,
		ReplyTo: p.ReplyTo,
	})
	if sendErr != nil {
		if IsValidationError(sendErr) {
			return p.recordTerminalFailure(ctx, entry, sendErr, now, summary)
		}
		return p.recordFailure(ctx, entry, sendErr, now, summary)
	}

	if err := p.Tracker.RecordSend(ctx); err != nil {
		slog.Error("quota_record_failed", "email", entry.RecipientKey, "error", err.Error())
	}

	// Record of truth first, then queue cleanup. A crash in between
	// leaves a sent entry that the next drain removes without re-sending.
	entry.MarkSent(now)
	if err := p.Queue.Save(ctx, entry); err != nil {
		return err
	}
	if err := p.updateRegistration(ctx, entry.RecipientKey, registrationDomain.StatusSent, now, ""); err != nil {
		return err
	}
	if err := p.Queue.Delete(ctx, entry.ID); err != nil {
		slog.Warn("queue_cleanup_failed", "entry_id", entry.ID, "error", err.Error())
	}

	summary.Sent++
	slog.Info("queued_welcome_sent", "email", entry.RecipientKey, "attempts", entry.Attempts)
	return nil
}

// recordFailure keeps the entry for a later sweep with the failure counted.
// The main record shows the failed attempt and its error until a retry
// succeeds.
func (p *QueueProcessor) recordFailure(ctx context.Context, entry queueDomain.Entry, cause error, now time.Time, summary *DrainSummary) error {
	summary.Failed++
	summary.Remaining++
	entry.MarkFailed(cause, now)
	if err := p.Queue.Save(ctx, entry); err != nil {
		return fmt.Errorf("save failed entry: %w (send error: %v)", err, cause)
	}
	if err := p.updateRegistration(ctx, entry.RecipientKey, registrationDomain.StatusFailed, now, entry.LastError); err != nil {
		slog.Warn("registration_status_update_failed", "email", entry.RecipientKey, "error", err.Error())
	}
	slog.Warn("queued_welcome_failed", "email", entry.RecipientKey, "attempts", entry.Attempts, "error", entry.LastError)
	return cause
}

// recordTerminalFailure drops the entry and marks the registration failed.
// It does not count toward Remaining: the entry is gone for good.
func (p *QueueProcessor) recordTerminalFailure(ctx context.Context, entry queueDomain.Entry, cause error, now time.Time, summary *DrainSummary) error {
	summary.Failed++
	if err := p.updateRegistration(ctx, entry.RecipientKey, registrationDomain.StatusFailed, now, queueDomain.TruncateError(cause.Error())); err != nil {
		slog.Warn("registration_status_update_failed", "email", entry.RecipientKey, "error", err.Error())
	}
	if err := p.Queue.Delete(ctx, entry.ID); err != nil {
		return fmt.Errorf("delete terminal entry: %w", err)
	}
	slog.Warn("queued_welcome_rejected", "email", entry.RecipientKey, "error", cause.Error())
	return cause
}

func (p *QueueProcessor) updateRegistration(ctx context.Context, email, status string, at time.Time, errMsg string) error {
	err := p.Registrations.UpdateEmailStatus(ctx, email, status, at, errMsg)
	if errors.Is(err, registrationDomain.ErrNotFound) {
		// Queue entry without a registration row; the entry itself still
		// carries the delivery history.
		slog.Warn("registration_missing_for_entry", "email", email)
		return nil
	}
	return err
}

func (s *DrainSummary) addError(msg string) {
	if len(s.Errors) < maxSummaryErrors {
		s.Errors = append(s.Errors, queueDomain.TruncateError(msg))
	}
}

// RetrySingle drains one entry by ID regardless of its position, for the
// admin retry endpoint. The quota gate still applies.
// PRE: entryID is non-empty
// POST: Entry processed once; outcome recorded as in a full drain
func (p *QueueProcessor) RetrySingle(ctx context.Context, entryID string) error {
	entry, err := p.Queue.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.IsSent() {
		return p.Queue.Delete(ctx, entry.ID)
	}

	ok, quotaErr := p.Tracker.CanSendToday(ctx)
	if !ok {
		if quotaErr != nil {
			return quotaErr
		}
		return ErrQuotaExhausted
	}

	var summary DrainSummary
	return p.processEntry(ctx, entry, &summary)
}

// StartSweepScheduler runs periodic queue drains until stopCh closes.
// PRE: processor is fully wired
// POST: Goroutine exits when stopCh is closed
func StartSweepScheduler(processor *QueueProcessor, interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if _, err := processor.Drain(ctx); err != nil {
					slog.Error("queue_sweep_failed", "error", err.Error())
				}
				if err := processor.Tracker.ResetIfStale(ctx); err != nil {
					slog.Error("quota_prune_failed", "error", err.Error())
				}
				cancel()
			case <-stopCh:
				slog.Info("queue_sweep_scheduler_stopped")
				return
			}
		}
	}()
}
