package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	queueDomain "stablepost/internal/domain/queue"
	registrationDomain "stablepost/internal/domain/registration"
)

func newTestProcessor(queue *mockQueueStore, regs *mockRegistrationStore, quota *mockQuotaStore, sender *mockSender, limit int) *QueueProcessor {
	return &QueueProcessor{
		Queue:         queue,
		Registrations: regs,
		Tracker:       NewQuotaTracker(quota, limit, testNow, time.UTC),
		Sender:        sender,
		Renderer:      testRenderer(),
		FromAddress:   "noreply@example.test",
		ReplyTo:       "info@example.test",
		Now:           testNow,
		Sleep:         func(time.Duration) {},
	}
}

func seedEntry(queue *mockQueueStore, regs *mockRegistrationStore, n int) queueDomain.Entry {
	email := fmt.Sprintf("rider%d@example.com", n)
	entry := queueDomain.Entry{
		ID:           fmt.Sprintf("entry-%d", n),
		EnqueuedAt:   fixedTime.Add(time.Duration(n) * time.Minute),
		RecipientKey: email,
		DisplayName:  fmt.Sprintf("Rider %d", n),
		Location:     "bangalore",
		Status:       queueDomain.StatusPending,
	}
	queue.entries[entry.ID] = entry
	regs.regs[email] = registrationDomain.Registration{
		ID:          fmt.Sprintf("reg-%d", n),
		StudentName: entry.DisplayName,
		Email:       email,
		Location:    "bangalore",
		EmailStatus: registrationDomain.StatusQueued,
		CreatedAt:   fixedTime,
	}
	return entry
}

// TestDrain_SendsFIFO verifies oldest entries go first and sent entries
// leave the queue.
func TestDrain_SendsFIFO(t *testing.T) {
	queue := newMockQueueStore()
	regs := newMockRegistrationStore()
	sender := newMockSender()
	for i := 1; i <= 3; i++ {
		seedEntry(queue, regs, i)
	}

	p := newTestProcessor(queue, regs, newMockQuotaStore(), sender, 95)
	summary, err := p.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}

	if summary.Sent != 3 || summary.Failed != 0 || summary.Remaining != 0 {
		t.Errorf("summary = %+v, want 3 sent", summary)
	}
	if len(queue.entries) != 0 {
		t.Errorf("queue entries = %d, want 0", len(queue.entries))
	}
	for i, req := range sender.sentReqs {
		want := fmt.Sprintf("rider%d@example.com", i+1)
		if req.To[0] != want {
			t.Errorf("send %d went to %q, want %q (FIFO)", i, req.To[0], want)
		}
	}
	for i := 1; i <= 3; i++ {
		reg := regs.regs[fmt.Sprintf("rider%d@example.com", i)]
		if reg.EmailStatus != registrationDomain.StatusSent {
			t.Errorf("rider%d status = %q, want sent", i, reg.EmailStatus)
		}
	}
}

// TestDrain_StopsAtQuota verifies the drain halts at the first entry the
// quota cannot cover, leaving later entries untouched in order.
func TestDrain_StopsAtQuota(t *testing.T) {
	queue := newMockQueueStore()
	regs := newMockRegistrationStore()
	quota := newMockQuotaStore()
	quota.counts["2026-01-05"] = 93 // room for 2 under a limit of 95
	sender := newMockSender()
	for i := 1; i <= 5; i++ {
		seedEntry(queue, regs, i)
	}

	p := newTestProcessor(queue, regs, quota, sender, 95)
	summary, err := p.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}

	if summary.Sent != 2 {
		t.Errorf("sent = %d, want 2", summary.Sent)
	}
	if summary.Remaining != 3 {
		t.Errorf("remaining = %d, want 3", summary.Remaining)
	}
	if sender.sent != 2 {
		t.Errorf("provider calls = %d, want 2", sender.sent)
	}
	// The blocked entries are the newest three, still pending.
	for i := 3; i <= 5; i++ {
		id := fmt.Sprintf("entry-%d", i)
		e, ok := queue.entries[id]
		if !ok {
			t.Errorf("entry %s missing", id)
			continue
		}
		if e.Status != queueDomain.StatusPending || e.Attempts != 0 {
			t.Errorf("entry %s status=%q attempts=%d, want untouched", id, e.Status, e.Attempts)
		}
	}
}

// TestDrain_FailureKeepsEntry verifies a provider failure keeps the entry
// with an incremented attempt count and marks the registration failed with
// the error recorded.
func TestDrain_FailureKeepsEntry(t *testing.T) {
	queue := newMockQueueStore()
	regs := newMockRegistrationStore()
	sender := newMockSender()
	sender.failAt = 2 // first send succeeds, second fails
	for i := 1; i <= 2; i++ {
		seedEntry(queue, regs, i)
	}

	p := newTestProcessor(queue, regs, newMockQuotaStore(), sender, 95)
	summary, err := p.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}

	if summary.Sent != 1 || summary.Failed != 1 || summary.Remaining != 1 {
		t.Errorf("summary = %+v, want 1/1/1", summary)
	}
	if len(summary.Errors) != 1 {
		t.Errorf("errors = %d, want 1", len(summary.Errors))
	}
	e, ok := queue.entries["entry-2"]
	if !ok {
		t.Fatal("failed entry removed from queue")
	}
	if e.Attempts != 1 || e.Status != queueDomain.StatusFailed {
		t.Errorf("entry attempts=%d status=%q, want 1 failed", e.Attempts, e.Status)
	}
	reg := regs.regs["rider2@example.com"]
	if reg.EmailStatus != registrationDomain.StatusFailed {
		t.Errorf("registration status = %q, want failed", reg.EmailStatus)
	}
	if reg.EmailError == "" {
		t.Error("registration email_error not recorded")
	}
}

// TestDrain_AttemptsCountFailuresOnly verifies an entry that fails twice
// then succeeds finishes with exactly two recorded attempts.
func TestDrain_AttemptsCountFailuresOnly(t *testing.T) {
	queue := newMockQueueStore()
	regs := newMockRegistrationStore()
	sender := newMockSender()
	seedEntry(queue, regs, 1)

	p := newTestProcessor(queue, regs, newMockQuotaStore(), sender, 95)

	sender.failAt = 1 // every send fails
	for i := 0; i < 2; i++ {
		if _, err := p.Drain(context.Background()); err != nil {
			t.Fatalf("drain %d: %v", i, err)
		}
	}
	if e := queue.entries["entry-1"]; e.Attempts != 2 {
		t.Fatalf("attempts after two failures = %d, want 2", e.Attempts)
	}

	sender.failAt = -1
	summary, err := p.Drain(context.Background())
	if err != nil {
		t.Fatalf("final drain: %v", err)
	}
	if summary.Sent != 1 {
		t.Errorf("sent = %d, want 1", summary.Sent)
	}
	if _, ok := queue.entries["entry-1"]; ok {
		t.Error("delivered entry still in queue")
	}
	// Delivery succeeded on the third try after two failures; the success
	// itself does not bump the count.
	reg := regs.regs["rider1@example.com"]
	if reg.EmailStatus != registrationDomain.StatusSent {
		t.Errorf("registration status = %q, want sent", reg.EmailStatus)
	}
}

// TestDrain_AfterDayRollover verifies an entry blocked by an exhausted
// quota delivers on the next day's sweep and counts against the new day.
func TestDrain_AfterDayRollover(t *testing.T) {
	queue := newMockQueueStore()
	regs := newMockRegistrationStore()
	quota := newMockQuotaStore()
	quota.counts["2026-01-05"] = 95
	sender := newMockSender()
	seedEntry(queue, regs, 1)

	now := fixedTime
	clock := func() time.Time { return now }
	p := newTestProcessor(queue, regs, quota, sender, 95)
	p.Now = clock
	p.Tracker = NewQuotaTracker(quota, 95, clock, time.UTC)

	summary, err := p.Drain(context.Background())
	if err != nil {
		t.Fatalf("blocked drain: %v", err)
	}
	if summary.Sent != 0 || summary.Remaining != 1 {
		t.Fatalf("summary = %+v, want 0 sent 1 remaining", summary)
	}
	if sender.sent != 0 {
		t.Fatalf("provider calls = %d, want 0", sender.sent)
	}

	now = now.Add(24 * time.Hour)
	summary, err = p.Drain(context.Background())
	if err != nil {
		t.Fatalf("next-day drain: %v", err)
	}
	if summary.Sent != 1 || summary.Remaining != 0 {
		t.Errorf("summary = %+v, want 1 sent 0 remaining", summary)
	}
	if quota.counts["2026-01-06"] != 1 {
		t.Errorf("new day count = %d, want 1", quota.counts["2026-01-06"])
	}
	if len(queue.entries) != 0 {
		t.Error("delivered entry still in queue")
	}
	if regs.regs["rider1@example.com"].EmailStatus != registrationDomain.StatusSent {
		t.Errorf("registration status = %q, want sent", regs.regs["rider1@example.com"].EmailStatus)
	}
}

// TestDrain_LeftoverSentEntryDeletedWithoutResend covers the crash window
// between delivery and queue cleanup.
func TestDrain_LeftoverSentEntryDeletedWithoutResend(t *testing.T) {
	queue := newMockQueueStore()
	regs := newMockRegistrationStore()
	sender := newMockSender()
	entry := seedEntry(queue, regs, 1)
	entry.MarkSent(fixedTime)
	queue.entries[entry.ID] = entry

	p := newTestProcessor(queue, regs, newMockQuotaStore(), sender, 95)
	summary, err := p.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}

	if sender.sent != 0 {
		t.Errorf("provider calls = %d, want 0 (no double delivery)", sender.sent)
	}
	if summary.Sent != 0 {
		t.Errorf("summary.Sent = %d, want 0", summary.Sent)
	}
	if len(queue.entries) != 0 {
		t.Errorf("leftover entry not cleaned up")
	}
}

// TestDrain_QuotaUnreadableStops verifies a broken counter blocks the whole
// drain rather than sending blind.
func TestDrain_QuotaUnreadableStops(t *testing.T) {
	queue := newMockQueueStore()
	regs := newMockRegistrationStore()
	quota := newMockQuotaStore()
	quota.usageErr = errors.New("disk error")
	sender := newMockSender()
	for i := 1; i <= 3; i++ {
		seedEntry(queue, regs, i)
	}

	p := newTestProcessor(queue, regs, quota, sender, 95)
	summary, err := p.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}

	if sender.sent != 0 {
		t.Errorf("provider calls = %d, want 0", sender.sent)
	}
	if summary.Remaining != 3 {
		t.Errorf("remaining = %d, want 3", summary.Remaining)
	}
	if len(summary.Errors) == 0 {
		t.Error("quota error not surfaced in summary")
	}
}

// TestDrain_ErrorListBounded verifies the summary carries at most five
// error strings however many entries fail.
func TestDrain_ErrorListBounded(t *testing.T) {
	queue := newMockQueueStore()
	regs := newMockRegistrationStore()
	sender := newMockSender()
	sender.failAt = 1 // everything fails
	for i := 1; i <= 8; i++ {
		seedEntry(queue, regs, i)
	}

	p := newTestProcessor(queue, regs, newMockQuotaStore(), sender, 95)
	summary, err := p.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}

	if summary.Failed != 8 {
		t.Errorf("failed = %d, want 8", summary.Failed)
	}
	if len(summary.Errors) != maxSummaryErrors {
		t.Errorf("errors = %d, want %d", len(summary.Errors), maxSummaryErrors)
	}
}

// TestDrain_ValidationFailureIsTerminal verifies a non-retryable failure
// removes the entry and marks the registration failed.
func TestDrain_ValidationFailureIsTerminal(t *testing.T) {
	queue := newMockQueueStore()
	regs := newMockRegistrationStore()
	sender := newMockSender()
	sender.failAt = 1
	sender.failErr = NewValidationError(errors.New("recipient rejected"))
	seedEntry(queue, regs, 1)

	p := newTestProcessor(queue, regs, newMockQuotaStore(), sender, 95)
	summary, err := p.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}

	if summary.Failed != 1 || summary.Remaining != 0 {
		t.Errorf("summary = %+v, want failed 1 remaining 0", summary)
	}
	if _, ok := queue.entries["entry-1"]; ok {
		t.Error("terminal entry still in queue")
	}
	if regs.regs["rider1@example.com"].EmailStatus != registrationDomain.StatusFailed {
		t.Errorf("registration status = %q, want failed", regs.regs["rider1@example.com"].EmailStatus)
	}
}

// TestDrain_SpacesSends verifies the inter-send delay is applied between
// entries but not after the last one.
func TestDrain_SpacesSends(t *testing.T) {
	queue := newMockQueueStore()
	regs := newMockRegistrationStore()
	sender := newMockSender()
	for i := 1; i <= 3; i++ {
		seedEntry(queue, regs, i)
	}

	var slept []time.Duration
	p := newTestProcessor(queue, regs, newMockQuotaStore(), sender, 95)
	p.SendDelay = time.Second
	p.Sleep = func(d time.Duration) { slept = append(slept, d) }

	if _, err := p.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(slept) != 2 {
		t.Errorf("sleeps = %d, want 2", len(slept))
	}
	for _, d := range slept {
		if d != time.Second {
			t.Errorf("sleep = %v, want 1s", d)
		}
	}
}

// TestRetrySingle covers the admin retry path.
func TestRetrySingle(t *testing.T) {
	queue := newMockQueueStore()
	regs := newMockRegistrationStore()
	sender := newMockSender()
	seedEntry(queue, regs, 1)

	p := newTestProcessor(queue, regs, newMockQuotaStore(), sender, 95)
	if err := p.RetrySingle(context.Background(), "entry-1"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if sender.sent != 1 {
		t.Errorf("sends = %d, want 1", sender.sent)
	}
	if _, ok := queue.entries["entry-1"]; ok {
		t.Error("entry still queued after successful retry")
	}

	if err := p.RetrySingle(context.Background(), "missing"); !errors.Is(err, queueDomain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestRetrySingle_QuotaBlocked verifies the quota gate applies to manual
// retries too.
func TestRetrySingle_QuotaBlocked(t *testing.T) {
	queue := newMockQueueStore()
	regs := newMockRegistrationStore()
	quota := newMockQuotaStore()
	quota.counts["2026-01-05"] = 95
	sender := newMockSender()
	seedEntry(queue, regs, 1)

	p := newTestProcessor(queue, regs, quota, sender, 95)
	if err := p.RetrySingle(context.Background(), "entry-1"); !errors.Is(err, ErrQuotaExhausted) {
		t.Errorf("err = %v, want ErrQuotaExhausted", err)
	}
	if sender.sent != 0 {
		t.Errorf("sends = %d, want 0", sender.sent)
	}
}
