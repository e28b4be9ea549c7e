package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	emailAdapter "stablepost/internal/adapters/email"
	"stablepost/internal/adapters/render"
	paymentStore "stablepost/internal/adapters/storage/payment"
	domain "stablepost/internal/domain/payment"
)

// DuplicateGuard detects resubmissions of already-receipted payments. Match
// requires all four fields to agree: trimmed reference, exact amount, same
// calendar day and the same original form timestamp. The timestamp keeps a
// genuine second payment of the same amount on the same day receiptable.
type DuplicateGuard struct {
	Payments paymentStore.Store
	Location *time.Location
}

// IsDuplicate reports whether an equivalent submission already received a
// receipt. The guard fails closed: if issued receipts cannot be read, the
// verdict is duplicate with the error attached, so a caller never treats an
// unscanned submission as clean.
// PRE: ref is the raw form reference
// POST: (false, nil) only when the issued list was scanned clean
func (g *DuplicateGuard) IsDuplicate(ctx context.Context, ref string, amountPaise int64, paymentDate time.Time, submittedAt time.Time) (bool, error) {
	issued, err := g.Payments.ListIssuedByReference(ctx, ref)
	if err != nil {
		return true, fmt.Errorf("scan issued receipts: %w", err)
	}

	day := domain.NormalizeDate(paymentDate, g.Location)
	for _, s := range issued {
		if s.Matches(ref, amountPaise, day, submittedAt, g.Location) {
			return true, nil
		}
	}
	return false, nil
}

// RecordPaymentInput carries one payment-form submission.
type RecordPaymentInput struct {
	ReferenceNumber string
	PayerName       string
	Email           string
	PAN             string
	AmountPaise     int64
	PaymentDate     time.Time
	SubmittedAt     time.Time
	TransactionID   string
	Verified        bool
}

// RecordPaymentDeps holds dependencies for recording a payment.
type RecordPaymentDeps struct {
	Payments   paymentStore.Store
	Guard      *DuplicateGuard
	GenerateID func() string
	Now        func() time.Time
}

// ExecuteRecordPayment stores a payment submission, flagging duplicates of
// already-receipted payments. Duplicates are persisted too, so the review
// trail shows what arrived, but they never reach receipt issuance.
// PRE: input comes from the payment form
// POST: A submission row exists; only a confirmed match carries
// receipt_status duplicate
func ExecuteRecordPayment(ctx context.Context, input RecordPaymentInput, deps RecordPaymentDeps) (domain.Submission, error) {
	sub := domain.Submission{
		ID:              deps.GenerateID(),
		ReferenceNumber: input.ReferenceNumber,
		PayerName:       input.PayerName,
		Email:           input.Email,
		PAN:             input.PAN,
		AmountPaise:     input.AmountPaise,
		PaymentDate:     input.PaymentDate,
		SubmittedAt:     input.SubmittedAt,
		TransactionID:   input.TransactionID,
		Verified:        input.Verified,
		ReceiptStatus:   domain.ReceiptPending,
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = deps.Now()
	}
	if err := sub.Validate(); err != nil {
		return domain.Submission{}, NewValidationError(err)
	}

	dup, guardErr := deps.Guard.IsDuplicate(ctx, sub.ReferenceNumber, sub.AmountPaise, sub.PaymentDate, sub.SubmittedAt)
	if guardErr != nil {
		// The scan failed, so the verdict is unknown. The duplicate flag
		// is terminal; keep the row pending instead so a legitimate
		// submission can still be receipted once the store recovers.
		if err := deps.Payments.Save(ctx, sub); err != nil {
			return domain.Submission{}, err
		}
		slog.Error("duplicate_guard_unreadable", "reference", sub.ReferenceNumber, "submission_id", sub.ID, "error", guardErr.Error())
		return sub, guardErr
	}
	if dup {
		sub.MarkDuplicate()
		if err := deps.Payments.Save(ctx, sub); err != nil {
			return domain.Submission{}, err
		}
		slog.Info("duplicate_payment_flagged", "reference", sub.ReferenceNumber, "submission_id", sub.ID)
		return sub, ErrDuplicateSubmission
	}

	if err := deps.Payments.Save(ctx, sub); err != nil {
		return domain.Submission{}, err
	}
	slog.Info("payment_recorded", "reference", sub.ReferenceNumber, "submission_id", sub.ID, "verified", sub.Verified)
	return sub, nil
}

// SendReceiptInput identifies the submission to receipt.
type SendReceiptInput struct {
	SubmissionID string
}

// SendReceiptDeps holds dependencies for receipt issuance.
type SendReceiptDeps struct {
	Payments    paymentStore.Store
	Tracker     *QuotaTracker
	Sender      emailAdapter.Sender
	Renderer    *render.Renderer
	FromAddress string
	ReplyTo     string
	Now         func() time.Time
	Location    *time.Location

	// ReceiptPDF optionally renders the receipt as a PDF attachment.
	// Nil means the email goes out with the HTML body only.
	ReceiptPDF func(rec render.Receipt) ([]byte, error)
}

// ExecuteSendReceipt numbers, renders and emails the receipt for a
// verified submission, then marks it issued. The row is re-read before the
// final write so a verification or status change made while the email was
// in flight is not clobbered.
// PRE: SubmissionID exists
// POST: receipt_status yes with a fresh receipt number, counted against quota
func ExecuteSendReceipt(ctx context.Context, input SendReceiptInput, deps SendReceiptDeps) (domain.Submission, error) {
	sub, err := deps.Payments.GetByID(ctx, input.SubmissionID)
	if err != nil {
		return domain.Submission{}, err
	}

	switch sub.ReceiptStatus {
	case domain.ReceiptIssued:
		return sub, domain.ErrReceiptAlreadySent
	case domain.ReceiptDuplicate:
		return sub, ErrDuplicateSubmission
	}
	if !sub.Verified {
		return sub, domain.ErrNotVerified
	}

	ok, quotaErr := deps.Tracker.CanSendToday(ctx)
	if !ok {
		if quotaErr != nil {
			return sub, quotaErr
		}
		return sub, ErrQuotaExhausted
	}

	issued, err := deps.Payments.CountIssued(ctx)
	if err != nil {
		return sub, fmt.Errorf("derive receipt sequence: %w", err)
	}
	now := deps.Now()
	number := domain.NewReceiptNumber(now, deps.Location, issued+1)

	rec := render.Receipt{
		Name:            sub.PayerName,
		ReferenceNumber: sub.ReferenceNumber,
		ReceiptNumber:   number,
		AmountPaise:     sub.AmountPaise,
		TransactionID:   sub.TransactionID,
	}
	subject, html, err := deps.Renderer.ReceiptEmail(rec)
	if err != nil {
		return sub, err
	}

	req := emailAdapter.SendRequest{
		To:      []string{sub.Email},
		From:    deps.FromAddress,
		Subject: subject,
		HTML:    html,
		ReplyTo: deps.ReplyTo,
	}
	if deps.ReceiptPDF != nil {
		pdf, err := deps.ReceiptPDF(rec)
		if err != nil {
			return sub, fmt.Errorf("render receipt pdf: %w", err)
		}
		req.Attachments = []emailAdapter.Attachment{{
			Filename:    fmt.Sprintf("receipt-%s.pdf", number),
			Content:     pdf,
			ContentType: "application/pdf",
		}}
	}

	if _, err := deps.Sender.Send(ctx, req); err != nil {
		return sub, fmt.Errorf("send receipt: %w", err)
	}

	if err := deps.Tracker.RecordSend(ctx); err != nil {
		slog.Error("quota_record_failed", "email", sub.Email, "error", err.Error())
	}

	fresh, err := deps.Payments.GetByID(ctx, sub.ID)
	if err != nil {
		return sub, fmt.Errorf("re-read submission after send: %w", err)
	}
	fresh.MarkReceiptIssued(number, now)
	if err := deps.Payments.Save(ctx, fresh); err != nil {
		return fresh, err
	}

	slog.Info("receipt_sent", "reference", fresh.ReferenceNumber, "receipt_number", number, "email", fresh.Email)
	return fresh, nil
}
