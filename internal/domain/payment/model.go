package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Receipt status constants for a payment submission.
const (
	ReceiptPending   = "pending"
	ReceiptIssued    = "yes"
	ReceiptDuplicate = "duplicate"
)

// Domain errors.
var (
	ErrEmptyReference     = errors.New("reference number is required")
	ErrInvalidAmount      = errors.New("a positive amount is required")
	ErrNotVerified        = errors.New("transaction is not verified")
	ErrReceiptAlreadySent = errors.New("receipt was already issued for this submission")
	ErrNotFound           = errors.New("payment submission not found")
)

// Submission is one payment-form row. Amounts are stored in paise so
// equality checks never go through floating point.
type Submission struct {
	ID              string
	ReferenceNumber string
	PayerName       string
	Email           string
	PAN             string
	AmountPaise     int64
	PaymentDate     time.Time
	SubmittedAt     time.Time // the form entry's own timestamp, dedup discriminator
	TransactionID   string
	Verified        bool
	ReceiptStatus   string // pending, yes, duplicate
	ReceiptNumber   string
	ReceiptSentAt   time.Time
}

// Validate checks that the Submission has valid data.
// PRE: Submission struct is populated
// POST: Returns nil if valid, error otherwise
func (s *Submission) Validate() error {
	if strings.TrimSpace(s.ReferenceNumber) == "" {
		return ErrEmptyReference
	}
	if s.AmountPaise <= 0 {
		return ErrInvalidAmount
	}
	if s.SubmittedAt.IsZero() {
		return errors.New("submitted_at must be set")
	}
	return nil
}

// MarkReceiptIssued records a successfully delivered receipt.
// PRE: receipt email was delivered
// POST: ReceiptStatus yes (terminal), number and timestamp set
func (s *Submission) MarkReceiptIssued(number string, at time.Time) {
	s.ReceiptStatus = ReceiptIssued
	s.ReceiptNumber = number
	s.ReceiptSentAt = at
}

// MarkDuplicate flags the submission as a resubmission of an
// already-receipted payment. Terminal, no receipt side effects.
func (s *Submission) MarkDuplicate() {
	s.ReceiptStatus = ReceiptDuplicate
}

// Matches reports whether s is an equivalent submission to the given
// tuple: trimmed reference, exact amount, same calendar day in loc AND the
// same original form timestamp. A legitimate second payment against the
// same reference/amount/date carries a different SubmittedAt and is not a
// match.
// PRE: loc is non-nil
// POST: s is not mutated
func (s *Submission) Matches(ref string, amountPaise int64, paymentDay string, submittedAt time.Time, loc *time.Location) bool {
	return strings.TrimSpace(s.ReferenceNumber) == strings.TrimSpace(ref) &&
		s.AmountPaise == amountPaise &&
		NormalizeDate(s.PaymentDate, loc) == paymentDay &&
		s.SubmittedAt.Equal(submittedAt)
}

// NormalizeDate reduces a payment date to a calendar-day string in loc so
// time-of-day differences never break dedup comparisons. Zero time maps to
// the empty string.
func NormalizeDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("2006-01-02")
}

// NewReceiptNumber builds a receipt number from the Indian fiscal year of
// the issue date and a running sequence, e.g. "RCPT-2526-0007".
// PRE: seq >= 1
// POST: Returns a stable receipt reference
func NewReceiptNumber(at time.Time, loc *time.Location, seq int) string {
	return fmt.Sprintf("RCPT-%s-%04d", FiscalYearLabel(at, loc), seq)
}

// FiscalYearLabel returns the April-to-March fiscal year of t as a
// four-digit label, e.g. 2026-01-05 -> "2526" (FY 2025-26).
func FiscalYearLabel(t time.Time, loc *time.Location) string {
	t = t.In(loc)
	start := t.Year()
	if t.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%02d%02d", start%100, (start+1)%100)
}
