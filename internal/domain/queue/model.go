package queue

import (
	"errors"
	"time"
)

// Status constants for queue entry lifecycle.
const (
	StatusPending = "pending"
	StatusFailed  = "failed"
	StatusSent    = "sent"
)

// MaxErrorLen bounds the stored error text so a misbehaving provider
// cannot grow the backing store without limit.
const MaxErrorLen = 200

// Domain errors.
var (
	ErrEmptyRecipient = errors.New("recipient email is required")
	ErrNotFound       = errors.New("queue entry not found")
)

// Entry represents one deferred or failed send awaiting retry.
type Entry struct {
	ID            string
	EnqueuedAt    time.Time
	RecipientKey  string // email address, matches the registration row
	DisplayName   string
	Location      string
	Status        string // pending, failed, sent
	Attempts      int
	LastAttemptAt time.Time
	LastError     string
}

// Validate checks that the Entry has valid data.
// PRE: Entry struct is populated
// POST: Returns nil if valid, error otherwise
func (e *Entry) Validate() error {
	if e.RecipientKey == "" {
		return ErrEmptyRecipient
	}
	if e.EnqueuedAt.IsZero() {
		return errors.New("enqueued_at must be set")
	}
	return nil
}

// MarkFailed records a failed delivery attempt.
// PRE: a delivery attempt was made and returned err
// POST: Attempts incremented exactly once, LastError set (truncated), status failed
func (e *Entry) MarkFailed(err error, at time.Time) {
	e.Attempts++
	e.LastAttemptAt = at
	e.LastError = TruncateError(err.Error())
	e.Status = StatusFailed
}

// MarkSent records a successful delivery. Attempts is not incremented:
// it counts failed attempts only, so an entry that failed M times before
// succeeding carries Attempts == M.
// PRE: delivery succeeded
// POST: status sent, LastError cleared
func (e *Entry) MarkSent(at time.Time) {
	e.LastAttemptAt = at
	e.LastError = ""
	e.Status = StatusSent
}

// IsSent returns true if the entry was already delivered.
// INVARIANT: Status field is not mutated
func (e *Entry) IsSent() bool {
	return e.Status == StatusSent
}

// TruncateError bounds error text to MaxErrorLen characters.
func TruncateError(msg string) string {
	if len(msg) > MaxErrorLen {
		return msg[:MaxErrorLen]
	}
	return msg
}
