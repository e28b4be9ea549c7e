package registration

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Email status constants for the main record. The registration row is the
// record of truth: external observers read this column, never the queue.
const (
	StatusUnsent = "unsent"
	StatusSent   = "sent"
	StatusQueued = "queued"
	StatusFailed = "failed"
)

// Domain errors.
var (
	ErrEmptyEmail        = errors.New("email is required")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrEmptyName         = errors.New("student name is required")
	ErrConsentRequired   = errors.New("consent must be accepted")
	ErrAlreadyRegistered = errors.New("email is already registered")
	ErrNotFound          = errors.New("registration not found")
	ErrUnknownLocation   = errors.New("unknown location")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Registration is the main record for a student enquiry/registration.
type Registration struct {
	ID                 string
	RegistrationNumber string // assigned at consent, e.g. "BLR260105-0042"
	StudentName        string
	ParentName         string
	Email              string
	Phone              string
	Location           string
	AmountDuePaise     int64
	ConsentAccepted    bool
	ConsentAt          time.Time
	EmailStatus        string // unsent, sent, queued, failed
	EmailStatusAt      time.Time
	EmailError         string
	CreatedAt          time.Time
}

// Validate checks that the Registration has valid data.
// PRE: Registration struct is populated
// POST: Returns nil if valid, error otherwise
func (r *Registration) Validate() error {
	if r.Email == "" {
		return ErrEmptyEmail
	}
	if !IsValidEmail(r.Email) {
		return ErrInvalidEmail
	}
	if r.StudentName == "" {
		return ErrEmptyName
	}
	if r.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	return nil
}

// IsValidEmail reports whether addr looks like a deliverable address.
func IsValidEmail(addr string) bool {
	return emailPattern.MatchString(strings.TrimSpace(addr))
}

// NormalizeEmail lowercases and trims an address for use as a record key.
func NormalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// NewRegistrationNumber builds a registration number from a location code,
// the assignment date and a per-location sequence, e.g. "BLR260105-0042".
// PRE: code is a short upper-case location code; seq >= 1
// POST: Returns a stable, human-readable reference
func NewRegistrationNumber(code string, at time.Time, loc *time.Location, seq int) string {
	return fmt.Sprintf("%s%s-%04d", code, at.In(loc).Format("060102"), seq)
}
