package registration

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"stablepost/internal/adapters/storage"
	domain "stablepost/internal/domain/registration"
)

const (
	dateLayout = "2006-01-02T15:04:05.999999999Z07:00"
)

const regColumns = `id, registration_number, student_name, parent_name, email, phone, location,
	amount_due_paise, consent_accepted, consent_at, email_status, email_status_at, email_error, created_at`

// SQLiteStore implements the registration Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new registration store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByEmail retrieves a registration by its normalized email key.
// PRE: email is non-empty
// POST: Returns the registration or domain.ErrNotFound
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Registration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+regColumns+` FROM registration WHERE email = ?`, domain.NormalizeEmail(email))
	return scanRegistration(row)
}

// GetByNumber retrieves a registration by registration number.
// PRE: number is non-empty
// POST: Returns the registration or domain.ErrNotFound
func (s *SQLiteStore) GetByNumber(ctx context.Context, number string) (domain.Registration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+regColumns+` FROM registration WHERE registration_number = ?`, number)
	return scanRegistration(row)
}

// Save persists a registration (insert or update).
// PRE: r has been validated
// POST: Registration is persisted
func (s *SQLiteStore) Save(ctx context.Context, r domain.Registration) error {
	consentAt := ""
	if !r.ConsentAt.IsZero() {
		consentAt = r.ConsentAt.Format(dateLayout)
	}
	statusAt := ""
	if !r.EmailStatusAt.IsZero() {
		statusAt = r.EmailStatusAt.Format(dateLayout)
	}
	consent := 0
	if r.ConsentAccepted {
		consent = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registration (id, registration_number, student_name, parent_name, email, phone, location,
		   amount_due_paise, consent_accepted, consent_at, email_status, email_status_at, email_error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   registration_number=excluded.registration_number, student_name=excluded.student_name,
		   parent_name=excluded.parent_name, phone=excluded.phone, location=excluded.location,
		   amount_due_paise=excluded.amount_due_paise, consent_accepted=excluded.consent_accepted,
		   consent_at=excluded.consent_at, email_status=excluded.email_status,
		   email_status_at=excluded.email_status_at, email_error=excluded.email_error`,
		r.ID, r.RegistrationNumber, r.StudentName, r.ParentName, domain.NormalizeEmail(r.Email),
		r.Phone, r.Location, r.AmountDuePaise, consent, consentAt,
		r.EmailStatus, statusAt, r.EmailError, r.CreatedAt.Format(dateLayout))
	return err
}

// UpdateEmailStatus updates only the email status columns for email.
// PRE: email identifies an existing row; status is a domain status constant
// POST: email_status, email_status_at and email_error updated, nothing else
func (s *SQLiteStore) UpdateEmailStatus(ctx context.Context, email, status string, at time.Time, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE registration SET email_status = ?, email_status_at = ?, email_error = ? WHERE email = ?`,
		status, at.Format(dateLayout), errMsg, domain.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountByLocation returns how many registrations exist for a location.
func (s *SQLiteStore) CountByLocation(ctx context.Context, location string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registration WHERE location = ?`, location).Scan(&n)
	return n, err
}

// scanRegistration scans a single row into a Registration.
func scanRegistration(row *sql.Row) (domain.Registration, error) {
	var r domain.Registration
	var consent int
	var consentAt, statusAt, createdAt sql.NullString
	err := row.Scan(&r.ID, &r.RegistrationNumber, &r.StudentName, &r.ParentName, &r.Email,
		&r.Phone, &r.Location, &r.AmountDuePaise, &consent, &consentAt,
		&r.EmailStatus, &statusAt, &r.EmailError, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Registration{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Registration{}, err
	}
	r.ConsentAccepted = consent == 1
	r.ConsentAt = parseTime(consentAt)
	r.EmailStatusAt = parseTime(statusAt)
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}

func parseTime(v sql.NullString) time.Time {
	if !v.Valid || v.String == "" {
		return time.Time{}
	}
	t, _ := time.Parse(dateLayout, v.String)
	return t
}
