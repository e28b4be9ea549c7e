package payment

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"stablepost/internal/adapters/storage"
	domain "stablepost/internal/domain/payment"
)

const (
	dateLayout = "2006-01-02T15:04:05.999999999Z07:00"
)

const submissionColumns = `id, reference_number, payer_name, email, pan, amount_paise, payment_date,
	submitted_at, transaction_id, verified, receipt_status, receipt_number, receipt_sent_at`

// SQLiteStore implements the payment Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new payment store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a submission by its ID.
// PRE: id is non-empty
// POST: Returns the submission or domain.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM payment_submission WHERE id = ?`, id)
	return scanSubmission(row)
}

// Save persists a submission (insert or update).
// PRE: s has been validated
// POST: Submission is persisted
func (s *SQLiteStore) Save(ctx context.Context, sub domain.Submission) error {
	paymentDate := ""
	if !sub.PaymentDate.IsZero() {
		paymentDate = sub.PaymentDate.Format(dateLayout)
	}
	receiptSentAt := ""
	if !sub.ReceiptSentAt.IsZero() {
		receiptSentAt = sub.ReceiptSentAt.Format(dateLayout)
	}
	verified := 0
	if sub.Verified {
		verified = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_submission (id, reference_number, payer_name, email, pan, amount_paise, payment_date,
		   submitted_at, transaction_id, verified, receipt_status, receipt_number, receipt_sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   payer_name=excluded.payer_name, email=excluded.email, pan=excluded.pan,
		   amount_paise=excluded.amount_paise, payment_date=excluded.payment_date,
		   transaction_id=excluded.transaction_id, verified=excluded.verified,
		   receipt_status=excluded.receipt_status, receipt_number=excluded.receipt_number,
		   receipt_sent_at=excluded.receipt_sent_at`,
		sub.ID, strings.TrimSpace(sub.ReferenceNumber), sub.PayerName, sub.Email, sub.PAN,
		sub.AmountPaise, paymentDate, sub.SubmittedAt.Format(dateLayout),
		sub.TransactionID, verified, sub.ReceiptStatus, sub.ReceiptNumber, receiptSentAt)
	return err
}

// ListIssuedByReference returns submissions for a reference whose receipt
// was already issued.
// PRE: ref is non-empty
// POST: Returns matching submissions, oldest first
func (s *SQLiteStore) ListIssuedByReference(ctx context.Context, ref string) ([]domain.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM payment_submission
		 WHERE reference_number = ? AND receipt_status = ? ORDER BY submitted_at ASC`,
		strings.TrimSpace(ref), domain.ReceiptIssued)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Submission
	for rows.Next() {
		sub, err := scanSubmissionFromRows(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// CountIssued returns how many receipts have ever been issued.
func (s *SQLiteStore) CountIssued(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payment_submission WHERE receipt_status = ?`,
		domain.ReceiptIssued).Scan(&n)
	return n, err
}

// scanSubmission scans a single row into a Submission.
func scanSubmission(row *sql.Row) (domain.Submission, error) {
	var sub domain.Submission
	var verified int
	var paymentDate, submittedAt, receiptSentAt sql.NullString
	err := row.Scan(&sub.ID, &sub.ReferenceNumber, &sub.PayerName, &sub.Email, &sub.PAN,
		&sub.AmountPaise, &paymentDate, &submittedAt, &sub.TransactionID, &verified,
		&sub.ReceiptStatus, &sub.ReceiptNumber, &receiptSentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Submission{}, err
	}
	sub.Verified = verified == 1
	sub.PaymentDate = parseTime(paymentDate)
	sub.SubmittedAt = parseTime(submittedAt)
	sub.ReceiptSentAt = parseTime(receiptSentAt)
	return sub, nil
}

// scanSubmissionFromRows scans a single row from Rows into a Submission.
func scanSubmissionFromRows(rows *sql.Rows) (domain.Submission, error) {
	var sub domain.Submission
	var verified int
	var paymentDate, submittedAt, receiptSentAt sql.NullString
	err := rows.Scan(&sub.ID, &sub.ReferenceNumber, &sub.PayerName, &sub.Email, &sub.PAN,
		&sub.AmountPaise, &paymentDate, &submittedAt, &sub.TransactionID, &verified,
		&sub.ReceiptStatus, &sub.ReceiptNumber, &receiptSentAt)
	if err != nil {
		return domain.Submission{}, err
	}
	sub.Verified = verified == 1
	sub.PaymentDate = parseTime(paymentDate)
	sub.SubmittedAt = parseTime(submittedAt)
	sub.ReceiptSentAt = parseTime(receiptSentAt)
	return sub, nil
}

func parseTime(v sql.NullString) time.Time {
	if !v.Valid || v.String == "" {
		return time.Time{}
	}
	t, _ := time.Parse(dateLayout, v.String)
	return t
}
