// Package web exposes the HTTP surface: form webhooks for enquiries,
// consent and payments, plus admin endpoints for the queue and quota.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	queueStore "stablepost/internal/adapters/storage/queue"
	"stablepost/internal/application/orchestrators"
	paymentDomain "stablepost/internal/domain/payment"
	registrationDomain "stablepost/internal/domain/registration"
)

// Server holds the wired application dependencies for the HTTP handlers.
type Server struct {
	Queue     queueStore.Store
	Tracker   *orchestrators.QuotaTracker
	Processor *orchestrators.QueueProcessor

	EnquiryDeps        orchestrators.EnquiryDeps
	ConsentDeps        orchestrators.AcceptConsentDeps
	PaymentRequestDeps orchestrators.SendPaymentRequestDeps
	RecordPaymentDeps  orchestrators.RecordPaymentDeps
	SendReceiptDeps    orchestrators.SendReceiptDeps
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)

	r.Route("/webhook", func(r chi.Router) {
		r.Post("/enquiry", s.handleEnquiry)
		r.Post("/payment", s.handlePayment)
	})

	r.Post("/consent", s.handleConsent)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/queue", s.handleQueueList)
		r.Post("/queue/sweep", s.handleQueueSweep)
		r.Post("/queue/{id}/retry", s.handleQueueRetry)
		r.Get("/quota", s.handleQuota)
		r.Post("/registrations/{email}/payment-request", s.handlePaymentRequest)
		r.Post("/payments/{id}/receipt", s.handleSendReceipt)
	})

	return r
}

// requestLogger logs one line per request with method, path and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// enquiryRequest mirrors the enquiry form fields.
type enquiryRequest struct {
	StudentName string `json:"student_name"`
	ParentName  string `json:"parent_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Location    string `json:"location"`
}

func (s *Server) handleEnquiry(w http.ResponseWriter, r *http.Request) {
	var req enquiryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reg, err := orchestrators.ExecuteEnquiry(r.Context(), orchestrators.EnquiryInput{
		StudentName: req.StudentName,
		ParentName:  req.ParentName,
		Email:       req.Email,
		Phone:       req.Phone,
		Location:    req.Location,
	}, s.EnquiryDeps)
	switch {
	case errors.Is(err, registrationDomain.ErrAlreadyRegistered):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "registration_id": reg.ID})
	case orchestrators.IsValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, orchestrators.ErrQuotaUnavailable):
		// The enquiry was recorded and queued; only the counter read failed.
		writeJSON(w, http.StatusAccepted, map[string]string{
			"registration_id": reg.ID,
			"email_status":    reg.EmailStatus,
			"warning":         "quota unavailable, welcome queued",
		})
	case err != nil:
		internalError(w, err)
	default:
		writeJSON(w, http.StatusCreated, map[string]string{
			"registration_id": reg.ID,
			"email_status":    reg.EmailStatus,
		})
	}
}

// consentRequest mirrors the consent form fields.
type consentRequest struct {
	Email         string `json:"email"`
	AcceptedTerms bool   `json:"accepted_terms"`
}

func (s *Server) handleConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reg, err := orchestrators.ExecuteAcceptConsent(r.Context(), orchestrators.AcceptConsentInput{
		Email:         req.Email,
		AcceptedTerms: req.AcceptedTerms,
	}, s.ConsentDeps)
	switch {
	case errors.Is(err, registrationDomain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case orchestrators.IsValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case err != nil:
		internalError(w, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{
			"registration_number": reg.RegistrationNumber,
		})
	}
}

// paymentRequest mirrors the payment form fields. Amount arrives in paise;
// dates are RFC 3339.
type paymentRequest struct {
	ReferenceNumber string    `json:"reference_number"`
	PayerName       string    `json:"payer_name"`
	Email           string    `json:"email"`
	PAN             string    `json:"pan"`
	AmountPaise     int64     `json:"amount_paise"`
	PaymentDate     time.Time `json:"payment_date"`
	SubmittedAt     time.Time `json:"submitted_at"`
	TransactionID   string    `json:"transaction_id"`
	Verified        bool      `json:"verified"`
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := orchestrators.ExecuteRecordPayment(r.Context(), orchestrators.RecordPaymentInput{
		ReferenceNumber: req.ReferenceNumber,
		PayerName:       req.PayerName,
		Email:           req.Email,
		PAN:             req.PAN,
		AmountPaise:     req.AmountPaise,
		PaymentDate:     req.PaymentDate,
		SubmittedAt:     req.SubmittedAt,
		TransactionID:   req.TransactionID,
		Verified:        req.Verified,
	}, s.RecordPaymentDeps)
	switch {
	case errors.Is(err, orchestrators.ErrDuplicateSubmission):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":         "duplicate payment submission",
			"submission_id": sub.ID,
		})
	case orchestrators.IsValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case err != nil:
		internalError(w, err)
	default:
		writeJSON(w, http.StatusCreated, map[string]string{
			"submission_id":  sub.ID,
			"receipt_status": sub.ReceiptStatus,
		})
	}
}

func (s *Server) handleQueueList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Queue.ListOldestFirst(r.Context(), 0)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleQueueSweep(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Processor.Drain(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleQueueRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.Processor.RetrySingle(r.Context(), id)
	switch {
	case errors.Is(err, orchestrators.ErrQuotaExhausted), errors.Is(err, orchestrators.ErrQuotaUnavailable):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	}
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	counter, err := s.Tracker.UsageToday(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"day":       counter.Day,
		"used":      counter.Count,
		"limit":     s.Tracker.Limit(),
		"remaining": counter.Remaining(s.Tracker.Limit()),
	})
}

func (s *Server) handlePaymentRequest(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	err := orchestrators.ExecuteSendPaymentRequest(r.Context(), orchestrators.SendPaymentRequestInput{
		Email: email,
	}, s.PaymentRequestDeps)
	switch {
	case errors.Is(err, registrationDomain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case orchestrators.IsValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, orchestrators.ErrQuotaExhausted), errors.Is(err, orchestrators.ErrQuotaUnavailable):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	case err != nil:
		internalError(w, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	}
}

func (s *Server) handleSendReceipt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := orchestrators.ExecuteSendReceipt(r.Context(), orchestrators.SendReceiptInput{
		SubmissionID: id,
	}, s.SendReceiptDeps)
	switch {
	case errors.Is(err, paymentDomain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, paymentDomain.ErrReceiptAlreadySent), errors.Is(err, orchestrators.ErrDuplicateSubmission):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, paymentDomain.ErrNotVerified):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, orchestrators.ErrQuotaExhausted), errors.Is(err, orchestrators.ErrQuotaUnavailable):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	case err != nil:
		internalError(w, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{
			"receipt_number": sub.ReceiptNumber,
		})
	}
}

// decodeJSON reads the request body into v, answering 400 on bad input.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response_encode_failed", "error", err.Error())
	}
}

func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
