package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	emailAdapter "stablepost/internal/adapters/email"
	"stablepost/internal/adapters/render"
	registrationStore "stablepost/internal/adapters/storage/registration"
	domain "stablepost/internal/domain/registration"
)

// qrServiceURL renders a payment link as a scannable QR image.
const qrServiceURL = "https://api.qrserver.com/v1/create-qr-code/"

// UPILink builds a upi:// deep link for the amount due, with the
// registration number as the transaction note so bank statements carry the
// reference.
// PRE: upiID and ref are non-empty; amountPaise > 0
// POST: Returns a link any UPI app can open
func UPILink(upiID, payeeName string, amountPaise int64, ref string) string {
	q := url.Values{}
	q.Set("pa", upiID)
	q.Set("pn", payeeName)
	q.Set("am", fmt.Sprintf("%d.%02d", amountPaise/100, amountPaise%100))
	q.Set("cu", "INR")
	q.Set("tn", ref)
	return "upi://pay?" + q.Encode()
}

// QRCodeURL returns an image URL encoding the given payment link.
func QRCodeURL(link string) string {
	q := url.Values{}
	q.Set("size", "220x220")
	q.Set("data", link)
	return qrServiceURL + "?" + q.Encode()
}

// SendPaymentRequestInput identifies the registration to bill.
type SendPaymentRequestInput struct {
	Email string
}

// SendPaymentRequestDeps holds dependencies for the payment request flow.
type SendPaymentRequestDeps struct {
	Registrations registrationStore.Store
	Tracker       *QuotaTracker
	Sender        emailAdapter.Sender
	Renderer      *render.Renderer
	UPIID         string
	PayeeName     string
	FromAddress   string
	ReplyTo       string
	Now           func() time.Time
}

// ExecuteSendPaymentRequest emails the payment link and QR code to a
// registration that has accepted terms. Payment requests are sent on
// demand, not queued: a blocked quota surfaces to the caller immediately.
// PRE: the registration exists and has a registration number
// POST: One email sent and counted against today's quota
func ExecuteSendPaymentRequest(ctx context.Context, input SendPaymentRequestInput, deps SendPaymentRequestDeps) error {
	addr := domain.NormalizeEmail(input.Email)
	reg, err := deps.Registrations.GetByEmail(ctx, addr)
	if err != nil {
		return err
	}
	if !reg.ConsentAccepted || reg.RegistrationNumber == "" {
		return NewValidationError(domain.ErrConsentRequired)
	}

	ok, quotaErr := deps.Tracker.CanSendToday(ctx)
	if !ok {
		if quotaErr != nil {
			return quotaErr
		}
		return ErrQuotaExhausted
	}

	link := UPILink(deps.UPIID, deps.PayeeName, reg.AmountDuePaise, reg.RegistrationNumber)
	subject, html, err := deps.Renderer.Payment(render.PaymentRequest{
		Name:               reg.StudentName,
		RegistrationNumber: reg.RegistrationNumber,
		AmountPaise:        reg.AmountDuePaise,
		UPILink:            link,
		QRCodeURL:          QRCodeURL(link),
	})
	if err != nil {
		return err
	}

	if _, err := deps.Sender.Send(ctx, emailAdapter.SendRequest{
		To:      []string{reg.Email},
		From:    deps.FromAddress,
		Subject: subject,
		HTML:    html,
		ReplyTo: deps.ReplyTo,
	}); err != nil {
		return fmt.Errorf("send payment request: %w", err)
	}

	if err := deps.Tracker.RecordSend(ctx); err != nil {
		slog.Error("quota_record_failed", "email", addr, "error", err.Error())
	}
	slog.Info("payment_request_sent", "email", addr, "registration_number", reg.RegistrationNumber)
	return nil
}
