// Package render produces the branded HTML bodies for outbound emails.
// The welcome body is authored as markdown (editable without a deploy) and
// converted with goldmark; payment and receipt bodies are assembled from
// structured data.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// Branding carries the business identity injected into every email.
type Branding struct {
	BusinessName   string
	Tagline        string
	WebsiteURL     string
	ContactPhone   string
	ContactEmail   string
	ConsentBaseURL string
}

// Renderer builds email subjects and HTML bodies.
type Renderer struct {
	branding        Branding
	welcomeMarkdown string // markdown source for the welcome body section
}

// New creates a Renderer.
// PRE: branding.BusinessName is non-empty
// POST: Returns a ready-to-use renderer
func New(branding Branding, welcomeMarkdown string) *Renderer {
	return &Renderer{branding: branding, welcomeMarkdown: welcomeMarkdown}
}

// ConsentURL builds the consent-page link embedded in welcome emails.
func (r *Renderer) ConsentURL(email, name, location string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("name", name)
	q.Set("location", location)
	return r.branding.ConsentBaseURL + "?" + q.Encode()
}

// Welcome renders the welcome email for a new enquiry.
// PRE: name and email are non-empty
// POST: Returns subject and full HTML body
func (r *Renderer) Welcome(name, location, emailAddr string) (subject, html string, err error) {
	var body bytes.Buffer
	if err := mdRenderer.Convert([]byte(r.welcomeMarkdown), &body); err != nil {
		return "", "", fmt.Errorf("render welcome markdown: %w", err)
	}

	data := welcomeData{
		Branding:   r.branding,
		Name:       name,
		Location:   location,
		Body:       template.HTML(body.String()),
		ConsentURL: r.ConsentURL(emailAddr, name, location),
		Year:       time.Now().Year(),
	}
	out, err := execute(welcomeTmpl, data)
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf("Welcome %s to %s", name, r.branding.BusinessName), out, nil
}

// PaymentRequest holds the fields rendered into a payment request email.
type PaymentRequest struct {
	Name               string
	RegistrationNumber string
	AmountPaise        int64
	UPILink            string
	QRCodeURL          string
}

// Payment renders the payment request email sent after consent.
// PRE: req.RegistrationNumber is non-empty
// POST: Returns subject and full HTML body
func (r *Renderer) Payment(req PaymentRequest) (subject, html string, err error) {
	data := paymentData{
		Branding: r.branding,
		Request:  req,
		Amount:   FormatRupees(req.AmountPaise),
		Year:     time.Now().Year(),
	}
	out, err := execute(paymentTmpl, data)
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf("Payment Request | %s | Reg No: %s", req.Name, req.RegistrationNumber), out, nil
}

// Receipt holds the fields rendered into a receipt email.
type Receipt struct {
	Name            string
	ReferenceNumber string
	ReceiptNumber   string
	AmountPaise     int64
	TransactionID   string
}

// ReceiptEmail renders the payment receipt email.
// PRE: rec.ReceiptNumber is non-empty
// POST: Returns subject and full HTML body
func (r *Renderer) ReceiptEmail(rec Receipt) (subject, html string, err error) {
	data := receiptData{
		Branding: r.branding,
		Receipt:  rec,
		Amount:   FormatRupees(rec.AmountPaise),
		Year:     time.Now().Year(),
	}
	out, err := execute(receiptTmpl, data)
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf("Payment Receipt - %s - Ref: %s", rec.Name, rec.ReferenceNumber), out, nil
}

// FormatRupees renders paise as a rupee string, e.g. 950000 -> "₹9500.00".
func FormatRupees(paise int64) string {
	return fmt.Sprintf("₹%d.%02d", paise/100, paise%100)
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute email template: %w", err)
	}
	return buf.String(), nil
}
