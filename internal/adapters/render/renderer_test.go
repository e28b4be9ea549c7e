package render

import (
	"strings"
	"testing"
)

func testBranding() Branding {
	return Branding{
		BusinessName:   "Highfield Equestrian",
		Tagline:        "Test tagline",
		WebsiteURL:     "https://example.test",
		ContactPhone:   "+91-9900000000",
		ContactEmail:   "info@example.test",
		ConsentBaseURL: "https://example.test/consent",
	}
}

func TestWelcome(t *testing.T) {
	r := New(testBranding(), "We offer **riding lessons** for all levels.")

	subject, html, err := r.Welcome("Aarav Sharma", "bangalore", "aarav@example.com")
	if err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if subject != "Welcome Aarav Sharma to Highfield Equestrian" {
		t.Errorf("subject = %q", subject)
	}
	// Markdown emphasis converted to HTML.
	if !strings.Contains(html, "<strong>riding lessons</strong>") {
		t.Error("markdown body not rendered")
	}
	if !strings.Contains(html, "Dear Aarav Sharma") {
		t.Error("greeting missing")
	}
	if !strings.Contains(html, "bangalore") {
		t.Error("location missing")
	}
	if !strings.Contains(html, "https://example.test/consent?email=aarav%40example.com") {
		t.Error("consent link missing or unencoded")
	}
}

// TestWelcome_EscapesRawHTML verifies markdown input cannot inject markup.
func TestWelcome_EscapesRawHTML(t *testing.T) {
	r := New(testBranding(), `<script>alert("x")</script>`)
	_, html, err := r.Welcome("A", "", "a@example.com")
	if err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("raw HTML passed through unescaped")
	}
}

func TestConsentURL(t *testing.T) {
	r := New(testBranding(), "")
	got := r.ConsentURL("a b@example.com", "Diya Patel", "pune")
	if !strings.HasPrefix(got, "https://example.test/consent?") {
		t.Fatalf("url = %q", got)
	}
	if !strings.Contains(got, "email=a+b%40example.com") {
		t.Errorf("email not encoded: %q", got)
	}
	if !strings.Contains(got, "location=pune") {
		t.Errorf("location missing: %q", got)
	}
}

func TestPayment(t *testing.T) {
	r := New(testBranding(), "")
	subject, html, err := r.Payment(PaymentRequest{
		Name:               "Diya Patel",
		RegistrationNumber: "PNE260105-0001",
		AmountPaise:        950000,
		UPILink:            "upi://pay?pa=stable%40upi&am=9500.00",
		QRCodeURL:          "https://api.qrserver.com/v1/create-qr-code/?data=x",
	})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if subject != "Payment Request | Diya Patel | Reg No: PNE260105-0001" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(html, "₹9500.00") {
		t.Error("formatted amount missing")
	}
	if !strings.Contains(html, "upi://pay?") {
		t.Error("UPI link missing")
	}
	if !strings.Contains(html, "api.qrserver.com") {
		t.Error("QR image missing")
	}
}

func TestReceiptEmail(t *testing.T) {
	r := New(testBranding(), "")
	subject, html, err := r.ReceiptEmail(Receipt{
		Name:            "Priya Sharma",
		ReferenceNumber: "BLR260105-0001",
		ReceiptNumber:   "RCPT-2526-0007",
		AmountPaise:     950000,
		TransactionID:   "TXN-1001",
	})
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if subject != "Payment Receipt - Priya Sharma - Ref: BLR260105-0001" {
		t.Errorf("subject = %q", subject)
	}
	for _, want := range []string{"RCPT-2526-0007", "TXN-1001", "₹9500.00"} {
		if !strings.Contains(html, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestFormatRupees(t *testing.T) {
	cases := []struct {
		paise int64
		want  string
	}{
		{950000, "₹9500.00"},
		{100, "₹1.00"},
		{5, "₹0.05"},
		{100050, "₹1000.50"},
	}
	for _, tc := range cases {
		if got := FormatRupees(tc.paise); got != tc.want {
			t.Errorf("FormatRupees(%d) = %q, want %q", tc.paise, got, tc.want)
		}
	}
}
