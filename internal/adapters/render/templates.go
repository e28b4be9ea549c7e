package render

import "html/template"

type welcomeData struct {
	Branding   Branding
	Name       string
	Location   string
	Body       template.HTML
	ConsentURL string
	Year       int
}

type paymentData struct {
	Branding Branding
	Request  PaymentRequest
	Amount   string
	Year     int
}

type receiptData struct {
	Branding Branding
	Receipt  Receipt
	Amount   string
	Year     int
}

const layoutHead = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <style>
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; background-color: #f4f4f4; margin: 0; padding: 0; color: #333; }
    .container { max-width: 650px; margin: 20px auto; background-color: #ffffff; border-radius: 12px; overflow: hidden; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
    .header { background: linear-gradient(135deg, #1a472a 0%, #2d5a3d 100%); padding: 30px; text-align: center; color: #fff; }
    .header h1 { margin: 10px 0 0 0; font-size: 26px; }
    .content { padding: 35px 30px; }
    .greeting { font-size: 18px; font-weight: 600; margin-bottom: 15px; color: #1a472a; }
    .info-box { background: #f8f9fa; border-left: 4px solid #d4af37; padding: 18px; margin: 20px 0; border-radius: 6px; font-size: 14px; }
    .cta-button { display: inline-block; background: linear-gradient(135deg, #1a472a 0%, #2d5a3d 100%); color: white; padding: 15px 35px; text-decoration: none; border-radius: 8px; font-weight: 600; margin: 20px 0; }
    .footer { background-color: #1a472a; color: #fff; padding: 25px; text-align: center; font-size: 13px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>{{.Branding.BusinessName}}</h1>
      <p style="margin:8px 0 0;">{{.Branding.Tagline}}</p>
    </div>
    <div class="content">`

const layoutFoot = `    </div>
    <div class="footer">
      <p><strong>{{.Branding.BusinessName}}</strong></p>
      <p>{{.Branding.ContactPhone}} | {{.Branding.ContactEmail}}</p>
      <p>{{.Branding.WebsiteURL}}</p>
      <p style="margin-top:10px; font-size:12px;">&copy; {{.Year}} {{.Branding.BusinessName}}. All rights reserved.</p>
    </div>
  </div>
</body>
</html>`

var welcomeTmpl = template.Must(template.New("welcome").Parse(layoutHead + `
      <div class="greeting">Dear {{.Name}},</div>
      <p>Welcome to <strong>{{.Branding.BusinessName}}</strong>! We're thrilled to have you join our equestrian family{{if .Location}} at {{.Location}}{{end}}.</p>
      <div style="margin: 20px 0;">{{.Body}}</div>
      <div class="info-box">
        <h3 style="margin-top:0; color:#1a472a;">Next Step: Accept Terms &amp; Conditions</h3>
        <p>To proceed with registration and receive your payment details, please review and accept our Terms &amp; Conditions.</p>
        <div style="text-align:center;">
          <a href="{{.ConsentURL}}" class="cta-button" style="color:white;">Review &amp; Accept Terms</a>
        </div>
        <p style="font-size:12px; color:#777; text-align:center;">You'll receive your registration number and payment link after acceptance.</p>
      </div>
` + layoutFoot))

var paymentTmpl = template.Must(template.New("payment").Parse(layoutHead + `
      <div class="greeting">Dear {{.Request.Name}},</div>
      <p>Thank you for accepting our Terms &amp; Conditions. Please complete your payment to confirm your registration.</p>
      <div class="info-box">
        <strong>Registration Number:</strong> {{.Request.RegistrationNumber}}<br>
        <strong>Amount Due:</strong> {{.Amount}}
      </div>
      <div style="text-align:center; margin: 25px 0;">
        <a href="{{.Request.UPILink}}" class="cta-button" style="color:white;">Pay via UPI</a>
        <p style="font-size:13px; color:#666;">Or scan the QR code below:</p>
        <img src="{{.Request.QRCodeURL}}" width="220" height="220" alt="UPI QR Code">
      </div>
      <p style="font-size:13px; color:#666;">Please quote your registration number as the payment reference.</p>
` + layoutFoot))

var receiptTmpl = template.Must(template.New("receipt").Parse(layoutHead + `
      <div class="greeting">Dear {{.Receipt.Name}},</div>
      <p>Thank you for your payment. Your booking is confirmed.</p>
      <div class="info-box">
        <strong>Your Payment Receipt</strong> is attached to this email for your records.
      </div>
      <p>
        <strong>Payment Details:</strong><br>
        Booking Reference: {{.Receipt.ReferenceNumber}}<br>
        Receipt No: {{.Receipt.ReceiptNumber}}<br>
        Amount Paid: {{.Amount}}<br>
        Transaction ID: {{.Receipt.TransactionID}}
      </p>
` + layoutFoot))
