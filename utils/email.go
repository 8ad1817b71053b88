package utils

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"
	"unihub/config"
)

// Mailer delivers account emails. Handlers depend on this interface so
// tests can substitute a recorder.
type Mailer interface {
	SendVerificationEmail(to, fullName, otp string) error
	SendPasswordResetEmail(to, fullName, otp string) error
}

// SMTPMailer sends HTML mail through an SMTP relay
type SMTPMailer struct {
	cfg    config.SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.Port == 465 {
		d.SSL = true
	} else {
		d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	}
	return &SMTPMailer{cfg: cfg, dialer: d}
}

type otpEmailData struct {
	FullName      string
	OTP           string
	ExpiryMinutes int
	Year          int
}

var (
	verificationTemplate = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
	<h1>Email Verification</h1>
	<p>Hello <strong>{{.FullName}}</strong>,</p>
	<p>Thank you for registering with <strong>Unified Hub</strong>! Use the code below to verify your email address:</p>
	<div style="font-size: 32px; font-weight: bold; letter-spacing: 5px;">{{.OTP}}</div>
	<p><strong>Important:</strong> This OTP will expire in {{.ExpiryMinutes}} minutes.</p>
	<p>If you didn't create an account with Unified Hub, please ignore this email.</p>
	<p style="font-size: 12px; color: #777;">&copy; {{.Year}} Unified Hub. This is an automated email.</p>
</body>
</html>`))

	passwordResetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
	<h1>Password Reset</h1>
	<p>Hello <strong>{{.FullName}}</strong>,</p>
	<p>We received a request to reset the password for your <strong>Unified Hub</strong> account. Use the code below:</p>
	<div style="font-size: 32px; font-weight: bold; letter-spacing: 5px;">{{.OTP}}</div>
	<p><strong>Important:</strong> This OTP will expire in {{.ExpiryMinutes}} minutes.</p>
	<p>If you didn't request a password reset, please ignore this email and make sure your account is secure.</p>
	<p style="font-size: 12px; color: #777;">&copy; {{.Year}} Unified Hub. This is an automated email.</p>
</body>
</html>`))
)

func (m *SMTPMailer) SendVerificationEmail(to, fullName, otp string) error {
	return m.send("verification", to, "Verify Your Email - Unified Hub", verificationTemplate, fullName, otp)
}

func (m *SMTPMailer) SendPasswordResetEmail(to, fullName, otp string) error {
	return m.send("password_reset", to, "Password Reset Request - Unified Hub", passwordResetTemplate, fullName, otp)
}

func (m *SMTPMailer) send(kind, to, subject string, tmpl *template.Template, fullName, otp string) error {
	if m.cfg.Host == "" {
		return fmt.Errorf("email configuration not initialized")
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, otpEmailData{
		FullName:      fullName,
		OTP:           otp,
		ExpiryMinutes: int(OTPExpiry / time.Minute),
		Year:          time.Now().Year(),
	}); err != nil {
		return fmt.Errorf("error executing template: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())

	err := m.dialer.DialAndSend(msg)
	EmailsSentTotal.WithLabelValues(kind, ResultLabel(err)).Inc()
	if err != nil {
		LogError("smtp_send", err, map[string]interface{}{
			"to":      to,
			"subject": subject,
		})
		return fmt.Errorf("failed to send email: %w", err)
	}

	LogEvent("email_sent", map[string]interface{}{"to": to, "subject": subject})
	return nil
}
