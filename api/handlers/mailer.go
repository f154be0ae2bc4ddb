package handlers

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/civicgrid/civic-report-api/config"
	"github.com/civicgrid/civic-report-api/templates"
)

// Mailer sends transactional email through sendgrid. Sends are best effort,
// failures are logged and never surface to the caller.
type Mailer struct {
	apiKey  string
	from    string
	baseURL string
	send    func(m *mail.SGMailV3) error
}

func NewMailer(conf *config.Config) *Mailer {
	m := &Mailer{
		apiKey:  conf.SendgridAPIKey,
		from:    conf.EmailFrom,
		baseURL: conf.PublicWebBaseURL,
	}
	m.send = m.sendgridSend
	return m
}

func (m *Mailer) sendgridSend(msg *mail.SGMailV3) error {
	client := sendgrid.NewSendClient(m.apiKey)
	resp, err := client.Send(msg)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}

func (m *Mailer) deliver(toName, toEmail, subject, html string) {
	if m.apiKey == "" {
		zap.S().Debugw("sendgrid api key not set, skipping email", "subject", subject)
		return
	}
	from := mail.NewEmail("Civic Report", m.from)
	to := mail.NewEmail(toName, toEmail)
	msg := mail.NewSingleEmail(from, subject, to, "", html)
	if err := m.send(msg); err != nil {
		zap.S().With(err).Errorw("failed to send email", "subject", subject, "to", toEmail)
	}
}

// SendPasswordReset emails the signed reset link to the user.
func (m *Mailer) SendPasswordReset(name, email, token string) {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.baseURL, token)
	m.deliver(name, email, "Reset your password", templates.PasswordResetEmail(name, link))
}

// SendOfficerWelcome emails initial credentials to a newly created officer.
func (m *Mailer) SendOfficerWelcome(name, email, tempPassword string) {
	link := fmt.Sprintf("%s/login", m.baseURL)
	m.deliver(name, email, "Your officer account", templates.OfficerWelcomeEmail(name, email, tempPassword, link))
}
