package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"matatu-feedback/config"
	"matatu-feedback/escalation"

	"github.com/apex/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// ErrNotConfigured is returned when SendGrid credentials are missing
var ErrNotConfigured = errors.New("sendgrid api key not configured")

// SendGridTransport delivers regulator submissions through SendGrid
type SendGridTransport struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

// NewSendGridTransport creates a SendGrid transport from the configuration
func NewSendGridTransport(cfg *config.Config) (*SendGridTransport, error) {
	if cfg.SendGridAPIKey == "" {
		return nil, ErrNotConfigured
	}
	return &SendGridTransport{
		client:    sendgrid.NewSendClient(cfg.SendGridAPIKey),
		fromName:  cfg.SendGridFromName,
		fromEmail: cfg.SendGridFromEmail,
	}, nil
}

// Send sends one plain text message and returns the SendGrid message id
func (s *SendGridTransport) Send(ctx context.Context, m escalation.Mail) (string, error) {
	message := buildMessage(s.fromName, s.fromEmail, m)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 300 {
		return "", fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, strings.TrimSpace(response.Body))
	}

	id := messageID(response.Headers)
	log.Infof("Email sent to %s! Status: %d", m.To, response.StatusCode)
	return id, nil
}

func buildMessage(fromName, fromEmail string, m escalation.Mail) *mail.SGMailV3 {
	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(fromName, fromEmail))
	message.Subject = m.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(m.To, m.To))
	for _, cc := range m.Cc {
		if cc != "" && cc != m.To {
			p.AddCCs(mail.NewEmail(cc, cc))
		}
	}
	message.AddPersonalizations(p)
	message.AddContent(mail.NewContent("text/plain", m.Body))

	return message
}

func messageID(headers map[string][]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "X-Message-Id") && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}
