package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// MailSender delivers a plain-text message.
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail through a plain SMTP relay (Mailpit in dev).
type SMTPMailer struct {
	Addr string
	From string
}

// Send delivers the message. Auth-less relay, fine for dev and for the
// internal relays this service runs against.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(m.Addr, nil, m.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("jobs: send mail: %w", err)
	}
	return nil
}

// NopMailer drops messages, logging them instead. Used when no SMTP
// relay is configured.
type NopMailer struct {
	Logger *slog.Logger
}

// Send logs the would-be delivery.
func (m *NopMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.Logger != nil {
		m.Logger.Info("mail dropped, no relay configured",
			slog.String("to", to), slog.String("subject", subject))
	}
	return nil
}
