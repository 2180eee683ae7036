// Package mailer delivers rendered notifications over SMTP.
package mailer

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/notify"
)

// ErrNoRecipient is returned when a mail has no To address.
var ErrNoRecipient = errors.New("no recipient specified")

// sender is the part of *gomail.Dialer the transport needs.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPTransport sends each mail over a fresh SMTP connection.
type SMTPTransport struct {
	dialer sender
	log    zerolog.Logger
}

// NewSMTPTransport builds a transport from the mail settings.  Credentials
// are optional so local mail catchers work unauthenticated.
func NewSMTPTransport(cfg config.MailConfig, log zerolog.Logger) *SMTPTransport {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTPTransport{dialer: d, log: log.With().Str("component", "smtp").Logger()}
}

// Send implements notify.Transport.  The context is only checked before
// dialing; gomail has no cancellation hook.
func (t *SMTPTransport) Send(ctx context.Context, m notify.Mail) error {
	if m.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.dialer.DialAndSend(buildMessage(m)); err != nil {
		return err
	}
	t.log.Debug().Str("to", m.To).Str("subject", m.Subject).Msg("mail delivered")
	return nil
}

func buildMessage(m notify.Mail) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	if m.HTML != "" {
		msg.SetBody("text/html", m.HTML)
		if m.Text != "" {
			msg.AddAlternative("text/plain", m.Text)
		}
	} else {
		msg.SetBody("text/plain", m.Text)
	}
	return msg
}
