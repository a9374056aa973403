package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Notifier delivers plain notification emails.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// New returns an SMTP notifier, or a no-op one when no host is configured.
func New(cfg Config, l *logrus.Logger) Notifier {
	if strings.TrimSpace(cfg.Host) == "" {
		return Noop{log: l}
	}
	return &SMTP{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTP struct {
	dialer sender
	from   string
}

func (s *SMTP) Send(ctx context.Context, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("mail: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := buildMessage(s.from, to, subject, body)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("mail to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}

// Noop logs the notification instead of sending it.
type Noop struct {
	log *logrus.Logger
}

func (n Noop) Send(_ context.Context, to, subject, _ string) error {
	if n.log != nil {
		n.log.WithFields(logrus.Fields{"to": to, "subject": subject}).Debug("mail disabled, notification skipped")
	}
	return nil
}

// SendAsync delivers in the background and logs failures. Request handlers
// use it so mail problems never fail the request.
func SendAsync(n Notifier, entry *logrus.Entry, to, subject, body string) {
	if n == nil || strings.TrimSpace(to) == "" {
		return
	}
	go func() {
		if err := n.Send(context.Background(), to, subject, body); err != nil {
			entry.WithError(err).Warn("notification email failed")
		}
	}()
}
