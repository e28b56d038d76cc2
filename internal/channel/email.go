package channel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/smtp"
	"time"

	"facility-maintenance/config"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

// Email sends plain-text mail through an SMTP relay.
type Email struct {
	log  *zap.SugaredLogger
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmail returns an SMTP sender, or a Log sender when no relay is configured.
func NewEmail(log *zap.SugaredLogger, cfg config.SMTPConfig) Sender {
	if cfg.Host == "" {
		return NewLog(log, "email")
	}
	return &Email{log: log.Named("channel.email"), cfg: cfg, send: smtp.SendMail}
}

// Send composes a MIME message and hands it to the relay.
func (e *Email) Send(ctx context.Context, destination, message string) error {
	msg, err := compose(e.cfg.From, destination, e.cfg.Subject, message, time.Now())
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- e.send(e.cfg.Addr(), auth, e.cfg.From, []string{destination}, msg)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		e.log.Debugw("email sent", "to", destination)
		return nil
	}
}

func compose(from, to, subject, body string, at time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(at)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("compose mail: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("compose mail: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compose mail: %w", err)
	}
	return buf.Bytes(), nil
}
