package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/domodwyer/mailyak/v3"

	"bds-membership/internal/config"
)

// Email is one outgoing message.
type Email struct {
	FromName string
	From     string
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers a rendered Email.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

var _ Sender = (*SMTPSender)(nil)

// SMTPSender sends through an SMTP relay. tls_mode "tls" dials implicit TLS;
// anything else connects in plain text and upgrades with STARTTLS when the
// server offers it.
type SMTPSender struct {
	cfg  config.SMTPConfig
	addr string
	auth smtp.Auth
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.User != "" && cfg.Pass != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}
	return &SMTPSender{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth: auth,
	}
}

func (s *SMTPSender) newMail() (*mailyak.MailYak, error) {
	if strings.EqualFold(s.cfg.TLSMode, "tls") {
		return mailyak.NewWithTLS(s.addr, s.auth, &tls.Config{
			ServerName:         s.cfg.Host,
			InsecureSkipVerify: s.cfg.SkipVerify,
		})
	}
	return mailyak.New(s.addr, s.auth), nil
}

// Send blocks until the relay accepts the message or ctx ends. The SMTP
// exchange itself cannot be interrupted, so a cancelled send may still
// complete in the background.
func (s *SMTPSender) Send(ctx context.Context, e Email) error {
	m, err := s.newMail()
	if err != nil {
		return fmt.Errorf("smtp tls setup failed: %w", err)
	}
	m.From(e.From)
	if e.FromName != "" {
		m.FromName(e.FromName)
	}
	m.To(e.To...)
	m.Subject(e.Subject)
	if e.TextBody != "" {
		m.Plain().Set(e.TextBody)
	}
	if e.HTMLBody != "" {
		m.HTML().Set(e.HTMLBody)
	}

	done := make(chan error, 1)
	go func() { done <- m.Send() }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
