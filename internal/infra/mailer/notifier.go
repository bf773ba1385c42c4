package mailer

import (
	"bytes"
	"context"
	"embed"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bds-membership/internal/domain/ports/adapter"
	"bds-membership/internal/infra/logging"
)

//go:embed templates/emails.html templates/emails.txt
var templateFS embed.FS

var (
	_ adapter.Notifier = (*Notifier)(nil)
	_ adapter.Notifier = NoopNotifier{}
)

var funcs = map[string]any{
	"money": func(d decimal.Decimal) string { return d.StringFixed(3) },
	"date": func(v any) string {
		switch t := v.(type) {
		case time.Time:
			return t.Format("2 January 2006")
		case *time.Time:
			if t != nil {
				return t.Format("2 January 2006")
			}
		}
		return ""
	},
}

// Notifier renders member emails and hands them to a Sender. It never
// returns an error; delivery failures are reported in the result.
type Notifier struct {
	sender   Sender
	from     string
	fromName string
	timeout  time.Duration
	html     *htmltemplate.Template
	text     *texttemplate.Template
	log      zerolog.Logger
}

func NewNotifier(sender Sender, from, fromName string, logger *zerolog.Logger) (*Notifier, error) {
	html, err := htmltemplate.New("emails").Funcs(funcs).ParseFS(templateFS, "templates/emails.html")
	if err != nil {
		return nil, err
	}
	text, err := texttemplate.New("emails").Funcs(funcs).ParseFS(templateFS, "templates/emails.txt")
	if err != nil {
		return nil, err
	}
	return &Notifier{
		sender:   sender,
		from:     from,
		fromName: fromName,
		timeout:  20 * time.Second,
		html:     html,
		text:     text,
		log:      logger.With().Str("component", "mailer").Logger(),
	}, nil
}

func (n *Notifier) SendPaymentConfirmation(ctx context.Context, to string, data adapter.PaymentConfirmation) adapter.NotificationResult {
	if data.Currency == "" {
		data.Currency = "BHD"
	}
	return n.send(ctx, to, "BDS - Payment Confirmation", "payment_confirmation", data)
}

func (n *Notifier) SendWelcome(ctx context.Context, to string, data adapter.Welcome) adapter.NotificationResult {
	return n.send(ctx, to, "Welcome to Bahrain Dental Society!", "welcome", data)
}

func (n *Notifier) SendEventJoin(ctx context.Context, to string, data adapter.EventJoin) adapter.NotificationResult {
	if data.Currency == "" {
		data.Currency = "BHD"
	}
	return n.send(ctx, to, "BDS - Event Registration Confirmed: "+data.EventName, "event_join", data)
}

func (n *Notifier) send(ctx context.Context, to, subject, tmpl string, data any) adapter.NotificationResult {
	log := logging.With(ctx, &n.log).With().Str("template", tmpl).Str("to", logging.Redact(to, false)).Logger()
	to = strings.TrimSpace(to)
	if to == "" {
		return adapter.NotificationResult{Error: "recipient address is empty"}
	}

	var html, text bytes.Buffer
	if err := n.html.ExecuteTemplate(&html, tmpl, data); err != nil {
		log.Error().Err(err).Msg("render html email")
		return adapter.NotificationResult{Error: err.Error()}
	}
	if err := n.text.ExecuteTemplate(&text, tmpl, data); err != nil {
		log.Error().Err(err).Msg("render text email")
		return adapter.NotificationResult{Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	err := n.sender.Send(ctx, Email{
		FromName: n.fromName,
		From:     n.from,
		To:       []string{to},
		Subject:  subject,
		TextBody: text.String(),
		HTMLBody: html.String(),
	})
	if err != nil {
		log.Warn().Err(err).Msg("email not delivered")
		return adapter.NotificationResult{Error: err.Error()}
	}
	id := uuid.NewString()
	log.Info().Str("message_id", id).Msg("email sent")
	return adapter.NotificationResult{Success: true, MessageID: id}
}

// NoopNotifier is used when no SMTP relay is configured.
type NoopNotifier struct{}

func (NoopNotifier) SendPaymentConfirmation(context.Context, string, adapter.PaymentConfirmation) adapter.NotificationResult {
	return adapter.NotificationResult{Error: "email disabled"}
}

func (NoopNotifier) SendWelcome(context.Context, string, adapter.Welcome) adapter.NotificationResult {
	return adapter.NotificationResult{Error: "email disabled"}
}

func (NoopNotifier) SendEventJoin(context.Context, string, adapter.EventJoin) adapter.NotificationResult {
	return adapter.NotificationResult{Error: "email disabled"}
}
