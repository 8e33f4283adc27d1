package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/noah-isme/points-rewards-api/pkg/config"
)

// Message is a single outbound HTML email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// SMTPMailer delivers messages through an SMTP relay.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

// NewSMTPMailer builds a mailer. Nothing is dialed until Send is called.
func NewSMTPMailer(cfg config.SMTPConfig, logger *zap.Logger) *SMTPMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

// Send dials the relay and delivers msg. Disabled mailers log and return nil.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	recipients := compact(msg.To)
	if len(recipients) == 0 {
		return errors.New("mailer: no recipients")
	}
	if !m.cfg.Enabled {
		m.logger.Debug("smtp disabled, email skipped", zap.Strings("to", recipients), zap.String("subject", msg.Subject))
		return nil
	}

	out := mail.NewMsg()
	if err := out.From(m.cfg.From); err != nil {
		return fmt.Errorf("mailer: from address: %w", err)
	}
	if err := out.To(recipients...); err != nil {
		return fmt.Errorf("mailer: recipient address: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextHTML, msg.HTML)

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(m.cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mailer: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

func compact(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
