package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
	Timeout  time.Duration
}

// SMTPMailer delivers mail through an authenticated STARTTLS relay.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer builds a mailer for cfg. The username doubles as the sender address.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPMailer{cfg: cfg}
}

// Send opens a connection, delivers msg and closes it.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	out, err := m.build(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(m.cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) build(msg Message) (*mail.Msg, error) {
	to := cleanRecipients(msg.To)
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}
	out := mail.NewMsg()
	if err := out.FromFormat(m.cfg.FromName, m.cfg.Username); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := out.To(to...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	return out, nil
}
