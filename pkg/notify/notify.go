// Package notify delivers outbound email and chat alerts.
package notify

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ErrNoRecipients is returned when a message has nobody to go to.
var ErrNoRecipients = errors.New("notify: no recipients")

// Message is a single HTML email.
type Message struct {
	To       []string
	Subject  string
	HTMLBody string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Alerter posts a short text alert to an operator channel.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// LogMailer records messages instead of sending them. It is used when SMTP is not configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer builds a log-only mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs the envelope and reports success.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	m.logger.Info("email not sent, smtp not configured",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// NopAlerter drops alerts.
type NopAlerter struct{}

// Alert does nothing.
func (NopAlerter) Alert(context.Context, string) error { return nil }

func cleanRecipients(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, addr := range in {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return out
}
