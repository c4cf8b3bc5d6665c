// Package notify delivers missed-check-in alerts to emergency contacts.
package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Channel sends one message to a normalized phone number and returns the
// relay's message id.
type Channel interface {
	Send(to, body string) (id string, err error)
}

// Dispatcher routes an alert to a contact. Contacts carrying an
// international "+" prefix are tried on the rich channel (WhatsApp) first
// with a single best-effort fallback to the baseline channel (SMS); other
// contacts go straight to the baseline. Delivery failures are logged and
// returned, but callers treat them as non-fatal: a failed alert never stops
// the countdown engine.
type Dispatcher struct {
	log      *zap.Logger
	rich     Channel
	baseline Channel
}

func NewDispatcher(log *zap.Logger, rich, baseline Channel) *Dispatcher {
	return &Dispatcher{log: log, rich: rich, baseline: baseline}
}

// Notify sends body to contact. An empty contact is skipped silently.
func (d *Dispatcher) Notify(contact, body string) error {
	if contact == "" {
		return nil
	}

	if strings.HasPrefix(contact, "+") {
		id, err := d.rich.Send(contact, body)
		if err == nil {
			d.log.Info("alert sent", zap.String("channel", "whatsapp"), zap.String("id", id))
			return nil
		}
		d.log.Warn("rich channel failed, falling back to sms",
			zap.Error(err), zap.String("contact", maskContact(contact)))
	}

	id, err := d.baseline.Send(contact, body)
	if err != nil {
		d.log.Error("alert delivery failed",
			zap.Error(err), zap.String("contact", maskContact(contact)))
		return fmt.Errorf("send alert: %w", err)
	}
	d.log.Info("alert sent", zap.String("channel", "sms"), zap.String("id", id))
	return nil
}

// FormatAlert builds the message body sent on a missed check-in.
func FormatAlert(displayName, timerName string, at time.Time) string {
	who := displayName
	if who == "" {
		who = "A Safely user"
	}
	what := timerName
	if what == "" {
		what = "safety timer"
	}
	return fmt.Sprintf(
		"Safely alert: %s missed a check-in on %q at %s. Please reach out to make sure they are okay.",
		who, what, at.UTC().Format("15:04 MST, 2 Jan"),
	)
}

// maskContact hides the middle digits of a phone number for logs.
func maskContact(c string) string {
	if len(c) <= 5 {
		return c
	}
	return c[:3] + strings.Repeat("*", len(c)-5) + c[len(c)-2:]
}

// NoopChannel accepts every message and drops it. Used when no relay
// credentials are configured (local runs, onboarding demo).
type NoopChannel struct{}

func (NoopChannel) Send(string, string) (string, error) { return "noop", nil }

// ErrNotConfigured signals a channel constructed without credentials.
var ErrNotConfigured = errors.New("notification relay not configured")
