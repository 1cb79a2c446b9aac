// Package notify delivers scheduling notifications over email, SMS webhooks and Kafka.
// Delivery is best-effort: callers log failures and never fail a scheduling operation on them.
package notify

import (
	"context"
	"errors"
)

type TemplateKind string

const (
	KindBooked      TemplateKind = "appointment_booked"
	KindConfirmed   TemplateKind = "appointment_confirmed"
	KindCancelled   TemplateKind = "appointment_cancelled"
	KindCompleted   TemplateKind = "appointment_completed"
	KindRescheduled TemplateKind = "appointment_rescheduled"
	KindReminder    TemplateKind = "appointment_reminder"
)

// ErrNoAddress means the target has no address for the channel; Fanout treats it as a skip.
var ErrNoAddress = errors.New("no address for channel")

// Target is the recipient of a notification.
type Target struct {
	ProfileID string
	Name      string
	Email     string
	Phone     string
}

type Sender interface {
	Send(ctx context.Context, to Target, kind TemplateKind, fields map[string]string) error
}

type SenderFunc func(ctx context.Context, to Target, kind TemplateKind, fields map[string]string) error

func (f SenderFunc) Send(ctx context.Context, to Target, kind TemplateKind, fields map[string]string) error {
	return f(ctx, to, kind, fields)
}

type Noop struct{}

func (Noop) Send(context.Context, Target, TemplateKind, map[string]string) error { return nil }
