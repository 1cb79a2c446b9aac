// Package booking owns appointment creation and lifecycle: booking against generated slots,
// status transitions, reschedules and join-window gating.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	otelx "github.com/md-rashed-zaman/telehealth/libs/otel"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/clock"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/storage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Caller is an authenticated participant, already resolved to a profile.
type Caller struct {
	ProfileID string
	Role      string
}

type Notifier interface {
	Dispatch(ctx context.Context, to notify.Target, kind notify.TemplateKind, fields map[string]string)
}

// Reminders is the fast-path timer side of the reminder scheduler.
type Reminders interface {
	Arm(appt model.Appointment)
	Disarm(appointmentID string)
}

type Config struct {
	Location       *time.Location
	MeetingBaseURL string
	JoinLead       time.Duration
}

type Deps struct {
	Store     storage.Store
	Clock     clock.Clock
	Notifier  Notifier
	Reminders Reminders
	Logger    *slog.Logger
}

type Engine struct {
	store     storage.Store
	slots     *availability.Generator
	clock     clock.Clock
	notifier  Notifier
	reminders Reminders
	logger    *slog.Logger
	tracer    trace.Tracer
	cfg       Config
}

func NewEngine(deps Deps, cfg Config) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MeetingBaseURL == "" {
		cfg.MeetingBaseURL = "https://meet.telehealth.local/room"
	}
	if cfg.JoinLead <= 0 {
		cfg.JoinLead = 15 * time.Minute
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	if deps.Reminders == nil {
		deps.Reminders = noopReminders{}
	}
	return &Engine{
		store:     deps.Store,
		slots:     availability.NewGenerator(deps.Store, deps.Store, deps.Clock, cfg.Location),
		clock:     deps.Clock,
		notifier:  deps.Notifier,
		reminders: deps.Reminders,
		logger:    deps.Logger.With("component", "booking"),
		tracer:    otelx.Tracer("scheduling-service/booking"),
		cfg:       cfg,
	}
}

func (e *Engine) Location() *time.Location { return e.cfg.Location }

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (e *Engine) requireProvider(ctx context.Context, providerID string) (model.Profile, error) {
	p, err := e.store.GetProfile(ctx, providerID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && p.Role != model.RoleProvider) {
		return model.Profile{}, ErrProviderNotFound
	}
	return p, err
}

// load fetches an appointment the caller participates in.
func (e *Engine) load(ctx context.Context, caller Caller, id string) (model.Appointment, error) {
	a, err := e.store.GetAppointment(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Appointment{}, ErrAppointmentNotFound
	}
	if err != nil {
		return model.Appointment{}, err
	}
	if !a.HasParticipant(caller.ProfileID) {
		return model.Appointment{}, ErrNotParticipant
	}
	return a, nil
}

// staleError explains a conditional write that lost a race.
func (e *Engine) staleError(ctx context.Context, id string) error {
	a, err := e.store.GetAppointment(ctx, id)
	if err != nil {
		return fmt.Errorf("reload appointment: %w", err)
	}
	if a.Status.Terminal() {
		return ErrTerminalState
	}
	return fmt.Errorf("%w: appointment changed concurrently, now %s", ErrInvalidTransition, a.Status)
}

func (e *Engine) Get(ctx context.Context, caller Caller, id string) (model.Appointment, error) {
	return e.load(ctx, caller, id)
}

func (e *Engine) ListAppointments(ctx context.Context, caller Caller, limit int) ([]model.Appointment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return e.store.ListByParticipant(ctx, caller.ProfileID, limit)
}

func (e *Engine) fields(a model.Appointment) map[string]string {
	return map[string]string{
		"appointment_id": a.ID,
		"date":           a.Date.Format(time.DateOnly),
		"time":           a.TimeLabel(),
		"duration":       strconv.Itoa(a.DurationMinutes),
		"kind":           string(a.Kind),
		"status":         string(a.Status),
		"reason":         a.Reason,
		"meeting_url":    a.MeetingURL,
	}
}

// notify resolves the recipient and hands off to the dispatcher. Failures are logged only.
func (e *Engine) notify(ctx context.Context, profileID string, kind notify.TemplateKind, fields map[string]string) {
	p, err := e.store.GetProfile(ctx, profileID)
	if err != nil {
		e.logger.Warn("notification recipient lookup failed",
			"kind", kind, "profile_id", profileID, "appointment_id", fields["appointment_id"], "err", err)
		return
	}
	e.notifier.Dispatch(ctx, notify.Target{ProfileID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone}, kind, fields)
}

func (e *Engine) notifyBoth(ctx context.Context, a model.Appointment, kind notify.TemplateKind, fields map[string]string) {
	e.notify(ctx, a.ProviderID, kind, fields)
	e.notify(ctx, a.ConsumerID, kind, fields)
}

func (e *Engine) meetingURL(providerID, consumerID, appointmentID string, now time.Time) string {
	suffix := appointmentID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s/%s-%s-%d-%s", strings.TrimRight(e.cfg.MeetingBaseURL, "/"), providerID, consumerID, now.UnixMilli(), suffix)
}

type noopNotifier struct{}

func (noopNotifier) Dispatch(context.Context, notify.Target, notify.TemplateKind, map[string]string) {}

type noopReminders struct{}

func (noopReminders) Arm(model.Appointment) {}
func (noopReminders) Disarm(string)         {}
