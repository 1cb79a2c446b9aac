package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/timelabel"
	"go.opentelemetry.io/otel/attribute"
)

type RescheduleRequest struct {
	Date      time.Time
	TimeLabel string
	// DurationMinutes overrides the slot granularity when positive.
	DurationMinutes int
	// Reason replaces the stored reason when non-nil.
	Reason *string
}

// Reschedule moves an appointment in place; its id, kind, status and meeting URL are kept.
func (e *Engine) Reschedule(ctx context.Context, caller Caller, id string, req RescheduleRequest) (moved model.Appointment, err error) {
	ctx, span := e.startSpan(ctx, "booking.Reschedule")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("appointment_id", id), attribute.String("time_label", req.TimeLabel))

	a, err := e.load(ctx, caller, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if a.Status.Terminal() {
		return model.Appointment{}, ErrTerminalState
	}
	now := e.clock.Now()
	if !a.EndsAt().After(now) {
		return model.Appointment{}, ErrAppointmentConcluded
	}

	minute, err := timelabel.Parse(req.TimeLabel)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if req.DurationMinutes < 0 {
		return model.Appointment{}, validationf("duration must be positive")
	}
	date := timelabel.Date(req.Date, e.cfg.Location)
	newStart := timelabel.At(date, minute)
	if !newStart.After(now) {
		return model.Appointment{}, validationf("new start %s is not in the future", newStart.Format(time.RFC3339))
	}

	day, err := e.slots.Plan(ctx, availability.Query{ProviderID: a.ProviderID, Date: date, ExcludeAppointmentID: a.ID})
	if err != nil {
		return model.Appointment{}, err
	}
	slot, ok := day.Find(minute)
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: %s on %s", ErrSlotUnavailable, timelabel.Label(minute), date.Format(time.DateOnly))
	}
	duration := slot.DurationMinutes
	if req.DurationMinutes > 0 {
		duration = req.DurationMinutes
		if minute+duration > timelabel.MinutesPerDay {
			return model.Appointment{}, validationf("appointment may not run past midnight")
		}
		if availability.Overlaps(minute, minute+duration, day.Busy) {
			return model.Appointment{}, fmt.Errorf("%w: %d minutes from %s overlaps another appointment", ErrSlotUnavailable, duration, slot.Label())
		}
	}
	reason := a.Reason
	if req.Reason != nil {
		reason = strings.TrimSpace(*req.Reason)
	}

	moved, err = e.store.Reschedule(ctx, a.ID, a.Status, storage.RescheduleChange{
		Date:            date,
		StartMinute:     minute,
		DurationMinutes: duration,
		Reason:          reason,
		ResetReminder:   !newStart.Equal(a.StartsAt()),
	})
	switch {
	case errors.Is(err, storage.ErrSlotTaken):
		return model.Appointment{}, fmt.Errorf("%w: %s was taken concurrently", ErrSlotUnavailable, slot.Label())
	case errors.Is(err, storage.ErrStaleState):
		return model.Appointment{}, e.staleError(ctx, a.ID)
	case err != nil:
		return model.Appointment{}, fmt.Errorf("reschedule appointment: %w", err)
	}

	e.logger.Info("appointment rescheduled",
		"appointment_id", a.ID,
		"from", a.StartsAt().Format(time.RFC3339),
		"to", moved.StartsAt().Format(time.RFC3339),
		"by", caller.ProfileID,
	)
	fields := e.fields(moved)
	fields["previous_date"] = a.Date.Format(time.DateOnly)
	fields["previous_time"] = a.TimeLabel()
	e.notifyBoth(ctx, moved, notify.KindRescheduled, fields)

	if moved.Kind == model.KindVirtual {
		e.reminders.Disarm(moved.ID)
		e.reminders.Arm(moved)
	}
	return moved, nil
}
