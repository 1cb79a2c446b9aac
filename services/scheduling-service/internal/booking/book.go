package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/timelabel"
	"go.opentelemetry.io/otel/attribute"
)

type BookRequest struct {
	ProviderID string
	Date       time.Time
	TimeLabel  string
	Kind       model.Kind
	Reason     string
}

// Book creates a scheduled appointment for the calling consumer. The slot is re-derived from the
// generator at commit time and the store rejects a concurrent claim of the same slot.
func (e *Engine) Book(ctx context.Context, caller Caller, req BookRequest) (appt model.Appointment, err error) {
	ctx, span := e.startSpan(ctx, "booking.Book")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("provider_id", req.ProviderID), attribute.String("time_label", req.TimeLabel))

	if caller.Role != model.RoleConsumer {
		return model.Appointment{}, fmt.Errorf("%w: only consumers book appointments", ErrForbidden)
	}
	if req.Kind == "" {
		req.Kind = model.KindInPerson
	}
	if !req.Kind.Valid() {
		return model.Appointment{}, validationf("unknown appointment kind %q", req.Kind)
	}
	minute, err := timelabel.Parse(req.TimeLabel)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if _, err := e.requireProvider(ctx, req.ProviderID); err != nil {
		return model.Appointment{}, err
	}

	now := e.clock.Now()
	date := timelabel.Date(req.Date, e.cfg.Location)
	if date.Before(timelabel.Date(now, e.cfg.Location)) {
		return model.Appointment{}, ErrInvalidDate
	}

	day, err := e.slots.Plan(ctx, availability.Query{ProviderID: req.ProviderID, Date: date})
	if err != nil {
		return model.Appointment{}, err
	}
	slot, ok := day.Find(minute)
	if !ok {
		if !timelabel.At(date, minute).After(now) {
			return model.Appointment{}, ErrInvalidDate
		}
		return model.Appointment{}, fmt.Errorf("%w: %s on %s", ErrSlotUnavailable, timelabel.Label(minute), date.Format(time.DateOnly))
	}

	appt = model.Appointment{
		ID:              uuid.NewString(),
		ProviderID:      req.ProviderID,
		ConsumerID:      caller.ProfileID,
		Date:            date,
		StartMinute:     slot.StartMinute,
		DurationMinutes: slot.DurationMinutes,
		Kind:            req.Kind,
		Status:          model.StatusScheduled,
		Reason:          strings.TrimSpace(req.Reason),
	}
	if appt.Kind == model.KindVirtual {
		appt.MeetingURL = e.meetingURL(appt.ProviderID, appt.ConsumerID, appt.ID, now)
	}

	created, err := e.store.CreateAppointment(ctx, appt)
	if errors.Is(err, storage.ErrSlotTaken) {
		return model.Appointment{}, fmt.Errorf("%w: %s was taken concurrently", ErrSlotUnavailable, slot.Label())
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}

	e.logger.Info("appointment booked",
		"appointment_id", created.ID,
		"provider_id", created.ProviderID,
		"consumer_id", created.ConsumerID,
		"starts_at", created.StartsAt().Format(time.RFC3339),
		"kind", created.Kind,
	)
	e.notify(ctx, created.ProviderID, notify.KindBooked, e.fields(created))
	if created.Kind == model.KindVirtual {
		e.reminders.Arm(created)
	}
	return created, nil
}
