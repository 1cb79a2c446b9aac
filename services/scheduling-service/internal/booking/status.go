package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

// UpdateStatus moves an appointment along the lifecycle. Either participant may cancel;
// confirming and completing belong to the provider.
func (e *Engine) UpdateStatus(ctx context.Context, caller Caller, id string, to model.Status) (updated model.Appointment, err error) {
	ctx, span := e.startSpan(ctx, "booking.UpdateStatus")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("appointment_id", id), attribute.String("status", string(to)))

	if !to.Valid() {
		return model.Appointment{}, validationf("unknown status %q", to)
	}
	a, err := e.load(ctx, caller, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if a.Status.Terminal() {
		return model.Appointment{}, ErrTerminalState
	}
	if !CanTransition(a.Status, to) {
		return model.Appointment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	if to != model.StatusCancelled && caller.ProfileID != a.ProviderID {
		return model.Appointment{}, fmt.Errorf("%w: only the provider can mark an appointment %s", ErrForbidden, to)
	}

	updated, err = e.store.UpdateStatus(ctx, id, a.Status, to)
	if errors.Is(err, storage.ErrStaleState) {
		return model.Appointment{}, e.staleError(ctx, id)
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("update status: %w", err)
	}

	e.logger.Info("appointment status changed",
		"appointment_id", id, "from", a.Status, "to", to, "by", caller.ProfileID)

	switch to {
	case model.StatusConfirmed:
		e.notifyBoth(ctx, updated, notify.KindConfirmed, e.fields(updated))
	case model.StatusCancelled:
		e.reminders.Disarm(id)
		e.notifyBoth(ctx, updated, notify.KindCancelled, e.fields(updated))
	case model.StatusCompleted:
		e.reminders.Disarm(id)
	}
	return updated, nil
}

// Cancel is permitted however far ahead the appointment is, but never from a terminal state.
func (e *Engine) Cancel(ctx context.Context, caller Caller, id string) error {
	_, err := e.UpdateStatus(ctx, caller, id, model.StatusCancelled)
	return err
}
