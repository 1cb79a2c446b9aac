package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/timelabel"
)

// SetWeeklySchedule replaces the calling provider's whole weekly schedule.
func (e *Engine) SetWeeklySchedule(ctx context.Context, caller Caller, windows []model.AvailabilityWindow) ([]model.AvailabilityWindow, error) {
	if caller.Role != model.RoleProvider {
		return nil, fmt.Errorf("%w: only providers publish availability", ErrForbidden)
	}
	if err := availability.ValidateSchedule(windows); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := e.store.ReplaceSchedule(ctx, caller.ProfileID, windows); err != nil {
		return nil, err
	}
	e.logger.Info("weekly schedule replaced", "provider_id", caller.ProfileID, "windows", len(windows))
	return e.store.ListSchedule(ctx, caller.ProfileID)
}

func (e *Engine) GetWeeklySchedule(ctx context.Context, providerID string) ([]model.AvailabilityWindow, error) {
	if _, err := e.requireProvider(ctx, providerID); err != nil {
		return nil, err
	}
	return e.store.ListSchedule(ctx, providerID)
}

// GetDaySchedule returns the provider's windows for one weekday; empty means no availability.
func (e *Engine) GetDaySchedule(ctx context.Context, providerID string, day time.Weekday) ([]model.AvailabilityWindow, error) {
	if _, err := e.requireProvider(ctx, providerID); err != nil {
		return nil, err
	}
	return e.store.ListDaySchedule(ctx, providerID, day)
}

// ListAvailableSlots returns the offerable slots for a provider on date, earliest first.
func (e *Engine) ListAvailableSlots(ctx context.Context, providerID string, date time.Time) (availability.Day, error) {
	if _, err := e.requireProvider(ctx, providerID); err != nil {
		return availability.Day{}, err
	}
	return e.slots.Plan(ctx, availability.Query{ProviderID: providerID, Date: timelabel.Date(date, e.cfg.Location)})
}

// ListRescheduleSlots lists slots an appointment could move to. The appointment's own slot is
// offered back since it would be freed by the move.
func (e *Engine) ListRescheduleSlots(ctx context.Context, caller Caller, id string, date time.Time) (availability.Day, error) {
	a, err := e.load(ctx, caller, id)
	if err != nil {
		return availability.Day{}, err
	}
	if a.Status.Terminal() {
		return availability.Day{}, ErrTerminalState
	}
	return e.slots.Plan(ctx, availability.Query{
		ProviderID:           a.ProviderID,
		Date:                 timelabel.Date(date, e.cfg.Location),
		ExcludeAppointmentID: a.ID,
	})
}
