package storage

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrSlotTaken is returned when a write would leave two active appointments on the same
	// provider, date and start minute.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrStaleState is returned when a conditional update finds the row no longer in the
	// expected status.
	ErrStaleState = errors.New("appointment state changed")
)

type AvailabilityStore interface {
	// ReplaceSchedule deletes every window of the provider and inserts windows in one step.
	ReplaceSchedule(ctx context.Context, providerID string, windows []model.AvailabilityWindow) error
	ListSchedule(ctx context.Context, providerID string) ([]model.AvailabilityWindow, error)
	ListDaySchedule(ctx context.Context, providerID string, day time.Weekday) ([]model.AvailabilityWindow, error)
}

// RescheduleChange moves an appointment in place.
type RescheduleChange struct {
	Date            time.Time
	StartMinute     int
	DurationMinutes int
	Reason          string
	ResetReminder   bool
}

type AppointmentStore interface {
	CreateAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	ListActiveOnDate(ctx context.Context, providerID string, date time.Time) ([]model.Appointment, error)
	// ListByParticipant returns appointments where profileID is provider or consumer, latest start first.
	ListByParticipant(ctx context.Context, profileID string, limit int) ([]model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, from, to model.Status) (model.Appointment, error)
	Reschedule(ctx context.Context, id string, expect model.Status, change RescheduleChange) (model.Appointment, error)

	// ListReminderCandidates returns active virtual appointments with a meeting URL and no
	// reminder sent whose start lies in (after, notAfter].
	ListReminderCandidates(ctx context.Context, after, notAfter time.Time) ([]model.Appointment, error)
	// ClaimReminder flips ReminderSent from false to true and reports whether this call did it.
	// The claim only holds while the appointment still starts at startsAt.
	ClaimReminder(ctx context.Context, id string, startsAt time.Time) (bool, error)
	ReleaseReminder(ctx context.Context, id string) error
}

type ProfileStore interface {
	// EnsureProfile returns the profile for (principal, role), creating it from seed if absent.
	EnsureProfile(ctx context.Context, seed model.Profile) (model.Profile, error)
	FindProfile(ctx context.Context, principalID, role string) (model.Profile, error)
	GetProfile(ctx context.Context, id string) (model.Profile, error)
}

type Store interface {
	AvailabilityStore
	AppointmentStore
	ProfileStore
}
