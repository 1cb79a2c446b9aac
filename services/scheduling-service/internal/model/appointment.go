package model

import (
	"time"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/timelabel"
)

const DefaultDurationMinutes = 30

type Kind string

const (
	KindInPerson Kind = "in-person"
	KindVirtual  Kind = "virtual"
)

func (k Kind) Valid() bool {
	return k == KindInPerson || k == KindVirtual
}

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active statuses occupy their provider slot.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Appointment times are stored as a calendar date (midnight in the scheduling location) plus a
// minute of the day; the "HH:MM AM/PM" label is derived and never compared directly.
type Appointment struct {
	ID              string
	ProviderID      string
	ConsumerID      string
	Date            time.Time
	StartMinute     int
	DurationMinutes int
	Kind            Kind
	Status          Status
	Reason          string
	MeetingURL      string
	ReminderSent    bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a Appointment) TimeLabel() string {
	return timelabel.Label(a.StartMinute)
}

func (a Appointment) StartsAt() time.Time {
	return timelabel.At(a.Date, a.StartMinute)
}

func (a Appointment) EndsAt() time.Time {
	return a.StartsAt().Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func (a Appointment) HasParticipant(profileID string) bool {
	return profileID != "" && (a.ProviderID == profileID || a.ConsumerID == profileID)
}
