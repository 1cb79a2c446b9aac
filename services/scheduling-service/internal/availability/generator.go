package availability

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/clock"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/timelabel"
)

type ScheduleReader interface {
	ListDaySchedule(ctx context.Context, providerID string, day time.Weekday) ([]model.AvailabilityWindow, error)
}

type BookingReader interface {
	ListActiveOnDate(ctx context.Context, providerID string, date time.Time) ([]model.Appointment, error)
}

// Generator derives offerable slots for one provider and calendar date from the weekly schedule
// and the active appointments already on that date.
type Generator struct {
	schedules ScheduleReader
	bookings  BookingReader
	clock     clock.Clock
	loc       *time.Location
}

func NewGenerator(schedules ScheduleReader, bookings BookingReader, clk clock.Clock, loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{schedules: schedules, bookings: bookings, clock: clk, loc: loc}
}

type Query struct {
	ProviderID string
	Date       time.Time
	// ExcludeAppointmentID drops one appointment from the conflict set, so a reschedule can be
	// offered its own current slot.
	ExcludeAppointmentID string
}

type Day struct {
	Date  time.Time
	Slots []Slot
	Busy  []Interval
}

func (d Day) Find(startMinute int) (Slot, bool) {
	for _, s := range d.Slots {
		if s.StartMinute == startMinute {
			return s, true
		}
	}
	return Slot{}, false
}

func (d Day) Labels() []string {
	out := make([]string, 0, len(d.Slots))
	for _, s := range d.Slots {
		out = append(out, s.Label())
	}
	return out
}

func (g *Generator) Location() *time.Location { return g.loc }

// Plan computes the open slots for q. Past dates have none; on the current date slots starting
// at or before the current minute are dropped.
func (g *Generator) Plan(ctx context.Context, q Query) (Day, error) {
	date := timelabel.Date(q.Date, g.loc)
	day := Day{Date: date}

	now := g.clock.Now().In(g.loc)
	today := timelabel.Date(now, g.loc)
	if date.Before(today) {
		return day, nil
	}
	notAfter := -1
	if date.Equal(today) {
		notAfter = timelabel.MinuteOfDay(now, g.loc)
	}

	windows, err := g.schedules.ListDaySchedule(ctx, q.ProviderID, date.Weekday())
	if err != nil {
		return day, err
	}
	if len(windows) == 0 {
		return day, nil
	}

	booked, err := g.bookings.ListActiveOnDate(ctx, q.ProviderID, date)
	if err != nil {
		return day, err
	}
	for _, a := range booked {
		if a.ID == q.ExcludeAppointmentID || !a.Status.Active() {
			continue
		}
		day.Busy = append(day.Busy, Interval{Start: a.StartMinute, End: a.StartMinute + a.DurationMinutes})
	}

	day.Slots = OpenSlots(windows, day.Busy, notAfter)
	return day, nil
}
