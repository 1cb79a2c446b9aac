package booking

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/clock"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-03-02 is a Monday; tests start on the Sunday before.
var (
	sunday = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
)

type syncNotifier struct{ sender notify.Sender }

func (n syncNotifier) Dispatch(ctx context.Context, to notify.Target, kind notify.TemplateKind, fields map[string]string) {
	_ = n.sender.Send(ctx, to, kind, fields)
}

type armLog struct {
	mu       sync.Mutex
	armed    map[string]time.Time
	disarmed []string
}

func (a *armLog) Arm(appt model.Appointment) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.armed[appt.ID] = appt.StartsAt()
}

func (a *armLog) Disarm(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.armed, id)
	a.disarmed = append(a.disarmed, id)
}

type harness struct {
	engine    *Engine
	store     *storage.Memory
	clock     *clock.Fake
	sent      *notify.Recorder
	reminders *armLog
	provider  Caller
	consumer  Caller
	other     Caller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:     clock.NewFake(sunday),
		sent:      notify.NewRecorder(),
		reminders: &armLog{armed: map[string]time.Time{}},
	}
	h.store = storage.NewMemory(h.clock.Now)
	h.engine = NewEngine(Deps{
		Store:     h.store,
		Clock:     h.clock,
		Notifier:  syncNotifier{h.sent},
		Reminders: h.reminders,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, Config{Location: time.UTC, MeetingBaseURL: "https://meet.example/room/"})

	ctx := context.Background()
	ensure := func(principal, role string) Caller {
		p, err := h.store.EnsureProfile(ctx, model.Profile{PrincipalID: principal, Role: role, Email: principal + "@example.com"})
		require.NoError(t, err)
		return Caller{ProfileID: p.ID, Role: role}
	}
	h.provider = ensure("dr-ada", model.RoleProvider)
	h.consumer = ensure("sam", model.RoleConsumer)
	h.other = ensure("alex", model.RoleConsumer)

	_, err := h.engine.SetWeeklySchedule(ctx, h.provider, []model.AvailabilityWindow{
		{DayOfWeek: time.Monday, StartMinute: 9 * 60, EndMinute: 10 * 60, SlotDuration: 30, Active: true},
		{DayOfWeek: time.Monday, StartMinute: 13 * 60, EndMinute: 14 * 60, SlotDuration: 30, Active: true},
	})
	require.NoError(t, err)
	return h
}

func (h *harness) labels(t *testing.T, date time.Time) []string {
	t.Helper()
	day, err := h.engine.ListAvailableSlots(context.Background(), h.provider.ProfileID, date)
	require.NoError(t, err)
	return day.Labels()
}

func (h *harness) book(t *testing.T, who Caller, label string, kind model.Kind) model.Appointment {
	t.Helper()
	appt, err := h.engine.Book(context.Background(), who, BookRequest{
		ProviderID: h.provider.ProfileID, Date: monday, TimeLabel: label, Kind: kind, Reason: "follow-up",
	})
	require.NoError(t, err)
	return appt
}

func TestSlotGenerationOnEmptyDay(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, []string{"09:00 AM", "09:30 AM", "01:00 PM", "01:30 PM"}, h.labels(t, monday))
	assert.Empty(t, h.labels(t, monday.AddDate(0, 0, 1)))
}

func TestSlotGenerationToday(t *testing.T) {
	h := newHarness(t)
	h.clock.Set(monday.Add(9*time.Hour + 15*time.Minute))
	assert.Equal(t, []string{"09:30 AM", "01:00 PM", "01:30 PM"}, h.labels(t, monday))
}

func TestBookingRemovesSlotAndCancelRestoresIt(t *testing.T) {
	h := newHarness(t)
	appt := h.book(t, h.consumer, "09:30 AM", model.KindInPerson)

	assert.Equal(t, model.StatusScheduled, appt.Status)
	assert.Equal(t, 30, appt.DurationMinutes)
	assert.Empty(t, appt.MeetingURL)
	assert.NotContains(t, h.labels(t, monday), "09:30 AM")
	assert.Equal(t, 1, h.sent.Count(notify.KindBooked))
	assert.Equal(t, h.provider.ProfileID, h.sent.Sent()[0].To.ProfileID)

	require.NoError(t, h.engine.Cancel(context.Background(), h.consumer, appt.ID))
	assert.Contains(t, h.labels(t, monday), "09:30 AM")
	assert.Equal(t, 2, h.sent.Count(notify.KindCancelled))
}

func TestBookingRejectsTakenSlot(t *testing.T) {
	h := newHarness(t)
	h.book(t, h.consumer, "09:30 AM", model.KindInPerson)

	_, err := h.engine.Book(context.Background(), h.other, BookRequest{
		ProviderID: h.provider.ProfileID, Date: monday, TimeLabel: "9:30am",
	})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestBookingValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := func(mut func(*BookRequest)) BookRequest {
		r := BookRequest{ProviderID: h.provider.ProfileID, Date: monday, TimeLabel: "09:00 AM"}
		mut(&r)
		return r
	}

	_, err := h.engine.Book(ctx, h.consumer, req(func(r *BookRequest) { r.TimeLabel = "nine" }))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = h.engine.Book(ctx, h.consumer, req(func(r *BookRequest) { r.Kind = "phone" }))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = h.engine.Book(ctx, h.consumer, req(func(r *BookRequest) { r.ProviderID = h.other.ProfileID }))
	assert.ErrorIs(t, err, ErrProviderNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.engine.Book(ctx, h.consumer, req(func(r *BookRequest) { r.Date = sunday.AddDate(0, 0, -7) }))
	assert.ErrorIs(t, err, ErrInvalidDate)
	_, err = h.engine.Book(ctx, h.consumer, req(func(r *BookRequest) { r.TimeLabel = "09:10 AM" }))
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	_, err = h.engine.Book(ctx, h.provider, req(func(r *BookRequest) {}))
	assert.ErrorIs(t, err, ErrForbidden)

	h.clock.Set(monday.Add(9*time.Hour + 5*time.Minute))
	_, err = h.engine.Book(ctx, h.consumer, req(func(r *BookRequest) {}))
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestConcurrentBookingsKeepSlotUnique(t *testing.T) {
	h := newHarness(t)
	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		who := h.consumer
		if i%2 == 1 {
			who = h.other
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.Book(context.Background(), who, BookRequest{
				ProviderID: h.provider.ProfileID, Date: monday, TimeLabel: "01:00 PM",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	}
	assert.Equal(t, 1, ok)
	active, err := h.store.ListActiveOnDate(context.Background(), h.provider.ProfileID, monday)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestStatusStateMachine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	appt := h.book(t, h.consumer, "09:00 AM", model.KindInPerson)

	_, err := h.engine.UpdateStatus(ctx, h.consumer, appt.ID, model.StatusConfirmed)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.engine.UpdateStatus(ctx, h.provider, appt.ID, model.StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = h.engine.UpdateStatus(ctx, h.other, appt.ID, model.StatusCancelled)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.engine.UpdateStatus(ctx, h.provider, appt.ID, "pending")
	assert.ErrorIs(t, err, ErrValidation)

	confirmed, err := h.engine.UpdateStatus(ctx, h.provider, appt.ID, model.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)
	assert.Equal(t, 2, h.sent.Count(notify.KindConfirmed))

	completed, err := h.engine.UpdateStatus(ctx, h.provider, appt.ID, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, completed.Status)

	for _, to := range []model.Status{model.StatusConfirmed, model.StatusCancelled, model.StatusCompleted, model.StatusScheduled} {
		_, err = h.engine.UpdateStatus(ctx, h.provider, appt.ID, to)
		assert.ErrorIs(t, err, ErrTerminalState, to)
	}
	assert.ErrorIs(t, h.engine.Cancel(ctx, h.consumer, appt.ID), ErrTerminalState)
	_, err = h.engine.Reschedule(ctx, h.consumer, appt.ID, RescheduleRequest{Date: monday, TimeLabel: "09:30 AM"})
	assert.ErrorIs(t, err, ErrTerminalState)

	_, err = h.engine.UpdateStatus(ctx, h.provider, "nope", model.StatusCancelled)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCancelledAppointmentRejectsEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	appt := h.book(t, h.consumer, "09:00 AM", model.KindVirtual)
	require.NoError(t, h.engine.Cancel(ctx, h.provider, appt.ID))
	assert.Contains(t, h.reminders.disarmed, appt.ID)

	assert.ErrorIs(t, h.engine.Cancel(ctx, h.consumer, appt.ID), ErrTerminalState)
	_, err := h.engine.UpdateStatus(ctx, h.provider, appt.ID, model.StatusConfirmed)
	assert.ErrorIs(t, err, ErrTerminalState)
	_, err = h.engine.Reschedule(ctx, h.consumer, appt.ID, RescheduleRequest{Date: monday, TimeLabel: "09:30 AM"})
	assert.ErrorIs(t, err, ErrTerminalState)
	_, err = h.engine.Join(ctx, h.consumer, appt.ID)
	assert.ErrorIs(t, err, ErrTerminalState)
	_, err = h.engine.ListRescheduleSlots(ctx, h.consumer, appt.ID, monday)
	assert.ErrorIs(t, err, ErrTerminalState)
}

func TestRescheduleEligibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	appt := h.book(t, h.consumer, "09:00 AM", model.KindInPerson)

	_, err := h.engine.Reschedule(ctx, h.other, appt.ID, RescheduleRequest{Date: monday, TimeLabel: "09:30 AM"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.engine.Reschedule(ctx, h.consumer, appt.ID, RescheduleRequest{Date: sunday, TimeLabel: "09:00 AM"})
	assert.ErrorIs(t, err, ErrValidation)

	other := h.book(t, h.other, "09:30 AM", model.KindInPerson)
	_, err = h.engine.Reschedule(ctx, h.consumer, appt.ID, RescheduleRequest{Date: monday, TimeLabel: "09:30 AM"})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	_, err = h.engine.Reschedule(ctx, h.consumer, appt.ID, RescheduleRequest{Date: monday, TimeLabel: "09:00 AM", DurationMinutes: 45})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	_, err = h.engine.Reschedule(ctx, h.consumer, appt.ID, RescheduleRequest{Date: monday, TimeLabel: "11:00 AM"})
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	// Once the appointment has ended it can no longer move.
	h.clock.Set(monday.Add(9*time.Hour + 31*time.Minute))
	_, err = h.engine.Reschedule(ctx, h.consumer, appt.ID, RescheduleRequest{Date: monday, TimeLabel: "01:00 PM"})
	assert.ErrorIs(t, err, ErrAppointmentConcluded)
	assert.ErrorIs(t, err, ErrTerminalState)

	// An appointment still in progress can move to a future slot.
	moved, err := h.engine.Reschedule(ctx, h.other, other.ID, RescheduleRequest{Date: monday, TimeLabel: "01:00 PM"})
	require.NoError(t, err)
	assert.Equal(t, "01:00 PM", moved.TimeLabel())
}

func TestRescheduleDiscoveryOffersOwnSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	appt := h.book(t, h.consumer, "01:00 PM", model.KindVirtual)

	// Plain listing treats the appointment as a conflict.
	assert.NotContains(t, h.labels(t, monday), "01:00 PM")

	// Reschedule discovery excludes the appointment itself.
	day, err := h.engine.ListRescheduleSlots(ctx, h.consumer, appt.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00 AM", "09:30 AM", "01:00 PM", "01:30 PM"}, day.Labels())

	// Moving onto its own slot only changes duration and reason.
	reason := "longer visit"
	same, err := h.engine.Reschedule(ctx, h.consumer, appt.ID, RescheduleRequest{
		Date: monday, TimeLabel: "01:00 PM", DurationMinutes: 60, Reason: &reason,
	})
	require.NoError(t, err)
	assert.Equal(t, 60, same.DurationMinutes)
	assert.Equal(t, "longer visit", same.Reason)
	assert.Equal(t, appt.MeetingURL, same.MeetingURL)
	assert.NotContains(t, h.labels(t, monday), "01:30 PM")

	_, err = h.engine.ListRescheduleSlots(ctx, h.other, appt.ID, monday)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEndToEndVirtualReschedule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.SetWeeklySchedule(ctx, h.provider, []model.AvailabilityWindow{
		{DayOfWeek: time.Monday, StartMinute: 13 * 60, EndMinute: 14 * 60, SlotDuration: 30, Active: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"01:00 PM", "01:30 PM"}, h.labels(t, monday))

	appt := h.book(t, h.consumer, "01:00 PM", model.KindVirtual)
	require.NotEmpty(t, appt.MeetingURL)
	assert.True(t, strings.HasPrefix(appt.MeetingURL, "https://meet.example/room/"+h.provider.ProfileID+"-"+h.consumer.ProfileID+"-"))
	assert.Equal(t, model.StatusScheduled, appt.Status)
	assert.Equal(t, monday.Add(13*time.Hour), h.reminders.armed[appt.ID])

	moved, err := h.engine.Reschedule(ctx, h.consumer, appt.ID, RescheduleRequest{Date: monday, TimeLabel: "01:30 PM"})
	require.NoError(t, err)
	assert.Equal(t, appt.ID, moved.ID)
	assert.Equal(t, appt.MeetingURL, moved.MeetingURL)
	assert.Equal(t, model.StatusScheduled, moved.Status)
	assert.Equal(t, "01:30 PM", moved.TimeLabel())
	assert.Equal(t, []string{"01:00 PM"}, h.labels(t, monday))
	assert.Equal(t, monday.Add(13*time.Hour+30*time.Minute), h.reminders.armed[appt.ID])

	var rescheduled []notify.Sent
	for _, s := range h.sent.Sent() {
		if s.Kind == notify.KindRescheduled {
			rescheduled = append(rescheduled, s)
		}
	}
	require.Len(t, rescheduled, 2)
	assert.Equal(t, "01:00 PM", rescheduled[0].Fields["previous_time"])
	assert.Equal(t, "01:30 PM", rescheduled[0].Fields["time"])
}

func TestRescheduleResetsReminderFlag(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	appt := h.book(t, h.consumer, "01:00 PM", model.KindVirtual)
	claimed, err := h.store.ClaimReminder(ctx, appt.ID, appt.StartsAt())
	require.NoError(t, err)
	require.True(t, claimed)

	moved, err := h.engine.Reschedule(ctx, h.consumer, appt.ID, RescheduleRequest{Date: monday.AddDate(0, 0, 7), TimeLabel: "09:00 AM"})
	require.NoError(t, err)
	assert.False(t, moved.ReminderSent)
	assert.Equal(t, monday.AddDate(0, 0, 7), moved.Date)
}

func TestJoinWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	virtual := h.book(t, h.consumer, "01:00 PM", model.KindVirtual)
	inPerson := h.book(t, h.consumer, "09:00 AM", model.KindInPerson)

	_, err := h.engine.Join(ctx, h.consumer, virtual.ID)
	assert.ErrorIs(t, err, ErrJoinWindowClosed)
	_, err = h.engine.Join(ctx, h.consumer, inPerson.ID)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = h.engine.Join(ctx, h.other, virtual.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	h.clock.Set(monday.Add(12*time.Hour + 45*time.Minute))
	url, err := h.engine.Join(ctx, h.provider, virtual.ID)
	require.NoError(t, err)
	assert.Equal(t, virtual.MeetingURL, url)

	h.clock.Set(monday.Add(13*time.Hour + 30*time.Minute))
	_, err = h.engine.Join(ctx, h.consumer, virtual.ID)
	assert.ErrorIs(t, err, ErrJoinWindowClosed)
}

func TestWeeklyScheduleManagement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.SetWeeklySchedule(ctx, h.provider, []model.AvailabilityWindow{
		{DayOfWeek: time.Monday, StartMinute: 9 * 60, EndMinute: 11 * 60, SlotDuration: 30, Active: true},
		{DayOfWeek: time.Monday, StartMinute: 10 * 60, EndMinute: 12 * 60, SlotDuration: 30, Active: true},
	})
	assert.ErrorIs(t, err, ErrConflictingWindows)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.engine.SetWeeklySchedule(ctx, h.consumer, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	// The rejected write left the previous schedule in place.
	windows, err := h.engine.GetWeeklySchedule(ctx, h.provider.ProfileID)
	require.NoError(t, err)
	assert.Len(t, windows, 2)

	tuesday, err := h.engine.GetDaySchedule(ctx, h.provider.ProfileID, time.Tuesday)
	require.NoError(t, err)
	assert.Empty(t, tuesday)

	_, err = h.engine.GetWeeklySchedule(ctx, h.consumer.ProfileID)
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestListAppointments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.book(t, h.consumer, "09:00 AM", model.KindInPerson)
	h.book(t, h.other, "01:00 PM", model.KindVirtual)

	mine, err := h.engine.ListAppointments(ctx, h.consumer, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	providers, err := h.engine.ListAppointments(ctx, h.provider, 10)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "01:00 PM", providers[0].TimeLabel())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(model.StatusScheduled, model.StatusConfirmed))
	assert.True(t, CanTransition(model.StatusScheduled, model.StatusCancelled))
	assert.True(t, CanTransition(model.StatusConfirmed, model.StatusCompleted))
	assert.True(t, CanTransition(model.StatusConfirmed, model.StatusCancelled))
	assert.False(t, CanTransition(model.StatusScheduled, model.StatusCompleted))
	assert.False(t, CanTransition(model.StatusCancelled, model.StatusScheduled))
	assert.False(t, CanTransition(model.StatusCompleted, model.StatusCancelled))
}
