package reminder

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/clock"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store    *storage.Memory
	clock    *clock.Fake
	sent     *notify.Recorder
	sched    *Scheduler
	provider model.Profile
	consumer model.Profile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock: clock.NewFake(monday.Add(12 * time.Hour)),
		sent:  notify.NewRecorder(),
	}
	f.store = storage.NewMemory(f.clock.Now)
	ctx := context.Background()
	var err error
	f.provider, err = f.store.EnsureProfile(ctx, model.Profile{PrincipalID: "u-prov", Role: model.RoleProvider, Email: "dr@example.com"})
	require.NoError(t, err)
	f.consumer, err = f.store.EnsureProfile(ctx, model.Profile{PrincipalID: "u-cons", Role: model.RoleConsumer, Email: "sam@example.com"})
	require.NoError(t, err)
	f.sched = New(f.store, f.sent, f.clock, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Lead: 15 * time.Minute})
	return f
}

func (f *fixture) book(t *testing.T, minute int, kind model.Kind) model.Appointment {
	t.Helper()
	appt := model.Appointment{
		ProviderID:      f.provider.ID,
		ConsumerID:      f.consumer.ID,
		Date:            monday,
		StartMinute:     minute,
		DurationMinutes: 30,
		Kind:            kind,
		Status:          model.StatusScheduled,
	}
	if kind == model.KindVirtual {
		appt.MeetingURL = "https://meet.example/room"
	}
	created, err := f.store.CreateAppointment(context.Background(), appt)
	require.NoError(t, err)
	return created
}

func (f *fixture) reload(t *testing.T, id string) model.Appointment {
	t.Helper()
	a, err := f.store.GetAppointment(context.Background(), id)
	require.NoError(t, err)
	return a
}

func TestSweepTwiceSendsOnce(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 13*60, model.KindVirtual)
	f.book(t, 12*60+55, model.KindInPerson)

	f.clock.Set(monday.Add(12*time.Hour + 50*time.Minute))
	first := f.sched.Sweep(context.Background())
	second := f.sched.Sweep(context.Background())

	assert.Equal(t, SweepResult{Candidates: 1, Sent: 1}, first)
	assert.Equal(t, SweepResult{}, second)
	assert.Equal(t, 2, f.sent.Count(notify.KindReminder))
	assert.True(t, f.reload(t, appt.ID).ReminderSent)
}

func TestSweepIgnoresAppointmentsOutsideLead(t *testing.T) {
	f := newFixture(t)
	f.book(t, 13*60, model.KindVirtual)

	assert.Equal(t, SweepResult{}, f.sched.Sweep(context.Background()))

	f.clock.Set(monday.Add(13*time.Hour + time.Minute))
	assert.Equal(t, SweepResult{}, f.sched.Sweep(context.Background()))
	assert.Zero(t, f.sent.Count(notify.KindReminder))
}

func TestSweepReleasesClaimWhenEverySendFails(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 13*60, model.KindVirtual)
	f.sent.FailFor(f.provider.ID, f.consumer.ID)

	f.clock.Set(monday.Add(12*time.Hour + 50*time.Minute))
	res := f.sched.Sweep(context.Background())
	assert.Equal(t, 1, res.Failed)
	assert.False(t, f.reload(t, appt.ID).ReminderSent)

	// Channel recovered: the next sweep delivers.
	recovered := notify.NewRecorder()
	f.sched.sender = recovered
	res = f.sched.Sweep(context.Background())
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 2, recovered.Count(notify.KindReminder))
}

func TestSweepKeepsClaimOnPartialDelivery(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 13*60, model.KindVirtual)
	f.sent.FailFor(f.consumer.ID)

	f.clock.Set(monday.Add(12*time.Hour + 50*time.Minute))
	assert.Equal(t, 1, f.sched.Sweep(context.Background()).Sent)
	assert.True(t, f.reload(t, appt.ID).ReminderSent)

	f.sched.Sweep(context.Background())
	assert.Equal(t, 1, f.sent.Count(notify.KindReminder))
}

func TestSweepContinuesPastFailingAppointment(t *testing.T) {
	f := newFixture(t)
	orphan, err := f.store.CreateAppointment(context.Background(), model.Appointment{
		ProviderID: "missing-provider", ConsumerID: "missing-consumer",
		Date: monday, StartMinute: 12*60 + 55, DurationMinutes: 30,
		Kind: model.KindVirtual, Status: model.StatusScheduled, MeetingURL: "https://meet.example/x",
	})
	require.NoError(t, err)
	good := f.book(t, 13*60, model.KindVirtual)

	f.clock.Set(monday.Add(12*time.Hour + 50*time.Minute))
	res := f.sched.Sweep(context.Background())
	assert.Equal(t, SweepResult{Candidates: 2, Sent: 1, Failed: 1}, res)
	assert.False(t, f.reload(t, orphan.ID).ReminderSent)
	assert.True(t, f.reload(t, good.ID).ReminderSent)
}

func TestSweepDoesNotOverlap(t *testing.T) {
	f := newFixture(t)
	f.sched.sweepMu.Lock()
	defer f.sched.sweepMu.Unlock()
	assert.True(t, f.sched.Sweep(context.Background()).Skipped)
}

func TestTimerFiresAtLead(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 13*60, model.KindVirtual)

	f.sched.Arm(appt)
	assert.Equal(t, 1, f.sched.Armed())

	f.clock.Set(monday.Add(12*time.Hour + 44*time.Minute))
	assert.Zero(t, f.sent.Count(notify.KindReminder))

	f.clock.Set(monday.Add(12*time.Hour + 45*time.Minute))
	assert.Equal(t, 2, f.sent.Count(notify.KindReminder))
	assert.Zero(t, f.sched.Armed())
	assert.True(t, f.reload(t, appt.ID).ReminderSent)

	// The sweep sees the claim and stays quiet.
	f.clock.Set(monday.Add(12*time.Hour + 50*time.Minute))
	f.sched.Sweep(context.Background())
	assert.Equal(t, 2, f.sent.Count(notify.KindReminder))
}

func TestArmSkipsOutOfRangeAndIneligible(t *testing.T) {
	f := newFixture(t)

	tomorrow := f.book(t, 13*60, model.KindVirtual)
	tomorrow.Date = monday.AddDate(0, 0, 2)
	f.sched.Arm(tomorrow)

	imminent := f.book(t, 12*60+10, model.KindVirtual)
	f.sched.Arm(imminent)

	inPerson := f.book(t, 14*60, model.KindInPerson)
	f.sched.Arm(inPerson)

	assert.Zero(t, f.sched.Armed())
}

func TestDisarmAndStaleTimers(t *testing.T) {
	f := newFixture(t)
	first := f.book(t, 13*60, model.KindVirtual)
	second := f.book(t, 14*60, model.KindVirtual)

	f.sched.Arm(first)
	f.sched.Disarm(first.ID)
	assert.Zero(t, f.clock.Pending())

	f.sched.Arm(second)
	_, err := f.store.UpdateStatus(context.Background(), second.ID, model.StatusScheduled, model.StatusCancelled)
	require.NoError(t, err)

	f.clock.Set(monday.Add(14 * time.Hour))
	assert.Zero(t, f.sent.Count(notify.KindReminder))
}

func TestStopDisarmsTimers(t *testing.T) {
	f := newFixture(t)
	f.sched.Arm(f.book(t, 13*60, model.KindVirtual))
	f.sched.Stop()
	assert.Zero(t, f.sched.Armed())
	assert.Zero(t, f.clock.Pending())
}

func TestRunLoopFollowsClock(t *testing.T) {
	f := newFixture(t)
	f.book(t, 13*60, model.KindVirtual)

	f.sched.Start(context.Background())
	defer f.sched.Stop()

	// Step one sweep interval at a time, only once the loop has re-armed its timer.
	for i := 0; i < 50 && f.sent.Count(notify.KindReminder) == 0; i++ {
		require.Eventually(t, func() bool { return f.clock.Pending() == 1 }, time.Second, time.Millisecond)
		f.clock.Advance(time.Minute)
	}
	require.Eventually(t, func() bool { return f.sent.Count(notify.KindReminder) == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, f.clock.Now().After(monday.Add(12*time.Hour+44*time.Minute)))
}

// movingStore reschedules an appointment right after it has been listed, as a concurrent
// reschedule landing between the sweep's query and its claim would.
type movingStore struct {
	*storage.Memory
	move func(id string)
}

func (m *movingStore) ListReminderCandidates(ctx context.Context, after, notAfter time.Time) ([]model.Appointment, error) {
	list, err := m.Memory.ListReminderCandidates(ctx, after, notAfter)
	if err == nil && m.move != nil {
		for _, a := range list {
			m.move(a.ID)
		}
	}
	return list, err
}

func TestSweepSkipsAppointmentMovedAfterListing(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 13*60, model.KindVirtual)
	nextMonday := monday.AddDate(0, 0, 7)

	store := &movingStore{Memory: f.store}
	store.move = func(id string) {
		_, err := f.store.Reschedule(context.Background(), id, model.StatusScheduled, storage.RescheduleChange{
			Date: nextMonday, StartMinute: 13 * 60, DurationMinutes: 30, ResetReminder: true,
		})
		require.NoError(t, err)
	}
	sched := New(store, f.sent, f.clock, nil, Config{Lead: 15 * time.Minute})

	f.clock.Set(monday.Add(12*time.Hour + 50*time.Minute))
	res := sched.Sweep(context.Background())
	assert.Equal(t, SweepResult{Candidates: 1}, res)
	assert.Zero(t, f.sent.Count(notify.KindReminder))

	moved := f.reload(t, appt.ID)
	assert.Equal(t, nextMonday, moved.Date)
	assert.False(t, moved.ReminderSent)

	// The moved appointment is reminded before its new start, with its new date.
	store.move = nil
	f.clock.Set(nextMonday.Add(12*time.Hour + 50*time.Minute))
	res = sched.Sweep(context.Background())
	assert.Equal(t, SweepResult{Candidates: 1, Sent: 1}, res)
	sent := f.sent.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "2026-03-09", sent[0].Fields["date"])
	assert.True(t, f.reload(t, appt.ID).ReminderSent)
}

func TestSweepKeepsClaimWhenNobodyHasAnAddress(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 13*60, model.KindVirtual)
	f.sched.sender = notify.SenderFunc(func(context.Context, notify.Target, notify.TemplateKind, map[string]string) error {
		return notify.ErrNoAddress
	})

	f.clock.Set(monday.Add(12*time.Hour + 50*time.Minute))
	assert.Equal(t, SweepResult{Candidates: 1}, f.sched.Sweep(context.Background()))
	assert.True(t, f.reload(t, appt.ID).ReminderSent)

	f.clock.Set(monday.Add(12*time.Hour + 51*time.Minute))
	assert.Equal(t, SweepResult{}, f.sched.Sweep(context.Background()))
}

func TestNewDefaultsLogger(t *testing.T) {
	f := newFixture(t)
	var sched *Scheduler
	require.NotPanics(t, func() {
		sched = New(f.store, f.sent, f.clock, nil, Config{})
	})
	sched.Stop()
}
