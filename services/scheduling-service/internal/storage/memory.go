package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
)

// Memory is a mutex-guarded Store for single-process deployments and tests. It enforces the same
// active-slot uniqueness as the Postgres partial index.
type Memory struct {
	mu           sync.RWMutex
	now          func() time.Time
	windows      map[string][]model.AvailabilityWindow
	appointments map[string]model.Appointment
	profiles     map[string]model.Profile
}

func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		now:          now,
		windows:      map[string][]model.AvailabilityWindow{},
		appointments: map[string]model.Appointment{},
		profiles:     map[string]model.Profile{},
	}
}

func (m *Memory) ReplaceSchedule(_ context.Context, providerID string, windows []model.AvailabilityWindow) error {
	next := make([]model.AvailabilityWindow, 0, len(windows))
	for _, w := range windows {
		w.ID = uuid.NewString()
		w.ProviderID = providerID
		next = append(next, w)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows[providerID] = next
	return nil
}

func (m *Memory) ListSchedule(_ context.Context, providerID string) ([]model.AvailabilityWindow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]model.AvailabilityWindow(nil), m.windows[providerID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartMinute < out[j].StartMinute
	})
	return out, nil
}

func (m *Memory) ListDaySchedule(ctx context.Context, providerID string, day time.Weekday) ([]model.AvailabilityWindow, error) {
	all, _ := m.ListSchedule(ctx, providerID)
	var out []model.AvailabilityWindow
	for _, w := range all {
		if w.DayOfWeek == day {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *Memory) CreateAppointment(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status.Active() && m.slotTakenLocked(appt.ProviderID, appt.Date, appt.StartMinute, appt.ID) {
		return model.Appointment{}, ErrSlotTaken
	}
	now := m.now()
	appt.CreatedAt, appt.UpdatedAt = now, now
	m.appointments[appt.ID] = appt
	return appt, nil
}

func (m *Memory) slotTakenLocked(providerID string, date time.Time, startMinute int, selfID string) bool {
	for id, a := range m.appointments {
		if id == selfID || !a.Status.Active() {
			continue
		}
		if a.ProviderID == providerID && a.Date.Equal(date) && a.StartMinute == startMinute {
			return true
		}
	}
	return false
}

func (m *Memory) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) ListActiveOnDate(_ context.Context, providerID string, date time.Time) ([]model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Appointment
	for _, a := range m.appointments {
		if a.ProviderID == providerID && a.Date.Equal(date) && a.Status.Active() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	return out, nil
}

func (m *Memory) ListByParticipant(_ context.Context, profileID string, limit int) ([]model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Appointment
	for _, a := range m.appointments {
		if a.HasParticipant(profileID) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt().After(out[j].StartsAt()) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) UpdateStatus(_ context.Context, id string, from, to model.Status) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	if a.Status != from {
		return model.Appointment{}, ErrStaleState
	}
	a.Status = to
	a.UpdatedAt = m.now()
	m.appointments[id] = a
	return a, nil
}

func (m *Memory) Reschedule(_ context.Context, id string, expect model.Status, change RescheduleChange) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	if a.Status != expect {
		return model.Appointment{}, ErrStaleState
	}
	if m.slotTakenLocked(a.ProviderID, change.Date, change.StartMinute, id) {
		return model.Appointment{}, ErrSlotTaken
	}
	a.Date = change.Date
	a.StartMinute = change.StartMinute
	a.DurationMinutes = change.DurationMinutes
	a.Reason = change.Reason
	if change.ResetReminder {
		a.ReminderSent = false
	}
	a.UpdatedAt = m.now()
	m.appointments[id] = a
	return a, nil
}

func (m *Memory) ListReminderCandidates(_ context.Context, after, notAfter time.Time) ([]model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Appointment
	for _, a := range m.appointments {
		if a.Kind != model.KindVirtual || !a.Status.Active() || a.ReminderSent || a.MeetingURL == "" {
			continue
		}
		start := a.StartsAt()
		if start.After(after) && !start.After(notAfter) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt().Before(out[j].StartsAt()) })
	return out, nil
}

func (m *Memory) ClaimReminder(_ context.Context, id string, startsAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.ReminderSent || !a.Status.Active() || !a.StartsAt().Equal(startsAt) {
		return false, nil
	}
	a.ReminderSent = true
	m.appointments[id] = a
	return true, nil
}

func (m *Memory) ReleaseReminder(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return ErrNotFound
	}
	a.ReminderSent = false
	m.appointments[id] = a
	return nil
}

func (m *Memory) EnsureProfile(_ context.Context, seed model.Profile) (model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.PrincipalID == seed.PrincipalID && p.Role == seed.Role {
			return p, nil
		}
	}
	if seed.ID == "" {
		seed.ID = uuid.NewString()
	}
	seed.CreatedAt = m.now()
	m.profiles[seed.ID] = seed
	return seed, nil
}

func (m *Memory) FindProfile(_ context.Context, principalID, role string) (model.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.profiles {
		if p.PrincipalID == principalID && p.Role == role {
			return p, nil
		}
	}
	return model.Profile{}, ErrNotFound
}

func (m *Memory) GetProfile(_ context.Context, id string) (model.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	return p, nil
}

var _ Store = (*Memory)(nil)
