package reminder

import (
	"context"
	"errors"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/storage"
)

// Arm schedules a one-shot reminder at start-Lead when that instant is in the future and within
// TimerHorizon. Anything else is left to the sweep.
func (s *Scheduler) Arm(appt model.Appointment) {
	if appt.Kind != model.KindVirtual || appt.MeetingURL == "" || !appt.Status.Active() || appt.ReminderSent {
		return
	}
	wait := appt.StartsAt().Add(-s.cfg.Lead).Sub(s.clock.Now())
	if wait <= 0 || wait > s.cfg.TimerHorizon {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if prev, ok := s.timers[appt.ID]; ok {
		prev.Stop()
	}
	id := appt.ID
	s.timers[id] = s.clock.AfterFunc(wait, func() { s.fire(id) })
}

func (s *Scheduler) Disarm(appointmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[appointmentID]; ok {
		t.Stop()
		delete(s.timers, appointmentID)
	}
}

// Armed reports how many fast-path timers are pending.
func (s *Scheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// fire re-reads the appointment so a timer that outlived a cancel or reschedule does nothing.
func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	delete(s.timers, id)
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*s.cfg.SendTimeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "reminder.Timer")
	defer span.End()

	appt, err := s.store.GetAppointment(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Error("reminder timer lookup failed", "appointment_id", id, "err", err)
		return
	}
	if !s.due(appt, s.clock.Now()) {
		return
	}
	if _, err := s.remind(ctx, appt); err != nil {
		span.RecordError(err)
		s.logger.Error("reminder timer failed", "appointment_id", id, "err", err)
	}
}
