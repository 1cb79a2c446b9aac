// Package reminder sends one reminder per virtual appointment shortly before it starts. A
// periodic sweep is the durable mechanism; per-appointment timers are an in-process fast path.
// Both claim the appointment's reminder flag before sending, so neither can double-send.
package reminder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	otelx "github.com/md-rashed-zaman/telehealth/libs/otel"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/clock"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/notify"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Store interface {
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	ListReminderCandidates(ctx context.Context, after, notAfter time.Time) ([]model.Appointment, error)
	ClaimReminder(ctx context.Context, id string, startsAt time.Time) (bool, error)
	ReleaseReminder(ctx context.Context, id string) error
	GetProfile(ctx context.Context, id string) (model.Profile, error)
}

type Config struct {
	// Lead is how long before start the reminder goes out.
	Lead time.Duration
	// SweepInterval is the period of the durable sweep.
	SweepInterval time.Duration
	// TimerHorizon bounds how far ahead a fast-path timer may be armed.
	TimerHorizon time.Duration
	SendTimeout  time.Duration
}

type Scheduler struct {
	store  Store
	sender notify.Sender
	clock  clock.Clock
	logger *slog.Logger
	tracer trace.Tracer
	cfg    Config

	sweepMu sync.Mutex

	mu      sync.Mutex
	timers  map[string]clock.Timer
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(store Store, sender notify.Sender, clk clock.Clock, logger *slog.Logger, cfg Config) *Scheduler {
	if cfg.Lead <= 0 {
		cfg.Lead = 15 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.TimerHorizon <= 0 {
		cfg.TimerHorizon = 24 * time.Hour
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  store,
		sender: sender,
		clock:  clk,
		logger: logger.With("component", "reminder"),
		tracer: otelx.Tracer("scheduling-service/reminder"),
		cfg:    cfg,
		timers: map[string]clock.Timer{},
	}
}

// Start runs the sweep loop until Stop or ctx cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopped = false
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	s.logger.Info("reminder scheduler started", "sweep_interval", s.cfg.SweepInterval.String(), "lead", s.cfg.Lead.String())
}

// Stop ends the sweep loop, waits for an in-flight sweep and disarms every timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.logger.Info("reminder scheduler stopped")
}

// Run sweeps once immediately, then every SweepInterval on the injected clock.
func (s *Scheduler) Run(ctx context.Context) {
	s.Sweep(ctx)
	for {
		tick := make(chan struct{}, 1)
		t := s.clock.AfterFunc(s.cfg.SweepInterval, func() { tick <- struct{}{} })
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-tick:
			s.Sweep(ctx)
		}
	}
}

type SweepResult struct {
	// Skipped is set when another sweep was still running.
	Skipped    bool
	Candidates int
	Sent       int
	Failed     int
}

// Sweep reminds every appointment whose start lies in (now, now+Lead]. Errors are logged per
// appointment and never abort the batch.
func (s *Scheduler) Sweep(ctx context.Context) SweepResult {
	if !s.sweepMu.TryLock() {
		return SweepResult{Skipped: true}
	}
	defer s.sweepMu.Unlock()

	ctx, span := s.tracer.Start(ctx, "reminder.Sweep")
	defer span.End()

	now := s.clock.Now()
	candidates, err := s.store.ListReminderCandidates(ctx, now, now.Add(s.cfg.Lead))
	if err != nil {
		span.RecordError(err)
		s.logger.Error("reminder sweep query failed", "err", err)
		return SweepResult{}
	}

	res := SweepResult{Candidates: len(candidates)}
	for _, appt := range candidates {
		if ctx.Err() != nil {
			break
		}
		sent, err := s.remind(ctx, appt)
		if err != nil {
			res.Failed++
			s.logger.Error("reminder failed", "appointment_id", appt.ID, "err", err)
			continue
		}
		if sent {
			res.Sent++
		}
	}
	span.SetAttributes(
		attribute.Int("reminder.candidates", res.Candidates),
		attribute.Int("reminder.sent", res.Sent),
		attribute.Int("reminder.failed", res.Failed),
	)
	if res.Candidates > 0 {
		s.logger.Info("reminder sweep finished", "candidates", res.Candidates, "sent", res.Sent, "failed", res.Failed)
	}
	return res
}

func (s *Scheduler) due(appt model.Appointment, now time.Time) bool {
	if appt.Kind != model.KindVirtual || appt.MeetingURL == "" || !appt.Status.Active() || appt.ReminderSent {
		return false
	}
	until := appt.StartsAt().Sub(now)
	return until > 0 && until <= s.cfg.Lead
}

var errAllSendsFailed = errors.New("reminder could not be delivered to any participant")

// remind claims the appointment at its listed start and notifies both participants. The claim
// is released only when every attempted send failed, so a partially delivered reminder is never
// repeated. Participants with no address count as nothing to deliver.
func (s *Scheduler) remind(ctx context.Context, appt model.Appointment) (bool, error) {
	claimed, err := s.store.ClaimReminder(ctx, appt.ID, appt.StartsAt())
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	fields := map[string]string{
		"appointment_id": appt.ID,
		"date":           appt.Date.Format(time.DateOnly),
		"time":           appt.TimeLabel(),
		"meeting_url":    appt.MeetingURL,
	}
	delivered, failed := 0, 0
	var errs []error
	for _, profileID := range []string{appt.ProviderID, appt.ConsumerID} {
		err := s.send(ctx, profileID, fields)
		switch {
		case errors.Is(err, notify.ErrNoAddress):
			s.logger.Warn("reminder recipient has no address", "appointment_id", appt.ID, "profile_id", profileID)
		case err != nil:
			failed++
			errs = append(errs, err)
			s.logger.Warn("reminder send failed", "appointment_id", appt.ID, "profile_id", profileID, "err", err)
		default:
			delivered++
		}
	}
	if delivered == 0 && failed > 0 {
		// Fresh context so a cancelled sweep still hands the appointment back to the next one.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SendTimeout)
		defer cancel()
		if err := s.store.ReleaseReminder(relCtx, appt.ID); err != nil {
			errs = append(errs, err)
		}
		return false, errors.Join(append([]error{errAllSendsFailed}, errs...)...)
	}
	return delivered > 0, nil
}

func (s *Scheduler) send(ctx context.Context, profileID string, fields map[string]string) error {
	p, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	return s.sender.Send(ctx, notify.Target{ProfileID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone}, notify.KindReminder, fields)
}
