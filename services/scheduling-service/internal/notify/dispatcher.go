package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher sends in the background so scheduling operations never wait on or fail because of
// delivery. Wait drains in-flight sends on shutdown.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sender: sender, logger: logger, timeout: timeout}
}

func (d *Dispatcher) Dispatch(ctx context.Context, to Target, kind TemplateKind, fields map[string]string) {
	// Detach from the request so the send outlives it, keeping trace values.
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		if err := d.sender.Send(ctx, to, kind, fields); err != nil {
			d.logger.Warn("notification dispatch failed",
				"kind", kind,
				"recipient_profile_id", to.ProfileID,
				"appointment_id", fields["appointment_id"],
				"err", err,
			)
		}
	}()
}

func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
