package booking

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
)

var transitions = map[model.Status][]model.Status{
	model.StatusScheduled: {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCompleted, model.StatusCancelled},
}

// CanTransition reports whether from -> to is an allowed lifecycle edge. Terminal statuses have
// no outgoing edges.
func CanTransition(from, to model.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Join returns the meeting URL while the join window is open: from JoinLead before start until
// the appointment ends.
func (e *Engine) Join(ctx context.Context, caller Caller, id string) (string, error) {
	a, err := e.load(ctx, caller, id)
	if err != nil {
		return "", err
	}
	if a.Kind != model.KindVirtual || a.MeetingURL == "" {
		return "", validationf("appointment %s is not virtual", a.ID)
	}
	if a.Status.Terminal() {
		return "", ErrTerminalState
	}
	now := e.clock.Now()
	opens := a.StartsAt().Add(-e.cfg.JoinLead)
	if now.Before(opens) || !now.Before(a.EndsAt()) {
		return "", fmt.Errorf("%w: opens %s, closes %s", ErrJoinWindowClosed,
			opens.In(e.cfg.Location).Format("Jan 2 03:04 PM"), a.EndsAt().In(e.cfg.Location).Format("Jan 2 03:04 PM"))
	}
	return a.MeetingURL, nil
}
