package notify

import (
	"context"
	"errors"
)

// Fanout sends through every channel. It succeeds when at least one channel delivered, and
// returns ErrNoAddress when no channel had an address for the target.
type Fanout []Sender

func (f Fanout) Send(ctx context.Context, to Target, kind TemplateKind, fields map[string]string) error {
	var (
		errs      []error
		attempted bool
		delivered bool
	)
	for _, s := range f {
		err := s.Send(ctx, to, kind, fields)
		if errors.Is(err, ErrNoAddress) {
			continue
		}
		attempted = true
		if err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = true
	}
	if !attempted {
		return ErrNoAddress
	}
	if delivered {
		return nil
	}
	return errors.Join(errs...)
}
