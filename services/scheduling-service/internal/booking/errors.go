package booking

import (
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/availability"
)

// Error taxonomy. Callers match the roots with errors.Is; the specific errors below all wrap one.
var (
	ErrValidation      = errors.New("validation failed")
	ErrSlotUnavailable = errors.New("slot unavailable")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrTerminalState   = errors.New("appointment is completed or cancelled")
)

var (
	ErrProviderNotFound     = fmt.Errorf("%w: provider", ErrNotFound)
	ErrAppointmentNotFound  = fmt.Errorf("%w: appointment", ErrNotFound)
	ErrInvalidDate          = fmt.Errorf("%w: appointment time is in the past", ErrValidation)
	ErrInvalidTransition    = fmt.Errorf("%w: status transition not allowed", ErrValidation)
	ErrJoinWindowClosed     = fmt.Errorf("%w: join window is closed", ErrValidation)
	ErrAppointmentConcluded = fmt.Errorf("%w: appointment has already ended", ErrTerminalState)
	ErrNotParticipant       = fmt.Errorf("%w: caller is not a participant", ErrForbidden)

	// ErrConflictingWindows is returned joined with ErrValidation.
	ErrConflictingWindows = availability.ErrConflictingWindows
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
