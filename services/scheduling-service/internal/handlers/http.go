package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/telehealth/libs/auth"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/profile"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/storage"
)

type Handler struct {
	engine   *booking.Engine
	profiles *profile.Resolver
	logger   *slog.Logger
	loc      *time.Location
}

func New(engine *booking.Engine, profiles *profile.Resolver, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, profiles: profiles, logger: logger, loc: engine.Location()}
}

// Register mounts every scheduling route behind bearer authentication.
func (h *Handler) Register(mux *http.ServeMux, signer *auth.Signer) {
	routes := map[string]http.HandlerFunc{
		"/api/v1/slots":                   h.Slots,
		"/api/v1/availability":            h.Availability,
		"/api/v1/appointments":            h.List,
		"/api/v1/appointments/get":        h.Get,
		"/api/v1/appointments/book":       h.Book,
		"/api/v1/appointments/reschedule": h.Reschedule,
		"/api/v1/appointments/cancel":     h.Cancel,
		"/api/v1/appointments/status":     h.Status,
		"/api/v1/appointments/join":       h.Join,
	}
	for path, fn := range routes {
		mux.Handle(path, RequireAuth(signer, fn))
	}
}

// caller resolves the request principal to its profile. With ensure the profile is created on
// first use; otherwise an unknown principal gets an empty profile id and can see nothing.
func (h *Handler) caller(r *http.Request, ensure bool) (booking.Caller, error) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok || p.ID == "" {
		return booking.Caller{}, booking.ErrForbidden
	}
	var (
		prof model.Profile
		err  error
	)
	if ensure {
		prof, err = h.profiles.Ensure(r.Context(), p)
	} else {
		prof, err = h.profiles.Resolve(r.Context(), p)
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return booking.Caller{Role: p.Role}, nil
	case errors.Is(err, profile.ErrUnknownRole):
		return booking.Caller{}, booking.ErrForbidden
	case err != nil:
		return booking.Caller{}, err
	}
	return booking.Caller{ProfileID: prof.ID, Role: prof.Role}, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		writeErrorMessage(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeErrorMessage(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, booking.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeErrorMessage(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, booking.ErrTerminalState):
		writeErrorMessage(w, http.StatusConflict, "terminal_state", err.Error())
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "err", err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeErrorMessage(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "validation_error", "invalid json body")
		return false
	}
	return true
}
