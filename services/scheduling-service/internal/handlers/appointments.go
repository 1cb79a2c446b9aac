package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/timelabel"
)

type appointmentResponse struct {
	AppointmentID   string `json:"appointment_id"`
	ProviderID      string `json:"provider_id"`
	ConsumerID      string `json:"consumer_id"`
	Date            string `json:"date"`
	TimeLabel       string `json:"time_label"`
	DurationMinutes int    `json:"duration_minutes"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Kind            string `json:"kind"`
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
	MeetingURL      string `json:"meeting_url,omitempty"`
	ReminderSent    bool   `json:"reminder_sent"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toAppointmentResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		AppointmentID:   a.ID,
		ProviderID:      a.ProviderID,
		ConsumerID:      a.ConsumerID,
		Date:            a.Date.Format(time.DateOnly),
		TimeLabel:       a.TimeLabel(),
		DurationMinutes: a.DurationMinutes,
		StartTime:       a.StartsAt().Format(time.RFC3339),
		EndTime:         a.EndsAt().Format(time.RFC3339),
		Kind:            string(a.Kind),
		Status:          string(a.Status),
		Reason:          a.Reason,
		MeetingURL:      a.MeetingURL,
		ReminderSent:    a.ReminderSent,
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type bookRequest struct {
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
	TimeLabel  string `json:"time_label"`
	Kind       string `json:"kind"`
	Reason     string `json:"reason"`
}

type rescheduleRequest struct {
	AppointmentID   string  `json:"appointment_id"`
	Date            string  `json:"date"`
	TimeLabel       string  `json:"time_label"`
	DurationMinutes int     `json:"duration_minutes"`
	Reason          *string `json:"reason"`
}

type appointmentIDRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type statusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

func (h *Handler) parseDate(raw string) (time.Time, error) {
	d, err := timelabel.ParseDate(raw, h.loc)
	if err != nil {
		return time.Time{}, booking.ErrValidation
	}
	return d, nil
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req bookRequest
	if !decode(w, r, &req) {
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.ProviderID == "" || strings.TrimSpace(req.TimeLabel) == "" {
		writeErrorMessage(w, http.StatusBadRequest, "validation_error", "provider_id and time_label are required")
		return
	}
	date, err := h.parseDate(req.Date)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "validation_error", "date must be YYYY-MM-DD")
		return
	}

	// Consumers get a profile on their first booking.
	caller, err := h.caller(r, true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	appt, err := h.engine.Book(r.Context(), caller, booking.BookRequest{
		ProviderID: req.ProviderID,
		Date:       date,
		TimeLabel:  req.TimeLabel,
		Kind:       model.Kind(strings.TrimSpace(req.Kind)),
		Reason:     req.Reason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeErrorMessage(w, http.StatusBadRequest, "validation_error", "invalid limit")
			return
		}
		limit = n
	}
	caller, err := h.caller(r, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := []appointmentResponse{}
	if caller.ProfileID != "" {
		list, err := h.engine.ListAppointments(r.Context(), caller, limit)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		for _, a := range list {
			items = append(items, toAppointmentResponse(a))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if id == "" {
		writeErrorMessage(w, http.StatusBadRequest, "validation_error", "appointment_id is required")
		return
	}
	caller, err := h.caller(r, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	appt, err := h.engine.Get(r.Context(), caller, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req rescheduleRequest
	if !decode(w, r, &req) {
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" || strings.TrimSpace(req.TimeLabel) == "" {
		writeErrorMessage(w, http.StatusBadRequest, "validation_error", "appointment_id and time_label are required")
		return
	}
	date, err := h.parseDate(req.Date)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "validation_error", "date must be YYYY-MM-DD")
		return
	}
	caller, err := h.caller(r, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	appt, err := h.engine.Reschedule(r.Context(), caller, req.AppointmentID, booking.RescheduleRequest{
		Date:            date,
		TimeLabel:       req.TimeLabel,
		DurationMinutes: req.DurationMinutes,
		Reason:          req.Reason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req appointmentIDRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.AppointmentID) == "" {
		writeErrorMessage(w, http.StatusBadRequest, "validation_error", "appointment_id is required")
		return
	}
	caller, err := h.caller(r, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.engine.Cancel(r.Context(), caller, strings.TrimSpace(req.AppointmentID)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"appointment_id": req.AppointmentID,
		"status":         string(model.StatusCancelled),
	})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.AppointmentID) == "" || strings.TrimSpace(req.Status) == "" {
		writeErrorMessage(w, http.StatusBadRequest, "validation_error", "appointment_id and status are required")
		return
	}
	caller, err := h.caller(r, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	appt, err := h.engine.UpdateStatus(r.Context(), caller, strings.TrimSpace(req.AppointmentID),
		model.Status(strings.ToLower(strings.TrimSpace(req.Status))))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if id == "" {
		writeErrorMessage(w, http.StatusBadRequest, "validation_error", "appointment_id is required")
		return
	}
	caller, err := h.caller(r, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	url, err := h.engine.Join(r.Context(), caller, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"appointment_id": id, "meeting_url": url})
}
