package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/timelabel"
)

type windowItem struct {
	DayOfWeek    int    `json:"day_of_week"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	SlotDuration int    `json:"slot_duration_minutes"`
	Active       *bool  `json:"active,omitempty"`
}

type slotItem struct {
	TimeLabel       string `json:"time_label"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

func toWindowItems(windows []model.AvailabilityWindow) []windowItem {
	out := make([]windowItem, 0, len(windows))
	for _, w := range windows {
		active := w.Active
		out = append(out, windowItem{
			DayOfWeek:    int(w.DayOfWeek),
			StartTime:    timelabel.Label(w.StartMinute),
			EndTime:      timelabel.Label(w.EndMinute),
			SlotDuration: w.SlotDuration,
			Active:       &active,
		})
	}
	return out
}

// parseEnd reads midnight ("12:00 AM", "00:00" or "24:00") as the end of the day.
func parseEnd(raw string) (int, error) {
	if strings.TrimSpace(raw) == "24:00" {
		return timelabel.MinutesPerDay, nil
	}
	m, err := timelabel.Parse(raw)
	if err != nil {
		return 0, err
	}
	if m == 0 {
		return timelabel.MinutesPerDay, nil
	}
	return m, nil
}

func fromWindowItems(items []windowItem) ([]model.AvailabilityWindow, error) {
	out := make([]model.AvailabilityWindow, 0, len(items))
	for i, it := range items {
		start, err := timelabel.Parse(it.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%w: window %d: start_time: %w", booking.ErrValidation, i, err)
		}
		end, err := parseEnd(it.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%w: window %d: end_time: %w", booking.ErrValidation, i, err)
		}
		slot := it.SlotDuration
		if slot == 0 {
			slot = model.DefaultDurationMinutes
		}
		active := true
		if it.Active != nil {
			active = *it.Active
		}
		out = append(out, model.AvailabilityWindow{
			DayOfWeek:    time.Weekday(it.DayOfWeek),
			StartMinute:  start,
			EndMinute:    end,
			SlotDuration: slot,
			Active:       active,
		})
	}
	return out, nil
}

// Availability serves GET (any participant, by provider_id) and PUT (the calling provider).
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getAvailability(w, r)
	case http.MethodPut:
		h.putAvailability(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) getAvailability(w http.ResponseWriter, r *http.Request) {
	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	if providerID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "validation_error", "provider_id is required")
		return
	}
	var (
		windows []model.AvailabilityWindow
		err     error
	)
	if raw := strings.TrimSpace(r.URL.Query().Get("day_of_week")); raw != "" {
		day, convErr := strconv.Atoi(raw)
		if convErr != nil || day < 0 || day > 6 {
			writeErrorMessage(w, http.StatusBadRequest, "validation_error", "day_of_week must be 0-6")
			return
		}
		windows, err = h.engine.GetDaySchedule(r.Context(), providerID, time.Weekday(day))
	} else {
		windows, err = h.engine.GetWeeklySchedule(r.Context(), providerID)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider_id": providerID, "windows": toWindowItems(windows)})
}

func (h *Handler) putAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Windows []windowItem `json:"windows"`
	}
	if !decode(w, r, &req) {
		return
	}
	windows, err := fromWindowItems(req.Windows)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// Providers get a profile the first time they publish a schedule.
	caller, err := h.caller(r, true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	saved, err := h.engine.SetWeeklySchedule(r.Context(), caller, windows)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider_id": caller.ProfileID, "windows": toWindowItems(saved)})
}

// Slots lists open slots for provider_id on date. With appointment_id it lists the slots that
// appointment may be rescheduled to.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	providerID := strings.TrimSpace(q.Get("provider_id"))
	appointmentID := strings.TrimSpace(q.Get("appointment_id"))
	if providerID == "" && appointmentID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "validation_error", "provider_id or appointment_id is required")
		return
	}
	date, err := h.parseDate(q.Get("date"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "validation_error", "date must be YYYY-MM-DD")
		return
	}

	var day availability.Day
	if appointmentID != "" {
		caller, cerr := h.caller(r, false)
		if cerr != nil {
			h.writeError(w, r, cerr)
			return
		}
		day, err = h.engine.ListRescheduleSlots(r.Context(), caller, appointmentID, date)
	} else {
		day, err = h.engine.ListAvailableSlots(r.Context(), providerID, date)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]slotItem, 0, len(day.Slots))
	for _, s := range day.Slots {
		start := timelabel.At(day.Date, s.StartMinute)
		items = append(items, slotItem{
			TimeLabel:       s.Label(),
			StartTime:       start.Format(time.RFC3339),
			EndTime:         start.Add(time.Duration(s.DurationMinutes) * time.Minute).Format(time.RFC3339),
			DurationMinutes: s.DurationMinutes,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider_id": providerID,
		"date":        day.Date.Format(time.DateOnly),
		"slots":       day.Labels(),
		"items":       items,
	})
}
