package availability

import (
	"sort"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/timelabel"
)

// Interval is a half-open [Start, End) range of minutes of the day.
type Interval struct {
	Start int
	End   int
}

type Slot struct {
	StartMinute     int
	DurationMinutes int
}

func (s Slot) Label() string {
	return timelabel.Label(s.StartMinute)
}

// WindowSlots enumerates slot starts within the window at SlotDuration granularity. A trailing
// remainder shorter than one slot is never emitted.
func WindowSlots(w model.AvailabilityWindow) []Slot {
	if !w.Active || w.SlotDuration <= 0 || w.EndMinute <= w.StartMinute {
		return nil
	}
	var slots []Slot
	for t := w.StartMinute; t+w.SlotDuration <= w.EndMinute; t += w.SlotDuration {
		slots = append(slots, Slot{StartMinute: t, DurationMinutes: w.SlotDuration})
	}
	return slots
}

// OpenSlots returns the slots of all windows that start after notAfter (pass -1 to keep every
// slot) and do not overlap any busy interval, earliest first.
func OpenSlots(windows []model.AvailabilityWindow, busy []Interval, notAfter int) []Slot {
	var out []Slot
	seen := map[int]bool{}
	for _, w := range windows {
		for _, s := range WindowSlots(w) {
			if s.StartMinute <= notAfter || seen[s.StartMinute] {
				continue
			}
			if Overlaps(s.StartMinute, s.StartMinute+s.DurationMinutes, busy) {
				continue
			}
			seen[s.StartMinute] = true
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	return out
}

func Overlaps(start, end int, busy []Interval) bool {
	for _, b := range busy {
		// [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start < b.End && b.Start < end {
			return true
		}
	}
	return false
}
