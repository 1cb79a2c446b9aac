package availability

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/timelabel"
)

var (
	ErrInvalidWindow      = errors.New("invalid availability window")
	ErrConflictingWindows = errors.New("conflicting availability windows")
)

// ValidateSchedule checks a full weekly schedule before it replaces the stored one. Inactive
// windows take part in the overlap check so that toggling one on can never create a conflict.
func ValidateSchedule(windows []model.AvailabilityWindow) error {
	byDay := map[time.Weekday][]model.AvailabilityWindow{}
	for i, w := range windows {
		if w.DayOfWeek < time.Sunday || w.DayOfWeek > time.Saturday {
			return fmt.Errorf("%w: window %d: day_of_week %d out of range", ErrInvalidWindow, i, w.DayOfWeek)
		}
		if w.StartMinute < 0 || w.EndMinute > timelabel.MinutesPerDay || w.StartMinute >= w.EndMinute {
			return fmt.Errorf("%w: window %d: start must be before end within one day", ErrInvalidWindow, i)
		}
		if w.SlotDuration <= 0 {
			return fmt.Errorf("%w: window %d: slot duration must be positive", ErrInvalidWindow, i)
		}
		byDay[w.DayOfWeek] = append(byDay[w.DayOfWeek], w)
	}

	for day, list := range byDay {
		sort.Slice(list, func(i, j int) bool { return list[i].StartMinute < list[j].StartMinute })
		for i := 1; i < len(list); i++ {
			if list[i].StartMinute < list[i-1].EndMinute {
				return fmt.Errorf("%w: %s %s-%s overlaps %s-%s", ErrConflictingWindows, day,
					timelabel.Label(list[i].StartMinute), timelabel.Label(list[i].EndMinute),
					timelabel.Label(list[i-1].StartMinute), timelabel.Label(list[i-1].EndMinute))
			}
		}
	}
	return nil
}

// SortWindows orders windows by weekday then start.
func SortWindows(windows []model.AvailabilityWindow) {
	sort.Slice(windows, func(i, j int) bool {
		if windows[i].DayOfWeek != windows[j].DayOfWeek {
			return windows[i].DayOfWeek < windows[j].DayOfWeek
		}
		return windows[i].StartMinute < windows[j].StartMinute
	})
}
