// Package timelabel converts between "HH:MM AM/PM" slot labels, minutes of the day and
// absolute instants. Every function is pure.
package timelabel

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const MinutesPerDay = 24 * 60

var ErrInvalidLabel = errors.New("invalid time label")

var labelPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AP]M)?$`)

// Parse accepts 12-hour labels ("09:30 AM", "9:30pm") and 24-hour labels ("21:30") and
// returns the minute of the day.
func Parse(label string) (int, error) {
	m := labelPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(label)))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}

	switch m[3] {
	case "":
		if hour > 23 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
		}
	case "AM", "PM":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
		}
		if hour == 12 {
			hour = 0
		}
		if m[3] == "PM" {
			hour += 12
		}
	}
	return hour*60 + minute, nil
}

// MinutesOrZero treats a missing or garbled label as midnight.
func MinutesOrZero(label string) int {
	m, err := Parse(label)
	if err != nil {
		return 0
	}
	return m
}

// Label renders a minute of the day as a zero-padded 12-hour label. Values outside the day wrap.
func Label(minutes int) string {
	minutes %= MinutesPerDay
	if minutes < 0 {
		minutes += MinutesPerDay
	}
	hour, minute := minutes/60, minutes%60
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%02d:%02d %s", hour, minute, suffix)
}

// Date truncates t to midnight of its calendar day in loc.
func Date(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// At returns the instant minutes after midnight on date's calendar day, in date's location.
func At(date time.Time, minutes int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, minutes, 0, 0, date.Location())
}

// MinuteOfDay is the inverse of At for instants in loc.
func MinuteOfDay(t time.Time, loc *time.Location) int {
	t = t.In(loc)
	return t.Hour()*60 + t.Minute()
}

// Window returns the [start, end) instants of an appointment on date at label.
func Window(date time.Time, label string, durationMinutes int) (time.Time, time.Time, error) {
	minutes, err := Parse(label)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if durationMinutes <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("duration must be positive, got %d", durationMinutes)
	}
	start := At(date, minutes)
	return start, start.Add(time.Duration(durationMinutes) * time.Minute), nil
}

// ParseDate reads a "2006-01-02" calendar date in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), loc)
}
