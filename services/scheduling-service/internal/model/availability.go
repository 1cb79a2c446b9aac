package model

import "time"

// AvailabilityWindow is one open interval [StartMinute, EndMinute) on a weekday. Windows are
// replaced as a set, so IDs do not survive a schedule write.
type AvailabilityWindow struct {
	ID           string
	ProviderID   string
	DayOfWeek    time.Weekday
	StartMinute  int
	EndMinute    int
	SlotDuration int
	Active       bool
}
