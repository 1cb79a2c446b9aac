package model

import "time"

const (
	RoleProvider = "provider"
	RoleConsumer = "consumer"
)

// Profile is the role-specific identity the scheduling core keys appointments and schedules on.
// One principal may hold at most one profile per role.
type Profile struct {
	ID          string
	PrincipalID string
	Role        string
	Name        string
	Email       string
	Phone       string
	CreatedAt   time.Time
}
