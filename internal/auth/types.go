package auth

import (
	"errors"
	"strings"
)

// Role represents an authorisation tier for a wedding team member.
type Role string

const (
	// RoleOwner is the planner who owns the event: everything, including
	// rehearsal jumps, resets and the audit log.
	RoleOwner Role = "OWNER"

	// RoleCoordinator runs the day: starts and completes timers, adjusts
	// durations, ticks off cues.
	RoleCoordinator Role = "COORDINATOR"

	// RoleParticipant is a vendor or wedding party member who ticks off the
	// cues assigned to them.
	RoleParticipant Role = "PARTICIPANT"

	// RoleViewOnly sees the timeline and live updates, nothing more.
	RoleViewOnly Role = "VIEW_ONLY"
)

// ValidRoles lists every role, most privileged first.
var ValidRoles = []Role{RoleOwner, RoleCoordinator, RoleParticipant, RoleViewOnly}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// ParseRole accepts a role name in any case ("owner", "View_Only").
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !IsValidRole(r) {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrForbidden    = errors.New("insufficient permissions")
	ErrWeakSecret   = errors.New("signing secret too short")
)
