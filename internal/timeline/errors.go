package timeline

import (
	"errors"
	"fmt"
)

// ErrNotFound is the parent of every "unknown id" error in this package.
// Callers that only care about the category can check errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("timeline: not found")

// Domain errors for the timeline.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, timeline.ErrConflictingDurationTimer) {
//	    // back off, another duration timer holds the slot
//	}
var (
	// ErrEventNotFound is returned when an event ID does not exist.
	ErrEventNotFound = fmt.Errorf("event: %w", ErrNotFound)

	// ErrTimerNotFound is returned when a timer ID does not exist.
	ErrTimerNotFound = fmt.Errorf("timer: %w", ErrNotFound)

	// ErrActionNotFound is returned when an action ID does not exist.
	ErrActionNotFound = fmt.Errorf("action: %w", ErrNotFound)

	// ErrInvalidTransition is returned when a timer is not in the status the
	// transition requires. Usually means another caller already handled it.
	ErrInvalidTransition = errors.New("timeline: invalid status transition")

	// ErrConflictingDurationTimer is returned when starting a duration-bearing
	// timer while another duration-bearing timer of the same event is RUNNING.
	ErrConflictingDurationTimer = errors.New("timeline: another duration timer is running")

	// ErrNotPunctualOrManual is returned when the punctual/manual start path
	// is used on a duration-bearing timer.
	ErrNotPunctualOrManual = errors.New("timeline: timer is not punctual or manual")

	// ErrNoTimersConfigured is returned when starting an event with no timers.
	ErrNoTimersConfigured = errors.New("timeline: no timers configured")

	// ErrAlreadyRunning is returned when starting an event that already has a
	// running duration timer.
	ErrAlreadyRunning = errors.New("timeline: event already running")

	// ErrPartialCascade is matched by cascade reports where some downstream
	// timers could not be shifted.
	ErrPartialCascade = errors.New("timeline: partial cascade failure")

	// ErrInvalidTimer is returned when timer validation fails.
	ErrInvalidTimer = errors.New("timeline: invalid timer")

	// ErrInvalidAction is returned when action validation fails.
	ErrInvalidAction = errors.New("timeline: invalid action")

	// ErrInvalidEvent is returned when event validation fails.
	ErrInvalidEvent = errors.New("timeline: invalid event")

	// ErrDuplicateOrder is returned when two timers of an event share an order index.
	ErrDuplicateOrder = errors.New("timeline: duplicate order index")

	// ErrAlreadyExists is returned when creating a record whose ID is taken.
	ErrAlreadyExists = errors.New("timeline: already exists")

	// ErrNotDemo is returned when a demo-only operation targets a live event.
	ErrNotDemo = errors.New("timeline: event is not a demo event")
)
