package timeline

import (
	"fmt"
	"strings"
)

// Validation constants.
const (
	maxNameLength         = 120
	maxDescriptionLen     = 2000
	maxDurationMinutes    = 24 * 60
	maxTriggerOffsetMin   = 24 * 60
	maxDisplayDurationSec = 24 * 60 * 60
	maxLanguageTagLength  = 35
)

// Pre-computed validation sets for O(1) lookups.
var (
	validStatuses    map[Status]struct{}
	validActionTypes map[ActionType]struct{}
	validTriggers    map[Trigger]struct{}
)

func init() {
	validStatuses = make(map[Status]struct{}, len(ValidStatuses))
	for _, s := range ValidStatuses {
		validStatuses[s] = struct{}{}
	}
	validActionTypes = make(map[ActionType]struct{}, len(ValidActionTypes))
	for _, t := range ValidActionTypes {
		validActionTypes[t] = struct{}{}
	}
	validTriggers = make(map[Trigger]struct{}, len(ValidTriggers))
	for _, t := range ValidTriggers {
		validTriggers[t] = struct{}{}
	}
}

// ValidateEvent checks the fields an event needs before it is persisted.
func ValidateEvent(e *Event) error {
	if e == nil {
		return ErrInvalidEvent
	}
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	}
	if err := validateName(e.Name); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if e.EventDate.IsZero() {
		return fmt.Errorf("%w: event_date is required", ErrInvalidEvent)
	}
	return nil
}

// ValidateTimer performs validation on a timer definition.
// Returns an error describing the first validation failure found.
func ValidateTimer(t *Timer) error {
	if t == nil {
		return ErrInvalidTimer
	}
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTimer)
	}
	if strings.TrimSpace(t.EventID) == "" {
		return fmt.Errorf("%w: event_id is required", ErrInvalidTimer)
	}
	if err := validateName(t.Name); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTimer, err)
	}
	if t.OrderIndex < 0 {
		return fmt.Errorf("%w: order_index must be non-negative", ErrInvalidTimer)
	}
	if err := ValidateDuration(t.DurationMinutes); err != nil {
		return err
	}
	if t.Status != "" {
		if _, ok := validStatuses[t.Status]; !ok {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidTimer, t.Status)
		}
	}
	for lang, text := range t.Descriptions {
		if lang == "" || len(lang) > maxLanguageTagLength {
			return fmt.Errorf("%w: invalid description language %q", ErrInvalidTimer, lang)
		}
		if len(text) > maxDescriptionLen {
			return fmt.Errorf("%w: description %q exceeds %d characters", ErrInvalidTimer, lang, maxDescriptionLen)
		}
	}
	return nil
}

// ValidateDuration checks an optional duration in minutes.
// Nil and zero are valid: they mark a punctual-or-manual timer.
func ValidateDuration(minutes *int) error {
	if minutes == nil {
		return nil
	}
	if *minutes < 0 {
		return fmt.Errorf("%w: duration_minutes cannot be negative", ErrInvalidTimer)
	}
	if *minutes > maxDurationMinutes {
		return fmt.Errorf("%w: duration_minutes exceeds %d", ErrInvalidTimer, maxDurationMinutes)
	}
	return nil
}

// ValidateAction checks an action definition.
func ValidateAction(a *Action) error {
	if a == nil {
		return ErrInvalidAction
	}
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidAction)
	}
	if strings.TrimSpace(a.TimerID) == "" {
		return fmt.Errorf("%w: timer_id is required", ErrInvalidAction)
	}
	if _, ok := validActionTypes[a.Type]; !ok {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}
	if _, ok := validTriggers[a.Trigger]; !ok {
		return fmt.Errorf("%w: unknown trigger %q", ErrInvalidAction, a.Trigger)
	}
	if a.TriggerOffsetMinutes < -maxTriggerOffsetMin || a.TriggerOffsetMinutes > maxTriggerOffsetMin {
		return fmt.Errorf("%w: trigger_offset_minutes out of range", ErrInvalidAction)
	}
	if a.DisplayDurationSec < 0 || a.DisplayDurationSec > maxDisplayDurationSec {
		return fmt.Errorf("%w: display_duration_sec out of range", ErrInvalidAction)
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("name exceeds %d characters", maxNameLength)
	}
	return nil
}
