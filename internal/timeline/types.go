package timeline

import (
	"time"
)

// Status is the lifecycle state of a Timer.
//
// The only legal forward path is PENDING -> RUNNING -> COMPLETED.
// COMPLETED is terminal until an administrative reset.
type Status string

// Timer status constants.
const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
)

// ValidStatuses lists every status a persisted timer may carry.
var ValidStatuses = []Status{StatusPending, StatusRunning, StatusCompleted}

// ActionType is the kind of media cue an Action plays.
type ActionType string

// Action type constants.
const (
	ActionSound      ActionType = "SOUND"
	ActionVideo      ActionType = "VIDEO"
	ActionImage      ActionType = "IMAGE"
	ActionImageSound ActionType = "IMAGE_SOUND"
	ActionVideoSound ActionType = "VIDEO_SOUND"
	ActionGallery    ActionType = "GALLERY"
)

// ValidActionTypes lists all recognised action types.
var ValidActionTypes = []ActionType{
	ActionSound, ActionVideo, ActionImage,
	ActionImageSound, ActionVideoSound, ActionGallery,
}

// Trigger defines when an Action fires relative to its Timer.
type Trigger string

// Trigger constants.
const (
	// TriggerAfterStart fires TriggerOffsetMinutes after the timer started.
	TriggerAfterStart Trigger = "AFTER_START"

	// TriggerBeforeEnd fires TriggerOffsetMinutes before the timer's natural end.
	TriggerBeforeEnd Trigger = "BEFORE_END"

	// TriggerAtEnd fires at the timer's natural end.
	TriggerAtEnd Trigger = "AT_END"
)

// ValidTriggers lists all recognised action triggers.
var ValidTriggers = []Trigger{TriggerAfterStart, TriggerBeforeEnd, TriggerAtEnd}

// AdjustmentType classifies a recorded schedule edit.
type AdjustmentType string

// Adjustment type constants.
const (
	AdjustAddTime    AdjustmentType = "ADD_TIME"
	AdjustRemoveTime AdjustmentType = "REMOVE_TIME"
	AdjustReschedule AdjustmentType = "RESCHEDULE"
)

// Event is one live occasion: a wedding reception with an ordered timeline.
//
// CurrentTimerID is a weak reference to the timer that currently owns the
// primary timeline slot. It is nil before the wedding starts and after the
// last timer completes.
type Event struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    *string    `json:"description,omitempty"`
	Location       *string    `json:"location,omitempty"`
	EventDate      time.Time  `json:"event_date"`
	IsDemo         bool       `json:"is_demo"`
	CurrentTimerID *string    `json:"current_timer_id,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsCompleted reports whether the event reached the end of its timeline.
func (e *Event) IsCompleted() bool {
	return e.CompletedAt != nil
}

// Timer is one segment of an event's timeline.
//
// Classification is derived from DurationMinutes and IsManual, never stored:
// see IsDurationBearing, IsPunctualOrManual and IsPunctual.
type Timer struct {
	ID                 string            `json:"id"`
	EventID            string            `json:"event_id"`
	OrderIndex         int               `json:"order_index"`
	Name               string            `json:"name"`
	Descriptions       map[string]string `json:"descriptions,omitempty"`
	ScheduledStartTime *time.Time        `json:"scheduled_start_time,omitempty"`
	DurationMinutes    *int              `json:"duration_minutes,omitempty"`
	IsManual           bool              `json:"is_manual"`

	// AutoChain overrides the default chaining policy when the previous
	// timer completes. Nil means "chain only if duration-bearing".
	AutoChain *bool `json:"auto_chain,omitempty"`

	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Actions is populated only by read models that join actions.
	Actions []Action `json:"actions,omitempty"`
}

// IsDurationBearing reports whether the timer has a real countdown.
// Only duration-bearing timers are subject to the single-running constraint.
func (t *Timer) IsDurationBearing() bool {
	return t.DurationMinutes != nil && *t.DurationMinutes > 0
}

// IsPunctualOrManual reports whether the timer has no countdown.
func (t *Timer) IsPunctualOrManual() bool {
	return !t.IsDurationBearing()
}

// IsPunctual reports whether the timer has no duration and is not flagged
// manual.
func (t *Timer) IsPunctual() bool {
	return !t.IsDurationBearing() && !t.IsManual
}

// ShouldAutoChain reports whether completing the predecessor starts this
// timer immediately.
//
// Without an explicit override, duration-bearing timers chain (manual or
// not) and punctual-or-manual timers wait for the sweep or an operator.
func (t *Timer) ShouldAutoChain() bool {
	if t.AutoChain != nil {
		return *t.AutoChain
	}
	return t.IsDurationBearing()
}

// Duration returns the configured countdown length, zero for punctual timers.
func (t *Timer) Duration() time.Duration {
	if !t.IsDurationBearing() {
		return 0
	}
	return time.Duration(*t.DurationMinutes) * time.Minute
}

// NaturalEnd returns when a running timer's countdown reaches zero.
// Punctual timers end the instant they start. Returns nil if never started.
func (t *Timer) NaturalEnd() *time.Time {
	if t.StartedAt == nil {
		return nil
	}
	end := t.StartedAt.Add(t.Duration())
	return &end
}

// Description returns the description for lang, or "" if none exists.
func (t *Timer) Description(lang string) string {
	if t.Descriptions == nil {
		return ""
	}
	return t.Descriptions[lang]
}

// Action is one media cue attached to a Timer.
type Action struct {
	ID                   string     `json:"id"`
	TimerID              string     `json:"timer_id"`
	OrderIndex           int        `json:"order_index"`
	Type                 ActionType `json:"type"`
	Trigger              Trigger    `json:"trigger"`
	TriggerOffsetMinutes int        `json:"trigger_offset_minutes"`
	DisplayDurationSec   int        `json:"display_duration_sec"`
	AssetURL             *string    `json:"asset_url,omitempty"`
	ExecutedAt           *time.Time `json:"executed_at,omitempty"`
}

// IsExecuted reports whether the cue already played.
func (a *Action) IsExecuted() bool {
	return a.ExecutedAt != nil
}

// DueAt computes when the action should fire for the given timer.
// Returns nil if the timer has not started.
func (a *Action) DueAt(t *Timer) *time.Time {
	if t.StartedAt == nil {
		return nil
	}
	offset := time.Duration(a.TriggerOffsetMinutes) * time.Minute
	end := t.StartedAt.Add(t.Duration())

	var due time.Time
	switch a.Trigger {
	case TriggerBeforeEnd:
		due = end.Add(-offset)
	case TriggerAtEnd:
		due = end
	default:
		due = t.StartedAt.Add(offset)
	}
	return &due
}

// Adjustment records a duration or schedule edit on a timer.
type Adjustment struct {
	ID           string         `json:"id"`
	TimerID      string         `json:"timer_id"`
	Type         AdjustmentType `json:"type"`
	MinutesDelta int            `json:"minutes_delta"`
	Cascade      bool           `json:"cascade"`
	Reason       *string        `json:"reason,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AdjustmentTypeForDelta picks ADD_TIME or REMOVE_TIME from the sign of delta.
func AdjustmentTypeForDelta(delta int) AdjustmentType {
	if delta < 0 {
		return AdjustRemoveTime
	}
	return AdjustAddTime
}

// IntPtr returns a pointer to v. Convenience for optional durations.
func IntPtr(v int) *int {
	return &v
}

// BoolPtr returns a pointer to v. Convenience for AutoChain overrides.
func BoolPtr(v bool) *bool {
	return &v
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time {
	return &t
}
