package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultChannel is the channel timeline events are published on.
const DefaultChannel = "wedding-timers"

// Event names carried on the channel.
const (
	EventTimerStarted            = "timer-started"
	EventPunctualOrManualStarted = "punctual-or-manual-started"
	EventTimerCompleted          = "timer-completed"
	EventActionExecuted          = "action-executed"
	EventJumpPerformed           = "jump-performed"
	EventResetPerformed          = "reset-performed"
	EventTimerAdjusted           = "timer-adjusted"
)

// Publisher delivers a small JSON-serialisable payload to listeners.
//
// Delivery is fire-and-forget from the caller's point of view: a returned
// error is reported and logged, never used to undo a state change.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, channel, event string, payload any) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, channel, event string, payload any) error {
	return f(ctx, channel, event, payload)
}

// Nop discards every message.
var Nop Publisher = PublisherFunc(func(context.Context, string, string, any) error { return nil })

// Fanout publishes to every sink in order. A failing sink does not stop the
// others; all failures are joined into the returned error.
type Fanout []Publisher

// Publish delivers to every sink.
func (f Fanout) Publish(ctx context.Context, channel, event string, payload any) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, channel, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrDelivery, errors.Join(errs...))
	}
	return nil
}

// ErrDelivery wraps any failure to hand a message to a sink.
var ErrDelivery = errors.New("notify: delivery failed")

// ─── Payloads ───────────────────────────────────────────────────────────────

// TimerStarted is the payload of timer-started and punctual-or-manual-started.
type TimerStarted struct {
	TimerID   string    `json:"timer_id"`
	EventID   string    `json:"event_id"`
	StartTime time.Time `json:"start_time"`
}

// TimerCompleted is the payload of timer-completed.
type TimerCompleted struct {
	TimerID     string    `json:"timer_id"`
	EventID     string    `json:"event_id"`
	NextTimerID *string   `json:"next_timer_id"`
	CompletedAt time.Time `json:"completed_at"`
	NextStarted bool      `json:"next_started"`
}

// ActionExecuted is the payload of action-executed.
type ActionExecuted struct {
	ActionID           string    `json:"action_id"`
	TimerID            string    `json:"timer_id"`
	ExecutedAt         time.Time `json:"executed_at"`
	AllActionsExecuted bool      `json:"all_actions_executed"`
}

// JumpPerformed is the payload of jump-performed.
type JumpPerformed struct {
	EventID         string    `json:"event_id"`
	TimerID         string    `json:"timer_id"`
	StartedAt       time.Time `json:"started_at"`
	CompletedBefore int       `json:"completed_before"`
}

// ResetPerformed is the payload of reset-performed.
type ResetPerformed struct {
	EventID string    `json:"event_id"`
	ResetAt time.Time `json:"reset_at"`
}

// TimerAdjusted is the payload of timer-adjusted.
type TimerAdjusted struct {
	TimerID      string   `json:"timer_id"`
	EventID      string   `json:"event_id"`
	DeltaMinutes int      `json:"delta_minutes"`
	Cascade      bool     `json:"cascade"`
	Shifted      []string `json:"shifted"`
	Failed       []string `json:"failed,omitempty"`
}
