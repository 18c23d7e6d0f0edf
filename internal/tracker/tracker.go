package tracker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nerrad567/weddingcue-core/internal/engine"
	"github.com/nerrad567/weddingcue-core/internal/notify"
	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

// Logger is the logging interface used by the tracker.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Tracker records that player clients executed action cues.
//
// It shares the engine's store, clock and notification channel but never
// drives timer transitions: a timer whose cues have all played still waits
// for its own completion trigger.
type Tracker struct {
	eng    *engine.Engine
	logger Logger
}

// RecordResult describes what RecordExecuted did.
type RecordResult struct {
	ActionID string `json:"action_id"`
	TimerID  string `json:"timer_id"`

	// AlreadyExecuted is true when the cue had been recorded before.
	// ExecutedAt then holds the original instant.
	AlreadyExecuted bool `json:"already_executed"`

	ExecutedAt time.Time `json:"executed_at"`

	// AllActionsExecuted is true when every cue of the timer has played,
	// counting this one.
	AllActionsExecuted bool `json:"all_actions_executed"`
}

// DueAction is an unexecuted action with its computed fire time.
type DueAction struct {
	timeline.Action

	// DueAt is nil while the owning timer has not started.
	DueAt *time.Time `json:"due_at"`
}

// New creates a tracker on top of an engine.
func New(eng *engine.Engine, logger Logger) *Tracker {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Tracker{eng: eng, logger: logger}
}

// RecordExecuted marks an action executed. Idempotent: a second call reports
// AlreadyExecuted, keeps the first timestamp and emits nothing.
//
// Parameters:
//   - ctx: Context for cancellation
//   - actionID: The action that played
//
// Returns:
//   - *RecordResult: Outcome, including whether the timer's cues are done
//   - error: timeline.ErrActionNotFound, or a store error
func (t *Tracker) RecordExecuted(ctx context.Context, actionID string) (*RecordResult, error) {
	store := t.eng.Store()

	action, err := store.GetAction(ctx, actionID)
	if err != nil {
		return nil, err
	}

	now := t.eng.Clock().Now()
	changed, err := store.MarkActionExecuted(ctx, actionID, now)
	if err != nil {
		return nil, err
	}

	result := &RecordResult{ActionID: actionID, TimerID: action.TimerID, ExecutedAt: now}
	if !changed {
		result.AlreadyExecuted = true
		// Re-read: the first writer may have landed after our GetAction.
		if current, err := store.GetAction(ctx, actionID); err == nil && current.ExecutedAt != nil {
			result.ExecutedAt = *current.ExecutedAt
		}
	}

	all, err := t.allExecuted(ctx, action.TimerID, actionID)
	if err != nil {
		return nil, err
	}
	result.AllActionsExecuted = all

	if result.AlreadyExecuted {
		t.logger.Debug("action already executed", "action_id", actionID)
		return result, nil
	}

	t.logger.Info("action executed",
		"action_id", actionID,
		"timer_id", action.TimerID,
		"all_executed", all,
	)
	_ = t.eng.Publish(ctx, notify.EventActionExecuted, notify.ActionExecuted{ //nolint:errcheck // logged in Publish
		ActionID:           actionID,
		TimerID:            action.TimerID,
		ExecutedAt:         now,
		AllActionsExecuted: all,
	})
	return result, nil
}

// allExecuted treats justRecorded as executed even if a read lags the write.
func (t *Tracker) allExecuted(ctx context.Context, timerID, justRecorded string) (bool, error) {
	actions, err := t.eng.Store().ListActions(ctx, timerID)
	if err != nil {
		return false, fmt.Errorf("listing actions: %w", err)
	}
	for i := range actions {
		if actions[i].ID != justRecorded && !actions[i].IsExecuted() {
			return false, nil
		}
	}
	return true, nil
}

// DueActions lists a timer's unexecuted actions, earliest due first.
// Actions of a timer that has not started are returned in order_index
// order with a nil DueAt.
func (t *Tracker) DueActions(ctx context.Context, timerID string) ([]DueAction, error) {
	store := t.eng.Store()

	timer, err := store.GetTimer(ctx, timerID)
	if err != nil {
		return nil, err
	}
	actions, err := store.ListActions(ctx, timerID)
	if err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}

	due := make([]DueAction, 0, len(actions))
	for i := range actions {
		if actions[i].IsExecuted() {
			continue
		}
		due = append(due, DueAction{Action: actions[i], DueAt: actions[i].DueAt(timer)})
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].DueAt, due[j].DueAt
		if a == nil || b == nil {
			return false
		}
		return a.Before(*b)
	})
	return due, nil
}
