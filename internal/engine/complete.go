package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/weddingcue-core/internal/notify"
	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

// CompleteResult describes what CompleteTimer did.
type CompleteResult struct {
	// TimerID is the timer that was asked to complete.
	TimerID string `json:"timer_id"`

	// AlreadyCompleted is true when another caller completed it first.
	// Nothing else in the result is set in that case.
	AlreadyCompleted bool `json:"already_completed"`

	// NextTimerID is the successor by order_index, nil at the end of the timeline.
	NextTimerID *string `json:"next_timer_id"`

	// NextStarted is true when the successor was chained into RUNNING.
	NextStarted bool `json:"next_started"`

	// EventCompleted is true when this was the last timer.
	EventCompleted bool `json:"event_completed"`

	// ChainError holds the reason chaining did not start the successor.
	// It is informational: the completion itself succeeded.
	ChainError error `json:"-"`
}

// CompleteTimer marks a timer COMPLETED and advances the timeline.
//
// Idempotent: completing an already completed timer reports
// AlreadyCompleted and changes nothing. Otherwise the successor becomes the
// event's current timer and is started when its chaining policy says so.
// A refused chain start (another duration timer running, or someone else
// already started it) leaves the successor as it is and is reported in
// ChainError. Without a successor the event completes.
//
// Returns:
//   - *CompleteResult: What happened
//   - error: nil on success, or:
//   - timeline.ErrTimerNotFound if the timer doesn't exist
//   - a store error if the timeline could not be advanced
func (e *Engine) CompleteTimer(ctx context.Context, timerID string) (*CompleteResult, error) {
	t, err := e.store.GetTimer(ctx, timerID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	changed, err := e.store.CompleteTimer(ctx, timerID, now)
	if err != nil {
		return nil, err
	}
	result := &CompleteResult{TimerID: timerID}
	if !changed {
		result.AlreadyCompleted = true
		return result, nil
	}

	tr := Transition{EventID: t.EventID, TimerID: t.ID, Kind: TransitionCompleted, At: now}
	if t.StartedAt != nil {
		elapsed := now.Sub(*t.StartedAt)
		tr.Elapsed = &elapsed
	}
	e.record(ctx, tr)

	next, err := e.store.NextTimer(ctx, t.EventID, t.OrderIndex)
	switch {
	case errors.Is(err, timeline.ErrTimerNotFound):
		if err := e.store.CompleteEvent(ctx, t.EventID, now); err != nil {
			return result, fmt.Errorf("completing event: %w", err)
		}
		result.EventCompleted = true
		e.logger.Info("event completed", "event_id", t.EventID, "last_timer_id", t.ID)

	case err != nil:
		return result, fmt.Errorf("resolving next timer: %w", err)

	default:
		result.NextTimerID = &next.ID
		if err := e.store.SetCurrentTimer(ctx, t.EventID, &next.ID, now); err != nil {
			return result, fmt.Errorf("advancing current timer: %w", err)
		}
		if next.ShouldAutoChain() {
			e.chain(ctx, next, result)
		}
	}

	e.logger.Info("timer completed",
		"event_id", t.EventID,
		"timer_id", t.ID,
		"next_timer_id", result.NextTimerID,
		"next_started", result.NextStarted,
	)
	_ = e.Publish(ctx, notify.EventTimerCompleted, notify.TimerCompleted{ //nolint:errcheck // logged in Publish
		TimerID:     t.ID,
		EventID:     t.EventID,
		NextTimerID: result.NextTimerID,
		CompletedAt: now,
		NextStarted: result.NextStarted,
	})
	return result, nil
}

// chain starts the successor through the same paths a manual caller uses.
func (e *Engine) chain(ctx context.Context, next *timeline.Timer, result *CompleteResult) {
	_, err := e.start(ctx, next, next.IsDurationBearing())
	if err == nil {
		result.NextStarted = true
		return
	}

	result.ChainError = err
	switch {
	case errors.Is(err, timeline.ErrConflictingDurationTimer),
		errors.Is(err, timeline.ErrInvalidTransition):
		e.logger.Warn("chained start deferred", "timer_id", next.ID, "reason", err)
	default:
		e.logger.Error("chained start failed", "timer_id", next.ID, "error", err)
	}
}
