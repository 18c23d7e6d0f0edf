package engine

import (
	"context"
	"fmt"

	"github.com/nerrad567/weddingcue-core/internal/notify"
	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

// StartWedding starts the first timer of an event's timeline.
//
// Parameters:
//   - ctx: Context for cancellation
//   - eventID: The event to start
//
// Returns:
//   - *timeline.Timer: The started timer
//   - error: nil on success, or:
//   - timeline.ErrEventNotFound if the event doesn't exist
//   - timeline.ErrNoTimersConfigured if the event has no timers
//   - timeline.ErrAlreadyRunning if a duration timer is already running
//   - any StartTimer error for the first timer
func (e *Engine) StartWedding(ctx context.Context, eventID string) (*timeline.Timer, error) {
	if _, err := e.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	timers, err := e.store.ListTimers(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing timers: %w", err)
	}
	if len(timers) == 0 {
		return nil, timeline.ErrNoTimersConfigured
	}
	for i := range timers {
		if timers[i].Status == timeline.StatusRunning && timers[i].IsDurationBearing() {
			return nil, fmt.Errorf("%w: timer %s is running", timeline.ErrAlreadyRunning, timers[i].ID)
		}
	}

	first := &timers[0]
	started, err := e.start(ctx, first, true)
	if err != nil {
		return nil, err
	}
	e.logger.Info("wedding started", "event_id", eventID, "timer_id", started.ID)
	return started, nil
}

// StartTimer moves a PENDING timer to RUNNING.
//
// Duration-bearing timers are subject to the single-running rule and become
// the event's current timer. Punctual and manual timers start freely.
//
// Returns:
//   - *timeline.Timer: The started timer
//   - error: nil on success, or:
//   - timeline.ErrTimerNotFound if the timer doesn't exist
//   - timeline.ErrInvalidTransition if the timer is not PENDING
//   - timeline.ErrConflictingDurationTimer if another duration timer runs
func (e *Engine) StartTimer(ctx context.Context, timerID string) (*timeline.Timer, error) {
	t, err := e.store.GetTimer(ctx, timerID)
	if err != nil {
		return nil, err
	}
	return e.start(ctx, t, t.IsDurationBearing())
}

// StartPunctualOrManual starts a timer without a countdown. It never touches
// the event's current timer and is never blocked by a running duration timer.
//
// Returns:
//   - *timeline.Timer: The started timer
//   - error: nil on success, or:
//   - timeline.ErrTimerNotFound if the timer doesn't exist
//   - timeline.ErrNotPunctualOrManual if the timer has a duration
//   - timeline.ErrInvalidTransition if the timer is not PENDING
func (e *Engine) StartPunctualOrManual(ctx context.Context, timerID string) (*timeline.Timer, error) {
	t, err := e.store.GetTimer(ctx, timerID)
	if err != nil {
		return nil, err
	}
	if t.IsDurationBearing() {
		return nil, fmt.Errorf("%w: timer %s has a %d minute duration",
			timeline.ErrNotPunctualOrManual, t.ID, *t.DurationMinutes)
	}
	return e.start(ctx, t, false)
}

// start runs the conditional transition and announces it.
// Classification is taken from t once; the store re-checks status atomically.
func (e *Engine) start(ctx context.Context, t *timeline.Timer, setCurrent bool) (*timeline.Timer, error) {
	durationBearing := t.IsDurationBearing()
	now := e.clock.Now()

	started, err := e.store.StartTimer(ctx, timeline.StartParams{
		TimerID:    t.ID,
		At:         now,
		Exclusive:  durationBearing,
		SetCurrent: setCurrent,
	})
	if err != nil {
		e.logger.Debug("timer start refused", "timer_id", t.ID, "error", err)
		return nil, err
	}

	event := notify.EventTimerStarted
	if !durationBearing {
		event = notify.EventPunctualOrManualStarted
	}
	e.logger.Info("timer started",
		"event_id", started.EventID,
		"timer_id", started.ID,
		"duration_bearing", durationBearing,
	)

	tr := Transition{EventID: started.EventID, TimerID: started.ID, Kind: TransitionStarted, At: now}
	if started.ScheduledStartTime != nil {
		drift := now.Sub(*started.ScheduledStartTime)
		tr.Drift = &drift
	}
	e.record(ctx, tr)

	_ = e.Publish(ctx, event, notify.TimerStarted{ //nolint:errcheck // logged in Publish
		TimerID:   started.ID,
		EventID:   started.EventID,
		StartTime: now,
	})
	return started, nil
}
