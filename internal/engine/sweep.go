package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

// CheckAndStartPunctualTimers starts at most one due punctual or manual timer.
//
// Candidates are PENDING timers without a countdown that have a scheduled
// start; a manual timer given a start time is started by the clock too. The earliest by order_index, then scheduled start, is
// started if its scheduled start is not in the future. Later candidates wait
// for the next pass, so the timeline is never skipped ahead.
//
// Returns:
//   - *timeline.Timer: The timer started, or nil if nothing was due
//   - error: a store error; losing a race to another caller is not an error
func (e *Engine) CheckAndStartPunctualTimers(ctx context.Context, eventID string) (*timeline.Timer, error) {
	timers, err := e.store.ListTimers(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing timers: %w", err)
	}

	candidates := make([]timeline.Timer, 0, len(timers))
	for i := range timers {
		t := timers[i]
		if t.Status == timeline.StatusPending && t.IsPunctualOrManual() && t.ScheduledStartTime != nil {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].OrderIndex != candidates[j].OrderIndex {
			return candidates[i].OrderIndex < candidates[j].OrderIndex
		}
		return candidates[i].ScheduledStartTime.Before(*candidates[j].ScheduledStartTime)
	})

	first := candidates[0]
	if first.ScheduledStartTime.After(e.clock.Now()) {
		return nil, nil
	}

	started, err := e.start(ctx, &first, false)
	if errors.Is(err, timeline.ErrInvalidTransition) {
		e.logger.Debug("punctual timer already handled", "timer_id", first.ID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return started, nil
}
