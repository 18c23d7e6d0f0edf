package engine

import (
	"context"
	"fmt"

	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

// TimelineView is an event with its timers and their actions.
type TimelineView struct {
	Event  *timeline.Event  `json:"event"`
	Timers []timeline.Timer `json:"timers"`
}

// Timeline loads an event's full timeline, actions included.
func (e *Engine) Timeline(ctx context.Context, eventID string) (*TimelineView, error) {
	event, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	timers, err := e.store.ListTimers(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing timers: %w", err)
	}
	for i := range timers {
		actions, err := e.store.ListActions(ctx, timers[i].ID)
		if err != nil {
			return nil, fmt.Errorf("listing actions for %s: %w", timers[i].ID, err)
		}
		timers[i].Actions = actions
	}
	if timers == nil {
		timers = []timeline.Timer{}
	}
	return &TimelineView{Event: event, Timers: timers}, nil
}

// CurrentTimer returns the event's current timer with its actions,
// or nil when the wedding has not started or has finished.
func (e *Engine) CurrentTimer(ctx context.Context, eventID string) (*timeline.Timer, error) {
	event, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.CurrentTimerID == nil {
		return nil, nil
	}

	t, err := e.store.GetTimer(ctx, *event.CurrentTimerID)
	if err != nil {
		return nil, fmt.Errorf("loading current timer: %w", err)
	}
	actions, err := e.store.ListActions(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}
	t.Actions = actions
	return t, nil
}
