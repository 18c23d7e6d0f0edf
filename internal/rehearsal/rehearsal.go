package rehearsal

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/weddingcue-core/internal/engine"
	"github.com/nerrad567/weddingcue-core/internal/notify"
	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

// DefaultLead is how far ahead of the first cue a jump lands.
const DefaultLead = 15 * time.Second

// Logger is the logging interface used by the controller.
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

// Controller performs the administrative overrides used in rehearsals:
// jumping to a timer, resetting an event and re-dating a demo event.
//
// These operations bypass the engine's guarded transitions on purpose and
// must only be exposed to administrators.
type Controller struct {
	eng         *engine.Engine
	defaultLead time.Duration
	logger      Logger
}

// JumpResult describes a completed jump.
type JumpResult struct {
	EventID string `json:"event_id"`
	TimerID string `json:"timer_id"`

	// StartedAt is the synthetic start written to the target timer.
	StartedAt time.Time `json:"started_at"`

	// CompletedBefore counts earlier timers the jump completed.
	CompletedBefore int `json:"completed_before"`
}

// NewController creates a rehearsal controller.
func NewController(eng *engine.Engine, logger Logger) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Controller{eng: eng, defaultLead: DefaultLead, logger: logger}
}

// SetDefaultLead overrides the lead used when JumpToTimer gets zero.
func (c *Controller) SetDefaultLead(d time.Duration) {
	if d > 0 {
		c.defaultLead = d
	}
}

// JumpToTimer fast-forwards an event to the target timer.
//
// Every earlier timer is completed in bulk without replaying its cues. The
// target is forced RUNNING with a backdated start so that its first cue
// falls due within lead of now, and becomes the current timer. Later timers
// are left alone. One jump-performed notification covers the whole change.
//
// Parameters:
//   - ctx: Context for cancellation
//   - timerID: The timer to land on
//   - lead: Time until the first cue; zero uses the default (15s)
//
// Returns:
//   - *JumpResult: The synthetic start and how many timers were completed
//   - error: timeline.ErrTimerNotFound, or a store error
func (c *Controller) JumpToTimer(ctx context.Context, timerID string, lead time.Duration) (*JumpResult, error) {
	if lead <= 0 {
		lead = c.defaultLead
	}
	store := c.eng.Store()

	target, err := store.GetTimer(ctx, timerID)
	if err != nil {
		return nil, err
	}
	actions, err := store.ListActions(ctx, timerID)
	if err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}

	now := c.eng.Clock().Now()
	startedAt := BackdatedStart(now, lead, actions)

	completed, err := store.CompleteTimersBefore(ctx, target.EventID, target.OrderIndex, now)
	if err != nil {
		return nil, fmt.Errorf("completing earlier timers: %w", err)
	}
	if err := store.ForceStartTimer(ctx, timerID, startedAt, now); err != nil {
		return nil, fmt.Errorf("starting target timer: %w", err)
	}

	result := &JumpResult{
		EventID:         target.EventID,
		TimerID:         timerID,
		StartedAt:       startedAt,
		CompletedBefore: completed,
	}
	c.logger.Info("jumped to timer",
		"event_id", target.EventID,
		"timer_id", timerID,
		"started_at", startedAt,
		"completed_before", completed,
	)
	_ = c.eng.Publish(ctx, notify.EventJumpPerformed, notify.JumpPerformed{ //nolint:errcheck // logged in Publish
		EventID:         result.EventID,
		TimerID:         result.TimerID,
		StartedAt:       result.StartedAt,
		CompletedBefore: result.CompletedBefore,
	})
	return result, nil
}

// BackdatedStart computes the synthetic start for a jump: now minus lead,
// moved earlier by the first action's offset when that action counts back
// from the end of the timer. actions must be ordered by order_index.
func BackdatedStart(now time.Time, lead time.Duration, actions []timeline.Action) time.Time {
	start := now.Add(-lead)
	if len(actions) == 0 {
		return start
	}
	first := actions[0]
	if first.Trigger == timeline.TriggerBeforeEnd && first.TriggerOffsetMinutes != 0 {
		start = start.Add(-time.Duration(first.TriggerOffsetMinutes) * time.Minute)
	}
	return start
}

// Reset returns every timer of the event to PENDING, clears cue execution
// and the current timer. Used to restart a rehearsal.
func (c *Controller) Reset(ctx context.Context, eventID string) error {
	now := c.eng.Clock().Now()
	if err := c.eng.Store().ResetEvent(ctx, eventID, now); err != nil {
		return err
	}

	c.logger.Info("event reset", "event_id", eventID)
	_ = c.eng.Publish(ctx, notify.EventResetPerformed, notify.ResetPerformed{ //nolint:errcheck // logged in Publish
		EventID: eventID,
		ResetAt: now,
	})
	return nil
}

// RebaseToToday moves a demo event and every scheduled start onto today's
// date, keeping each UTC time of day.
//
// Returns:
//   - int: Number of timers whose scheduled start moved
//   - error: timeline.ErrEventNotFound, timeline.ErrNotDemo, or a store error
func (c *Controller) RebaseToToday(ctx context.Context, eventID string) (int, error) {
	store := c.eng.Store()

	event, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if !event.IsDemo {
		return 0, fmt.Errorf("%w: event %s", timeline.ErrNotDemo, eventID)
	}

	now := c.eng.Clock().Now()
	moved, err := store.RebaseSchedule(ctx, eventID, now, now)
	if err != nil {
		return 0, fmt.Errorf("rebasing schedule: %w", err)
	}
	c.logger.Info("demo event rebased", "event_id", eventID, "day", now.Format(time.DateOnly), "timers", moved)
	return moved, nil
}
