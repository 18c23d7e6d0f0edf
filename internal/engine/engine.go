package engine

import (
	"context"
	"time"

	"github.com/nerrad567/weddingcue-core/internal/notify"
	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

// Logger is the logging interface used by the engine.
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

// TransitionKind labels a recorded transition.
type TransitionKind string

// Transition kinds.
const (
	TransitionStarted   TransitionKind = "started"
	TransitionCompleted TransitionKind = "completed"
)

// Transition describes one committed timer state change, for telemetry.
type Transition struct {
	EventID string
	TimerID string
	Kind    TransitionKind
	At      time.Time

	// Drift is At minus the scheduled start, set on starts of scheduled timers.
	Drift *time.Duration

	// Elapsed is how long the timer ran, set on completions of started timers.
	Elapsed *time.Duration
}

// Recorder receives committed transitions. Implementations must not block.
type Recorder interface {
	RecordTransition(ctx context.Context, tr Transition)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, tr Transition)

// RecordTransition calls f.
func (f RecorderFunc) RecordTransition(ctx context.Context, tr Transition) {
	f(ctx, tr)
}

// Engine enforces the timer state machine for every trigger source.
//
// It holds no locks across calls: correctness comes from the store's
// conditional writes, so several engines (in several processes) may
// drive the same event concurrently.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	store     timeline.Store
	publisher notify.Publisher
	clock     Clock
	recorder  Recorder
	logger    Logger
	channel   string
}

// NewEngine creates a new state transition engine.
//
// Parameters:
//   - store: Timeline store offering conditional writes
//   - publisher: Notification sink (nil discards notifications)
//   - clock: Time source (nil uses SystemClock)
//   - logger: Logger instance (nil discards logs)
func NewEngine(store timeline.Store, publisher notify.Publisher, clock Clock, logger Logger) *Engine {
	if publisher == nil {
		publisher = notify.Nop
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		store:     store,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		channel:   notify.DefaultChannel,
	}
}

// SetRecorder attaches a telemetry recorder. Nil disables recording.
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

// SetChannel overrides the notification channel.
func (e *Engine) SetChannel(channel string) {
	if channel != "" {
		e.channel = channel
	}
}

// Store returns the underlying timeline store.
func (e *Engine) Store() timeline.Store {
	return e.store
}

// Clock returns the engine's time source.
func (e *Engine) Clock() Clock {
	return e.clock
}

// Publish sends a notification on the engine's channel. Failures are logged
// and returned, never propagated into the transition that caused them.
func (e *Engine) Publish(ctx context.Context, event string, payload any) error {
	if err := e.publisher.Publish(ctx, e.channel, event, payload); err != nil {
		e.logger.Warn("notification delivery failed",
			"event", event,
			"channel", e.channel,
			"error", err,
		)
		return err
	}
	return nil
}

func (e *Engine) record(ctx context.Context, tr Transition) {
	if e.recorder == nil {
		return
	}
	e.recorder.RecordTransition(ctx, tr)
}
