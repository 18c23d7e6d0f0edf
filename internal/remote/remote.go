package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/weddingcue-core/internal/engine"
	"github.com/nerrad567/weddingcue-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

// Errors returned by the command handler. They are logged by the MQTT
// client and never retried.
var (
	// ErrBadTopic means the topic did not parse as a command topic.
	ErrBadTopic = errors.New("remote: not a command topic")

	// ErrUnknownVerb means the verb is not one of the supported commands.
	ErrUnknownVerb = errors.New("remote: unknown command verb")

	// ErrBadPayload means the payload was not the expected JSON.
	ErrBadPayload = errors.New("remote: malformed payload")

	// ErrTimerRequired means the verb needs a timer_id and none was sent.
	ErrTimerRequired = errors.New("remote: timer_id required")

	// ErrWrongEvent means the timer belongs to a different event than the topic.
	ErrWrongEvent = errors.New("remote: timer does not belong to event")
)

// commandTimeout bounds one command's engine work.
const commandTimeout = 10 * time.Second

// Logger is the logging interface used by the listener.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Subscriber is the subset of mqtt.Client the listener needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Command is the JSON payload of a cue command. Empty payloads are allowed
// for verbs that do not need a timer.
type Command struct {
	TimerID string `json:"timer_id,omitempty"`
}

// Listener turns cue button messages into engine calls.
//
//	start      timer_id set: StartTimer, else StartWedding
//	complete   timer_id set: CompleteTimer, else complete the current timer
//	start-cue  StartPunctualOrManual(timer_id)
//	sweep      CheckAndStartPunctualTimers(eventId)
type Listener struct {
	engine *engine.Engine
	sub    Subscriber
	qos    byte
	logger Logger
}

// NewListener creates a listener. Call Start to subscribe.
func NewListener(eng *engine.Engine, sub Subscriber, qos byte, logger Logger) *Listener {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Listener{engine: eng, sub: sub, qos: qos, logger: logger}
}

// Start subscribes to every event's command topics.
func (l *Listener) Start() error {
	if err := l.sub.Subscribe(mqtt.Topics{}.AllCommands(), l.qos, l.Handle); err != nil {
		return fmt.Errorf("subscribing to cue commands: %w", err)
	}
	l.logger.Info("cue command listener started", "topic", mqtt.Topics{}.AllCommands())
	return nil
}

// Stop unsubscribes.
func (l *Listener) Stop() error {
	return l.sub.Unsubscribe(mqtt.Topics{}.AllCommands())
}

// Handle processes one command message. It is the mqtt.MessageHandler the
// listener subscribes with.
func (l *Listener) Handle(topic string, payload []byte) error {
	eventID, verb, ok := mqtt.Topics{}.ParseCommand(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}

	var cmd Command
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("%w: %w", ErrBadPayload, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	timerID, err := l.dispatch(ctx, eventID, verb, cmd)
	if err != nil {
		msg := "cue command failed"
		if IsRefusal(err) {
			msg = "cue command refused"
		}
		l.logger.Warn(msg,
			"event_id", eventID,
			"verb", verb,
			"timer_id", cmd.TimerID,
			"error", err,
		)
		return err
	}
	l.logger.Info("cue command applied", "event_id", eventID, "verb", verb, "timer_id", timerID)
	return nil
}

func (l *Listener) dispatch(ctx context.Context, eventID, verb string, cmd Command) (string, error) {
	switch verb {
	case mqtt.CommandStart:
		if cmd.TimerID == "" {
			t, err := l.engine.StartWedding(ctx, eventID)
			if err != nil {
				return "", err
			}
			return t.ID, nil
		}
		if err := l.checkOwner(ctx, eventID, cmd.TimerID); err != nil {
			return "", err
		}
		t, err := l.engine.StartTimer(ctx, cmd.TimerID)
		if err != nil {
			return "", err
		}
		return t.ID, nil

	case mqtt.CommandComplete:
		timerID := cmd.TimerID
		if timerID == "" {
			current, err := l.engine.CurrentTimer(ctx, eventID)
			if err != nil {
				return "", err
			}
			if current == nil {
				return "", fmt.Errorf("%w: event %s has no current timer", ErrTimerRequired, eventID)
			}
			timerID = current.ID
		} else if err := l.checkOwner(ctx, eventID, timerID); err != nil {
			return "", err
		}
		if _, err := l.engine.CompleteTimer(ctx, timerID); err != nil {
			return "", err
		}
		return timerID, nil

	case mqtt.CommandStartCue:
		if cmd.TimerID == "" {
			return "", ErrTimerRequired
		}
		if err := l.checkOwner(ctx, eventID, cmd.TimerID); err != nil {
			return "", err
		}
		t, err := l.engine.StartPunctualOrManual(ctx, cmd.TimerID)
		if err != nil {
			return "", err
		}
		return t.ID, nil

	case mqtt.CommandSweep:
		t, err := l.engine.CheckAndStartPunctualTimers(ctx, eventID)
		if err != nil || t == nil {
			return "", err
		}
		return t.ID, nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVerb, verb)
	}
}

// checkOwner stops a button wired to one event from driving another.
func (l *Listener) checkOwner(ctx context.Context, eventID, timerID string) error {
	t, err := l.engine.Store().GetTimer(ctx, timerID)
	if err != nil {
		return err
	}
	if t.EventID != eventID {
		return fmt.Errorf("%w: timer %s is in event %s", ErrWrongEvent, timerID, t.EventID)
	}
	return nil
}

// IsRefusal reports whether err is an expected state-machine refusal rather
// than a malformed command or a store failure.
func IsRefusal(err error) bool {
	return errors.Is(err, timeline.ErrInvalidTransition) ||
		errors.Is(err, timeline.ErrConflictingDurationTimer) ||
		errors.Is(err, timeline.ErrAlreadyRunning) ||
		errors.Is(err, timeline.ErrNotPunctualOrManual)
}
