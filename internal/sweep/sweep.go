package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/weddingcue-core/internal/engine"
	"github.com/nerrad567/weddingcue-core/internal/infrastructure/redislock"
)

// Defaults used when the corresponding option is zero.
const (
	DefaultInterval = 60 * time.Second
	DefaultLockTTL  = 30 * time.Second
)

// Logger is the logging interface used by the sweeper.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Metrics receives one summary per SweepAll. influxdb.Client implements it.
type Metrics interface {
	WriteSweepRun(events, started, failed int, took time.Duration)
}

// Started names a timer the sweep started.
type Started struct {
	EventID string `json:"event_id"`
	TimerID string `json:"timer_id"`
}

// EventFailure is one event whose sweep returned an error.
type EventFailure struct {
	EventID string `json:"event_id"`
	Err     error  `json:"-"`
	Message string `json:"error"`
}

// Report summarises one SweepAll pass.
type Report struct {
	Events   int            `json:"events"`
	Started  []Started      `json:"started"`
	Locked   []string       `json:"locked,omitempty"`
	Failures []EventFailure `json:"failures,omitempty"`
}

// Err joins the per-event failures, or returns nil when every event swept.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("event %s: %w", f.EventID, f.Err))
	}
	return errors.Join(errs...)
}

// Sweeper periodically starts punctual timers whose scheduled time has come.
//
// Each active event is swept independently under its own lease, so one
// failing event never holds up another and several instances can run the
// same schedule without double work.
//
// Thread Safety: SweepAll and SweepEvent are safe for concurrent use.
type Sweeper struct {
	engine   *engine.Engine
	locker   redislock.Locker
	interval time.Duration
	lockTTL  time.Duration
	metrics  Metrics

	logger Logger

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a sweeper.
//
// Parameters:
//   - eng: The state transition engine
//   - locker: Per-event lease provider (nil uses an in-process locker)
//   - interval: Time between passes (zero uses DefaultInterval)
//   - lockTTL: Lease length (zero uses DefaultLockTTL)
//   - logger: Logger instance (nil discards logs)
func New(eng *engine.Engine, locker redislock.Locker, interval, lockTTL time.Duration, logger Logger) *Sweeper {
	if locker == nil {
		locker = redislock.NewLocalLocker()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Sweeper{
		engine:   eng,
		locker:   locker,
		interval: interval,
		lockTTL:  lockTTL,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// SetMetrics attaches a sweep summary sink. Nil disables it.
func (s *Sweeper) SetMetrics(m Metrics) {
	s.metrics = m
}

// Start runs the sweep loop in the background until ctx is cancelled or
// Stop is called. The first pass runs immediately.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("sweeper started", "interval", s.interval)
}

// Stop ends the loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.logger.Info("sweeper stopped")
	})
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	report, err := s.SweepAll(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
		return
	}
	if rerr := report.Err(); rerr != nil {
		s.logger.Warn("sweep finished with failures",
			"events", report.Events,
			"failed", len(report.Failures),
			"error", rerr,
		)
	}
}

// SweepAll sweeps every event active today.
//
// Returns:
//   - *Report: Per-event outcome; use Report.Err for the failures
//   - error: only when the active events could not be listed
func (s *Sweeper) SweepAll(ctx context.Context) (*Report, error) {
	begin := time.Now()
	now := s.engine.Clock().Now()

	events, err := s.engine.Store().ListActiveEvents(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("listing active events: %w", err)
	}

	report := &Report{Events: len(events), Started: []Started{}}
	for _, evt := range events {
		if ctx.Err() != nil {
			break
		}
		timerID, locked, err := s.SweepEvent(ctx, evt.ID)
		switch {
		case err != nil:
			report.Failures = append(report.Failures, EventFailure{EventID: evt.ID, Err: err, Message: err.Error()})
		case locked:
			report.Locked = append(report.Locked, evt.ID)
		case timerID != "":
			report.Started = append(report.Started, Started{EventID: evt.ID, TimerID: timerID})
		}
	}

	if s.metrics != nil {
		s.metrics.WriteSweepRun(report.Events, len(report.Started), len(report.Failures), time.Since(begin))
	}
	s.logger.Debug("sweep pass complete",
		"events", report.Events,
		"started", len(report.Started),
		"locked", len(report.Locked),
		"failed", len(report.Failures),
	)
	return report, nil
}

// SweepEvent sweeps one event under its lease.
//
// Returns:
//   - timerID: The started timer, empty when nothing was due
//   - locked: true when another sweeper holds the event's lease
//   - error: lock or engine failure
func (s *Sweeper) SweepEvent(ctx context.Context, eventID string) (timerID string, locked bool, err error) {
	unlock, ok, err := s.locker.TryLock(ctx, "sweep:"+eventID, s.lockTTL)
	if err != nil {
		return "", false, err
	}
	if !ok {
		s.logger.Debug("event sweep skipped, lease held elsewhere", "event_id", eventID)
		return "", true, nil
	}
	defer func() {
		if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
			s.logger.Warn("releasing sweep lease failed", "event_id", eventID, "error", uerr)
		}
	}()

	started, err := s.engine.CheckAndStartPunctualTimers(ctx, eventID)
	if err != nil {
		return "", false, err
	}
	if started == nil {
		return "", false, nil
	}
	s.logger.Info("sweep started punctual timer", "event_id", eventID, "timer_id", started.ID)
	return started.ID, false, nil
}
