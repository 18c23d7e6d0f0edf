package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/weddingcue-core/internal/engine"
)

// Measurement names.
const (
	measurementTransitions = "timer_transitions"
	measurementSweeps      = "sweep_runs"
)

// RecordTransition implements engine.Recorder.
//
// Each committed start or completion becomes one timer_transitions point
// tagged by event, timer and kind. Starts of scheduled timers carry
// drift_seconds (positive means late); completions carry duration_seconds.
func (c *Client) RecordTransition(_ context.Context, tr engine.Transition) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(transitionPoint(tr))
}

// WriteSweepRun records one scheduled sweep across all active events.
//
// Parameters:
//   - events: How many active events were examined
//   - started: How many punctual timers were started
//   - failed: How many events reported an error
//   - took: Wall time of the whole sweep
func (c *Client) WriteSweepRun(events, started, failed int, took time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(sweepPoint(events, started, failed, took, time.Now()))
}

func transitionPoint(tr engine.Transition) *write.Point {
	fields := map[string]interface{}{
		"count": 1,
	}
	if tr.Drift != nil {
		fields["drift_seconds"] = tr.Drift.Seconds()
	}
	if tr.Elapsed != nil {
		fields["duration_seconds"] = tr.Elapsed.Seconds()
	}

	return write.NewPoint(
		measurementTransitions,
		map[string]string{
			"event_id": tr.EventID,
			"timer_id": tr.TimerID,
			"kind":     string(tr.Kind),
		},
		fields,
		tr.At,
	)
}

func sweepPoint(events, started, failed int, took time.Duration, at time.Time) *write.Point {
	return write.NewPoint(
		measurementSweeps,
		nil,
		map[string]interface{}{
			"events":      events,
			"started":     started,
			"failed":      failed,
			"duration_ms": took.Milliseconds(),
		},
		at,
	)
}
