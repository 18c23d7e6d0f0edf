package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/weddingcue-core/internal/notify"
	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

// AdjustParams describes a duration edit.
type AdjustParams struct {
	TimerID string

	// NewDurationMinutes replaces the duration. Nil or 0 makes the timer punctual.
	NewDurationMinutes *int

	// Cascade shifts the scheduled start of every later timer by the change.
	Cascade bool

	// Reason is stored with the adjustment history.
	Reason *string
}

// CascadeReport is the structured outcome of CascadeAdjust.
type CascadeReport struct {
	TimerID      string                 `json:"timer_id"`
	DeltaMinutes int                    `json:"delta_minutes"`
	Shifted      []string               `json:"shifted"`
	Failed       []timeline.ShiftResult `json:"-"`
}

// Err returns a *PartialCascadeFailure when some rows failed, else nil.
func (r *CascadeReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &PartialCascadeFailure{TimerID: r.TimerID, Shifted: r.Shifted, Failed: r.Failed}
}

// FailedIDs lists the timers that could not be shifted.
func (r *CascadeReport) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		ids = append(ids, f.TimerID)
	}
	return ids
}

// CascadeAdjust edits a timer's duration and, when asked, propagates the
// change to the scheduled starts of every later timer in the event.
//
// Shifting is best-effort per row: one failure does not stop the others and
// never rolls back the duration edit. Check report.Err() for partial
// failure. Run state is never changed; the clock sweep picks up new times
// on its next pass.
//
// Returns:
//   - *CascadeReport: Delta, shifted timers and per-row failures
//   - error: nil on success, or:
//   - timeline.ErrTimerNotFound if the timer doesn't exist
//   - timeline.ErrInvalidTimer if the new duration is out of range
//   - a store error if later timers could not be listed; the duration edit
//     and its Adjustment are kept and timer-adjusted is still published
func (e *Engine) CascadeAdjust(ctx context.Context, p AdjustParams) (*CascadeReport, error) {
	t, err := e.store.GetTimer(ctx, p.TimerID)
	if err != nil {
		return nil, err
	}
	if err := timeline.ValidateDuration(p.NewDurationMinutes); err != nil {
		return nil, err
	}

	oldMinutes, newMinutes := 0, 0
	if t.DurationMinutes != nil {
		oldMinutes = *t.DurationMinutes
	}
	if p.NewDurationMinutes != nil {
		newMinutes = *p.NewDurationMinutes
	}
	delta := newMinutes - oldMinutes

	now := e.clock.Now()
	if err := e.store.UpdateTimerDuration(ctx, t.ID, p.NewDurationMinutes, now); err != nil {
		return nil, fmt.Errorf("updating duration: %w", err)
	}

	report := &CascadeReport{TimerID: t.ID, DeltaMinutes: delta, Shifted: []string{}}
	if delta == 0 {
		return report, nil
	}

	// The duration edit is already stored, so a failed listing still gets
	// recorded and published before it is returned.
	var shiftErr error
	if p.Cascade {
		shiftErr = e.shiftLater(ctx, t, delta, now, report)
	}

	adj := &timeline.Adjustment{
		ID:           "adj-" + uuid.NewString()[:8],
		TimerID:      t.ID,
		Type:         timeline.AdjustmentTypeForDelta(delta),
		MinutesDelta: delta,
		Cascade:      p.Cascade,
		Reason:       p.Reason,
		CreatedAt:    now,
	}
	if err := e.store.RecordAdjustment(ctx, adj); err != nil {
		e.logger.Warn("recording adjustment failed", "timer_id", t.ID, "error", err)
	}

	switch {
	case shiftErr != nil:
		e.logger.Error("cascade not applied", "timer_id", t.ID, "delta_minutes", delta, "error", shiftErr)
	case len(report.Failed) > 0:
		e.logger.Warn("cascade partially applied",
			"timer_id", t.ID,
			"shifted", len(report.Shifted),
			"failed", report.FailedIDs(),
		)
	default:
		e.logger.Info("timer adjusted", "timer_id", t.ID, "delta_minutes", delta, "shifted", len(report.Shifted))
	}

	_ = e.Publish(ctx, notify.EventTimerAdjusted, notify.TimerAdjusted{ //nolint:errcheck // logged in Publish
		TimerID:      t.ID,
		EventID:      t.EventID,
		DeltaMinutes: delta,
		Cascade:      p.Cascade,
		Shifted:      report.Shifted,
		Failed:       report.FailedIDs(),
	})
	return report, shiftErr
}

func (e *Engine) shiftLater(ctx context.Context, t *timeline.Timer, delta int, now time.Time, report *CascadeReport) error {
	timers, err := e.store.ListTimers(ctx, t.EventID)
	if err != nil {
		return fmt.Errorf("listing timers: %w", err)
	}

	var ids []string
	for i := range timers {
		if timers[i].OrderIndex > t.OrderIndex && timers[i].ScheduledStartTime != nil {
			ids = append(ids, timers[i].ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	for _, r := range e.store.ShiftScheduledStarts(ctx, ids, time.Duration(delta)*time.Minute, now) {
		if r.Err != nil {
			report.Failed = append(report.Failed, r)
			continue
		}
		report.Shifted = append(report.Shifted, r.TimerID)
	}
	return nil
}
