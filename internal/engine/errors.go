package engine

import (
	"fmt"
	"strings"

	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

// PartialCascadeFailure reports a cascade where some downstream timers could
// not be shifted. It matches timeline.ErrPartialCascade with errors.Is and
// unwraps to the individual row errors.
type PartialCascadeFailure struct {
	TimerID string
	Shifted []string
	Failed  []timeline.ShiftResult
}

// Error implements error.
func (e *PartialCascadeFailure) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.TimerID)
	}
	return fmt.Sprintf("cascade from %s: shifted %d, failed %d (%s)",
		e.TimerID, len(e.Shifted), len(e.Failed), strings.Join(ids, ", "))
}

// Is reports whether target is timeline.ErrPartialCascade.
func (e *PartialCascadeFailure) Is(target error) bool {
	return target == timeline.ErrPartialCascade
}

// Unwrap returns the per-row errors.
func (e *PartialCascadeFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}
