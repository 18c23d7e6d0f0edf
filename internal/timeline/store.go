package timeline

import (
	"context"
	"time"
)

// Store is the persistence contract the engine depends on.
//
// The capability set is deliberately small: get-by-id reads, ordered range
// queries within an event, conditional (compare-and-set) updates for every
// state transition, and bulk updates for cascade shifts and resets.
// Implementations must make each conditional write atomic with respect to
// other callers, including callers in other processes sharing the backend.
//
// Implementations: SQLiteStore (production) and MemoryStore (tests, demos).
type Store interface {
	// Event reads
	GetEvent(ctx context.Context, id string) (*Event, error)
	ListEvents(ctx context.Context) ([]Event, error)
	ListActiveEvents(ctx context.Context, day time.Time) ([]Event, error)

	// Timer reads (ordered by order_index)
	GetTimer(ctx context.Context, id string) (*Timer, error)
	ListTimers(ctx context.Context, eventID string) ([]Timer, error)
	NextTimer(ctx context.Context, eventID string, afterOrder int) (*Timer, error)

	// Action reads (ordered by order_index)
	GetAction(ctx context.Context, id string) (*Action, error)
	ListActions(ctx context.Context, timerID string) ([]Action, error)

	// Setup writes
	CreateEvent(ctx context.Context, e *Event) error
	CreateTimer(ctx context.Context, t *Timer) error
	CreateAction(ctx context.Context, a *Action) error

	// Conditional writes
	StartTimer(ctx context.Context, p StartParams) (*Timer, error)
	CompleteTimer(ctx context.Context, id string, at time.Time) (changed bool, err error)
	MarkActionExecuted(ctx context.Context, id string, at time.Time) (changed bool, err error)
	SetCurrentTimer(ctx context.Context, eventID string, timerID *string, at time.Time) error
	CompleteEvent(ctx context.Context, eventID string, at time.Time) error

	// Edits and bulk writes
	UpdateTimerDuration(ctx context.Context, timerID string, minutes *int, at time.Time) error
	ShiftScheduledStarts(ctx context.Context, timerIDs []string, delta time.Duration, at time.Time) []ShiftResult
	RebaseSchedule(ctx context.Context, eventID string, day time.Time, at time.Time) (int, error)
	CompleteTimersBefore(ctx context.Context, eventID string, orderIndex int, at time.Time) (int, error)
	ForceStartTimer(ctx context.Context, timerID string, startedAt time.Time, at time.Time) error
	ResetEvent(ctx context.Context, eventID string, at time.Time) error

	// Adjustment history
	RecordAdjustment(ctx context.Context, adj *Adjustment) error
	ListAdjustments(ctx context.Context, timerID string) ([]Adjustment, error)
}

// Compile-time interface checks.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// StartParams describes a conditional PENDING -> RUNNING transition.
type StartParams struct {
	// TimerID is the timer to start.
	TimerID string

	// At is the start instant written to started_at.
	At time.Time

	// Exclusive requires that no other duration-bearing timer of the same
	// event is RUNNING. Evaluated in the same atomic write as the status check.
	Exclusive bool

	// SetCurrent also points the owning event's current_timer_id at this timer.
	SetCurrent bool
}

// ShiftResult reports the outcome of shifting one timer's scheduled start.
type ShiftResult struct {
	TimerID string
	Err     error
}

// ActiveOn reports whether an event should be considered by the sweep on
// the given day: it has a current timer, or it takes place that day and has
// not completed.
func (e *Event) ActiveOn(day time.Time) bool {
	if e.CompletedAt != nil {
		return false
	}
	if e.CurrentTimerID != nil {
		return true
	}
	return sameDay(e.EventDate, day)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// OnDay returns t moved onto day's calendar date, keeping t's UTC time of day.
func OnDay(t, day time.Time) time.Time {
	y, m, d := day.UTC().Date()
	u := t.UTC()
	return time.Date(y, m, d, u.Hour(), u.Minute(), u.Second(), u.Nanosecond(), time.UTC)
}
