package timeline

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store.
//
// A single mutex guards all state, so every conditional write is a
// compare-and-swap with the same outcome the SQLite store produces.
// Reads return copies; callers may mutate what they get back.
type MemoryStore struct {
	mu          sync.Mutex
	events      map[string]*Event
	timers      map[string]*Timer
	actions     map[string]*Action
	adjustments []Adjustment

	shiftFailures map[string]error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:        make(map[string]*Event),
		timers:        make(map[string]*Timer),
		actions:       make(map[string]*Action),
		shiftFailures: make(map[string]error),
	}
}

// FailShiftFor makes ShiftScheduledStarts report err for timerID.
// Lets callers exercise partial cascade handling.
func (m *MemoryStore) FailShiftFor(timerID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shiftFailures[timerID] = err
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// GetEvent retrieves an event by ID.
func (m *MemoryStore) GetEvent(_ context.Context, id string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	c := *e
	return &c, nil
}

// ListEvents returns every event ordered by event date.
func (m *MemoryStore) ListEvents(_ context.Context) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedEvents(func(*Event) bool { return true }), nil
}

// ListActiveEvents returns events with a current timer or dated day.
func (m *MemoryStore) ListActiveEvents(_ context.Context, day time.Time) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedEvents(func(e *Event) bool { return e.ActiveOn(day) }), nil
}

// GetTimer retrieves a timer by ID.
func (m *MemoryStore) GetTimer(_ context.Context, id string) (*Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[id]
	if !ok {
		return nil, ErrTimerNotFound
	}
	return cloneTimer(t), nil
}

// ListTimers returns an event's timers ordered by order_index.
func (m *MemoryStore) ListTimers(_ context.Context, eventID string) ([]Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Timer
	for _, t := range m.eventTimers(eventID) {
		out = append(out, *cloneTimer(t))
	}
	return out, nil
}

// NextTimer returns the first timer after afterOrder, or ErrTimerNotFound.
func (m *MemoryStore) NextTimer(_ context.Context, eventID string, afterOrder int) (*Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.eventTimers(eventID) {
		if t.OrderIndex > afterOrder {
			return cloneTimer(t), nil
		}
	}
	return nil, ErrTimerNotFound
}

// GetAction retrieves an action by ID.
func (m *MemoryStore) GetAction(_ context.Context, id string) (*Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.actions[id]
	if !ok {
		return nil, ErrActionNotFound
	}
	c := *a
	return &c, nil
}

// ListActions returns a timer's actions ordered by order_index.
func (m *MemoryStore) ListActions(_ context.Context, timerID string) ([]Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Action
	for _, a := range m.actions {
		if a.TimerID == timerID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ─── Setup Writes ───────────────────────────────────────────────────────────

// CreateEvent stores a new event.
func (m *MemoryStore) CreateEvent(_ context.Context, e *Event) error {
	if err := ValidateEvent(e); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.events[e.ID]; exists {
		return ErrAlreadyExists
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	c := *e
	m.events[e.ID] = &c
	return nil
}

// CreateTimer stores a new timer. Status defaults to PENDING.
func (m *MemoryStore) CreateTimer(_ context.Context, t *Timer) error {
	if err := ValidateTimer(t); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.timers[t.ID]; exists {
		return ErrAlreadyExists
	}
	if _, ok := m.events[t.EventID]; !ok {
		return ErrEventNotFound
	}
	for _, other := range m.timers {
		if other.EventID == t.EventID && other.OrderIndex == t.OrderIndex {
			return ErrDuplicateOrder
		}
	}

	if t.Status == "" {
		t.Status = StatusPending
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	c := cloneTimer(t)
	c.Actions = nil
	m.timers[t.ID] = c
	return nil
}

// CreateAction stores a new action.
func (m *MemoryStore) CreateAction(_ context.Context, a *Action) error {
	if err := ValidateAction(a); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.actions[a.ID]; exists {
		return ErrAlreadyExists
	}
	if _, ok := m.timers[a.TimerID]; !ok {
		return ErrTimerNotFound
	}
	c := *a
	m.actions[a.ID] = &c
	return nil
}

// ─── Conditional Writes ─────────────────────────────────────────────────────

// StartTimer performs the guarded PENDING -> RUNNING transition.
func (m *MemoryStore) StartTimer(_ context.Context, p StartParams) (*Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[p.TimerID]
	if !ok {
		return nil, ErrTimerNotFound
	}
	if t.Status != StatusPending {
		return nil, fmt.Errorf("%w: timer %s is %s", ErrInvalidTransition, t.ID, t.Status)
	}
	if p.Exclusive {
		for _, other := range m.timers {
			if other.EventID == t.EventID && other.ID != t.ID &&
				other.Status == StatusRunning && other.IsDurationBearing() {
				return nil, ErrConflictingDurationTimer
			}
		}
	}
	if p.SetCurrent {
		if _, ok := m.events[t.EventID]; !ok {
			return nil, ErrEventNotFound
		}
	}

	t.Status = StatusRunning
	t.StartedAt = TimePtr(p.At.UTC())
	t.CompletedAt = nil
	t.UpdatedAt = p.At.UTC()

	if p.SetCurrent {
		m.setCurrentLocked(t.EventID, &t.ID, p.At)
	}
	return cloneTimer(t), nil
}

// CompleteTimer marks a timer COMPLETED unless it already is.
func (m *MemoryStore) CompleteTimer(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[id]
	if !ok {
		return false, ErrTimerNotFound
	}
	if t.Status == StatusCompleted {
		return false, nil
	}
	t.Status = StatusCompleted
	t.CompletedAt = TimePtr(at.UTC())
	t.UpdatedAt = at.UTC()
	return true, nil
}

// MarkActionExecuted sets executed_at once.
func (m *MemoryStore) MarkActionExecuted(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.actions[id]
	if !ok {
		return false, ErrActionNotFound
	}
	if a.ExecutedAt != nil {
		return false, nil
	}
	a.ExecutedAt = TimePtr(at.UTC())
	return true, nil
}

// SetCurrentTimer points an event at a timer, or clears it when timerID is nil.
func (m *MemoryStore) SetCurrentTimer(_ context.Context, eventID string, timerID *string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; !ok {
		return ErrEventNotFound
	}
	m.setCurrentLocked(eventID, timerID, at)
	return nil
}

// CompleteEvent stamps completed_at and clears the current timer.
func (m *MemoryStore) CompleteEvent(_ context.Context, eventID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	if e.CompletedAt == nil {
		e.CompletedAt = TimePtr(at.UTC())
	}
	e.CurrentTimerID = nil
	e.UpdatedAt = at.UTC()
	return nil
}

// ─── Edits & Bulk Writes ────────────────────────────────────────────────────

// UpdateTimerDuration replaces a timer's duration.
func (m *MemoryStore) UpdateTimerDuration(_ context.Context, timerID string, minutes *int, at time.Time) error {
	if err := ValidateDuration(minutes); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[timerID]
	if !ok {
		return ErrTimerNotFound
	}
	if minutes == nil {
		t.DurationMinutes = nil
	} else {
		t.DurationMinutes = IntPtr(*minutes)
	}
	t.UpdatedAt = at.UTC()
	return nil
}

// ShiftScheduledStarts moves each timer's scheduled start by delta, row by row.
func (m *MemoryStore) ShiftScheduledStarts(_ context.Context, timerIDs []string, delta time.Duration, at time.Time) []ShiftResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]ShiftResult, 0, len(timerIDs))
	for _, id := range timerIDs {
		results = append(results, ShiftResult{TimerID: id, Err: m.shiftLocked(id, delta, at)})
	}
	return results
}

func (m *MemoryStore) shiftLocked(id string, delta time.Duration, at time.Time) error {
	if err, ok := m.shiftFailures[id]; ok {
		return err
	}
	t, ok := m.timers[id]
	if !ok {
		return ErrTimerNotFound
	}
	if t.ScheduledStartTime == nil {
		return fmt.Errorf("%w: timer %s has no scheduled start", ErrInvalidTimer, id)
	}
	t.ScheduledStartTime = TimePtr(t.ScheduledStartTime.Add(delta))
	t.UpdatedAt = at.UTC()
	return nil
}

// RebaseSchedule moves the event and its scheduled starts onto day.
func (m *MemoryStore) RebaseSchedule(_ context.Context, eventID string, day time.Time, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[eventID]
	if !ok {
		return 0, ErrEventNotFound
	}
	e.EventDate = OnDay(e.EventDate, day)
	e.UpdatedAt = at.UTC()

	moved := 0
	for _, t := range m.eventTimers(eventID) {
		if t.ScheduledStartTime == nil {
			continue
		}
		t.ScheduledStartTime = TimePtr(OnDay(*t.ScheduledStartTime, day))
		t.UpdatedAt = at.UTC()
		moved++
	}
	return moved, nil
}

// CompleteTimersBefore completes every earlier, not-yet-completed timer.
func (m *MemoryStore) CompleteTimersBefore(_ context.Context, eventID string, orderIndex int, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.eventTimers(eventID) {
		if t.OrderIndex >= orderIndex || t.Status == StatusCompleted {
			continue
		}
		t.Status = StatusCompleted
		t.CompletedAt = TimePtr(at.UTC())
		t.UpdatedAt = at.UTC()
		n++
	}
	return n, nil
}

// ForceStartTimer sets a timer RUNNING regardless of status and makes it current.
func (m *MemoryStore) ForceStartTimer(_ context.Context, timerID string, startedAt time.Time, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[timerID]
	if !ok {
		return ErrTimerNotFound
	}
	if _, ok := m.events[t.EventID]; !ok {
		return ErrEventNotFound
	}
	t.Status = StatusRunning
	t.StartedAt = TimePtr(startedAt.UTC())
	t.CompletedAt = nil
	t.UpdatedAt = at.UTC()
	m.setCurrentLocked(t.EventID, &t.ID, at)
	return nil
}

// ResetEvent returns an event and its timers and actions to the initial state.
func (m *MemoryStore) ResetEvent(_ context.Context, eventID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	e.CurrentTimerID = nil
	e.CompletedAt = nil
	e.UpdatedAt = at.UTC()

	for _, t := range m.eventTimers(eventID) {
		t.Status = StatusPending
		t.StartedAt = nil
		t.CompletedAt = nil
		t.UpdatedAt = at.UTC()
		for _, a := range m.actions {
			if a.TimerID == t.ID {
				a.ExecutedAt = nil
			}
		}
	}
	return nil
}

// RecordAdjustment appends an adjustment history row.
func (m *MemoryStore) RecordAdjustment(_ context.Context, adj *Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.timers[adj.TimerID]; !ok {
		return ErrTimerNotFound
	}
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = time.Now().UTC()
	}
	m.adjustments = append(m.adjustments, *adj)
	return nil
}

// ListAdjustments returns a timer's adjustments, oldest first.
func (m *MemoryStore) ListAdjustments(_ context.Context, timerID string) ([]Adjustment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Adjustment
	for _, adj := range m.adjustments {
		if adj.TimerID == timerID {
			out = append(out, adj)
		}
	}
	return out, nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// eventTimers returns live pointers ordered by order_index. Caller holds mu.
func (m *MemoryStore) eventTimers(eventID string) []*Timer {
	var out []*Timer
	for _, t := range m.timers {
		if t.EventID == eventID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b *Timer) int { return a.OrderIndex - b.OrderIndex })
	return out
}

func (m *MemoryStore) sortedEvents(keep func(*Event) bool) []Event {
	var out []Event
	for _, e := range m.events {
		if keep(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EventDate.Equal(out[j].EventDate) {
			return out[i].EventDate.Before(out[j].EventDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MemoryStore) setCurrentLocked(eventID string, timerID *string, at time.Time) {
	e := m.events[eventID]
	if timerID == nil {
		e.CurrentTimerID = nil
	} else {
		id := *timerID
		e.CurrentTimerID = &id
	}
	e.UpdatedAt = at.UTC()
}

func cloneTimer(t *Timer) *Timer {
	c := *t
	if t.Descriptions != nil {
		c.Descriptions = maps.Clone(t.Descriptions)
	}
	if t.DurationMinutes != nil {
		c.DurationMinutes = IntPtr(*t.DurationMinutes)
	}
	if t.Actions != nil {
		c.Actions = slices.Clone(t.Actions)
	}
	return &c
}
