package timeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Column lists shared by the SELECT queries below.
const (
	eventColumns = `id, name, description, location, event_date, is_demo,
			current_timer_id, completed_at, created_at, updated_at`

	timerColumns = `id, event_id, order_index, name, descriptions, scheduled_start_time,
			duration_minutes, is_manual, auto_chain, status, started_at, completed_at,
			created_at, updated_at`

	actionColumns = `id, timer_id, order_index, action_type, trigger_kind,
			trigger_offset_minutes, display_duration_sec, asset_url, executed_at`

	adjustmentColumns = `id, timer_id, adjustment_type, minutes_delta, cascade, reason, created_at`
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using SQLite.
//
// Every conditional transition is a single guarded UPDATE, so the status
// check and the write happen atomically even when several service
// instances share the database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed timeline store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// ─── Event Reads ────────────────────────────────────────────────────────────

// GetEvent retrieves an event by ID.
func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*Event, error) {
	return getEvent(ctx, s.db, id)
}

// ListEvents returns every event ordered by event date.
func (s *SQLiteStore) ListEvents(ctx context.Context) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY event_date, id`
	return s.queryEvents(ctx, query)
}

// ListActiveEvents returns the events the clock sweep should look at on day:
// events with a current timer, plus uncompleted events dated that day (UTC).
func (s *SQLiteStore) ListActiveEvents(ctx context.Context, day time.Time) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE completed_at IS NULL
		  AND (current_timer_id IS NOT NULL OR substr(event_date, 1, 10) = ?)
		ORDER BY event_date, id`
	return s.queryEvents(ctx, query, day.UTC().Format(time.DateOnly))
}

// ─── Timer Reads ────────────────────────────────────────────────────────────

// GetTimer retrieves a timer by ID. Actions are not loaded.
func (s *SQLiteStore) GetTimer(ctx context.Context, id string) (*Timer, error) {
	return getTimer(ctx, s.db, id)
}

// ListTimers returns the timers of an event ordered by order_index.
func (s *SQLiteStore) ListTimers(ctx context.Context, eventID string) ([]Timer, error) {
	query := `SELECT ` + timerColumns + ` FROM timers WHERE event_id = ? ORDER BY order_index`
	return queryTimers(ctx, s.db, query, eventID)
}

// NextTimer returns the timer with the smallest order_index strictly greater
// than afterOrder. Returns ErrTimerNotFound at the end of the timeline.
func (s *SQLiteStore) NextTimer(ctx context.Context, eventID string, afterOrder int) (*Timer, error) {
	query := `SELECT ` + timerColumns + ` FROM timers
		WHERE event_id = ? AND order_index > ?
		ORDER BY order_index LIMIT 1`

	t, err := scanTimerRow(s.db.QueryRowContext(ctx, query, eventID, afterOrder))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTimerNotFound
		}
		return nil, fmt.Errorf("querying next timer: %w", err)
	}
	return t, nil
}

// ─── Action Reads ───────────────────────────────────────────────────────────

// GetAction retrieves an action by ID.
func (s *SQLiteStore) GetAction(ctx context.Context, id string) (*Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE id = ?`

	a, err := scanActionRow(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrActionNotFound
		}
		return nil, fmt.Errorf("querying action: %w", err)
	}
	return a, nil
}

// ListActions returns the actions of a timer ordered by order_index.
func (s *SQLiteStore) ListActions(ctx context.Context, timerID string) ([]Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE timer_id = ? ORDER BY order_index, id`

	rows, err := s.db.QueryContext(ctx, query, timerID)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		a, scanErr := scanActionRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning action: %w", scanErr)
		}
		actions = append(actions, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating actions: %w", err)
	}
	return actions, nil
}

// ─── Setup Writes ───────────────────────────────────────────────────────────

// CreateEvent inserts a new event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, e *Event) error {
	if err := ValidateEvent(e); err != nil {
		return err
	}

	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	query := `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.Name,
		nullableString(e.Description),
		nullableString(e.Location),
		formatTime(e.EventDate),
		boolToInt(e.IsDemo),
		nullableString(e.CurrentTimerID),
		nullableTime(e.CompletedAt),
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// CreateTimer inserts a new timer. Status defaults to PENDING.
func (s *SQLiteStore) CreateTimer(ctx context.Context, t *Timer) error {
	if err := ValidateTimer(t); err != nil {
		return err
	}
	if t.Status == "" {
		t.Status = StatusPending
	}

	descJSON, err := marshalDescriptions(t.Descriptions)
	if err != nil {
		return fmt.Errorf("marshalling descriptions: %w", err)
	}

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	query := `INSERT INTO timers (` + timerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		t.ID,
		t.EventID,
		t.OrderIndex,
		t.Name,
		descJSON,
		nullableTime(t.ScheduledStartTime),
		nullableInt(t.DurationMinutes),
		boolToInt(t.IsManual),
		nullableBool(t.AutoChain),
		string(t.Status),
		nullableTime(t.StartedAt),
		nullableTime(t.CompletedAt),
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
	)
	if err != nil {
		switch {
		case isUniqueConstraintError(err) && strings.Contains(err.Error(), "order_index"):
			return ErrDuplicateOrder
		case isUniqueConstraintError(err):
			return ErrAlreadyExists
		case isForeignKeyError(err):
			return ErrEventNotFound
		}
		return fmt.Errorf("inserting timer: %w", err)
	}
	return nil
}

// CreateAction inserts a new action.
func (s *SQLiteStore) CreateAction(ctx context.Context, a *Action) error {
	if err := ValidateAction(a); err != nil {
		return err
	}

	query := `INSERT INTO actions (` + actionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		a.ID,
		a.TimerID,
		a.OrderIndex,
		string(a.Type),
		string(a.Trigger),
		a.TriggerOffsetMinutes,
		a.DisplayDurationSec,
		nullableString(a.AssetURL),
		nullableTime(a.ExecutedAt),
	)
	if err != nil {
		switch {
		case isUniqueConstraintError(err):
			return ErrAlreadyExists
		case isForeignKeyError(err):
			return ErrTimerNotFound
		}
		return fmt.Errorf("inserting action: %w", err)
	}
	return nil
}

// ─── Conditional Writes ─────────────────────────────────────────────────────

// StartTimer performs the guarded PENDING -> RUNNING transition.
//
// The status check, the optional single-running check and the write are one
// UPDATE statement. When nothing matched, the timer is re-read inside the
// same transaction to report why.
func (s *SQLiteStore) StartTimer(ctx context.Context, p StartParams) (*Timer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	at := formatTime(p.At)
	query := `UPDATE timers SET status = 'RUNNING', started_at = ?, completed_at = NULL, updated_at = ?
		WHERE id = ? AND status = 'PENDING'`
	if p.Exclusive {
		query += `
		  AND NOT EXISTS (
			SELECT 1 FROM timers o
			WHERE o.event_id = timers.event_id
			  AND o.id <> timers.id
			  AND o.status = 'RUNNING'
			  AND o.duration_minutes > 0
		  )`
	}

	result, err := tx.ExecContext(ctx, query, at, at, p.TimerID)
	if err != nil {
		return nil, fmt.Errorf("starting timer: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}

	t, err := getTimer(ctx, tx, p.TimerID)
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		if t.Status != StatusPending {
			return nil, fmt.Errorf("%w: timer %s is %s", ErrInvalidTransition, t.ID, t.Status)
		}
		return nil, ErrConflictingDurationTimer
	}

	if p.SetCurrent {
		if err := setCurrentTimer(ctx, tx, t.EventID, &t.ID, p.At); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing start: %w", err)
	}
	return t, nil
}

// CompleteTimer marks a timer COMPLETED unless it already is.
// Returns changed=false when the timer was already completed.
func (s *SQLiteStore) CompleteTimer(ctx context.Context, id string, at time.Time) (bool, error) {
	ts := formatTime(at)
	result, err := s.db.ExecContext(ctx,
		`UPDATE timers SET status = 'COMPLETED', completed_at = ?, updated_at = ?
		 WHERE id = ? AND status <> 'COMPLETED'`,
		ts, ts, id,
	)
	if err != nil {
		return false, fmt.Errorf("completing timer: %w", err)
	}
	return s.changedOrMissing(ctx, result, "timers", id, ErrTimerNotFound)
}

// MarkActionExecuted sets executed_at once.
// Returns changed=false when the action had already executed.
func (s *SQLiteStore) MarkActionExecuted(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE actions SET executed_at = ? WHERE id = ? AND executed_at IS NULL`,
		formatTime(at), id,
	)
	if err != nil {
		return false, fmt.Errorf("marking action executed: %w", err)
	}
	return s.changedOrMissing(ctx, result, "actions", id, ErrActionNotFound)
}

// SetCurrentTimer points an event at a timer, or clears it when timerID is nil.
func (s *SQLiteStore) SetCurrentTimer(ctx context.Context, eventID string, timerID *string, at time.Time) error {
	return setCurrentTimer(ctx, s.db, eventID, timerID, at)
}

// CompleteEvent stamps completed_at and clears the current timer.
func (s *SQLiteStore) CompleteEvent(ctx context.Context, eventID string, at time.Time) error {
	ts := formatTime(at)
	result, err := s.db.ExecContext(ctx,
		`UPDATE events SET completed_at = COALESCE(completed_at, ?), current_timer_id = NULL, updated_at = ?
		 WHERE id = ?`,
		ts, ts, eventID,
	)
	if err != nil {
		return fmt.Errorf("completing event: %w", err)
	}
	return requireRow(result, ErrEventNotFound)
}

// ─── Edits & Bulk Writes ────────────────────────────────────────────────────

// UpdateTimerDuration replaces a timer's duration. Nil makes it punctual.
func (s *SQLiteStore) UpdateTimerDuration(ctx context.Context, timerID string, minutes *int, at time.Time) error {
	if err := ValidateDuration(minutes); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE timers SET duration_minutes = ?, updated_at = ? WHERE id = ?`,
		nullableInt(minutes), formatTime(at), timerID,
	)
	if err != nil {
		return fmt.Errorf("updating timer duration: %w", err)
	}
	return requireRow(result, ErrTimerNotFound)
}

// ShiftScheduledStarts moves each timer's scheduled start by delta.
//
// Rows are shifted one at a time with a compare-and-set on the old value;
// a failure on one row does not stop the others.
func (s *SQLiteStore) ShiftScheduledStarts(ctx context.Context, timerIDs []string, delta time.Duration, at time.Time) []ShiftResult {
	results := make([]ShiftResult, 0, len(timerIDs))
	for _, id := range timerIDs {
		results = append(results, ShiftResult{TimerID: id, Err: s.shiftOne(ctx, id, delta, at)})
	}
	return results
}

func (s *SQLiteStore) shiftOne(ctx context.Context, id string, delta time.Duration, at time.Time) error {
	t, err := getTimer(ctx, s.db, id)
	if err != nil {
		return err
	}
	if t.ScheduledStartTime == nil {
		return fmt.Errorf("%w: timer %s has no scheduled start", ErrInvalidTimer, id)
	}

	shifted := t.ScheduledStartTime.Add(delta)
	result, err := s.db.ExecContext(ctx,
		`UPDATE timers SET scheduled_start_time = ?, updated_at = ?
		 WHERE id = ? AND scheduled_start_time = ?`,
		formatTime(shifted), formatTime(at), id, formatTime(*t.ScheduledStartTime),
	)
	if err != nil {
		return fmt.Errorf("shifting timer %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: scheduled start of %s changed concurrently", ErrInvalidTransition, id)
	}
	return nil
}

// RebaseSchedule moves the event date and every scheduled start onto day,
// keeping each time of day (UTC). Returns the number of timers moved.
func (s *SQLiteStore) RebaseSchedule(ctx context.Context, eventID string, day time.Time, at time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	e, err := getEvent(ctx, tx, eventID)
	if err != nil {
		return 0, err
	}
	ts := formatTime(at)

	if _, err := tx.ExecContext(ctx,
		`UPDATE events SET event_date = ?, updated_at = ? WHERE id = ?`,
		formatTime(OnDay(e.EventDate, day)), ts, eventID,
	); err != nil {
		return 0, fmt.Errorf("rebasing event date: %w", err)
	}

	timers, err := queryTimers(ctx, tx,
		`SELECT `+timerColumns+` FROM timers WHERE event_id = ? AND scheduled_start_time IS NOT NULL ORDER BY order_index`,
		eventID,
	)
	if err != nil {
		return 0, err
	}
	for _, t := range timers {
		if _, err := tx.ExecContext(ctx,
			`UPDATE timers SET scheduled_start_time = ?, updated_at = ? WHERE id = ?`,
			formatTime(OnDay(*t.ScheduledStartTime, day)), ts, t.ID,
		); err != nil {
			return 0, fmt.Errorf("rebasing timer %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rebase: %w", err)
	}
	return len(timers), nil
}

// CompleteTimersBefore marks every not-yet-completed timer with an
// order_index below orderIndex as COMPLETED. Returns the number changed.
func (s *SQLiteStore) CompleteTimersBefore(ctx context.Context, eventID string, orderIndex int, at time.Time) (int, error) {
	ts := formatTime(at)
	result, err := s.db.ExecContext(ctx,
		`UPDATE timers SET status = 'COMPLETED', completed_at = ?, updated_at = ?
		 WHERE event_id = ? AND order_index < ? AND status <> 'COMPLETED'`,
		ts, ts, eventID, orderIndex,
	)
	if err != nil {
		return 0, fmt.Errorf("completing earlier timers: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(n), nil
}

// ForceStartTimer sets a timer RUNNING with the given start regardless of its
// current status, and makes it the event's current timer.
// Used by rehearsal jumps only.
func (s *SQLiteStore) ForceStartTimer(ctx context.Context, timerID string, startedAt time.Time, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	result, err := tx.ExecContext(ctx,
		`UPDATE timers SET status = 'RUNNING', started_at = ?, completed_at = NULL, updated_at = ?
		 WHERE id = ?`,
		formatTime(startedAt), formatTime(at), timerID,
	)
	if err != nil {
		return fmt.Errorf("force-starting timer: %w", err)
	}
	if err := requireRow(result, ErrTimerNotFound); err != nil {
		return err
	}

	t, err := getTimer(ctx, tx, timerID)
	if err != nil {
		return err
	}
	if err := setCurrentTimer(ctx, tx, t.EventID, &t.ID, at); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing force start: %w", err)
	}
	return nil
}

// ResetEvent returns an event to its pre-wedding state: timers PENDING with
// no start or completion, actions unexecuted, no current timer.
func (s *SQLiteStore) ResetEvent(ctx context.Context, eventID string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	ts := formatTime(at)
	result, err := tx.ExecContext(ctx,
		`UPDATE events SET current_timer_id = NULL, completed_at = NULL, updated_at = ? WHERE id = ?`,
		ts, eventID,
	)
	if err != nil {
		return fmt.Errorf("resetting event: %w", err)
	}
	if err := requireRow(result, ErrEventNotFound); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE timers SET status = 'PENDING', started_at = NULL, completed_at = NULL, updated_at = ?
		 WHERE event_id = ?`,
		ts, eventID,
	); err != nil {
		return fmt.Errorf("resetting timers: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE actions SET executed_at = NULL
		 WHERE timer_id IN (SELECT id FROM timers WHERE event_id = ?)`,
		eventID,
	); err != nil {
		return fmt.Errorf("resetting actions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reset: %w", err)
	}
	return nil
}

// ─── Adjustments ────────────────────────────────────────────────────────────

// RecordAdjustment stores one adjustment history row.
func (s *SQLiteStore) RecordAdjustment(ctx context.Context, adj *Adjustment) error {
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO timer_adjustments (` + adjustmentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		adj.ID,
		adj.TimerID,
		string(adj.Type),
		adj.MinutesDelta,
		boolToInt(adj.Cascade),
		nullableString(adj.Reason),
		formatTime(adj.CreatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return ErrTimerNotFound
		}
		return fmt.Errorf("inserting adjustment: %w", err)
	}
	return nil
}

// ListAdjustments returns a timer's adjustment history, oldest first.
func (s *SQLiteStore) ListAdjustments(ctx context.Context, timerID string) ([]Adjustment, error) {
	query := `SELECT ` + adjustmentColumns + ` FROM timer_adjustments
		WHERE timer_id = ? ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, timerID)
	if err != nil {
		return nil, fmt.Errorf("querying adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []Adjustment
	for rows.Next() {
		var adj Adjustment
		var adjType, createdAt string
		var cascade int
		var reason sql.NullString
		if err := rows.Scan(&adj.ID, &adj.TimerID, &adjType, &adj.MinutesDelta, &cascade, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning adjustment: %w", err)
		}
		adj.Type = AdjustmentType(adjType)
		adj.Cascade = cascade != 0
		if reason.Valid {
			adj.Reason = &reason.String
		}
		adj.CreatedAt = parseTime(createdAt)
		adjustments = append(adjustments, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating adjustments: %w", err)
	}
	return adjustments, nil
}

// ─── Shared Queries ─────────────────────────────────────────────────────────

func (s *SQLiteStore) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, scanErr := scanEventRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning event: %w", scanErr)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// changedOrMissing turns a zero-row conditional update into either
// "already done" or a not-found error.
func (s *SQLiteStore) changedOrMissing(ctx context.Context, result sql.Result, table, id string, notFound error) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+table+` WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking %s existence: %w", table, err)
	}
	if exists == 0 {
		return false, notFound
	}
	return false, nil
}

func getEvent(ctx context.Context, q querier, id string) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`

	e, err := scanEventRow(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("querying event: %w", err)
	}
	return e, nil
}

func getTimer(ctx context.Context, q querier, id string) (*Timer, error) {
	query := `SELECT ` + timerColumns + ` FROM timers WHERE id = ?`

	t, err := scanTimerRow(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTimerNotFound
		}
		return nil, fmt.Errorf("querying timer: %w", err)
	}
	return t, nil
}

func queryTimers(ctx context.Context, q querier, query string, args ...any) ([]Timer, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying timers: %w", err)
	}
	defer rows.Close()

	var timers []Timer
	for rows.Next() {
		t, scanErr := scanTimerRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning timer: %w", scanErr)
		}
		timers = append(timers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating timers: %w", err)
	}
	return timers, nil
}

func setCurrentTimer(ctx context.Context, q querier, eventID string, timerID *string, at time.Time) error {
	result, err := q.ExecContext(ctx,
		`UPDATE events SET current_timer_id = ?, updated_at = ? WHERE id = ?`,
		nullableString(timerID), formatTime(at), eventID,
	)
	if err != nil {
		return fmt.Errorf("setting current timer: %w", err)
	}
	return requireRow(result, ErrEventNotFound)
}

func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEventRow(scanner rowScanner) (*Event, error) {
	var e Event
	var description, location, currentTimerID, completedAt sql.NullString
	var eventDate, createdAt, updatedAt string
	var isDemo int

	err := scanner.Scan(
		&e.ID,
		&e.Name,
		&description,
		&location,
		&eventDate,
		&isDemo,
		&currentTimerID,
		&completedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		e.Description = &description.String
	}
	if location.Valid {
		e.Location = &location.String
	}
	if currentTimerID.Valid {
		e.CurrentTimerID = &currentTimerID.String
	}
	e.CompletedAt = parseNullableTime(completedAt)
	e.EventDate = parseTime(eventDate)
	e.IsDemo = isDemo != 0
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func scanTimerRow(scanner rowScanner) (*Timer, error) {
	var t Timer
	var descJSON, status, createdAt, updatedAt string
	var scheduled, startedAt, completedAt sql.NullString
	var duration, autoChain sql.NullInt64
	var isManual int

	err := scanner.Scan(
		&t.ID,
		&t.EventID,
		&t.OrderIndex,
		&t.Name,
		&descJSON,
		&scheduled,
		&duration,
		&isManual,
		&autoChain,
		&status,
		&startedAt,
		&completedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if descJSON != "" && descJSON != "{}" {
		if jsonErr := json.Unmarshal([]byte(descJSON), &t.Descriptions); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling descriptions: %w", jsonErr)
		}
	}
	t.ScheduledStartTime = parseNullableTime(scheduled)
	if duration.Valid {
		d := int(duration.Int64)
		t.DurationMinutes = &d
	}
	t.IsManual = isManual != 0
	if autoChain.Valid {
		v := autoChain.Int64 != 0
		t.AutoChain = &v
	}
	t.Status = Status(status)
	t.StartedAt = parseNullableTime(startedAt)
	t.CompletedAt = parseNullableTime(completedAt)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func scanActionRow(scanner rowScanner) (*Action, error) {
	var a Action
	var actionType, trigger string
	var assetURL, executedAt sql.NullString

	err := scanner.Scan(
		&a.ID,
		&a.TimerID,
		&a.OrderIndex,
		&actionType,
		&trigger,
		&a.TriggerOffsetMinutes,
		&a.DisplayDurationSec,
		&assetURL,
		&executedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Type = ActionType(actionType)
	a.Trigger = Trigger(trigger)
	if assetURL.Valid {
		a.AssetURL = &assetURL.String
	}
	a.ExecutedAt = parseNullableTime(executedAt)
	return &a, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

// Timestamps keep sub-second precision so ordering by started_at is stable.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullableTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullableBool(v *bool) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(boolToInt(*v)), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalDescriptions(desc map[string]string) (string, error) {
	if len(desc) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(desc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}

func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}
