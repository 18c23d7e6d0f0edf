package timeline

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var baseTime = time.Date(2026, 6, 20, 14, 0, 0, 0, time.UTC)

// setupTestDB creates an in-memory SQLite database with the timeline schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	// A second connection would see a different in-memory database.
	db.SetMaxOpenConns(1)

	schema, err := os.ReadFile("../../migrations/20260301_090000_timeline.up.sql")
	if err != nil {
		t.Fatalf("reading schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// forEachStore runs fn against a fresh SQLiteStore and a fresh MemoryStore.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		fn(t, NewSQLiteStore(setupTestDB(t)))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
}

// seedEvent creates event "evt-1" holding the given timers.
func seedEvent(t *testing.T, s Store, timers ...Timer) {
	t.Helper()
	ctx := context.Background()

	if err := s.CreateEvent(ctx, &Event{ID: "evt-1", Name: "Reception", EventDate: baseTime}); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	for i := range timers {
		tm := timers[i]
		tm.EventID = "evt-1"
		if tm.Name == "" {
			tm.Name = "Timer " + tm.ID
		}
		if err := s.CreateTimer(ctx, &tm); err != nil {
			t.Fatalf("CreateTimer(%s): %v", tm.ID, err)
		}
	}
}

func durationTimer(id string, order, minutes int) Timer {
	return Timer{ID: id, OrderIndex: order, DurationMinutes: IntPtr(minutes)}
}

func punctualTimer(id string, order int, scheduled *time.Time) Timer {
	return Timer{ID: id, OrderIndex: order, ScheduledStartTime: scheduled}
}

func TestStore_StartTimer(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedEvent(t, s, durationTimer("a", 1, 30), durationTimer("b", 2, 20), punctualTimer("c", 3, nil))

		started, err := s.StartTimer(ctx, StartParams{TimerID: "a", At: baseTime, Exclusive: true, SetCurrent: true})
		if err != nil {
			t.Fatalf("StartTimer(a): %v", err)
		}
		if started.Status != StatusRunning {
			t.Errorf("Status = %s, want RUNNING", started.Status)
		}
		if started.StartedAt == nil || !started.StartedAt.Equal(baseTime) {
			t.Errorf("StartedAt = %v, want %v", started.StartedAt, baseTime)
		}

		e, err := s.GetEvent(ctx, "evt-1")
		if err != nil {
			t.Fatalf("GetEvent: %v", err)
		}
		if e.CurrentTimerID == nil || *e.CurrentTimerID != "a" {
			t.Errorf("CurrentTimerID = %v, want a", e.CurrentTimerID)
		}

		t.Run("already running", func(t *testing.T) {
			_, err := s.StartTimer(ctx, StartParams{TimerID: "a", At: baseTime, Exclusive: true})
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got: %v", err)
			}
		})

		t.Run("second duration timer conflicts", func(t *testing.T) {
			_, err := s.StartTimer(ctx, StartParams{TimerID: "b", At: baseTime, Exclusive: true})
			if !errors.Is(err, ErrConflictingDurationTimer) {
				t.Errorf("expected ErrConflictingDurationTimer, got: %v", err)
			}
			b, _ := s.GetTimer(ctx, "b")
			if b.Status != StatusPending {
				t.Errorf("b.Status = %s, want PENDING", b.Status)
			}
		})

		t.Run("punctual runs alongside", func(t *testing.T) {
			if _, err := s.StartTimer(ctx, StartParams{TimerID: "c", At: baseTime}); err != nil {
				t.Errorf("StartTimer(c): %v", err)
			}
			e, _ := s.GetEvent(ctx, "evt-1")
			if e.CurrentTimerID == nil || *e.CurrentTimerID != "a" {
				t.Errorf("punctual start moved current timer to %v", e.CurrentTimerID)
			}
		})

		t.Run("unknown timer", func(t *testing.T) {
			_, err := s.StartTimer(ctx, StartParams{TimerID: "missing", At: baseTime})
			if !errors.Is(err, ErrTimerNotFound) {
				t.Errorf("expected ErrTimerNotFound, got: %v", err)
			}
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound parent, got: %v", err)
			}
		})
	})
}

func TestStore_StartTimerRace(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedEvent(t, s, durationTimer("a", 1, 30), durationTimer("b", 2, 30))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, id := range []string{"a", "b"} {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				_, errs[i] = s.StartTimer(ctx, StartParams{TimerID: id, At: baseTime, Exclusive: true, SetCurrent: true})
			}(i, id)
		}
		wg.Wait()

		successes, conflicts := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflictingDurationTimer):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		if successes != 1 || conflicts != 1 {
			t.Fatalf("successes=%d conflicts=%d, want 1 and 1", successes, conflicts)
		}

		timers, err := s.ListTimers(ctx, "evt-1")
		if err != nil {
			t.Fatalf("ListTimers: %v", err)
		}
		running := 0
		for _, tm := range timers {
			if tm.Status == StatusRunning {
				running++
			}
		}
		if running != 1 {
			t.Errorf("running = %d, want 1", running)
		}
	})
}

func TestStore_CompleteTimer(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedEvent(t, s, durationTimer("a", 1, 30))

		if _, err := s.StartTimer(ctx, StartParams{TimerID: "a", At: baseTime}); err != nil {
			t.Fatalf("StartTimer: %v", err)
		}

		changed, err := s.CompleteTimer(ctx, "a", baseTime.Add(30*time.Minute))
		if err != nil {
			t.Fatalf("CompleteTimer: %v", err)
		}
		if !changed {
			t.Error("first CompleteTimer reported changed=false")
		}

		changed, err = s.CompleteTimer(ctx, "a", baseTime.Add(time.Hour))
		if err != nil {
			t.Fatalf("second CompleteTimer: %v", err)
		}
		if changed {
			t.Error("second CompleteTimer reported changed=true")
		}

		a, _ := s.GetTimer(ctx, "a")
		if a.CompletedAt == nil || !a.CompletedAt.Equal(baseTime.Add(30*time.Minute)) {
			t.Errorf("CompletedAt = %v, want first completion time", a.CompletedAt)
		}

		if _, err := s.CompleteTimer(ctx, "missing", baseTime); !errors.Is(err, ErrTimerNotFound) {
			t.Errorf("expected ErrTimerNotFound, got: %v", err)
		}
	})
}

func TestStore_MarkActionExecuted(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedEvent(t, s, durationTimer("a", 1, 30))

		action := &Action{ID: "act-1", TimerID: "a", Type: ActionSound, Trigger: TriggerAfterStart}
		if err := s.CreateAction(ctx, action); err != nil {
			t.Fatalf("CreateAction: %v", err)
		}

		first := baseTime.Add(time.Minute)
		changed, err := s.MarkActionExecuted(ctx, "act-1", first)
		if err != nil || !changed {
			t.Fatalf("MarkActionExecuted = %v, %v; want true, nil", changed, err)
		}

		changed, err = s.MarkActionExecuted(ctx, "act-1", first.Add(time.Minute))
		if err != nil || changed {
			t.Fatalf("second MarkActionExecuted = %v, %v; want false, nil", changed, err)
		}

		got, _ := s.GetAction(ctx, "act-1")
		if got.ExecutedAt == nil || !got.ExecutedAt.Equal(first) {
			t.Errorf("ExecutedAt = %v, want %v", got.ExecutedAt, first)
		}

		if _, err := s.MarkActionExecuted(ctx, "missing", first); !errors.Is(err, ErrActionNotFound) {
			t.Errorf("expected ErrActionNotFound, got: %v", err)
		}
	})
}

func TestStore_NextTimer(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedEvent(t, s, durationTimer("a", 1, 30), durationTimer("c", 5, 10), punctualTimer("b", 3, nil))

		next, err := s.NextTimer(ctx, "evt-1", 1)
		if err != nil {
			t.Fatalf("NextTimer: %v", err)
		}
		if next.ID != "b" {
			t.Errorf("NextTimer(1) = %s, want b", next.ID)
		}

		if _, err := s.NextTimer(ctx, "evt-1", 5); !errors.Is(err, ErrTimerNotFound) {
			t.Errorf("expected ErrTimerNotFound at end of timeline, got: %v", err)
		}
	})
}

func TestStore_CreateTimerConstraints(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedEvent(t, s, durationTimer("a", 1, 30))

		dup := durationTimer("other", 1, 10)
		dup.EventID, dup.Name = "evt-1", "Dup order"
		if err := s.CreateTimer(ctx, &dup); !errors.Is(err, ErrDuplicateOrder) {
			t.Errorf("expected ErrDuplicateOrder, got: %v", err)
		}

		sameID := durationTimer("a", 2, 10)
		sameID.EventID, sameID.Name = "evt-1", "Same id"
		if err := s.CreateTimer(ctx, &sameID); !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got: %v", err)
		}

		orphan := durationTimer("orphan", 1, 10)
		orphan.EventID, orphan.Name = "no-such-event", "Orphan"
		if err := s.CreateTimer(ctx, &orphan); !errors.Is(err, ErrEventNotFound) {
			t.Errorf("expected ErrEventNotFound, got: %v", err)
		}

		invalid := Timer{ID: "bad", EventID: "evt-1", OrderIndex: 9, Name: "Bad", DurationMinutes: IntPtr(-5)}
		if err := s.CreateTimer(ctx, &invalid); !errors.Is(err, ErrInvalidTimer) {
			t.Errorf("expected ErrInvalidTimer, got: %v", err)
		}
	})
}

func TestStore_ShiftScheduledStarts(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		at := baseTime.Add(2 * time.Hour)
		seedEvent(t, s,
			punctualTimer("p1", 1, TimePtr(at)),
			punctualTimer("p2", 2, nil),
		)

		results := s.ShiftScheduledStarts(ctx, []string{"p1", "p2", "missing"}, 10*time.Minute, baseTime)
		if len(results) != 3 {
			t.Fatalf("len(results) = %d, want 3", len(results))
		}
		if results[0].Err != nil {
			t.Errorf("p1 shift failed: %v", results[0].Err)
		}
		if !errors.Is(results[1].Err, ErrInvalidTimer) {
			t.Errorf("p2 without schedule: expected ErrInvalidTimer, got: %v", results[1].Err)
		}
		if !errors.Is(results[2].Err, ErrTimerNotFound) {
			t.Errorf("missing: expected ErrTimerNotFound, got: %v", results[2].Err)
		}

		p1, _ := s.GetTimer(ctx, "p1")
		if want := at.Add(10 * time.Minute); !p1.ScheduledStartTime.Equal(want) {
			t.Errorf("p1 scheduled = %v, want %v", p1.ScheduledStartTime, want)
		}
	})
}

func TestStore_ResetEvent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedEvent(t, s, durationTimer("a", 1, 30), durationTimer("b", 2, 30))
		if err := s.CreateAction(ctx, &Action{ID: "act-1", TimerID: "a", Type: ActionImage, Trigger: TriggerAtEnd}); err != nil {
			t.Fatalf("CreateAction: %v", err)
		}

		if _, err := s.StartTimer(ctx, StartParams{TimerID: "a", At: baseTime, SetCurrent: true}); err != nil {
			t.Fatalf("StartTimer: %v", err)
		}
		if _, err := s.MarkActionExecuted(ctx, "act-1", baseTime); err != nil {
			t.Fatalf("MarkActionExecuted: %v", err)
		}
		if _, err := s.CompleteTimer(ctx, "a", baseTime); err != nil {
			t.Fatalf("CompleteTimer: %v", err)
		}
		if err := s.CompleteEvent(ctx, "evt-1", baseTime); err != nil {
			t.Fatalf("CompleteEvent: %v", err)
		}

		if err := s.ResetEvent(ctx, "evt-1", baseTime.Add(time.Hour)); err != nil {
			t.Fatalf("ResetEvent: %v", err)
		}

		timers, _ := s.ListTimers(ctx, "evt-1")
		for _, tm := range timers {
			if tm.Status != StatusPending || tm.StartedAt != nil || tm.CompletedAt != nil {
				t.Errorf("timer %s not reset: %+v", tm.ID, tm)
			}
		}
		act, _ := s.GetAction(ctx, "act-1")
		if act.ExecutedAt != nil {
			t.Error("action executed_at not cleared")
		}
		e, _ := s.GetEvent(ctx, "evt-1")
		if e.CurrentTimerID != nil || e.CompletedAt != nil {
			t.Errorf("event not reset: current=%v completed=%v", e.CurrentTimerID, e.CompletedAt)
		}

		if err := s.ResetEvent(ctx, "missing", baseTime); !errors.Is(err, ErrEventNotFound) {
			t.Errorf("expected ErrEventNotFound, got: %v", err)
		}
	})
}

func TestStore_JumpPrimitives(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedEvent(t, s, durationTimer("a", 1, 30), durationTimer("b", 2, 30), durationTimer("c", 3, 30))

		if _, err := s.StartTimer(ctx, StartParams{TimerID: "a", At: baseTime, SetCurrent: true}); err != nil {
			t.Fatalf("StartTimer: %v", err)
		}

		n, err := s.CompleteTimersBefore(ctx, "evt-1", 3, baseTime)
		if err != nil {
			t.Fatalf("CompleteTimersBefore: %v", err)
		}
		if n != 2 {
			t.Errorf("completed %d timers, want 2", n)
		}

		backdated := baseTime.Add(-15 * time.Second)
		if err := s.ForceStartTimer(ctx, "c", backdated, baseTime); err != nil {
			t.Fatalf("ForceStartTimer: %v", err)
		}

		c, _ := s.GetTimer(ctx, "c")
		if c.Status != StatusRunning || !c.StartedAt.Equal(backdated) {
			t.Errorf("c = %s started %v, want RUNNING at %v", c.Status, c.StartedAt, backdated)
		}
		e, _ := s.GetEvent(ctx, "evt-1")
		if e.CurrentTimerID == nil || *e.CurrentTimerID != "c" {
			t.Errorf("CurrentTimerID = %v, want c", e.CurrentTimerID)
		}
	})
}

func TestStore_RebaseSchedule(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedEvent(t, s,
			punctualTimer("p1", 1, TimePtr(baseTime.Add(90*time.Minute))),
			durationTimer("d1", 2, 30),
		)

		today := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
		n, err := s.RebaseSchedule(ctx, "evt-1", today, today)
		if err != nil {
			t.Fatalf("RebaseSchedule: %v", err)
		}
		if n != 1 {
			t.Errorf("moved %d timers, want 1", n)
		}

		p1, _ := s.GetTimer(ctx, "p1")
		want := time.Date(2026, 10, 17, 15, 30, 0, 0, time.UTC)
		if !p1.ScheduledStartTime.Equal(want) {
			t.Errorf("p1 scheduled = %v, want %v", p1.ScheduledStartTime, want)
		}
		e, _ := s.GetEvent(ctx, "evt-1")
		if !e.EventDate.Equal(time.Date(2026, 10, 17, 14, 0, 0, 0, time.UTC)) {
			t.Errorf("EventDate = %v, want rebased to 2026-10-17", e.EventDate)
		}
	})
}

func TestStore_ListActiveEvents(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedEvent(t, s, durationTimer("a", 1, 30))

		other := &Event{ID: "evt-2", Name: "Next week", EventDate: baseTime.AddDate(0, 0, 7)}
		if err := s.CreateEvent(ctx, other); err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}

		active, err := s.ListActiveEvents(ctx, baseTime)
		if err != nil {
			t.Fatalf("ListActiveEvents: %v", err)
		}
		if len(active) != 1 || active[0].ID != "evt-1" {
			t.Fatalf("active = %+v, want only evt-1", active)
		}

		// A current timer keeps an event active on other days.
		if err := s.SetCurrentTimer(ctx, "evt-1", strPtr("a"), baseTime); err != nil {
			t.Fatalf("SetCurrentTimer: %v", err)
		}
		active, _ = s.ListActiveEvents(ctx, baseTime.AddDate(0, 0, 1))
		if len(active) != 1 || active[0].ID != "evt-1" {
			t.Errorf("active next day = %+v, want evt-1", active)
		}

		if err := s.CompleteEvent(ctx, "evt-1", baseTime); err != nil {
			t.Fatalf("CompleteEvent: %v", err)
		}
		active, _ = s.ListActiveEvents(ctx, baseTime)
		if len(active) != 0 {
			t.Errorf("completed event still active: %+v", active)
		}
	})
}

func TestStore_Adjustments(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedEvent(t, s, durationTimer("a", 1, 30))

		if err := s.UpdateTimerDuration(ctx, "a", IntPtr(40), baseTime); err != nil {
			t.Fatalf("UpdateTimerDuration: %v", err)
		}
		reason := "speeches ran long"
		adj := &Adjustment{ID: "adj-1", TimerID: "a", Type: AdjustAddTime, MinutesDelta: 10, Cascade: true, Reason: &reason}
		if err := s.RecordAdjustment(ctx, adj); err != nil {
			t.Fatalf("RecordAdjustment: %v", err)
		}

		list, err := s.ListAdjustments(ctx, "a")
		if err != nil {
			t.Fatalf("ListAdjustments: %v", err)
		}
		if len(list) != 1 || list[0].MinutesDelta != 10 || !list[0].Cascade {
			t.Errorf("adjustments = %+v", list)
		}

		a, _ := s.GetTimer(ctx, "a")
		if a.DurationMinutes == nil || *a.DurationMinutes != 40 {
			t.Errorf("DurationMinutes = %v, want 40", a.DurationMinutes)
		}

		if err := s.UpdateTimerDuration(ctx, "missing", IntPtr(5), baseTime); !errors.Is(err, ErrTimerNotFound) {
			t.Errorf("expected ErrTimerNotFound, got: %v", err)
		}
	})
}

func TestSQLiteStore_RoundTripsOptionalFields(t *testing.T) {
	s := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	desc := "Garden terrace"
	if err := s.CreateEvent(ctx, &Event{ID: "evt-1", Name: "Reception", Location: &desc, EventDate: baseTime, IsDemo: true}); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	tm := &Timer{
		ID:                 "t1",
		EventID:            "evt-1",
		OrderIndex:         1,
		Name:               "First dance",
		Descriptions:       map[string]string{"fr": "Première danse", "en": "First dance"},
		ScheduledStartTime: TimePtr(baseTime.Add(123456789 * time.Nanosecond)),
		IsManual:           true,
		AutoChain:          BoolPtr(false),
	}
	if err := s.CreateTimer(ctx, tm); err != nil {
		t.Fatalf("CreateTimer: %v", err)
	}

	got, err := s.GetTimer(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTimer: %v", err)
	}
	if got.Description("fr") != "Première danse" {
		t.Errorf("fr description = %q", got.Description("fr"))
	}
	if got.DurationMinutes != nil {
		t.Errorf("DurationMinutes = %v, want nil", *got.DurationMinutes)
	}
	if got.AutoChain == nil || *got.AutoChain {
		t.Errorf("AutoChain = %v, want false", got.AutoChain)
	}
	if !got.IsManual {
		t.Error("IsManual lost")
	}
	if !got.ScheduledStartTime.Equal(*tm.ScheduledStartTime) {
		t.Errorf("ScheduledStartTime = %v, want %v (sub-second precision)", got.ScheduledStartTime, tm.ScheduledStartTime)
	}

	e, _ := s.GetEvent(ctx, "evt-1")
	if !e.IsDemo || e.Location == nil || *e.Location != desc {
		t.Errorf("event = %+v", e)
	}
}

// strPtr returns a pointer to s.
func strPtr(s string) *string {
	return &s
}
