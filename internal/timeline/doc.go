// Package timeline defines the wedding timeline data model and its store.
//
// An Event owns an ordered list of Timers; each Timer owns zero or more
// Actions (media cues). Timers move through a strict lifecycle:
//
//	PENDING ──start──▶ RUNNING ──complete──▶ COMPLETED
//	   ▲                                        │
//	   └──────────── administrative reset ──────┘
//
// A timer is "duration-bearing" when DurationMinutes > 0. At most one
// duration-bearing timer per event may be RUNNING. Punctual and manual
// timers (no duration) are exempt and may run alongside it.
//
// # Store Contract
//
// Store is the only persistence surface the engine sees. Every status
// transition is a conditional write: the precondition check and the write
// are one atomic operation, never a read followed by a write. This is what
// keeps the single-running invariant intact when an operator, the clock
// sweep and automatic chaining race, possibly from several processes.
//
//   - SQLiteStore: guarded UPDATE statements on the migrated schema
//   - MemoryStore: mutex-guarded compare-and-swap, for tests and demos
//
// # Usage
//
//	store := timeline.NewSQLiteStore(db.DB)
//	t, err := store.StartTimer(ctx, timeline.StartParams{
//	    TimerID:    "tmr-entrance",
//	    At:         time.Now(),
//	    Exclusive:  true,
//	    SetCurrent: true,
//	})
//	if errors.Is(err, timeline.ErrConflictingDurationTimer) {
//	    // another countdown owns the slot; retry later
//	}
package timeline
