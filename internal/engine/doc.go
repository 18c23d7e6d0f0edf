// Package engine implements the timer state machine for a wedding timeline.
//
// Every trigger source goes through the Engine: operator commands (HTTP and
// CLI), the clock sweep, and automatic chaining when a timer completes.
//
//	┌────────────┐  ┌────────────┐  ┌────────────────┐
//	│  operator  │  │ clock sweep│  │ completeTimer  │
//	└─────┬──────┘  └─────┬──────┘  └───────┬────────┘
//	      │               │                 │ (chain)
//	      ▼               ▼                 ▼
//	┌─────────────────────────────────────────────────┐
//	│                     Engine                      │
//	│  classify once → conditional write → announce   │
//	└──────────┬───────────────────────┬──────────────┘
//	           ▼                       ▼
//	   timeline.Store           notify.Publisher
//	 (atomic transitions)     (fire-and-forget)
//
// # Rules
//
//   - At most one duration-bearing timer per event is RUNNING.
//   - Punctual and manual timers start alongside it.
//   - Completing a timer makes its successor current and starts it when
//     Timer.ShouldAutoChain allows. A refused chain start is reported, not
//     escalated.
//   - Completing twice is a success with AlreadyCompleted set.
//   - Notification failures are logged and never undo a transition.
//
// # Usage
//
//	eng := engine.NewEngine(store, hub, engine.SystemClock{}, log)
//	eng.SetRecorder(influxRecorder)
//
//	if _, err := eng.StartWedding(ctx, eventID); err != nil {
//	    return err
//	}
//	res, err := eng.CompleteTimer(ctx, timerID)
package engine
