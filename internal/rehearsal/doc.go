// Package rehearsal provides the administrative controls used to rehearse
// a wedding timeline: jump to a timer, reset the event, and re-date a demo
// event to today.
//
// A jump backdates the target timer's start so its first cue is close to
// real time:
//
//	startedAt = now − lead                      (first cue AFTER_START / AT_END)
//	startedAt = now − lead − offset             (first cue BEFORE_END)
//
// Earlier timers are completed in bulk and their cues are not replayed.
package rehearsal
