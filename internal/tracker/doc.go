// Package tracker records action cue execution for player clients.
//
// Players (the projector, the DJ's sound board) poll DueActions for the
// running timer and report each cue with RecordExecuted once it has played.
// Recording is idempotent, so a player that retries after a network blip
// never double-fires a cue on other screens.
//
// The tracker reports AllActionsExecuted but leaves completion to the
// operator, the clock or chaining.
package tracker
