// Package remote accepts cue commands from venue hardware over MQTT.
//
// A coordinator's wireless button or a stage manager's tablet publishes to
// weddingcue/command/{eventId}/{verb} and the Listener forwards the command
// to the engine. The engine's own rules apply unchanged: a command that
// would break them is refused and logged, never queued for retry.
package remote
