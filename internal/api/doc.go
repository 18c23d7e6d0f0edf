// Package api implements the HTTP REST API and WebSocket server for WeddingCue.
//
// This package provides:
//   - REST endpoints for reading timelines and driving timer transitions
//   - WebSocket hub that relays timeline notifications to operator screens
//   - JWT bearer authentication with role based permissions
//   - A cron endpoint so an external scheduler can run the clock sweep
//
// # Architecture
//
// Handlers never touch timer status directly. Every transition goes through
// engine.Engine (or the tracker and rehearsal controller built on it), so an
// HTTP call, an MQTT command and the background sweep all obey the same
// rules. The Hub implements notify.Publisher and is one of the sinks the
// engine fans out to.
//
// # Security
//
// Tokens are minted offline with "weddingcue token" and carry a role and,
// optionally, a single event they are limited to. WebSocket clients pass
// the same token as a query parameter because browsers cannot set headers
// on the upgrade request.
//
// # Graceful Degradation
//
// The server operates without MQTT, RabbitMQ or InfluxDB. Missing sinks only
// reduce who hears about a transition; the transition itself still happens.
package api
