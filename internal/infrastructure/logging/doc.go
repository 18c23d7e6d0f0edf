// Package logging provides structured logging for weddingcue.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the service and the CLI.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for the CLI and development
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	eng := engine.NewEngine(store, hub, engine.SystemClock{}, logger.Component("engine"))
//
// # Security
//
// Never log JWTs, the cron secret or broker passwords.
package logging
