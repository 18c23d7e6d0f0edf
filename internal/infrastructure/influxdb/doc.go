// Package influxdb records timeline telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched writes and health monitoring.
//
// # Measurements
//
//	timer_transitions  tags: event_id, timer_id, kind (started|completed)
//	                   fields: count, drift_seconds, duration_seconds
//	sweep_runs         fields: events, started, failed, duration_ms
//
// drift_seconds answers "how late did each moment actually begin" across
// weddings; duration_seconds shows which blocks overran.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	eng.SetRecorder(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Writes never block or fail the caller. Batch errors are delivered to the
// SetOnError callback wrapped in ErrWriteFailed. Connection and health check
// errors are returned directly.
package influxdb
