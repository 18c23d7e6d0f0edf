// Package notify announces timeline changes to listeners.
//
// The engine publishes one message per state change on a single channel
// (DefaultChannel). Sinks decide how the message travels:
//
//   - api.Hub: WebSocket clients subscribed to the channel
//   - MQTTSink: non-retained MQTT messages under weddingcue/<channel>/<event>
//   - AMQPSink: a durable RabbitMQ queue for downstream consumers
//
// Fanout combines sinks so the engine only ever sees one Publisher.
// Delivery is eventually consistent with state: a failed publish is
// reported to the caller, which logs it and carries on.
package notify
