package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the wire form used by the broker sinks.
type Envelope struct {
	Channel     string    `json:"channel"`
	Event       string    `json:"event"`
	Payload     any       `json:"payload"`
	PublishedAt time.Time `json:"published_at"`
}

func encode(channel, event string, payload any) ([]byte, error) {
	body, err := json.Marshal(Envelope{
		Channel:     channel,
		Event:       event,
		Payload:     payload,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", event, err)
	}
	return body, nil
}

// ─── MQTT ───────────────────────────────────────────────────────────────────

// MQTTPublisher is the subset of the MQTT client the sink needs.
type MQTTPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink publishes each message to a topic derived from channel and event.
// Show-control consoles on the venue network subscribe to these topics.
type MQTTSink struct {
	client MQTTPublisher
	topic  func(channel, event string) string
	qos    byte
}

// NewMQTTSink creates an MQTT sink.
//
// Parameters:
//   - client: Connected MQTT client
//   - topic: Maps (channel, event) to a topic, e.g. mqtt.Topics{}.TimelineEvent
//   - qos: Delivery QoS for every message
func NewMQTTSink(client MQTTPublisher, topic func(channel, event string) string, qos byte) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, qos: qos}
}

// Publish encodes the message and hands it to the MQTT client.
func (s *MQTTSink) Publish(_ context.Context, channel, event string, payload any) error {
	body, err := encode(channel, event, payload)
	if err != nil {
		return err
	}
	if err := s.client.Publish(s.topic(channel, event), body, s.qos, false); err != nil {
		return fmt.Errorf("mqtt %s: %w", event, err)
	}
	return nil
}

// ─── AMQP ───────────────────────────────────────────────────────────────────

// AMQPPublisher is the subset of the RabbitMQ publisher the sink needs.
type AMQPPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, body []byte) error
}

// AMQPSink publishes each message to a durable queue, keyed by event name.
type AMQPSink struct {
	publisher AMQPPublisher
	prefix    string
}

// NewAMQPSink creates a RabbitMQ sink. Routing keys are prefix + "." + event.
func NewAMQPSink(publisher AMQPPublisher, prefix string) *AMQPSink {
	return &AMQPSink{publisher: publisher, prefix: prefix}
}

// Publish encodes the message and hands it to the broker.
func (s *AMQPSink) Publish(ctx context.Context, channel, event string, payload any) error {
	body, err := encode(channel, event, payload)
	if err != nil {
		return err
	}
	key := event
	if s.prefix != "" {
		key = s.prefix + "." + event
	}
	if err := s.publisher.PublishJSON(ctx, key, body); err != nil {
		return fmt.Errorf("amqp %s: %w", event, err)
	}
	return nil
}
