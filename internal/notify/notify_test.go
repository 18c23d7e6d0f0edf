package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type recordedMessage struct {
	topic string
	body  []byte
	qos   byte
}

type mockMQTT struct {
	messages []recordedMessage
	err      error
}

func (m *mockMQTT) Publish(topic string, payload []byte, qos byte, _ bool) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, recordedMessage{topic: topic, body: payload, qos: qos})
	return nil
}

type mockAMQP struct {
	keys   []string
	bodies [][]byte
}

func (m *mockAMQP) PublishJSON(_ context.Context, key string, body []byte) error {
	m.keys = append(m.keys, key)
	m.bodies = append(m.bodies, body)
	return nil
}

func TestMQTTSink_Publish(t *testing.T) {
	client := &mockMQTT{}
	sink := NewMQTTSink(client, func(channel, event string) string {
		return "weddingcue/" + channel + "/" + event
	}, 1)

	payload := TimerStarted{TimerID: "t1", EventID: "evt-1"}
	if err := sink.Publish(context.Background(), DefaultChannel, EventTimerStarted, payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(client.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(client.messages))
	}
	msg := client.messages[0]
	if msg.topic != "weddingcue/wedding-timers/timer-started" {
		t.Errorf("topic = %q", msg.topic)
	}
	if msg.qos != 1 {
		t.Errorf("qos = %d, want 1", msg.qos)
	}

	var env struct {
		Event   string         `json:"event"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(msg.body, &env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if env.Event != EventTimerStarted || env.Payload["timer_id"] != "t1" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestMQTTSink_PublishError(t *testing.T) {
	boom := errors.New("not connected")
	sink := NewMQTTSink(&mockMQTT{err: boom}, func(c, e string) string { return c + "/" + e }, 0)

	err := sink.Publish(context.Background(), DefaultChannel, EventTimerCompleted, nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped client error, got: %v", err)
	}
}

func TestAMQPSink_RoutingKey(t *testing.T) {
	pub := &mockAMQP{}

	if err := NewAMQPSink(pub, "weddingcue").Publish(context.Background(), DefaultChannel, EventResetPerformed, ResetPerformed{EventID: "evt-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := NewAMQPSink(pub, "").Publish(context.Background(), DefaultChannel, EventJumpPerformed, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	want := []string{"weddingcue.reset-performed", "jump-performed"}
	for i, k := range want {
		if pub.keys[i] != k {
			t.Errorf("key[%d] = %q, want %q", i, pub.keys[i], k)
		}
	}
}

func TestFanout_ContinuesPastFailures(t *testing.T) {
	boom := errors.New("broker down")
	var delivered []string

	ok := PublisherFunc(func(_ context.Context, _, event string, _ any) error {
		delivered = append(delivered, event)
		return nil
	})
	failing := PublisherFunc(func(context.Context, string, string, any) error { return boom })

	f := Fanout{failing, nil, ok}
	err := f.Publish(context.Background(), DefaultChannel, EventTimerAdjusted, nil)

	if !errors.Is(err, ErrDelivery) || !errors.Is(err, boom) {
		t.Errorf("expected ErrDelivery wrapping sink error, got: %v", err)
	}
	if len(delivered) != 1 {
		t.Errorf("healthy sink received %d messages, want 1", len(delivered))
	}

	if err := (Fanout{ok}).Publish(context.Background(), DefaultChannel, EventTimerAdjusted, nil); err != nil {
		t.Errorf("all-healthy fanout returned %v", err)
	}
	if err := Nop.Publish(context.Background(), "", "", nil); err != nil {
		t.Errorf("Nop returned %v", err)
	}
}
