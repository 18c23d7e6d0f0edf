//go:build integration

package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// Integration tests against a live broker.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func connectTest(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIntegration_Connect(t *testing.T) {
	client := connectTest(t, "weddingcue-int-connect")

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	client := connectTest(t, "weddingcue-int-subs")
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe(Topics{}.AllCommands(), 1, handler); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(Topics{}.AllCommands()) {
		t.Error("subscription not tracked")
	}

	if err := client.Unsubscribe(Topics{}.AllCommands()); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestIntegration_CommandRoundtrip(t *testing.T) {
	pub := connectTest(t, "weddingcue-int-pub")
	sub := connectTest(t, "weddingcue-int-sub")

	type received struct {
		eventID, verb string
		body          map[string]string
	}
	got := make(chan received, 1)
	var once sync.Once

	err := sub.Subscribe(Topics{}.AllCommands(), 1, func(topic string, payload []byte) error {
		eventID, verb, ok := Topics{}.ParseCommand(topic)
		if !ok {
			return nil
		}
		var body map[string]string
		if err := json.Unmarshal(payload, &body); err != nil {
			return err
		}
		once.Do(func() { got <- received{eventID, verb, body} })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	topic := Topics{}.Command("evt-int", CommandComplete)
	if err := pub.PublishJSON(topic, map[string]string{"timer_id": "t1"}); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case msg := <-got:
		if msg.eventID != "evt-int" || msg.verb != CommandComplete || msg.body["timer_id"] != "t1" {
			t.Errorf("received = %+v", msg)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for message")
	}
}

func TestIntegration_CallbacksRegistered(t *testing.T) {
	client := connectTest(t, "weddingcue-int-callbacks")

	called := make(chan struct{}, 1)
	client.SetOnConnect(func() {
		select {
		case called <- struct{}{}:
		default:
		}
	})
	client.SetOnDisconnect(func(error) {})

	client.handleConnect()

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Error("OnConnect callback not invoked")
	}
}
