package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/weddingcue-core/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "weddingcue-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// disconnectedClient returns a client that never dialled a broker.
func disconnectedClient() *Client {
	return &Client{
		cfg:           testConfig(),
		subscriptions: make(map[string]subscription),
	}
}

// mockLogger implements Logger for testing.
type mockLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *mockLogger) Info(string, ...any) {}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// =============================================================================
// Validation Tests (no broker)
// =============================================================================

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}

	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	client := disconnectedClient()

	err := client.HealthCheck(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	client := disconnectedClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.HealthCheck(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublishValidation(t *testing.T) {
	client := disconnectedClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"qos too high", "weddingcue/test", []byte("x"), 3, ErrInvalidQoS},
		{"payload too large", "weddingcue/test", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "weddingcue/test", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishJSONUnencodable(t *testing.T) {
	client := disconnectedClient()

	err := client.PublishJSON("weddingcue/test", make(chan int))
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := disconnectedClient()
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"qos too high", "weddingcue/test", 5, handler, ErrInvalidQoS},
		{"nil handler", "weddingcue/test", 1, nil, ErrSubscribeFailed},
		{"disconnected", "weddingcue/test", 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after failed subscribes, want 0", client.SubscriptionCount())
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	client := disconnectedClient()

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("weddingcue/test"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	client := disconnectedClient()
	handler := func(string, []byte) error { return nil }

	client.track(subscription{topic: "weddingcue/command/+/+", qos: 1, handler: handler})
	client.track(subscription{topic: "weddingcue/system/status", qos: 1, handler: handler})

	if client.SubscriptionCount() != 2 {
		t.Errorf("SubscriptionCount() = %d, want 2", client.SubscriptionCount())
	}
	if !client.HasSubscription("weddingcue/command/+/+") {
		t.Error("HasSubscription() = false for tracked topic")
	}

	client.untrack("weddingcue/command/+/+")
	if client.HasSubscription("weddingcue/command/+/+") {
		t.Error("HasSubscription() = true after untrack")
	}
}

// =============================================================================
// Handler Dispatch Tests
// =============================================================================

func TestDispatchHandlerError(t *testing.T) {
	client := disconnectedClient()
	logger := &mockLogger{}
	client.SetLogger(logger)

	client.dispatch(func(string, []byte) error {
		return errors.New("boom")
	}, "weddingcue/command/evt/start", nil)

	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one entry", logger.warns)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	client := disconnectedClient()
	logger := &mockLogger{}
	client.SetLogger(logger)

	client.dispatch(func(string, []byte) error {
		panic("handler exploded")
	}, "weddingcue/command/evt/start", nil)

	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one entry", logger.errors)
	}
}

func TestDispatchWithoutLogger(t *testing.T) {
	client := disconnectedClient()

	// Must not panic with no logger set.
	client.dispatch(func(string, []byte) error {
		panic("no logger")
	}, "weddingcue/test", nil)
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "cue"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "weddingcue-test" {
		t.Errorf("ClientID = %q, want weddingcue-test", opts.ClientID)
	}
	if opts.Username != "cue" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want cue/secret", opts.Username, opts.Password)
	}
	if !opts.CleanSession || !opts.AutoReconnect {
		t.Error("CleanSession and AutoReconnect should both be enabled")
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS should not be configured when disabled")
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %s, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLSConfig.MinVersion should be TLS 1.2")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, Topics{}.SystemStatus(), "weddingcue-test")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if opts.WillTopic != "weddingcue/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will retained=%v qos=%d, want true/1", opts.WillRetained, opts.WillQos)
	}

	var msg StatusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if msg.Status != statusOffline || msg.Reason != "unexpected_disconnect" {
		t.Errorf("will = %+v", msg)
	}
}

func TestStatusPayloadOmitsEmptyReason(t *testing.T) {
	var msg map[string]any
	if err := json.Unmarshal(statusPayload(statusOnline, "c1", ""), &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := msg["reason"]; ok {
		t.Error("reason should be omitted when empty")
	}
	if msg["status"] != "online" || msg["client_id"] != "c1" {
		t.Errorf("payload = %v", msg)
	}
}
