package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/openhab/openhab-addons-sub192/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "nobohub-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestBuildClientOptions(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(c *config.MQTTConfig)
		wantBroker string
		wantUser   string
		wantTLS    bool
	}{
		{
			name:       "plain",
			mutate:     func(*config.MQTTConfig) {},
			wantBroker: "tcp://127.0.0.1:1883",
		},
		{
			name: "tls with credentials",
			mutate: func(c *config.MQTTConfig) {
				c.Broker.TLS = true
				c.Broker.Port = 8883
				c.Auth.Username = "hub"
				c.Auth.Password = "pw"
			},
			wantBroker: "ssl://127.0.0.1:8883",
			wantUser:   "hub",
			wantTLS:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			opts := buildClientOptions(cfg)

			if len(opts.Servers) != 1 || opts.Servers[0].String() != tt.wantBroker {
				t.Errorf("Servers = %v, want %s", opts.Servers, tt.wantBroker)
			}
			if opts.ClientID != "nobohub-test" {
				t.Errorf("ClientID = %q, want nobohub-test", opts.ClientID)
			}
			if opts.Username != tt.wantUser {
				t.Errorf("Username = %q, want %q", opts.Username, tt.wantUser)
			}
			if (opts.TLSConfig != nil) != tt.wantTLS {
				t.Errorf("TLSConfig set = %v, want %v", opts.TLSConfig != nil, tt.wantTLS)
			}
			if !opts.AutoReconnect || !opts.CleanSession {
				t.Error("expected auto-reconnect and clean session")
			}
		})
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "nobohub-test")

	if !opts.WillEnabled || opts.WillTopic != "nobohub/system/status" {
		t.Fatalf("will = %v %q, want enabled on nobohub/system/status", opts.WillEnabled, opts.WillTopic)
	}
	if !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will retained=%v qos=%d, want retained qos 1", opts.WillRetained, opts.WillQos)
	}

	var st serviceStatus
	if err := json.Unmarshal(opts.WillPayload, &st); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if st.Status != "offline" || st.Reason != reasonUnexpected || st.ClientID != "nobohub-test" {
		t.Errorf("will payload = %+v", st)
	}
}

func TestStatusPayloads(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantStatus string
		wantReason string
	}{
		{"online", buildOnlinePayload("c1"), "online", ""},
		{"graceful offline", buildOfflinePayload("c1"), "offline", reasonGraceful},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var st serviceStatus
			if err := json.Unmarshal([]byte(tt.payload), &st); err != nil {
				t.Fatalf("payload is not JSON: %v", err)
			}
			if st.Status != tt.wantStatus || st.Reason != tt.wantReason || st.Timestamp == "" {
				t.Errorf("payload = %+v", st)
			}
		})
	}
}

// =============================================================================
// Disconnected client behaviour
// =============================================================================

func newDisconnectedClient() *Client {
	return &Client{cfg: testConfig(), subs: make(map[string]subscription)}
}

func TestIsConnected_InitialState(t *testing.T) {
	if (&Client{}).IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestPublishValidation(t *testing.T) {
	c := newDisconnectedClient()
	big := make([]byte, maxPayloadSize+1)

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"bad qos", "nobohub/x", nil, 3, ErrInvalidQoS},
		{"too large", "nobohub/x", big, 1, ErrPublishFailed},
		{"disconnected", "nobohub/x", []byte("{}"), 1, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := newDisconnectedClient()
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"bad qos", "nobohub/#", 3, handler, ErrInvalidQoS},
		{"nil handler", "nobohub/#", 1, nil, ErrSubscribeFailed},
		{"disconnected", "nobohub/#", 1, handler, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Subscribe(tt.topic, tt.qos, tt.handler); !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
}

func TestBridgeClientSubscribe(t *testing.T) {
	b := BridgeClient{Client: newDisconnectedClient()}

	if err := b.Subscribe("nobohub/#", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil) error = %v, want ErrSubscribeFailed", err)
	}
	if err := b.Subscribe("nobohub/#", 1, func(string, []byte) {}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if b.IsConnected() {
		t.Error("IsConnected() = true for disconnected client")
	}
	b.Disconnect(250)
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := newDisconnectedClient()
	if err := c.HealthCheck(t.Context()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestCloseNil(t *testing.T) {
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

// =============================================================================
// Connected client behaviour against a fake paho client
// =============================================================================

type fakeToken struct{ err error }

func (fakeToken) Wait() bool { return true }
func (fakeToken) WaitTimeout(time.Duration) bool { return true }
func (fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (fakeMessage) Duplicate() bool { return false }
func (fakeMessage) Qos() byte { return 1 }
func (fakeMessage) Retained() bool { return false }
func (m fakeMessage) Topic() string { return m.topic }
func (fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte { return m.payload }
func (fakeMessage) Ack() {}

type publication struct {
	topic    string
	payload  string
	retained bool
}

// fakePaho records what the client sends to the broker.
type fakePaho struct {
	mu           sync.Mutex
	connected    bool
	publishErr   error
	subscribeErr error
	handlers     map[string]pahomqtt.MessageHandler
	published    []publication
	disconnected bool
}

func newFakePaho() *fakePaho {
	return &fakePaho{connected: true, handlers: make(map[string]pahomqtt.MessageHandler)}
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}
func (f *fakePaho) IsConnectionOpen() bool { return f.IsConnected() }
func (f *fakePaho) Connect() pahomqtt.Token { return fakeToken{} }
func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	f.connected = false
	f.disconnected = true
	f.mu.Unlock()
}
func (f *fakePaho) Publish(topic string, _ byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	var body string
	switch p := payload.(type) {
	case string:
		body = p
	case []byte:
		body = string(p)
	}
	f.published = append(f.published, publication{topic: topic, payload: body, retained: retained})
	return fakeToken{err: f.publishErr}
}
func (f *fakePaho) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return fakeToken{err: f.subscribeErr}
	}
	f.handlers[topic] = cb
	return fakeToken{}
}
func (f *fakePaho) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return fakeToken{}
}
func (f *fakePaho) Unsubscribe(...string) pahomqtt.Token { return fakeToken{} }
func (f *fakePaho) AddRoute(string, pahomqtt.MessageHandler) {}
func (f *fakePaho) OptionsReader() pahomqtt.ClientOptionsReader { return pahomqtt.ClientOptionsReader{} }

// deliver hands a message to the handler paho holds for topic.
func (f *fakePaho) deliver(t *testing.T, topic string, payload string) {
	t.Helper()
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		t.Fatalf("no broker subscription for %s", topic)
	}
	h(f, fakeMessage{topic: topic, payload: []byte(payload)})
}

func (f *fakePaho) lastPublication() (publication, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return publication{}, false
	}
	return f.published[len(f.published)-1], true
}

func newConnectedClient(f *fakePaho) *Client {
	c := newDisconnectedClient()
	c.paho = f
	c.connected.Store(true)
	return c
}

// mockLogger implements Logger for testing.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

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

func TestPublishRetainedState(t *testing.T) {
	f := newFakePaho()
	c := newConnectedClient(f)

	topic := "nobohub/state/nobo/zone/1-stue"
	if err := c.Publish(topic, []byte(`{"name":"Stue"}`), 1, true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	got, _ := f.lastPublication()
	want := publication{topic: topic, payload: `{"name":"Stue"}`, retained: true}
	if got != want {
		t.Errorf("published %+v, want %+v", got, want)
	}

	f.publishErr = errors.New("not authorised")
	if err := c.Publish(topic, []byte("{}"), 1, true); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribeRestoredAfterReconnect(t *testing.T) {
	f := newFakePaho()
	c := newConnectedClient(f)

	var received []string
	handler := func(topic string, _ []byte) error {
		received = append(received, topic)
		return nil
	}
	for _, topic := range []string{"nobohub/command/nobo/#", "nobohub/request/nobo/#"} {
		if err := c.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if n := c.SubscriptionCount(); n != 2 {
		t.Fatalf("SubscriptionCount() = %d, want 2", n)
	}

	reconnected := false
	c.SetOnConnect(func() { reconnected = true })

	// A clean session starts with no broker-side subscriptions.
	f.handlers = make(map[string]pahomqtt.MessageHandler)
	c.handleConnect()

	f.deliver(t, "nobohub/command/nobo/#", "{}")
	f.deliver(t, "nobohub/request/nobo/#", "{}")
	if len(received) != 2 {
		t.Errorf("received = %v, want both topics", received)
	}
	if !reconnected {
		t.Error("OnConnect callback not called")
	}

	status, ok := f.lastPublication()
	if !ok || status.topic != SystemStatusTopic || !status.retained {
		t.Fatalf("last publication = %+v, want retained status", status)
	}
	var st serviceStatus
	if err := json.Unmarshal([]byte(status.payload), &st); err != nil || st.Status != "online" {
		t.Errorf("status payload = %s", status.payload)
	}
}

func TestSubscribeFailureNotTracked(t *testing.T) {
	f := newFakePaho()
	f.subscribeErr = errors.New("topic filter denied")
	c := newConnectedClient(f)

	err := c.Subscribe("nobohub/state/nobo/#", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() error = %v, want ErrSubscribeFailed", err)
	}
	if n := c.SubscriptionCount(); n != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", n)
	}
}

func TestResubscribeFailureLogged(t *testing.T) {
	f := newFakePaho()
	c := newConnectedClient(f)
	logger := &mockLogger{}
	c.SetLogger(logger)

	if err := c.Subscribe("nobohub/command/nobo/#", 1, func(string, []byte) error { return nil }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	f.subscribeErr = errors.New("broker busy")
	c.handleConnect()

	if len(logger.warns) != 1 || logger.warns[0] != "MQTT resubscribe failed" {
		t.Errorf("warns = %v", logger.warns)
	}
	if n := c.SubscriptionCount(); n != 1 {
		t.Errorf("SubscriptionCount() = %d, want the subscription kept for the next reconnect", n)
	}
}

func TestHandlerFailuresLogged(t *testing.T) {
	f := newFakePaho()
	c := newConnectedClient(f)
	logger := &mockLogger{}
	c.SetLogger(logger)

	err := c.Subscribe("nobohub/command/nobo/#", 1, func(_ string, p []byte) error {
		if string(p) == "panic" {
			panic("bad command")
		}
		return errors.New("unknown command")
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	f.deliver(t, "nobohub/command/nobo/#", "panic")
	f.deliver(t, "nobohub/command/nobo/#", "{}")

	if len(logger.errors) != 1 || logger.errors[0] != "MQTT handler panic recovered" {
		t.Errorf("errors = %v", logger.errors)
	}
	if len(logger.warns) != 1 || logger.warns[0] != "MQTT handler returned error" {
		t.Errorf("warns = %v", logger.warns)
	}
}

func TestConnectionLost(t *testing.T) {
	f := newFakePaho()
	c := newConnectedClient(f)

	var lost error
	c.SetOnDisconnect(func(err error) { lost = err })

	cause := errors.New("EOF")
	f.connected = false
	c.handleConnectionLost(cause)

	if c.IsConnected() {
		t.Error("IsConnected() = true after connection lost")
	}
	if !errors.Is(lost, cause) {
		t.Errorf("OnDisconnect error = %v, want %v", lost, cause)
	}
	if err := c.HealthCheck(t.Context()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestClosePublishesGracefulOffline(t *testing.T) {
	f := newFakePaho()
	c := newConnectedClient(f)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	status, ok := f.lastPublication()
	if !ok || status.topic != SystemStatusTopic {
		t.Fatalf("last publication = %+v, want status", status)
	}
	var st serviceStatus
	if err := json.Unmarshal([]byte(status.payload), &st); err != nil {
		t.Fatalf("status payload is not JSON: %v", err)
	}
	if st.Status != "offline" || st.Reason != reasonGraceful {
		t.Errorf("status = %+v", st)
	}
	if !f.disconnected || c.IsConnected() {
		t.Error("client still connected after Close")
	}
}
