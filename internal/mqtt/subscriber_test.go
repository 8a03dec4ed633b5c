package mqtt

import (
	"errors"
	"sync"
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// MockMQTTClient is a mock MQTT client for testing publishing and
// subscriptions without a broker.
type MockMQTTClient struct {
	mu            sync.Mutex
	subscriptions map[string]paho.MessageHandler
	published     []PublishedMessage
	connected     bool
	publishErr    error
}

type PublishedMessage struct {
	Topic    string
	Payload  []byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		subscriptions: make(map[string]paho.MessageHandler),
		connected:     true,
	}
}

func (m *MockMQTTClient) Subscribe(topic string, handler paho.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[topic] = handler
	return nil
}

func (m *MockMQTTClient) Publish(topic string, payload []byte) error {
	return m.publish(topic, payload, false)
}

func (m *MockMQTTClient) PublishRetained(topic string, payload []byte) error {
	return m.publish(topic, payload, true)
}

func (m *MockMQTTClient) publish(topic string, payload []byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, PublishedMessage{Topic: topic, Payload: payload, Retained: retained})
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) GetPublished() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedMessage(nil), m.published...)
}

func (m *MockMQTTClient) GetSubscriptions() map[string]paho.MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[string]paho.MessageHandler)
	for k, v := range m.subscriptions {
		result[k] = v
	}
	return result
}

func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	handler, ok := m.subscriptions[topic]
	m.mu.Unlock()
	if ok {
		handler(nil, &mockMessage{topic: topic, payload: payload})
	}
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

type failingSubscriber struct{}

func (failingSubscriber) Subscribe(string, paho.MessageHandler) error {
	return errors.New("not connected")
}

func TestReportListener_Listen(t *testing.T) {
	mock := NewMockMQTTClient()
	listener := NewReportListener(mock, func(string, ReportLine) {})

	if err := listener.Listen("progsim/report"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := mock.GetSubscriptions()["progsim/report"]; !ok {
		t.Error("expected subscription to report topic")
	}
	if !listener.IsSubscribed("progsim/report") {
		t.Error("expected listener to track subscription")
	}
}

func TestReportListener_ListenIdempotent(t *testing.T) {
	mock := NewMockMQTTClient()
	listener := NewReportListener(mock, func(string, ReportLine) {})

	_ = listener.Listen("progsim/report")
	_ = listener.Listen("progsim/report")
	_ = listener.Listen("")

	if topics := listener.SubscribedTopics(); len(topics) != 1 {
		t.Errorf("expected 1 subscribed topic, got %v", topics)
	}
}

func TestReportListener_ListenError(t *testing.T) {
	listener := NewReportListener(failingSubscriber{}, func(string, ReportLine) {})
	if err := listener.Listen("progsim/report"); err == nil {
		t.Fatal("expected subscribe error")
	}
	if listener.IsSubscribed("progsim/report") {
		t.Error("failed subscriptions must not be tracked")
	}
}

func TestReportListener_ClearSubscriptions(t *testing.T) {
	mock := NewMockMQTTClient()
	listener := NewReportListener(mock, func(string, ReportLine) {})

	_ = listener.Listen("b/report")
	_ = listener.Listen("a/report")
	if topics := listener.SubscribedTopics(); len(topics) != 2 || topics[0] != "a/report" {
		t.Errorf("expected sorted topics, got %v", topics)
	}

	listener.ClearSubscriptions()
	if len(listener.SubscribedTopics()) != 0 {
		t.Error("expected no subscriptions after clear")
	}
}

func TestReportListener_PayloadParsing(t *testing.T) {
	testCases := []struct {
		name     string
		payload  []byte
		wantSeq  int
		wantLine string
	}{
		{"report line", []byte(`{"run":"r1","seq":3,"ts":"2026-01-01T00:00:00Z","line":"forge: +sword"}`), 3, "forge: +sword"},
		{"other JSON", []byte(`{"signal": "door_open"}`), 0, `{"signal": "door_open"}`},
		{"plain text", []byte(`hello`), 0, "hello"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mock := NewMockMQTTClient()
			var got []ReportLine
			listener := NewReportListener(mock, func(topic string, line ReportLine) {
				if topic != "progsim/report" {
					t.Errorf("unexpected topic %q", topic)
				}
				got = append(got, line)
			})
			_ = listener.Listen("progsim/report")

			mock.SimulateMessage("progsim/report", tc.payload)

			if len(got) != 1 {
				t.Fatalf("expected 1 line, got %d", len(got))
			}
			if got[0].Seq != tc.wantSeq || got[0].Line != tc.wantLine {
				t.Errorf("got %+v, want seq %d line %q", got[0], tc.wantSeq, tc.wantLine)
			}
		})
	}
}
