package mqtt

import (
	"encoding/json"
	"sort"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// subscribeClient is the part of Client a ReportListener needs.
type subscribeClient interface {
	Subscribe(topic string, handler paho.MessageHandler) error
}

// ReportListener follows report topics published by other progsim runs.
// Subscriptions are idempotent across reconnects.
type ReportListener struct {
	mu         sync.RWMutex
	client     subscribeClient
	handler    func(topic string, line ReportLine)
	subscribed map[string]bool // topic -> subscribed
}

// NewReportListener creates a listener that hands every decoded line to
// handler. handler runs on the MQTT client's goroutine.
func NewReportListener(client subscribeClient, handler func(topic string, line ReportLine)) *ReportListener {
	return &ReportListener{
		client:     client,
		handler:    handler,
		subscribed: make(map[string]bool),
	}
}

// Listen subscribes to topic if not already subscribed.
func (l *ReportListener) Listen(topic string) error {
	if topic == "" {
		return nil
	}

	l.mu.Lock()
	if l.subscribed[topic] {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	if err := l.client.Subscribe(topic, l.createHandler()); err != nil {
		return err
	}

	l.mu.Lock()
	l.subscribed[topic] = true
	l.mu.Unlock()

	return nil
}

// createHandler decodes report lines. Payloads that are not report JSON
// are passed through as the line text.
func (l *ReportListener) createHandler() paho.MessageHandler {
	return func(client paho.Client, msg paho.Message) {
		var line ReportLine
		if err := json.Unmarshal(msg.Payload(), &line); err != nil || line.Seq == 0 {
			line = ReportLine{Line: string(msg.Payload())}
		}
		l.handler(msg.Topic(), line)
	}
}

// IsSubscribed returns true if the topic is already subscribed.
func (l *ReportListener) IsSubscribed(topic string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.subscribed[topic]
}

// SubscribedTopics returns the subscribed topics, sorted.
func (l *ReportListener) SubscribedTopics() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	topics := make([]string, 0, len(l.subscribed))
	for topic := range l.subscribed {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// ClearSubscriptions clears the subscription tracking.
// Call this on disconnect to allow re-subscription on reconnect.
func (l *ReportListener) ClearSubscriptions() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribed = make(map[string]bool)
}
