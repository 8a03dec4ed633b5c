package mqtt

import (
	"log/slog"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const defaultBroker = "tcp://localhost:1883"

// Options configures a Client.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	// Timeout bounds connect, publish and subscribe waits. Defaults to 10s.
	Timeout time.Duration
}

// Client wraps the Paho MQTT client for report publishing.
type Client struct {
	client  paho.Client
	broker  string
	qos     byte
	timeout time.Duration
	mu      sync.Mutex
}

// BrokerURL returns the configured broker, then MQTT_URL from the
// environment, then the local default.
func BrokerURL(configured string) string {
	if configured != "" {
		return configured
	}
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	return defaultBroker
}

// NewClient creates a new MQTT client but does not connect.
func NewClient(opts Options) *Client {
	broker := BrokerURL(opts.Broker)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	po := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}

	return &Client{
		client:  paho.NewClient(po),
		broker:  broker,
		qos:     opts.QoS,
		timeout: timeout,
	}
}

// Broker returns the broker URL the client was built with.
func (c *Client) Broker() string {
	return c.broker
}

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(c.timeout) {
		return &ConnectTimeoutError{Broker: c.broker}
	}
	return token.Error()
}

// Publish sends payload to topic at the client's QoS and waits for the
// broker to acknowledge it.
func (c *Client) Publish(topic string, payload []byte) error {
	return c.publish(topic, false, payload)
}

// PublishRetained is Publish with the retained flag set, so late
// subscribers receive the last value.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.publish(topic, true, payload)
}

func (c *Client) publish(topic string, retained bool, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Publish(topic, c.qos, retained, payload)
	if !token.WaitTimeout(c.timeout) {
		return &PublishTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Subscribe subscribes to a topic with the given handler.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Subscribe(topic, c.qos, handler)
	if !token.WaitTimeout(c.timeout) {
		return &SubscribeTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct {
	Broker string
}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout: " + e.Broker
}

// PublishTimeoutError indicates a publish was not acknowledged in time.
type PublishTimeoutError struct {
	Topic string
}

func (e *PublishTimeoutError) Error() string {
	return "mqtt publish timeout: " + e.Topic
}

// SubscribeTimeoutError indicates subscription timed out.
type SubscribeTimeoutError struct {
	Topic string
}

func (e *SubscribeTimeoutError) Error() string {
	return "mqtt subscribe timeout: " + e.Topic
}

// Start connects, logging instead of failing so a run can continue
// without a broker. Returns true if connected.
func (c *Client) Start(logger *slog.Logger) bool {
	if err := c.Connect(); err != nil {
		logger.Warn("mqtt connect failed, reports stay local", "broker", c.broker, "error", err)
		return false
	}
	logger.Info("mqtt connected", "broker", c.broker)
	return true
}
