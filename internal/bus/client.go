package bus

import (
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/qubit-star/hsb-core/internal/infrastructure/config"
)

const (
	// connectTimeout is the maximum time to wait for the initial connection.
	connectTimeout = 10 * time.Second

	// publishTimeout is the maximum time to wait for publish acknowledgment.
	publishTimeout = 5 * time.Second

	// disconnectQuiesce is the time in milliseconds to let pending
	// operations drain on disconnect.
	disconnectQuiesce = 1000

	keepAlive = 60 * time.Second
)

// Domain errors for bus operations. Check with errors.Is.
var (
	ErrNotConnected     = errors.New("bus: client not connected")
	ErrConnectionFailed = errors.New("bus: connection failed")
	ErrPublishFailed    = errors.New("bus: publish failed")
)

// Client wraps paho.mqtt.golang for the hub's outbound event stream.
// Reconnection is automatic with exponential backoff; the broker marks
// the hub offline through a Last Will message if the link drops.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	logger Logger
}

// Logger defines the logging interface used by the bus layer.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Connect establishes a connection to the MQTT broker and announces
// the hub online on the system status topic.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{cfg: cfg, logger: noopLogger{}}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	opts.SetWill(c.statusTopic(), statusPayload(cfg.ClientID, "offline"), 1, true)
	opts.SetOnConnectHandler(func(pc pahomqtt.Client) {
		pc.Publish(c.statusTopic(), byte(cfg.QoS), true, statusPayload(cfg.ClientID, "online"))
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return c, nil
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// Publish sends a payload to a topic with the configured QoS. The
// acknowledgment wait happens off the caller's goroutine; failures are
// logged, not returned, since event fanout must never block the hub.
func (c *Client) Publish(topic string, payload []byte) {
	token := c.client.Publish(topic, byte(c.cfg.QoS), false, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			c.logger.Warn("mqtt publish timed out", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			c.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
		}
	}()
}

// Close announces the hub offline and disconnects gracefully.
func (c *Client) Close() {
	if c.client == nil {
		return
	}
	if c.client.IsConnected() {
		token := c.client.Publish(c.statusTopic(), byte(c.cfg.QoS), true,
			statusPayload(c.cfg.ClientID, "offline"))
		token.WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(disconnectQuiesce)
}

// IsConnected reports the current connection state.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

func (c *Client) statusTopic() string {
	return c.cfg.TopicPrefix + "/system/status"
}

func statusPayload(clientID, status string) string {
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`,
		status, clientID, time.Now().UTC().Format(time.RFC3339))
}
