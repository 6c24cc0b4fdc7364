package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/input-dock-core/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client needs. slog.Logger
// satisfies it too.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives inbound messages. Paho invokes handlers on its own
// goroutines; a returned error is logged, it does not nack the message.
type MessageHandler func(topic string, payload []byte) error

// subscription is what we need to re-subscribe after a reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Client is the broker connection shared by the bridge and health checks.
// It layers subscription restoration, panic-safe handler dispatch, and
// online/offline status publishing over paho. Safe for concurrent use.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	subMu         sync.RWMutex
	subscriptions map[string]subscription

	connMu    sync.RWMutex
	connected bool

	callbackMu   sync.RWMutex
	onConnect    func()
	onDisconnect func(err error)

	loggerMu sync.RWMutex
	logger   Logger
}

// Connect dials the broker and returns a ready client. The connection
// carries a last-will message so other services see an ungraceful exit, and
// paho reconnects on its own afterwards; Connect only fails if the first
// attempt does not complete within the timeout.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := clientOptions(cfg)

	c := &Client{
		cfg:           cfg,
		options:       opts,
		subscriptions: make(map[string]subscription),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) { c.onBrokerConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onBrokerDisconnect(err) })

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect callback fires asynchronously; mark connected here so
	// IsConnected holds as soon as Connect returns.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

func (c *Client) onBrokerConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	// Re-establish subscriptions lost with the previous session, then
	// let watchers know we are back.
	c.subMu.RLock()
	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.dispatch(sub.handler))
	}
	c.subMu.RUnlock()

	c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
		statusPayload(c.cfg.Broker.ClientID, "online", ""))

	c.callbackMu.RLock()
	notify := c.onConnect
	c.callbackMu.RUnlock()
	if notify != nil {
		notify()
	}
}

func (c *Client) onBrokerDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	notify := c.onDisconnect
	c.callbackMu.RUnlock()
	if notify != nil {
		notify(err)
	}
}

// Close publishes a graceful offline status and disconnects. Closing an
// unconnected client is a no-op.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
			statusPayload(c.cfg.Broker.ClientID, "offline", "graceful_shutdown"))
		token.WaitTimeout(publishTimeout)
	}

	c.client.Disconnect(disconnectQuiesceMs)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck reports whether the broker connection is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect registers a callback for initial connect and every reconnect.
func (c *Client) SetOnConnect(fn func()) {
	c.callbackMu.Lock()
	c.onConnect = fn
	c.callbackMu.Unlock()
}

// SetOnDisconnect registers a callback for lost connections.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = fn
	c.callbackMu.Unlock()
}

// SetLogger attaches a logger for handler errors and recovered panics.
// Without one those are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// dispatch adapts a MessageHandler to paho's signature. A panicking handler
// must not take down the paho router goroutine.
func (c *Client) dispatch(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
