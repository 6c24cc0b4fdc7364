package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/input-dock-core/internal/controller"
	"github.com/nerrad567/input-dock-core/internal/eventbus"
	"github.com/nerrad567/input-dock-core/internal/focus"
)

// Bridge mirrors internal bus events onto MQTT topics.
//
// Device lifecycle events publish non-retained per-device messages plus a
// retained roster snapshot, so late subscribers see the current device set
// without replaying history.
type Bridge struct {
	client  *Client
	bus     *eventbus.Bus
	manager *controller.Manager
	subs    []eventbus.Subscription
	topics  Topics
}

// deviceMessage is the JSON payload for device lifecycle topics.
type deviceMessage struct {
	DeviceID  string          `json:"device_id"`
	Name      string          `json:"name"`
	Kind      controller.Kind `json:"kind"`
	Slot      int             `json:"slot"`
	Timestamp time.Time       `json:"timestamp"`
}

// focusMessage is the JSON payload for focus transition topics.
type focusMessage struct {
	Surface   string    `json:"surface"`
	Timestamp time.Time `json:"timestamp"`
}

// rosterMessage is the retained device list snapshot.
type rosterMessage struct {
	Devices   []controller.Device `json:"devices"`
	Timestamp time.Time           `json:"timestamp"`
}

// environmentMessage is the inbound payload hosts publish to signal the
// keyboard environment on a surface.
type environmentMessage struct {
	Entered bool `json:"entered"`
}

// NewBridge creates a bridge between the internal bus and MQTT.
// The manager is used to snapshot the roster for the retained list topic.
func NewBridge(client *Client, bus *eventbus.Bus, manager *controller.Manager) *Bridge {
	return &Bridge{client: client, bus: bus, manager: manager}
}

// Start subscribes to bus events and begins mirroring them, and listens for
// inbound environment signals from hosts.
func (b *Bridge) Start() error {
	if err := b.client.Subscribe(b.topics.AllFocusEnvironment(), byte(b.client.cfg.QoS), b.handleEnvironment); err != nil {
		return fmt.Errorf("subscribing to environment topic: %w", err)
	}
	b.mirrorBusEvents()
	return nil
}

// mirrorBusEvents registers the outbound bus subscriptions and publishes the
// initial retained roster.
func (b *Bridge) mirrorBusEvents() {
	b.subs = append(b.subs,
		b.bus.Subscribe(controller.EventDeviceConnected, "", func(_ string, payload any) {
			if dev, ok := payload.(controller.Device); ok {
				b.publishDevice(b.topics.DeviceConnected(dev.ID), dev)
				b.publishRoster()
			}
		}),
		b.bus.Subscribe(controller.EventDeviceDisconnected, "", func(_ string, payload any) {
			if dev, ok := payload.(controller.Device); ok {
				b.publishDevice(b.topics.DeviceDisconnected(dev.ID), dev)
				b.publishRoster()
			}
		}),
		b.bus.Subscribe(focus.EventFocusChanged, "", func(surface string, _ any) {
			b.publishFocus(surface)
		}),
	)
	b.publishRoster()
}

// handleEnvironment translates an inbound environment message into the
// matching bus event. The surface is taken from the topic, so a host only
// needs to publish {"entered": bool} to the surface's environment topic.
func (b *Bridge) handleEnvironment(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[3] != "environment" {
		return fmt.Errorf("unexpected environment topic %q", topic)
	}
	surface := parts[2]
	if surface == "" {
		return fmt.Errorf("empty surface in topic %q", topic)
	}

	var msg environmentMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding environment payload: %w", err)
	}

	if msg.Entered {
		b.bus.Publish(focus.EventEnvironmentEntered, surface, nil)
	} else {
		b.bus.Publish(focus.EventEnvironmentExited, surface, nil)
	}
	return nil
}

// Stop cancels the bus subscriptions. The MQTT client is left open for the
// owner to close.
func (b *Bridge) Stop() {
	for _, sub := range b.subs {
		sub.Cancel()
	}
	b.subs = nil
}

func (b *Bridge) publishDevice(topic string, dev controller.Device) {
	payload, err := json.Marshal(deviceMessage{
		DeviceID:  dev.ID,
		Name:      dev.Name,
		Kind:      dev.Kind,
		Slot:      dev.Slot,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	b.publish(topic, payload, false)
}

func (b *Bridge) publishFocus(surface string) {
	payload, err := json.Marshal(focusMessage{
		Surface:   surface,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	b.publish(b.topics.FocusChanged(surface), payload, false)
}

func (b *Bridge) publishRoster() {
	if b.manager == nil {
		return
	}
	payload, err := json.Marshal(rosterMessage{
		Devices:   b.manager.ConnectedDevices(),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	b.publish(b.topics.DeviceList(), payload, true)
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	if err := b.client.Publish(topic, payload, byte(b.client.cfg.QoS), retained); err != nil {
		if logger := b.client.getLogger(); logger != nil {
			logger.Warn("mqtt bridge publish failed", "topic", topic, "error", err)
		}
	}
}
