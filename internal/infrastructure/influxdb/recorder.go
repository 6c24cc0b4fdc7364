package influxdb

import (
	"github.com/nerrad567/input-dock-core/internal/controller"
	"github.com/nerrad567/input-dock-core/internal/eventbus"
	"github.com/nerrad567/input-dock-core/internal/focus"
)

// Recorder mirrors internal bus events into InfluxDB measurements.
type Recorder struct {
	client  *Client
	bus     *eventbus.Bus
	manager *controller.Manager
	subs    []eventbus.Subscription
}

// NewRecorder creates a recorder writing through the given client.
// The manager supplies the connected-device count for device events.
func NewRecorder(client *Client, bus *eventbus.Bus, manager *controller.Manager) *Recorder {
	return &Recorder{client: client, bus: bus, manager: manager}
}

// Start subscribes to device and focus events on the bus.
func (r *Recorder) Start() {
	r.subs = append(r.subs,
		r.bus.Subscribe(controller.EventDeviceConnected, "", func(_ string, payload any) {
			r.recordDevice("connect", payload)
		}),
		r.bus.Subscribe(controller.EventDeviceDisconnected, "", func(_ string, payload any) {
			r.recordDevice("disconnect", payload)
		}),
		r.bus.Subscribe(focus.EventFocusChanged, "", func(surface string, _ any) {
			r.client.WriteFocusEvent(surface)
		}),
	)
}

// Stop cancels the bus subscriptions.
func (r *Recorder) Stop() {
	for _, sub := range r.subs {
		sub.Cancel()
	}
	r.subs = nil
}

func (r *Recorder) recordDevice(action string, payload any) {
	dev, ok := payload.(controller.Device)
	if !ok {
		return
	}

	count := 0
	if r.manager != nil {
		count = r.manager.DeviceCount()
	}
	r.client.WriteDeviceEvent(action, string(dev.Kind), dev.Slot, count)
}
