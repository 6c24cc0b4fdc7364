package controller

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/input-dock-core/internal/eventbus"
	"github.com/nerrad567/input-dock-core/internal/receiver"
)

// Event names published on the bus. Payload is the affected Device.
const (
	EventDeviceConnected    = "device.connected"
	EventDeviceDisconnected = "device.disconnected"
)

// Logger defines the logging interface used by the Manager.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Receiver is a weakly-held listener for device lifecycle broadcasts.
//
// The Manager never owns a Receiver: registration does not extend its
// lifetime, and its registry entry disappears once the last external
// reference is released. Nil callbacks are skipped.
type Receiver struct {
	OnConnected    func(Device)
	OnDisconnected func(Device)
}

// Manager owns the authoritative connected-device list.
//
// Create with NewManager, wire a DiscoveryProvider, then call
// StartMonitoring. See the package documentation for the concurrency
// contract.
type Manager struct {
	provider DiscoveryProvider
	bus      *eventbus.Bus
	logger   Logger

	// receivers holds lifecycle listeners without owning them.
	receivers *receiver.Registry[Receiver]

	mu         sync.RWMutex
	devices    []Device
	autoAssign bool
	monitoring bool

	// clock is swappable for tests.
	clock func() time.Time
}

// NewManager creates a device manager.
//
// The provider supplies discovery signals; the bus carries lifecycle events
// to the delivery layers. Automatic slot assignment starts enabled.
func NewManager(provider DiscoveryProvider, bus *eventbus.Bus) *Manager {
	return &Manager{
		provider:   provider,
		bus:        bus,
		logger:     noopLogger{},
		receivers:  receiver.New[Receiver](),
		autoAssign: true,
		clock:      time.Now,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetAutoAssignSlots controls whether new devices receive a slot index on
// connect. When disabled, devices connect with SlotUnassigned until the
// caller assigns one with SetSlot.
func (m *Manager) SetAutoAssignSlots(enabled bool) {
	m.mu.Lock()
	m.autoAssign = enabled
	m.mu.Unlock()
}

// AddReceiver registers a lifecycle listener. Idempotent for an already
// registered receiver. The manager holds it weakly.
func (m *Manager) AddReceiver(r *Receiver) {
	m.receivers.Add(r)
}

// RemoveReceiver deregisters a lifecycle listener. A no-op for receivers
// never registered.
func (m *Manager) RemoveReceiver(r *Receiver) {
	m.receivers.Remove(r)
}

// StartMonitoring enumerates currently attached devices, registers each, and
// subscribes to the discovery provider's signals. If a keyboard is already
// present, a connect is synthesised for it.
//
// Calling while already monitoring is absorbed as a no-op.
func (m *Manager) StartMonitoring() {
	m.mu.Lock()
	if m.monitoring {
		m.mu.Unlock()
		m.logger.Warn("start monitoring ignored: already monitoring")
		return
	}
	m.monitoring = true
	m.mu.Unlock()

	for _, raw := range m.provider.EnumerateConnected() {
		m.HandleConnect(raw)
	}

	m.provider.Subscribe(m)

	if m.provider.KeyboardPresent() {
		m.HandleKeyboardPresenceChanged(true)
	}

	m.logger.Info("device monitoring started", "devices", m.DeviceCount())
}

// StopMonitoring unsubscribes from discovery signals and clears the
// connected-device list. No disconnect events are published for the clear.
func (m *Manager) StopMonitoring() {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}
	m.monitoring = false
	m.devices = nil
	m.mu.Unlock()

	m.provider.Unsubscribe()
	m.logger.Info("device monitoring stopped")
}

// HandleConnect reconciles a connect signal: wraps the raw handle into a
// Device, assigns a slot if automatic assignment is enabled, appends it to
// the connected list, and publishes a connected event.
//
// A connect for an identity already present is a no-op, as is a second
// keyboard-backed controller.
func (m *Manager) HandleConnect(raw RawDevice) {
	m.mu.Lock()
	if m.findLocked(raw.ID) >= 0 {
		m.mu.Unlock()
		m.logger.Debug("duplicate connect ignored", "device_id", raw.ID)
		return
	}
	if raw.Kind == KindKeyboard && m.keyboardLocked() >= 0 {
		m.mu.Unlock()
		m.logger.Debug("second keyboard connect ignored", "device_id", raw.ID)
		return
	}

	dev := Device{
		ID:          raw.ID,
		Name:        raw.Name,
		Kind:        raw.Kind,
		Slot:        SlotUnassigned,
		ConnectedAt: m.clock(),
	}
	if m.autoAssign {
		dev.Slot = nextSlot(m.devices)
	}
	m.devices = append(m.devices, dev)
	m.mu.Unlock()

	m.logger.Info("device connected",
		"device_id", dev.ID,
		"kind", dev.Kind,
		"slot", dev.Slot,
	)
	m.publishConnected(dev)
}

// HandleDisconnect reconciles a disconnect signal by identity. A disconnect
// for a device never seen is silently ignored: discovery layers may report
// detaches for devices that predate monitoring.
func (m *Manager) HandleDisconnect(raw RawDevice) {
	m.mu.Lock()
	idx := m.findLocked(raw.ID)
	if idx < 0 {
		m.mu.Unlock()
		m.logger.Debug("disconnect for unknown device ignored", "device_id", raw.ID)
		return
	}
	dev := m.devices[idx]
	m.devices = append(m.devices[:idx], m.devices[idx+1:]...)
	m.mu.Unlock()

	m.logger.Info("device disconnected",
		"device_id", dev.ID,
		"kind", dev.Kind,
		"slot", dev.Slot,
	)
	m.publishDisconnected(dev)
}

// HandleKeyboardPresenceChanged reconciles hardware keyboard availability
// against the single keyboard-backed controller: a rising edge synthesises a
// connect, a falling edge a disconnect, and redundant signals are no-ops.
func (m *Manager) HandleKeyboardPresenceChanged(present bool) {
	m.mu.RLock()
	idx := m.keyboardLocked()
	var existing Device
	if idx >= 0 {
		existing = m.devices[idx]
	}
	m.mu.RUnlock()

	switch {
	case present && idx < 0:
		m.HandleConnect(RawDevice{
			ID:   "kbd-" + uuid.NewString()[:8],
			Name: "Keyboard Controller",
			Kind: KindKeyboard,
		})
	case !present && idx >= 0:
		m.HandleDisconnect(RawDevice{ID: existing.ID})
	}
}

// StartWirelessDiscovery passes through to the discovery provider.
func (m *Manager) StartWirelessDiscovery(completion func()) {
	m.provider.StartWirelessDiscovery(completion)
}

// StopWirelessDiscovery passes through to the discovery provider.
func (m *Manager) StopWirelessDiscovery() {
	m.provider.StopWirelessDiscovery()
}

// SetSlot assigns a slot index to a connected device, for hosts running with
// automatic assignment disabled. Unknown identities are absorbed as no-ops.
func (m *Manager) SetSlot(id string, slot int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.findLocked(id)
	if idx < 0 {
		return
	}
	m.devices[idx].Slot = slot
}

// ConnectedDevices returns a copy of the currently connected devices in
// insertion order.
func (m *Manager) ConnectedDevices() []Device {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Device, len(m.devices))
	copy(out, m.devices)
	return out
}

// GetDevice returns the connected device with the given identity.
func (m *Manager) GetDevice(id string) (Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.findLocked(id)
	if idx < 0 {
		return Device{}, false
	}
	return m.devices[idx], true
}

// DeviceCount returns the number of currently connected devices.
func (m *Manager) DeviceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices)
}

// GetStats summarises the connected list for monitoring surfaces.
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s Stats
	s.Total = len(m.devices)
	for _, d := range m.devices {
		switch d.Kind {
		case KindKeyboard:
			s.Keyboards++
		case KindGamepad:
			s.Gamepads++
		}
		if d.HasSlot() {
			s.Slotted++
		}
	}
	return s
}

// publishConnected fans a connect out to the bus and the weak receivers.
// Receiver callbacks run after the registry lock is released and may
// re-enter AddReceiver/RemoveReceiver.
func (m *Manager) publishConnected(dev Device) {
	if m.bus != nil {
		m.bus.Publish(EventDeviceConnected, "", dev)
	}
	for _, r := range m.receivers.Snapshot() {
		if r.OnConnected != nil {
			r.OnConnected(dev)
		}
	}
}

// publishDisconnected fans a disconnect out to the bus and the weak receivers.
func (m *Manager) publishDisconnected(dev Device) {
	if m.bus != nil {
		m.bus.Publish(EventDeviceDisconnected, "", dev)
	}
	for _, r := range m.receivers.Snapshot() {
		if r.OnDisconnected != nil {
			r.OnDisconnected(dev)
		}
	}
}

// findLocked returns the index of the device with the given identity, or -1.
// Caller must hold m.mu.
func (m *Manager) findLocked(id string) int {
	for i, d := range m.devices {
		if d.ID == id {
			return i
		}
	}
	return -1
}

// keyboardLocked returns the index of the keyboard-backed controller, or -1.
// Caller must hold m.mu.
func (m *Manager) keyboardLocked() int {
	for i, d := range m.devices {
		if d.Kind == KindKeyboard {
			return i
		}
	}
	return -1
}
