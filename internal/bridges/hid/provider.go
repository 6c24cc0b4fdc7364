package hid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sstallion/go-hid"

	"github.com/nerrad567/input-dock-core/internal/controller"
	"github.com/nerrad567/input-dock-core/internal/infrastructure/config"
)

// HID usage constants for device classification.
const (
	usagePageGenericDesktop = 0x01

	usageJoystick = 0x04
	usageGamepad  = 0x05
	usageKeyboard = 0x06
	usageKeypad   = 0x07
)

// wirelessScanWindow is how long the fast cadence runs before a wireless
// scan is considered complete.
const wirelessScanWindow = 30 * time.Second

// Logger is the minimal logging interface used by the provider.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// enumerateFunc abstracts hid.Enumerate so tests can inject device lists.
type enumerateFunc func() ([]*hid.DeviceInfo, error)

// Provider discovers input controllers over HID and feeds the controller
// manager. It implements controller.DiscoveryProvider.
type Provider struct {
	cfg    config.DiscoveryConfig
	logger Logger

	enumerate enumerateFunc

	mu       sync.Mutex
	observer controller.DiscoveryObserver
	known    map[string]controller.RawDevice // keyed by identity
	keyboard bool

	pollInterval  time.Duration
	fastInterval  time.Duration
	wirelessUntil time.Time
	wirelessDone  func()

	cancel context.CancelFunc
	done   chan struct{}
}

// NewProvider creates a HID discovery provider and initialises the hidapi
// library.
func NewProvider(cfg config.DiscoveryConfig) (*Provider, error) {
	if err := hid.Init(); err != nil {
		return nil, fmt.Errorf("initialising hidapi: %w", err)
	}

	p := &Provider{
		cfg:          cfg,
		logger:       noopLogger{},
		known:        make(map[string]controller.RawDevice),
		pollInterval: time.Duration(cfg.PollInterval) * time.Second,
		fastInterval: time.Duration(cfg.WirelessPollInterval) * time.Second,
	}
	if p.pollInterval <= 0 {
		p.pollInterval = 2 * time.Second
	}
	if p.fastInterval <= 0 || p.fastInterval > p.pollInterval {
		p.fastInterval = p.pollInterval
	}
	p.enumerate = p.enumerateHID

	return p, nil
}

// SetLogger sets the logger for the provider.
func (p *Provider) SetLogger(logger Logger) {
	p.logger = logger
}

// Start launches the poll loop. It returns immediately; call Close (or
// cancel the context) to stop.
func (p *Provider) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.pollLoop(ctx)
	p.logger.Info("hid discovery started",
		"poll_interval", p.pollInterval,
		"vendors", len(p.cfg.VendorAllowList),
	)
}

// Close stops the poll loop and releases the hidapi library.
func (p *Provider) Close() error {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	if err := hid.Exit(); err != nil {
		return fmt.Errorf("closing hidapi: %w", err)
	}
	return nil
}

// EnumerateConnected scans now and returns all attached game controllers.
// The scan also seeds the diff baseline so the poll loop does not re-report
// devices the caller has already registered.
func (p *Provider) EnumerateConnected() []controller.RawDevice {
	devices, keyboard := p.scan()

	p.mu.Lock()
	p.known = make(map[string]controller.RawDevice, len(devices))
	for _, d := range devices {
		p.known[d.ID] = d
	}
	p.keyboard = keyboard
	p.mu.Unlock()

	return devices
}

// KeyboardPresent reports whether a hardware keyboard interface was seen in
// the most recent scan.
func (p *Provider) KeyboardPresent() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keyboard
}

// Subscribe registers the observer for discovery events. A second Subscribe
// replaces the previous observer.
func (p *Provider) Subscribe(observer controller.DiscoveryObserver) {
	p.mu.Lock()
	p.observer = observer
	p.mu.Unlock()
}

// Unsubscribe stops event delivery.
func (p *Provider) Unsubscribe() {
	p.mu.Lock()
	p.observer = nil
	p.mu.Unlock()
}

// StartWirelessDiscovery switches to the fast poll cadence for the scan
// window. The completion callback fires when the window closes.
func (p *Provider) StartWirelessDiscovery(completion func()) {
	p.mu.Lock()
	p.wirelessUntil = time.Now().Add(wirelessScanWindow)
	p.wirelessDone = completion
	p.mu.Unlock()
	p.logger.Info("wireless discovery window opened", "window", wirelessScanWindow)
}

// StopWirelessDiscovery closes an active scan window early without firing
// the completion callback.
func (p *Provider) StopWirelessDiscovery() {
	p.mu.Lock()
	p.wirelessUntil = time.Time{}
	p.wirelessDone = nil
	p.mu.Unlock()
}

// pollLoop re-enumerates on a timer and reports diffs to the observer.
func (p *Provider) pollLoop(ctx context.Context) {
	defer close(p.done)

	timer := time.NewTimer(p.currentInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		p.pollOnce()
		timer.Reset(p.currentInterval())
	}
}

// pollOnce runs one scan/diff cycle.
func (p *Provider) pollOnce() {
	devices, keyboard := p.scan()

	current := make(map[string]controller.RawDevice, len(devices))
	for _, d := range devices {
		current[d.ID] = d
	}

	p.mu.Lock()
	observer := p.observer
	previous := p.known
	prevKeyboard := p.keyboard
	p.known = current
	p.keyboard = keyboard

	// Close the wireless window if it has elapsed.
	var wirelessDone func()
	if p.wirelessDone != nil && !p.wirelessUntil.IsZero() && time.Now().After(p.wirelessUntil) {
		wirelessDone = p.wirelessDone
		p.wirelessDone = nil
		p.wirelessUntil = time.Time{}
	}
	p.mu.Unlock()

	if wirelessDone != nil {
		wirelessDone()
	}
	if observer == nil {
		return
	}

	for id, d := range current {
		if _, ok := previous[id]; !ok {
			observer.HandleConnect(d)
		}
	}
	for id, d := range previous {
		if _, ok := current[id]; !ok {
			observer.HandleDisconnect(d)
		}
	}
	if keyboard != prevKeyboard {
		observer.HandleKeyboardPresenceChanged(keyboard)
	}
}

// currentInterval returns the active poll cadence.
func (p *Provider) currentInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.wirelessUntil.IsZero() && time.Now().Before(p.wirelessUntil) {
		return p.fastInterval
	}
	return p.pollInterval
}

// scan enumerates attached HID interfaces and classifies them.
func (p *Provider) scan() (devices []controller.RawDevice, keyboard bool) {
	infos, err := p.enumerate()
	if err != nil {
		p.logger.Warn("hid enumeration failed", "error", err)
		return nil, false
	}

	seen := make(map[string]struct{})
	for _, info := range infos {
		if !p.vendorAllowed(info.VendorID) {
			continue
		}
		if isKeyboardInterface(info) {
			keyboard = true
			continue
		}
		if !isGameController(info) {
			continue
		}

		raw := rawFromInfo(info)
		if _, dup := seen[raw.ID]; dup {
			continue
		}
		seen[raw.ID] = struct{}{}
		devices = append(devices, raw)
	}
	return devices, keyboard
}

// enumerateHID collects all attached HID interfaces via hidapi.
func (p *Provider) enumerateHID() ([]*hid.DeviceInfo, error) {
	var infos []*hid.DeviceInfo
	err := hid.Enumerate(hid.VendorIDAny, hid.ProductIDAny, func(info *hid.DeviceInfo) error {
		// Copy: hidapi reuses the info struct across callbacks.
		cp := *info
		infos = append(infos, &cp)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating hid devices: %w", err)
	}
	return infos, nil
}

// vendorAllowed applies the configured vendor allow-list.
func (p *Provider) vendorAllowed(vid uint16) bool {
	if len(p.cfg.VendorAllowList) == 0 {
		return true
	}
	for _, allowed := range p.cfg.VendorAllowList {
		if vid == allowed {
			return true
		}
	}
	return false
}

// isGameController reports whether the interface is a joystick or gamepad.
func isGameController(info *hid.DeviceInfo) bool {
	if info == nil {
		return false
	}
	return info.UsagePage == usagePageGenericDesktop &&
		(info.Usage == usageJoystick || info.Usage == usageGamepad)
}

// isKeyboardInterface reports whether the interface is a keyboard.
func isKeyboardInterface(info *hid.DeviceInfo) bool {
	if info == nil {
		return false
	}
	return info.UsagePage == usagePageGenericDesktop &&
		(info.Usage == usageKeyboard || info.Usage == usageKeypad)
}

// rawFromInfo converts a HID interface into the manager's raw handle.
func rawFromInfo(info *hid.DeviceInfo) controller.RawDevice {
	id := info.Path
	if info.SerialNbr != "" {
		id += "#" + info.SerialNbr
	}

	name := info.ProductStr
	if name == "" {
		name = fmt.Sprintf("Controller %04x:%04x", info.VendorID, info.ProductID)
	}

	return controller.RawDevice{
		ID:   id,
		Name: name,
		Kind: controller.KindGamepad,
	}
}
