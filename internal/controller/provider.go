package controller

// DiscoveryObserver receives reconciliation signals from a discovery
// provider. The Manager implements this interface directly.
//
// Providers must deliver all three callbacks from a single goroutine, or
// otherwise serialise them; the observer methods are not internally
// synchronised against each other.
type DiscoveryObserver interface {
	// HandleConnect reports a newly attached device.
	HandleConnect(raw RawDevice)

	// HandleDisconnect reports a detached device. Providers may report
	// devices the observer has never seen (startup races); observers absorb
	// those silently.
	HandleDisconnect(raw RawDevice)

	// HandleKeyboardPresenceChanged reports hardware keyboard availability.
	HandleKeyboardPresenceChanged(present bool)
}

// DiscoveryProvider is the platform discovery collaborator: it enumerates
// physically attached controllers and streams attach/detach events.
//
// Implementations live outside this package (see bridges/hid); tests supply
// fakes.
type DiscoveryProvider interface {
	// EnumerateConnected returns all devices currently reported as attached.
	EnumerateConnected() []RawDevice

	// KeyboardPresent reports whether a hardware keyboard is currently
	// available.
	KeyboardPresent() bool

	// Subscribe registers the observer for connect/disconnect/keyboard
	// signals. Only one observer is supported at a time; subscribing again
	// replaces the previous observer.
	Subscribe(observer DiscoveryObserver)

	// Unsubscribe stops event delivery. Safe to call when not subscribed.
	Unsubscribe()

	// StartWirelessDiscovery begins scanning for wireless controllers.
	// The completion callback fires when the scan window closes; it may be
	// nil.
	StartWirelessDiscovery(completion func())

	// StopWirelessDiscovery ends a wireless scan. Safe to call when no scan
	// is active.
	StopWirelessDiscovery()
}
