// Package hid implements the discovery provider over USB/Bluetooth HID.
//
// The provider periodically enumerates attached HID interfaces through the
// hidapi bindings, classifies game controllers and keyboards by usage page,
// and diffs successive scans to synthesise connect/disconnect and
// keyboard-presence events for the controller manager.
//
// # Lifecycle
//
//	provider, err := hid.NewProvider(cfg.Discovery)
//	if err != nil { ... }
//	provider.Start(ctx)
//	defer provider.Close()
//
// Events are delivered from the single poll goroutine, satisfying the
// manager's serialised-caller contract as long as the host does not inject
// events from elsewhere concurrently.
//
// # Identity
//
// A device's identity is its HID path combined with its serial number when
// one is reported. Paths are stable for the duration of an attachment and
// are not reused while the interface remains attached, which is all the
// reconciliation layer requires.
//
// # Wireless discovery
//
// HID has no explicit pairing scan; StartWirelessDiscovery approximates one
// by switching to the faster poll cadence for a fixed window so
// newly-paired controllers surface quickly.
package hid
