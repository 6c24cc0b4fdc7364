// Package controller manages the set of active input-control devices for
// Input Dock Core.
//
// The Manager owns the authoritative list of currently connected devices. It
// reconciles connect/disconnect signals from a discovery provider, assigns
// logical slot indices (the player positions a host application binds input
// to), enforces the single keyboard-backed controller invariant, and fans
// lifecycle notifications out on the event bus and to weakly-held receivers.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────────┐
//	│                           Manager                               │
//	│                                                                 │
//	│  ┌────────────────┐   ┌────────────────┐   ┌────────────────┐  │
//	│  │  Reconciler    │   │ Slot assigner  │   │   Fan-out      │  │
//	│  │ (manager.go)   │──▶│  (slots.go)    │   │ (receivers +   │  │
//	│  │                │   │                │   │  event bus)    │  │
//	│  │ • connect      │   │ • gap-filling  │   │ • device.Connected
//	│  │ • disconnect   │   │ • adjacency    │   │ • device.disconnected
//	│  │ • keyboard     │   │   rule         │   │                │  │
//	│  └────────────────┘   └────────────────┘   └────────────────┘  │
//	│          ▲                                                      │
//	└──────────│──────────────────────────────────────────────────────┘
//	           │
//	┌──────────────────────┐
//	│  DiscoveryProvider   │  (bridges/hid, or a host-supplied fake)
//	│  • enumeration       │
//	│  • connect events    │
//	│  • keyboard presence │
//	└──────────────────────┘
//
// # Concurrency
//
// Event entry points (StartMonitoring, StopMonitoring, HandleConnect,
// HandleDisconnect, HandleKeyboardPresenceChanged) are designed for a single
// serialised caller context; hosts delivering discovery events from multiple
// goroutines must serialise them. Read-side queries (ConnectedDevices,
// DeviceCount, Stats) are independently safe for concurrent use.
//
// # Error policy
//
// All inputs are treated permissively: duplicate connects, unknown
// disconnects, and redundant keyboard presence signals are absorbed as
// no-ops rather than surfaced as errors.
package controller
