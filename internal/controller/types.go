package controller

import "time"

// Kind distinguishes device capabilities.
type Kind string

// Device kinds.
const (
	// KindGamepad is a standard game controller.
	KindGamepad Kind = "gamepad"

	// KindKeyboard is the keyboard-backed controller. At most one device of
	// this kind is ever present.
	KindKeyboard Kind = "keyboard"
)

// SlotUnassigned marks a device without a logical slot index.
const SlotUnassigned = -1

// Device represents one connected input controller.
//
// The ID is the stable identity supplied by the discovery layer; it is never
// reused across connect/disconnect cycles for physically distinct devices.
// A Device value not present in the manager's connected list is considered
// gone.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Classification
	Kind Kind `json:"kind"`

	// Slot is the logical player/input position, unique among connected
	// devices, or SlotUnassigned.
	Slot int `json:"slot"`

	// ConnectedAt is when the connect event was reconciled.
	ConnectedAt time.Time `json:"connected_at"`
}

// HasSlot reports whether the device holds a logical slot.
func (d Device) HasSlot() bool {
	return d.Slot != SlotUnassigned
}

// RawDevice is the discovery layer's handle for an attached controller.
// Only the ID participates in reconciliation; matching is by identity
// equality, never structural equality.
type RawDevice struct {
	ID   string
	Name string
	Kind Kind
}

// Stats summarises the connected-device list for monitoring surfaces.
type Stats struct {
	Total     int `json:"total"`
	Gamepads  int `json:"gamepads"`
	Keyboards int `json:"keyboards"`
	Slotted   int `json:"slotted"`
}
