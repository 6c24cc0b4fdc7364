package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Input Dock MQTT scheme.
//
// All topics use the flat scheme: inputdock/{category}/{id}/{event}
const (
	// TopicPrefix is the base for all Input Dock topics.
	TopicPrefix = "inputdock"

	// TopicPrefixDevice is the base for device lifecycle topics.
	TopicPrefixDevice = "inputdock/device"

	// TopicPrefixFocus is the base for keyboard focus topics.
	TopicPrefixFocus = "inputdock/focus"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "inputdock/system"
)

// Topics provides builders for Input Dock MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.DeviceConnected("hidraw0-SN1")
//	// Returns: "inputdock/device/hidraw0-SN1/connected"
type Topics struct{}

// =============================================================================
// Device Topics
// =============================================================================

// DeviceConnected returns the topic for device connect events.
//
// Example: inputdock/device/hidraw0-SN1/connected
func (Topics) DeviceConnected(deviceID string) string {
	return fmt.Sprintf("%s/%s/connected", TopicPrefixDevice, SanitizeSegment(deviceID))
}

// DeviceDisconnected returns the topic for device disconnect events.
//
// Example: inputdock/device/hidraw0-SN1/disconnected
func (Topics) DeviceDisconnected(deviceID string) string {
	return fmt.Sprintf("%s/%s/disconnected", TopicPrefixDevice, SanitizeSegment(deviceID))
}

// DeviceList returns the retained topic carrying the current device roster.
//
// Example: inputdock/device/list
func (Topics) DeviceList() string {
	return fmt.Sprintf("%s/list", TopicPrefixDevice)
}

// =============================================================================
// Focus Topics
// =============================================================================

// FocusChanged returns the topic for focus transitions on a surface.
//
// Example: inputdock/focus/surface-main/changed
func (Topics) FocusChanged(surface string) string {
	return fmt.Sprintf("%s/%s/changed", TopicPrefixFocus, SanitizeSegment(surface))
}

// FocusEnvironment returns the inbound topic carrying raw environment
// signals for a surface. Hosts publish {"entered": true|false} here; the
// bridge feeds the signal to the focus tracker.
//
// Example: inputdock/focus/surface-main/environment
func (Topics) FocusEnvironment(surface string) string {
	return fmt.Sprintf("%s/%s/environment", TopicPrefixFocus, SanitizeSegment(surface))
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: inputdock/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemShutdown returns the shutdown signal topic.
//
// Example: inputdock/system/shutdown
func (Topics) SystemShutdown() string {
	return fmt.Sprintf("%s/shutdown", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllDeviceEvents returns a pattern matching every device lifecycle event.
//
// Pattern: inputdock/device/+/+
func (Topics) AllDeviceEvents() string {
	return fmt.Sprintf("%s/+/+", TopicPrefixDevice)
}

// AllFocusChanges returns a pattern matching focus transitions on any surface.
//
// Pattern: inputdock/focus/+/changed
func (Topics) AllFocusChanges() string {
	return fmt.Sprintf("%s/+/changed", TopicPrefixFocus)
}

// AllFocusEnvironment returns a pattern matching environment signals on any
// surface.
//
// Pattern: inputdock/focus/+/environment
func (Topics) AllFocusEnvironment() string {
	return fmt.Sprintf("%s/+/environment", TopicPrefixFocus)
}

// AllTopics returns a pattern matching all Input Dock topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: inputdock/#
func (Topics) AllTopics() string {
	return "inputdock/#"
}

// SanitizeSegment makes an identifier safe for use as a single topic level.
// Device IDs carry HID device paths, which contain characters MQTT reserves
// for topic structure ('/', '+', '#').
func SanitizeSegment(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', ' ':
			return '-'
		default:
			return r
		}
	}, strings.Trim(id, "/"))
}
