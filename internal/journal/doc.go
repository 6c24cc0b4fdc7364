// Package journal persists the device connect/disconnect history to the
// device_journal table so operators can reconstruct what was attached when.
//
// The Recorder subscribes to the event bus and writes one entry per device
// lifecycle event. Retention is enforced by PruneBefore, which the runtime
// calls on a daily cadence using the configured retention window.
package journal
