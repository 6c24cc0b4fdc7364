// Package eventbus provides the in-process notification fan-out for Input Dock Core.
//
// The bus carries device lifecycle and focus events between the controller
// manager, the focus tracker, and the delivery layers (WebSocket hub, MQTT
// bridge, journal recorder, metrics recorder).
//
// # Model
//
// Subscriptions are keyed by event name plus an optional surface identifier.
// A subscriber registered with an empty surface receives the event for every
// surface; a subscriber registered with a specific surface receives only
// publications addressed to that surface. Dispatch is synchronous and runs in
// subscription order.
//
// # Re-entrancy
//
// Publish snapshots the matching subscriber list under the bus mutex and
// releases it before invoking any handler, so handlers may freely call
// Subscribe, Unsubscribe, or Publish without deadlocking. A handler added
// during dispatch is not invoked for the publication already in flight.
//
// # Usage
//
//	bus := eventbus.New()
//	sub := bus.Subscribe("device.connected", "", func(surface string, payload any) {
//	    dev := payload.(controller.Device)
//	    // ...
//	})
//	defer sub.Cancel()
//
//	bus.Publish("device.connected", "", dev)
package eventbus
