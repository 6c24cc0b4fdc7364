// Package focus converts noisy keyboard-focus environment signals into clean
// focus-change notifications.
//
// The low-level "entered/left focus-deferring environment" signals fire
// transiently while the user switches applications, even when true keyboard
// focus is not changing. The Tracker runs a per-surface two-state debounce:
// an "entered" signal arms a confirmation timer instead of publishing
// immediately, and a "left" signal arriving inside the window cancels the
// timer silently, swallowing the false positive. Only a confirmed transition
// publishes the focus.changed event.
//
// # State machine (per surface)
//
//	            entered (foreground-active)
//	  Idle ───────────────────────────────▶ PendingConfirmation
//	   ▲  ▲                                       │        │
//	   │  │         left (cancel, no event)       │        │ timer expiry
//	   │  └───────────────────────────────────────┘        │ (publish if
//	   │                                                   │  still focused)
//	   └───────────────────────────────────────────────────┘
//
//	  Idle ── left ──▶ publish focus.changed immediately
//
// A "left" signal is processed unconditionally when the surface operates in
// a multi-window/stage mode, otherwise only while foreground-active.
//
// # Concurrency
//
// Signal handling is designed for the single caller context that delivers
// the surface's bus events. Timer expiry runs on the timer goroutine; a
// generation counter checked under the tracker mutex makes cancellation
// race-free (an expired-but-cancelled timer never fires the event).
//
// # Escape hatch
//
// HasFocus returns true when the underlying environment signal is
// unsupported. Failing closed would wedge the host's input delivery, so the
// tracker fails open and treats unknown as focused.
package focus
