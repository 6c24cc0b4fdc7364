package focus

import (
	"sync"
	"time"

	"github.com/nerrad567/input-dock-core/internal/eventbus"
)

// Bus event names. The focus.changed payload is the surface identifier.
const (
	// EventFocusChanged is published when a debounced focus transition is
	// confirmed for a surface.
	EventFocusChanged = "focus.changed"

	// EventEnvironmentEntered is the low-level "entered focus-deferring
	// environment" signal consumed by the tracker.
	EventEnvironmentEntered = "focus.environment.entered"

	// EventEnvironmentExited is the low-level "left focus-deferring
	// environment" signal consumed by the tracker.
	EventEnvironmentExited = "focus.environment.exited"
)

// DefaultDebounce is the confirmation window applied to "entered" signals.
// Chosen empirically: app-switch flicker resolves well inside half a second.
const DefaultDebounce = 500 * time.Millisecond

// Environment is the platform focus collaborator for a display surface.
type Environment interface {
	// ForegroundActive reports whether the surface is in foreground-active
	// status.
	ForegroundActive(surface string) bool

	// MultiWindowMode reports whether the surface operates in a
	// multi-window/stage mode, where "left" signals are always processed.
	MultiWindowMode(surface string) bool

	// RawFocus returns the environment's focus-deferring signal for the
	// surface. supported is false on platforms where the signal is
	// unavailable or known to report incorrectly.
	RawFocus(surface string) (focused, supported bool)
}

// Logger is the minimal logging interface used by the Tracker.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// trackerState is one surface's debounce state.
type trackerState int

const (
	stateIdle trackerState = iota
	statePending
)

// surfaceState holds the per-surface machine. The timer is non-nil iff the
// state is statePending. The generation counter increments whenever the
// pending timer is superseded or cancelled, so a stale expiry can detect it
// lost the race.
type surfaceState struct {
	state      trackerState
	timer      *time.Timer
	generation uint64
}

// Tracker is the per-surface debounced keyboard-focus state machine.
//
// Create with NewTracker and call StartTracking for each surface of
// interest. Tracking state persists for the surface's lifetime; there is no
// stop operation.
type Tracker struct {
	bus      *eventbus.Bus
	env      Environment
	debounce time.Duration
	logger   Logger

	mu       sync.Mutex
	surfaces map[string]*surfaceState
}

// NewTracker creates a focus tracker publishing on the given bus.
// A non-positive debounce falls back to DefaultDebounce.
func NewTracker(bus *eventbus.Bus, env Environment, debounce time.Duration) *Tracker {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Tracker{
		bus:      bus,
		env:      env,
		debounce: debounce,
		logger:   noopLogger{},
		surfaces: make(map[string]*surfaceState),
	}
}

// SetLogger sets the logger for the tracker.
func (t *Tracker) SetLogger(logger Logger) {
	t.logger = logger
}

// StartTracking subscribes to the environment signals for the surface and
// initialises its state machine. Tracking an already-tracked surface is a
// no-op.
func (t *Tracker) StartTracking(surface string) {
	t.mu.Lock()
	if _, ok := t.surfaces[surface]; ok {
		t.mu.Unlock()
		return
	}
	t.surfaces[surface] = &surfaceState{state: stateIdle}
	t.mu.Unlock()

	t.bus.Subscribe(EventEnvironmentEntered, surface, func(s string, _ any) {
		t.handleEntered(s)
	})
	t.bus.Subscribe(EventEnvironmentExited, surface, func(s string, _ any) {
		t.handleExited(s)
	})

	t.logger.Debug("focus tracking started", "surface", surface)
}

// IsTracking reports whether StartTracking has been called for the surface.
func (t *Tracker) IsTracking(surface string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.surfaces[surface]
	return ok
}

// HasFocus returns the surface's best-effort focus status.
//
// When the underlying signal is unsupported the tracker fails open and
// reports true: assuming no focus would stall the host's input delivery.
func (t *Tracker) HasFocus(surface string) bool {
	focused, supported := t.env.RawFocus(surface)
	if !supported {
		return true
	}
	return focused
}

// handleEntered processes the "entered focus-deferring environment" signal.
func (t *Tracker) handleEntered(surface string) {
	if !t.env.ForegroundActive(surface) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.surfaces[surface]
	if !ok {
		return
	}
	if st.state == statePending {
		// A confirmation window is already open; the original timer stands.
		return
	}

	st.state = statePending
	st.generation++
	gen := st.generation
	st.timer = time.AfterFunc(t.debounce, func() {
		t.handleExpiry(surface, gen)
	})
	t.logger.Debug("focus change pending confirmation", "surface", surface)
}

// handleExpiry runs on the timer goroutine when a confirmation window
// closes. The generation check under the mutex guarantees a cancelled or
// superseded timer cannot publish.
func (t *Tracker) handleExpiry(surface string, gen uint64) {
	t.mu.Lock()
	st, ok := t.surfaces[surface]
	if !ok || st.state != statePending || st.generation != gen {
		t.mu.Unlock()
		return
	}
	st.state = stateIdle
	st.timer = nil
	t.mu.Unlock()

	if t.HasFocus(surface) {
		t.publishChanged(surface)
	}
}

// handleExited processes the "left focus-deferring environment" signal.
func (t *Tracker) handleExited(surface string) {
	if !t.env.MultiWindowMode(surface) && !t.env.ForegroundActive(surface) {
		return
	}

	t.mu.Lock()
	st, ok := t.surfaces[surface]
	if !ok {
		t.mu.Unlock()
		return
	}

	if st.state == statePending {
		// App-switch flicker: the earlier "entered" was a false positive.
		st.timer.Stop()
		st.timer = nil
		st.generation++
		st.state = stateIdle
		t.mu.Unlock()
		t.logger.Debug("focus flicker suppressed", "surface", surface)
		return
	}
	t.mu.Unlock()

	t.publishChanged(surface)
}

// publishChanged emits the debounced focus-change notification.
func (t *Tracker) publishChanged(surface string) {
	t.logger.Info("focus changed", "surface", surface)
	t.bus.Publish(EventFocusChanged, surface, surface)
}
