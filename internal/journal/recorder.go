package journal

import (
	"context"
	"time"

	"github.com/nerrad567/input-dock-core/internal/controller"
	"github.com/nerrad567/input-dock-core/internal/eventbus"
)

// Logger is the minimal logging interface the recorder needs.
type Logger interface {
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}
func (noopLogger) Info(string, ...any) {}

// Recorder mirrors device lifecycle events from the bus into the journal.
type Recorder struct {
	repo   Repository
	logger Logger
	subs   []eventbus.Subscription
}

// NewRecorder creates a recorder writing to the given repository.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, logger: noopLogger{}}
}

// SetLogger replaces the no-op logger.
func (r *Recorder) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Start subscribes to device lifecycle events on the bus.
func (r *Recorder) Start(bus *eventbus.Bus) {
	r.subs = append(r.subs,
		bus.Subscribe(controller.EventDeviceConnected, "", func(_ string, payload any) {
			r.record(ActionConnect, payload)
		}),
		bus.Subscribe(controller.EventDeviceDisconnected, "", func(_ string, payload any) {
			r.record(ActionDisconnect, payload)
		}),
	)
}

// Stop cancels the bus subscriptions.
func (r *Recorder) Stop() {
	for _, sub := range r.subs {
		sub.Cancel()
	}
	r.subs = nil
}

func (r *Recorder) record(action string, payload any) {
	dev, ok := payload.(controller.Device)
	if !ok {
		r.logger.Warn("journal: unexpected payload type", "action", action)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := &Entry{
		DeviceID:   dev.ID,
		DeviceName: dev.Name,
		Kind:       dev.Kind,
		Slot:       dev.Slot,
		Action:     action,
	}
	if err := r.repo.Create(ctx, entry); err != nil {
		r.logger.Warn("journal: write failed",
			"action", action,
			"device_id", dev.ID,
			"error", err,
		)
	}
}
