package eventbus

import "sync"

// Handler is the callback signature for bus subscribers.
//
// The surface argument is the surface the event was published for (empty for
// surface-less events such as device lifecycle). The payload type is defined
// by the publishing package.
type Handler func(surface string, payload any)

// key identifies a subscription bucket: one event name plus one surface.
// An empty surface means "all surfaces".
type key struct {
	event   string
	surface string
}

// entry is a single registered handler with a stable ordering/cancellation ID.
type entry struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous name+surface keyed publish/subscribe dispatcher.
//
// All methods are safe for concurrent use. Handlers run on the publishing
// goroutine; they should complete promptly and must not block on I/O.
type Bus struct {
	mu     sync.Mutex
	subs   map[key][]entry
	nextID uint64
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		subs: make(map[key][]entry),
	}
}

// Subscription identifies one registered handler and allows its removal.
type Subscription struct {
	bus *Bus
	key key
	id  uint64
}

// Subscribe registers a handler for the given event name and surface.
// An empty surface subscribes to the event for all surfaces.
//
// Handlers for the same key are dispatched in subscription order.
func (b *Bus) Subscribe(event, surface string, handler Handler) Subscription {
	if handler == nil {
		return Subscription{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	k := key{event: event, surface: surface}
	b.subs[k] = append(b.subs[k], entry{id: b.nextID, handler: handler})

	return Subscription{bus: b, key: k, id: b.nextID}
}

// Cancel removes the subscription from the bus. Cancelling an already
// cancelled or zero Subscription is a no-op.
func (s Subscription) Cancel() {
	if s.bus == nil {
		return
	}
	s.bus.remove(s.key, s.id)
}

// Unsubscribe removes every handler registered for the given event name and
// surface. Removing a key with no subscribers is a no-op.
func (b *Bus) Unsubscribe(event, surface string) {
	k := key{event: event, surface: surface}

	b.mu.Lock()
	delete(b.subs, k)
	b.mu.Unlock()
}

// Publish delivers the payload to every handler subscribed to the event for
// the given surface, then to every handler subscribed for all surfaces.
//
// The subscriber list is snapshotted under the bus mutex and the mutex is
// released before any handler runs, so handlers may re-enter the bus.
func (b *Bus) Publish(event, surface string, payload any) {
	b.mu.Lock()
	var snapshot []entry
	if surface != "" {
		snapshot = append(snapshot, b.subs[key{event: event, surface: surface}]...)
	}
	snapshot = append(snapshot, b.subs[key{event: event, surface: ""}]...)
	b.mu.Unlock()

	for _, e := range snapshot {
		e.handler(surface, payload)
	}
}

// SubscriberCount returns the number of handlers registered for the given
// event and surface key. Intended for tests and introspection.
func (b *Bus) SubscriberCount(event, surface string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[key{event: event, surface: surface}])
}

// remove deletes one entry by ID from a subscription bucket.
func (b *Bus) remove(k key, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.subs[k]
	for i, e := range entries {
		if e.id == id {
			b.subs[k] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(b.subs[k]) == 0 {
		delete(b.subs, k)
	}
}
