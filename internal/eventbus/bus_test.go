package eventbus

import (
	"sync"
	"testing"
)

func TestPublish_DeliversToExactSurface(t *testing.T) {
	bus := New()

	var got []string
	bus.Subscribe("focus.changed", "surface-1", func(surface string, payload any) {
		got = append(got, surface)
	})

	bus.Publish("focus.changed", "surface-1", nil)
	bus.Publish("focus.changed", "surface-2", nil)

	if len(got) != 1 || got[0] != "surface-1" {
		t.Errorf("deliveries = %v, want [surface-1]", got)
	}
}

func TestPublish_AnySurfaceSubscriberSeesAll(t *testing.T) {
	bus := New()

	var count int
	bus.Subscribe("device.connected", "", func(string, any) {
		count++
	})

	bus.Publish("device.connected", "", "a")
	bus.Publish("device.connected", "surface-1", "b")

	if count != 2 {
		t.Errorf("any-surface subscriber saw %d events, want 2", count)
	}
}

func TestPublish_SubscriptionOrder(t *testing.T) {
	bus := New()

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		bus.Subscribe("ev", "", func(string, any) {
			order = append(order, i)
		})
	}

	bus.Publish("ev", "", nil)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("dispatch order = %v, want [1 2 3]", order)
	}
}

func TestSubscription_Cancel(t *testing.T) {
	bus := New()

	var count int
	sub := bus.Subscribe("ev", "", func(string, any) { count++ })

	bus.Publish("ev", "", nil)
	sub.Cancel()
	bus.Publish("ev", "", nil)

	if count != 1 {
		t.Errorf("handler ran %d times, want 1", count)
	}

	// Double cancel and zero-value cancel are no-ops.
	sub.Cancel()
	Subscription{}.Cancel()
}

func TestUnsubscribe_RemovesAllForKey(t *testing.T) {
	bus := New()

	var count int
	bus.Subscribe("ev", "s", func(string, any) { count++ })
	bus.Subscribe("ev", "s", func(string, any) { count++ })

	bus.Unsubscribe("ev", "s")
	bus.Publish("ev", "s", nil)

	if count != 0 {
		t.Errorf("handlers ran %d times after Unsubscribe, want 0", count)
	}
	if got := bus.SubscriberCount("ev", "s"); got != 0 {
		t.Errorf("SubscriberCount = %d, want 0", got)
	}
}

func TestPublish_ReentrantSubscribe(t *testing.T) {
	bus := New()

	var nested int
	bus.Subscribe("ev", "", func(string, any) {
		// Subscribing during dispatch must not deadlock, and the new handler
		// must not run for the publication already in flight.
		bus.Subscribe("ev", "", func(string, any) { nested++ })
	})

	bus.Publish("ev", "", nil)
	if nested != 0 {
		t.Errorf("nested handler ran %d times during its own registration, want 0", nested)
	}

	bus.Publish("ev", "", nil)
	if nested != 1 {
		t.Errorf("nested handler ran %d times, want 1", nested)
	}
}

func TestPublish_ConcurrentAccess(t *testing.T) {
	bus := New()

	var mu sync.Mutex
	var count int
	bus.Subscribe("ev", "", func(string, any) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				bus.Publish("ev", "", nil)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count != 800 {
		t.Errorf("count = %d, want 800", count)
	}
}
