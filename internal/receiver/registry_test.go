package receiver

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

type observer struct {
	name string
}

func TestAdd_Idempotent(t *testing.T) {
	reg := New[observer]()
	obs := &observer{name: "a"}

	reg.Add(obs)
	reg.Add(obs)

	if got := len(reg.Snapshot()); got != 1 {
		t.Errorf("Snapshot() length = %d after double add, want 1", got)
	}
}

func TestAdd_Nil(t *testing.T) {
	reg := New[observer]()
	reg.Add(nil)

	if got := len(reg.Snapshot()); got != 0 {
		t.Errorf("Snapshot() length = %d after nil add, want 0", got)
	}
}

func TestRemove_AbsentIsNoOp(t *testing.T) {
	reg := New[observer]()
	obs := &observer{name: "a"}
	other := &observer{name: "b"}

	reg.Add(obs)
	reg.Remove(other)
	reg.Remove(nil)

	if got := len(reg.Snapshot()); got != 1 {
		t.Errorf("Snapshot() length = %d, want 1", got)
	}

	reg.Remove(obs)
	if got := len(reg.Snapshot()); got != 0 {
		t.Errorf("Snapshot() length = %d after remove, want 0", got)
	}
}

func TestSnapshot_RegistrationOrder(t *testing.T) {
	reg := New[observer]()
	a := &observer{name: "a"}
	b := &observer{name: "b"}
	c := &observer{name: "c"}

	reg.Add(b)
	reg.Add(a)
	reg.Add(c)

	snap := reg.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot() length = %d, want 3", len(snap))
	}
	if snap[0] != b || snap[1] != a || snap[2] != c {
		t.Errorf("Snapshot() order = [%s %s %s], want [b a c]",
			snap[0].name, snap[1].name, snap[2].name)
	}
}

func TestSnapshot_ReentrantMutation(t *testing.T) {
	reg := New[observer]()
	a := &observer{name: "a"}
	b := &observer{name: "b"}
	reg.Add(a)

	// The mutex is released before the caller iterates, so mutating from the
	// "broadcast" loop must not deadlock.
	for _, obs := range reg.Snapshot() {
		_ = obs
		reg.Add(b)
		reg.Remove(a)
	}

	snap := reg.Snapshot()
	if len(snap) != 1 || snap[0] != b {
		t.Errorf("Snapshot() after re-entrant mutation = %v, want [b]", snap)
	}
}

func TestSnapshot_DropsCollectedObservers(t *testing.T) {
	reg := New[observer]()
	kept := &observer{name: "kept"}
	reg.Add(kept)

	func() {
		transient := &observer{name: "transient"}
		reg.Add(transient)
	}()

	// Nudge the collector until the transient observer's weak entry clears.
	// Two cycles are normally enough; bound the wait to keep the test honest.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		runtime.GC()
		if len(reg.Snapshot()) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	snap := reg.Snapshot()
	if len(snap) != 1 || snap[0] != kept {
		t.Fatalf("Snapshot() = %d observers, want only the externally-owned one", len(snap))
	}
	runtime.KeepAlive(kept)
}

func TestConcurrentAddRemoveSnapshot(t *testing.T) {
	reg := New[observer]()

	// Pre-populate a stable core that is never removed.
	core := make([]*observer, 8)
	for i := range core {
		core[i] = &observer{name: "core"}
		reg.Add(core[i])
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Churn goroutines add and remove their own observers.
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				obs := &observer{name: "churn"}
				reg.Add(obs)
				reg.Remove(obs)
			}
		}()
	}

	// Snapshot goroutines verify the stable core is always present.
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				snap := reg.Snapshot()
				if len(snap) < len(core) {
					t.Errorf("Snapshot() length = %d, want at least %d", len(snap), len(core))
					return
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
	runtime.KeepAlive(core)
}
