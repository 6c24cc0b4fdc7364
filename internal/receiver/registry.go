package receiver

import (
	"sort"
	"sync"
	"weak"
)

// Registry is a concurrency-safe set of weakly-held observers of type *T.
//
// The zero value is not usable; create instances with New.
//
// Thread Safety:
//   - Add, Remove, Snapshot and Len are safe for concurrent use from any
//     goroutine and are serialised against each other by one mutex.
type Registry[T any] struct {
	mu sync.Mutex

	// entries maps each weak pointer to its insertion sequence number.
	// The sequence gives Snapshot a stable, registration-ordered result.
	entries map[weak.Pointer[T]]uint64
	nextSeq uint64
}

// New creates an empty Registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		entries: make(map[weak.Pointer[T]]uint64),
	}
}

// Add inserts the observer into the registry. Adding an observer that is
// already present is a no-op; adding nil is a no-op. The registry does not
// keep the observer alive.
func (r *Registry[T]) Add(observer *T) {
	if observer == nil {
		return
	}

	wp := weak.Make(observer)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[wp]; ok {
		return
	}
	r.nextSeq++
	r.entries[wp] = r.nextSeq
	r.pruneLocked()
}

// Remove removes the observer if present. Removing an observer that was
// never added (or nil) is a no-op.
func (r *Registry[T]) Remove(observer *T) {
	if observer == nil {
		return
	}

	wp := weak.Make(observer)

	r.mu.Lock()
	delete(r.entries, wp)
	r.mu.Unlock()
}

// Snapshot returns the current live observers in registration order.
//
// The result is a point-in-time copy taken under the registry mutex: no
// observer added after Snapshot returns appears in it, and no observer
// removed before the call began appears in it. Observers whose last external
// reference has been released are excluded and their entries pruned.
//
// The returned slice holds strong pointers, so observers stay alive for the
// duration of the caller's broadcast. The mutex is released before Snapshot
// returns; callbacks invoked while iterating may call Add or Remove freely.
func (r *Registry[T]) Snapshot() []*T {
	type live struct {
		ptr *T
		seq uint64
	}

	r.mu.Lock()
	collected := make([]live, 0, len(r.entries))
	for wp, seq := range r.entries {
		if p := wp.Value(); p != nil {
			collected = append(collected, live{ptr: p, seq: seq})
		} else {
			delete(r.entries, wp)
		}
	}
	r.mu.Unlock()

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].seq < collected[j].seq
	})

	result := make([]*T, len(collected))
	for i, l := range collected {
		result[i] = l.ptr
	}
	return result
}

// Len returns the number of entries currently held, including entries whose
// referent may already be unreachable but has not yet been pruned. For an
// exact live count use len(Snapshot()).
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// pruneLocked drops entries whose referent has been collected.
// Caller must hold r.mu.
func (r *Registry[T]) pruneLocked() {
	for wp := range r.entries {
		if wp.Value() == nil {
			delete(r.entries, wp)
		}
	}
}
