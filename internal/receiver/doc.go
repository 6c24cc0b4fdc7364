// Package receiver provides a weakly-held observer registry.
//
// The registry holds listeners without owning them: an entry disappears on
// its own once the last external reference to the observer is released, so
// registering never creates an ownership cycle between the event source and
// its listeners. Explicit removal is also supported for deterministic
// teardown.
//
// Liveness is implemented with the runtime's weak pointers (the weak
// package): entries are weak.Pointer values, and Snapshot strengthens each
// one under the registry mutex, pruning entries whose referent has been
// collected.
//
// # Concurrency
//
// All operations on one Registry are serialised by a single mutex. Snapshot
// copies the live set while holding it and releases it before returning, so
// callers iterate and dispatch without blocking concurrent Add/Remove, and
// observer callbacks may themselves mutate the registry.
package receiver
