package workspace

import "github.com/google/uuid"

// insertAttempts bounds how often a colliding insert is retried with a
// regenerated id before the failure surfaces as a Conflict.
const insertAttempts = 3

// Allocator tracks every id in play during one reconciliation so that
// previously seen ids are preserved and fresh ids never collide with
// them. It is per-reconciliation state and is not safe for sharing
// across goroutines; reconciliations are strictly sequential anyway.
type Allocator struct {
	used  map[string]struct{}
	newID func() string
}

func NewAllocator(newID func() string) *Allocator {
	if newID == nil {
		newID = uuid.NewString
	}
	return &Allocator{
		used:  make(map[string]struct{}),
		newID: newID,
	}
}

// Reserve marks an id as taken without validating it.
func (a *Allocator) Reserve(id string) {
	if id != "" {
		a.used[id] = struct{}{}
	}
}

// Release frees a reserved id; used when an insert under that id hit a
// unique violation and the retry needs a replacement.
func (a *Allocator) Release(id string) {
	delete(a.used, id)
}

// Used reports whether the id is already reserved.
func (a *Allocator) Used(id string) bool {
	_, ok := a.used[id]
	return ok
}

// EnsureStableID returns candidate when it is non-empty and not yet in
// use, reserving it. Otherwise it returns a fresh id.
func (a *Allocator) EnsureStableID(candidate string) string {
	if candidate != "" {
		if _, taken := a.used[candidate]; !taken {
			a.used[candidate] = struct{}{}
			return candidate
		}
	}
	return a.Fresh()
}

// Fresh generates a new random id, re-rolling on the (vanishingly rare)
// case of an in-process collision.
func (a *Allocator) Fresh() string {
	for {
		id := a.newID()
		if _, taken := a.used[id]; !taken {
			a.used[id] = struct{}{}
			return id
		}
	}
}
