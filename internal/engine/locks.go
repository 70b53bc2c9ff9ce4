// internal/engine/locks.go
package engine

import (
	"sync"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

// keyedMutex serializes work per key. Entries are reference counted and
// removed once the last holder releases, so the map does not grow with the
// number of (schema, context) pairs ever seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// pairKey is the serialization unit of an evaluation cycle: one schema for
// one context.
func pairKey(schemaID types.SchemaID, contextID types.ContextID) string {
	return string(schemaID) + "|" + string(contextID)
}
