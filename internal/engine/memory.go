// internal/engine/memory.go
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

/*
 * In-memory engine store.
 *
 * Backs the memory:// database mode and the package tests. One store
 * implements every engine-side repository contract; methods copy instance
 * rows out so callers and the store never alias mutable state.
 */

// MemoryStore is an in-memory ContextLookup, ContextRegistrar,
// SchemaProvider, InstanceRepository and EventRecorder.
type MemoryStore struct {
	mu        sync.RWMutex
	contexts  map[types.ContextID]types.Context
	byRef     map[string]types.ContextID
	schemas   map[types.SchemaID]*types.Schema
	instances map[types.InstanceID]types.SchemaInstance
	events    []types.IncomingEvent
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contexts:  make(map[types.ContextID]types.Context),
		byRef:     make(map[string]types.ContextID),
		schemas:   make(map[types.SchemaID]*types.Schema),
		instances: make(map[types.InstanceID]types.SchemaInstance),
	}
}

// CreateContext implements ContextRegistrar. Reference ids are unique.
func (m *MemoryStore) CreateContext(_ context.Context, c *types.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byRef[c.ReferenceID]; ok {
		return fmt.Errorf("context reference %q taken: %w", c.ReferenceID, types.ErrValidation)
	}
	m.contexts[c.ID] = *c
	m.byRef[c.ReferenceID] = c.ID
	return nil
}

// GetContext implements ContextLookup.
func (m *MemoryStore) GetContext(_ context.Context, id types.ContextID) (*types.Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contexts[id]
	if !ok {
		return nil, fmt.Errorf("context %s: %w", id, types.ErrNotFound)
	}
	return &c, nil
}

// GetContextByReference implements ContextLookup.
func (m *MemoryStore) GetContextByReference(_ context.Context, referenceID string) (*types.Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byRef[referenceID]
	if !ok {
		return nil, fmt.Errorf("context reference %q: %w", referenceID, types.ErrNotFound)
	}
	c := m.contexts[id]
	return &c, nil
}

// AddSchema registers a schema graph. The schema is stored by reference;
// graphs are immutable once registered.
func (m *MemoryStore) AddSchema(s *types.Schema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[s.ID] = s
}

// CreateSchema registers a parsed schema, discarding the source document.
// Matches the SQL store's signature so callers can swap backends.
func (m *MemoryStore) CreateSchema(_ context.Context, s *types.Schema, _ []byte) error {
	m.AddSchema(s)
	return nil
}

// GetSchema implements SchemaProvider.
func (m *MemoryStore) GetSchema(_ context.Context, id types.SchemaID) (*types.Schema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schemas[id]
	if !ok {
		return nil, fmt.Errorf("schema %s: %w", id, types.ErrNotFound)
	}
	return s, nil
}

// SchemasForEvent implements SchemaProvider. Results are ordered by schema id
// so dispatch order is deterministic.
func (m *MemoryStore) SchemasForEvent(_ context.Context, t types.EventTypeID) ([]*types.Schema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Schema
	for _, s := range m.schemas {
		if s.Subscribed(t) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindInstances implements InstanceRepository, newest first.
func (m *MemoryStore) FindInstances(_ context.Context, schemaID types.SchemaID, contextID types.ContextID) ([]*types.SchemaInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.SchemaInstance
	for _, in := range m.instances {
		if in.SchemaID == schemaID && in.ContextID == contextID {
			copied := in
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		// UUIDv7 ids are time ordered; break creation-time ties with them.
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// GetInstance implements InstanceRepository.
func (m *MemoryStore) GetInstance(_ context.Context, id types.InstanceID) (*types.SchemaInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.instances[id]
	if !ok {
		return nil, fmt.Errorf("instance %s: %w", id, types.ErrNotFound)
	}
	return &in, nil
}

// CreateInstance implements InstanceRepository.
func (m *MemoryStore) CreateInstance(_ context.Context, instance *types.SchemaInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[instance.ID]; ok {
		return fmt.Errorf("instance %s exists: %w", instance.ID, types.ErrValidation)
	}
	m.instances[instance.ID] = *instance
	return nil
}

// SaveInstance implements InstanceRepository.
func (m *MemoryStore) SaveInstance(_ context.Context, instance *types.SchemaInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[instance.ID]; !ok {
		return fmt.Errorf("instance %s: %w", instance.ID, types.ErrNotFound)
	}
	m.instances[instance.ID] = *instance
	return nil
}

// RecordEvent implements EventRecorder.
func (m *MemoryStore) RecordEvent(_ context.Context, event *types.IncomingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

// Events returns a copy of the event log, oldest first.
func (m *MemoryStore) Events() []types.IncomingEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.IncomingEvent, len(m.events))
	copy(out, m.events)
	return out
}
