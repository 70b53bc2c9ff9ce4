// internal/engine/instances.go
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

/*
 * Instance lifecycle.
 *
 * The instance manager owns two responsibilities: enforcing the schema's
 * reuse policy when an event arrives, and serializing complete evaluation
 * cycles per (schema, context) pair. The keyed lock is held from instance
 * selection until the final commit, so concurrent events for the same pair
 * observe each other's committed state instead of racing.
 */

// InstanceManager selects, creates and commits schema instances.
type InstanceManager struct {
	instances InstanceRepository
	locks     *keyedMutex

	// now is injectable for tests; nil means time.Now.
	now func() time.Time
}

// NewInstanceManager creates a manager over the given repository.
func NewInstanceManager(repo InstanceRepository) *InstanceManager {
	return &InstanceManager{
		instances: repo,
		locks:     newKeyedMutex(),
	}
}

// LockPair serializes one evaluation cycle for the (schema, context) pair and
// returns the release function. Callers hold the lock for the full cycle.
func (m *InstanceManager) LockPair(schemaID types.SchemaID, contextID types.ContextID) func() {
	return m.locks.Lock(pairKey(schemaID, contextID))
}

// ObtainInstance applies the schema's reuse policy and returns the instance
// the cycle should run against, or nil when the policy says the event is a
// no-op for this pair. Newly created instances start Pending at the root node
// and are persisted before being returned.
//
// Callers must hold the pair lock.
func (m *InstanceManager) ObtainInstance(ctx context.Context, schema *types.Schema, contextID types.ContextID) (*types.SchemaInstance, error) {
	existing, err := m.instances.FindInstances(ctx, schema.ID, contextID)
	if err != nil {
		return nil, fmt.Errorf("find instances: %w", err)
	}

	switch schema.Type {
	case types.ExecuteOnce:
		// One shot ever: any terminal instance in the history ends the
		// schema for this context permanently.
		for _, in := range existing {
			if in.Status.Terminal() {
				return nil, nil
			}
		}
		if len(existing) > 0 {
			return existing[0], nil
		}

	case types.ReuseExistingInstance:
		for _, in := range existing {
			if !in.Status.Terminal() {
				return in, nil
			}
		}

	case types.RecreateNewAfterExecution:
		if len(existing) > 0 && !existing[0].Status.Terminal() {
			return existing[0], nil
		}

	default:
		return nil, fmt.Errorf("schema %s: unknown schema type %q: %w", schema.ID, schema.Type, types.ErrConfiguration)
	}

	return m.createInstance(ctx, schema, contextID)
}

func (m *InstanceManager) createInstance(ctx context.Context, schema *types.Schema, contextID types.ContextID) (*types.SchemaInstance, error) {
	now := m.clock()
	instance := &types.SchemaInstance{
		ID:            types.NewInstanceID(),
		SchemaID:      schema.ID,
		ContextID:     contextID,
		RootNodeID:    schema.RootNodeID,
		CurrentNodeID: schema.RootNodeID,
		Status:        types.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.instances.CreateInstance(ctx, instance); err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	return instance, nil
}

// Resumes reports whether the event wakes a Waiting instance parked on the
// given node. Non-waiting instances always proceed; a waiting instance only
// resumes when the node awaits this event type (or awaits nothing specific).
func (m *InstanceManager) Resumes(instance *types.SchemaInstance, node *types.Node, event *types.IncomingEvent) bool {
	if instance.Status != types.StatusWaiting {
		return true
	}
	if node == nil || len(node.AwaitedEventTypes) == 0 {
		return true
	}
	for _, t := range node.AwaitedEventTypes {
		if t == event.TypeID {
			return true
		}
	}
	return false
}

// Commit applies an action outcome to the instance and persists it. This is
// the only place instance state changes after a successful action, so a
// failed pipeline never moves the cursor.
func (m *InstanceManager) Commit(ctx context.Context, instance *types.SchemaInstance, outcome ActionOutcome) error {
	instance.Status = outcome.NextStatus
	if outcome.NextNodeID != "" {
		instance.CurrentNodeID = outcome.NextNodeID
	}
	instance.UpdatedAt = m.clock()
	if err := m.instances.SaveInstance(ctx, instance); err != nil {
		return fmt.Errorf("save instance: %w", err)
	}
	return nil
}

// Park records the outcome of a cycle where no rule fired: Waiting on a
// normal node, Exited on a dead-end node.
func (m *InstanceManager) Park(ctx context.Context, instance *types.SchemaInstance, node *types.Node) error {
	status := types.StatusWaiting
	if node != nil && node.DeadEnd {
		status = types.StatusExited
	}
	return m.Commit(ctx, instance, ActionOutcome{NextStatus: status})
}

func (m *InstanceManager) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now().UTC()
}
