// internal/engine/repos.go
package engine

import (
	"context"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

/*
 * Collaborator contracts.
 *
 * The engine consumes persistence and lookup only through these narrow
 * interfaces; SQL implementations live in internal/core/db, in-memory ones
 * in memory.go. The graph side is read-only during evaluation.
 */

// ContextLookup maps internal and external subject ids to Context records.
type ContextLookup interface {
	GetContext(ctx context.Context, id types.ContextID) (*types.Context, error)
	GetContextByReference(ctx context.Context, referenceID string) (*types.Context, error)
}

// ContextRegistrar creates contexts lazily the first time a subject is
// referenced. Separate from ContextLookup so read paths cannot create.
type ContextRegistrar interface {
	CreateContext(ctx context.Context, c *types.Context) error
}

// SchemaProvider serves the read-mostly schema graphs.
type SchemaProvider interface {
	GetSchema(ctx context.Context, id types.SchemaID) (*types.Schema, error)

	// SchemasForEvent lists schemas subscribed to the event type, including
	// schemas with an empty subscription list.
	SchemasForEvent(ctx context.Context, t types.EventTypeID) ([]*types.Schema, error)
}

// InstanceRepository persists schema instances.
type InstanceRepository interface {
	// FindInstances returns every instance for the (schema, context) pair,
	// newest first. History matters: ExecuteOnce needs to know whether any
	// past instance reached a terminal state.
	FindInstances(ctx context.Context, schemaID types.SchemaID, contextID types.ContextID) ([]*types.SchemaInstance, error)

	GetInstance(ctx context.Context, id types.InstanceID) (*types.SchemaInstance, error)
	CreateInstance(ctx context.Context, instance *types.SchemaInstance) error
	SaveInstance(ctx context.Context, instance *types.SchemaInstance) error
}

// EventRecorder appends incoming events to the event log.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event *types.IncomingEvent) error
}
