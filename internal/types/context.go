// internal/types/context.go
package types

import "time"

// Context is the subject a traversal applies to: one person or one group.
// Exactly one context exists per external subject; Type and ReferenceID are
// immutable after creation. Contexts are created lazily the first time a
// subject is onboarded or referenced.
type Context struct {
	ID   ContextID
	Type ContextType

	// ReferenceID is the external id of the person or group this context
	// stands for (the participant service's id, not ours).
	ReferenceID string

	// ParticipantRef/GroupRef carry the optional external linkage for
	// person and group contexts respectively.
	ParticipantRef string
	GroupRef       string

	CreatedAt time.Time
}

// IncomingEvent triggers one evaluation cycle for its context. Append-only.
type IncomingEvent struct {
	ID         EventID
	ContextID  ContextID
	TypeID     EventTypeID
	Payload    Payload
	OccurredAt time.Time
}

// SchemaInstance is one active traversal of a schema for one context.
// It exclusively owns its CurrentNodeID/Status pair; the schema graph and the
// context are shared, read-only references.
type SchemaInstance struct {
	ID            InstanceID
	SchemaID      SchemaID
	ContextID     ContextID
	RootNodeID    NodeID
	CurrentNodeID NodeID
	Status        ExecutionStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
