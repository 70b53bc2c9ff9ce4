package types

import (
	"time"

	"github.com/google/uuid"
)

// ContextID identifies the subject (person or group) of a traversal.
// String alias enables type safety while keeping JSON string serialization.
type ContextID string

// SchemaID identifies a named rule-graph definition.
type SchemaID string

// InstanceID identifies one active traversal of a schema for one context.
type InstanceID string

// EventID identifies an incoming event. UUIDv7 time-ordering ensures
// sequential IDs cluster in B-tree indexes.
type EventID string

// BadgeID identifies a badge definition.
type BadgeID string

// RecordID identifies a persisted award row (reward points grant or
// participant badge).
type RecordID string

// NodeID identifies a node within a schema graph. Author-assigned in the
// schema document ("n1", "weekly-check"), unique per schema, not a UUID.
type NodeID string

// EventTypeID names an incoming event type ("workout-logged"). Schemas
// subscribe to event types by this identifier.
type EventTypeID string

// NewContextID generates a UUIDv7 context identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewContextID() ContextID { return ContextID(newV7()) }

// NewSchemaID generates a UUIDv7 schema identifier.
func NewSchemaID() SchemaID { return SchemaID(newV7()) }

// NewInstanceID generates a UUIDv7 schema-instance identifier.
func NewInstanceID() InstanceID { return InstanceID(newV7()) }

// NewEventID generates a UUIDv7 event identifier.
func NewEventID() EventID { return EventID(newV7()) }

// NewBadgeID generates a UUIDv7 badge identifier.
func NewBadgeID() BadgeID { return BadgeID(newV7()) }

// NewRecordID generates a UUIDv7 award-record identifier.
func NewRecordID() RecordID { return RecordID(newV7()) }

func newV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ParseContextID validates and converts a string to ContextID.
// Rejects malformed UUIDs to keep invalid IDs out of the system.
func ParseContextID(s string) (ContextID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return ContextID(s), nil
}

// ParseSchemaID validates and converts a string to SchemaID.
func ParseSchemaID(s string) (SchemaID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return SchemaID(s), nil
}

// ParseInstanceID validates and converts a string to InstanceID.
func ParseInstanceID(s string) (InstanceID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return InstanceID(s), nil
}

// ParseEventID validates and converts a string to EventID.
func ParseEventID(s string) (EventID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return EventID(s), nil
}

// EventIDTime extracts the timestamp embedded in a UUIDv7 event ID.
// Enables time-based queries without a database lookup.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func EventIDTime(id EventID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
