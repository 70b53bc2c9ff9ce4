package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/meritkeeper/meritkeeper/internal/engine"
	"github.com/meritkeeper/meritkeeper/internal/types"
)

/*
 * Engine-side SQL repositories.
 *
 * Store implements the engine's persistence contracts (contexts, schemas,
 * instances, event log) over named queries. Schema graphs are persisted as
 * their authored JSON documents and linked on read; parsed graphs are cached
 * because documents are immutable once created (a changed graph is a new
 * schema row with a bumped version).
 */

// Store is the SQL-backed engine repository set.
type Store struct {
	db *sqlx.DB
	q  *Queries

	mu     sync.RWMutex
	graphs map[types.SchemaID]*types.Schema
}

// NewStore loads the named queries and returns a store over the connection.
func NewStore(conn *sqlx.DB) (*Store, error) {
	q, err := LoadQueries(conn)
	if err != nil {
		return nil, err
	}
	return &Store{
		db:     conn,
		q:      q,
		graphs: make(map[types.SchemaID]*types.Schema),
	}, nil
}

type contextRow struct {
	ID             string    `db:"id"`
	ContextType    string    `db:"context_type"`
	ReferenceID    string    `db:"reference_id"`
	ParticipantRef string    `db:"participant_ref"`
	GroupRef       string    `db:"group_ref"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r contextRow) toContext() *types.Context {
	return &types.Context{
		ID:             types.ContextID(r.ID),
		Type:           types.ContextType(r.ContextType),
		ReferenceID:    r.ReferenceID,
		ParticipantRef: r.ParticipantRef,
		GroupRef:       r.GroupRef,
		CreatedAt:      r.CreatedAt,
	}
}

// CreateContext implements engine.ContextRegistrar.
func (s *Store) CreateContext(_ context.Context, c *types.Context) error {
	_, err := s.q.Exec("create-context",
		string(c.ID), string(c.Type), c.ReferenceID, c.ParticipantRef, c.GroupRef, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create context: %w", err)
	}
	return nil
}

// GetContext implements engine.ContextLookup.
func (s *Store) GetContext(_ context.Context, id types.ContextID) (*types.Context, error) {
	var row contextRow
	if err := s.q.Get("get-context", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("context %s: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("get context: %w", err)
	}
	return row.toContext(), nil
}

// GetContextByReference implements engine.ContextLookup.
func (s *Store) GetContextByReference(_ context.Context, referenceID string) (*types.Context, error) {
	var row contextRow
	if err := s.q.Get("get-context-by-reference", &row, referenceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("context reference %q: %w", referenceID, types.ErrNotFound)
		}
		return nil, fmt.Errorf("get context by reference: %w", err)
	}
	return row.toContext(), nil
}

type schemaRow struct {
	ID       string `db:"id"`
	Document string `db:"document"`
}

// CreateSchema persists a parsed schema together with its source document.
func (s *Store) CreateSchema(_ context.Context, schema *types.Schema, document []byte) error {
	now := time.Now().UTC()
	_, err := s.q.Exec("create-schema",
		string(schema.ID), schema.Name, schema.Version, string(schema.Type),
		string(schema.RootNodeID), string(document), now, now)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	s.mu.Lock()
	s.graphs[schema.ID] = schema
	s.mu.Unlock()
	return nil
}

// GetSchema implements engine.SchemaProvider.
func (s *Store) GetSchema(_ context.Context, id types.SchemaID) (*types.Schema, error) {
	s.mu.RLock()
	cached, ok := s.graphs[id]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	var row schemaRow
	if err := s.q.Get("get-schema", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("schema %s: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("get schema: %w", err)
	}
	return s.linkRow(row)
}

// SchemasForEvent implements engine.SchemaProvider. The subscription filter
// lives in the parsed graph, so this loads all schemas and filters in memory;
// schema counts are small and the graph cache makes repeat calls cheap.
func (s *Store) SchemasForEvent(_ context.Context, t types.EventTypeID) ([]*types.Schema, error) {
	var rows []schemaRow
	if err := s.q.Select("list-schemas", &rows); err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	var out []*types.Schema
	for _, row := range rows {
		schema, err := s.linkRow(row)
		if err != nil {
			return nil, err
		}
		if schema.Subscribed(t) {
			out = append(out, schema)
		}
	}
	return out, nil
}

func (s *Store) linkRow(row schemaRow) (*types.Schema, error) {
	id := types.SchemaID(row.ID)

	s.mu.RLock()
	cached, ok := s.graphs[id]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	schema, err := engine.ParseSchema([]byte(row.Document))
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", row.ID, err)
	}
	// ParseSchema mints a fresh id; the stored row owns the real one.
	schema.ID = id

	s.mu.Lock()
	s.graphs[id] = schema
	s.mu.Unlock()
	return schema, nil
}

type instanceRow struct {
	ID            string    `db:"id"`
	SchemaID      string    `db:"schema_id"`
	ContextID     string    `db:"context_id"`
	RootNodeID    string    `db:"root_node_id"`
	CurrentNodeID string    `db:"current_node_id"`
	Status        string    `db:"status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r instanceRow) toInstance() *types.SchemaInstance {
	return &types.SchemaInstance{
		ID:            types.InstanceID(r.ID),
		SchemaID:      types.SchemaID(r.SchemaID),
		ContextID:     types.ContextID(r.ContextID),
		RootNodeID:    types.NodeID(r.RootNodeID),
		CurrentNodeID: types.NodeID(r.CurrentNodeID),
		Status:        types.ExecutionStatus(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// FindInstances implements engine.InstanceRepository, newest first.
func (s *Store) FindInstances(_ context.Context, schemaID types.SchemaID, contextID types.ContextID) ([]*types.SchemaInstance, error) {
	var rows []instanceRow
	if err := s.q.Select("find-instances", &rows, string(schemaID), string(contextID)); err != nil {
		return nil, fmt.Errorf("find instances: %w", err)
	}
	out := make([]*types.SchemaInstance, len(rows))
	for i, row := range rows {
		out[i] = row.toInstance()
	}
	return out, nil
}

// GetInstance implements engine.InstanceRepository.
func (s *Store) GetInstance(_ context.Context, id types.InstanceID) (*types.SchemaInstance, error) {
	var row instanceRow
	if err := s.q.Get("get-instance", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("instance %s: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return row.toInstance(), nil
}

// CreateInstance implements engine.InstanceRepository.
func (s *Store) CreateInstance(_ context.Context, in *types.SchemaInstance) error {
	_, err := s.q.Exec("create-instance",
		string(in.ID), string(in.SchemaID), string(in.ContextID),
		string(in.RootNodeID), string(in.CurrentNodeID), string(in.Status),
		in.CreatedAt, in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	return nil
}

// SaveInstance implements engine.InstanceRepository. Only the mutable cursor
// fields are written.
func (s *Store) SaveInstance(_ context.Context, in *types.SchemaInstance) error {
	res, err := s.q.Exec("save-instance",
		string(in.CurrentNodeID), string(in.Status), in.UpdatedAt, string(in.ID))
	if err != nil {
		return fmt.Errorf("save instance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("instance %s: %w", in.ID, types.ErrNotFound)
	}
	return nil
}

// RecordEvent implements engine.EventRecorder.
func (s *Store) RecordEvent(_ context.Context, event *types.IncomingEvent) error {
	_, err := s.q.Exec("create-event",
		string(event.ID), string(event.ContextID), string(event.TypeID),
		string(event.Payload), event.OccurredAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}
