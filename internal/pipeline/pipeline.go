// Package pipeline implements the data extraction, processing and storage
// stages that award actions drive: pull records relevant to a computation,
// derive a verdict or dataset from them, and persist or retract award rows.
//
// Stage implementations are selected through capability registries keyed by
// record type (extractors, stores) or computation name (processors); handlers
// are resolved by lookup, not subclassing.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

// Facts is the read-only view of the evaluation fact bag the pipeline may
// consult. Satisfied by engine.FactBag without importing it.
type Facts interface {
	Get(name string) (any, bool)
}

// ExtractionParams selects and filters the records an extractor pulls.
type ExtractionParams struct {
	// RecordType keys the extractor registry.
	RecordType string

	// Filters are extractor-specific key/value filters, e.g.
	// RewardPointsCategory, BadgeCategory, BadgeName.
	Filters map[string]string

	// FactName selects a fact-bag array for the fact-window extractor.
	FactName string
}

// ProcessorParams parameterizes a processor run.
type ProcessorParams struct {
	// DurationUnitDays is the unit of "consecutive" for continuity runs.
	// Zero means one day.
	DurationUnitDays int

	// MinRunLength is the minimum qualifying streak length. Zero means one.
	MinRunLength int

	// Field/Operator/Value describe the all-pass predicate over record
	// attributes.
	Field    string
	Operator string
	Value    any
}

// StorageParams selects the store and carries the action's storage keys.
type StorageParams struct {
	// RecordType keys the store registry.
	RecordType string

	// Keys are the action's storage keys: BadgeId, RewardPointsCategory,
	// Points, Reason, IsBonus, BonusSchemaCode, RedemptionExpiryInDays.
	Keys map[string]any
}

// OutputParams names the result a stage surfaces upward.
type OutputParams struct {
	Tag string
}

// Extractor pulls normalized records for one record type.
type Extractor interface {
	Extract(ctx context.Context, c *types.Context, facts Facts, p ExtractionParams) ([]types.ExtractedRecord, error)
}

// ProcessorFunc transforms extracted records into a verdict or derived
// dataset.
type ProcessorFunc func(ctx context.Context, records []types.ExtractedRecord, p ProcessorParams, out OutputParams) (types.ProcessorResult, error)

// Store persists or retracts the output of an award action for one record
// type.
type Store interface {
	StoreData(ctx context.Context, c *types.Context, records []types.ExtractedRecord, p StorageParams, out OutputParams) (types.ProcessorResult, error)
	RemoveData(ctx context.Context, c *types.Context, records []types.ExtractedRecord, p StorageParams, out OutputParams) (types.ProcessorResult, error)
}

// Registry is the capability lookup for all three stages.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
	processors map[string]ProcessorFunc
	stores     map[string]Store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[string]Extractor),
		processors: make(map[string]ProcessorFunc),
		stores:     make(map[string]Store),
	}
}

// RegisterExtractor binds an extractor to a record type. Last write wins so
// wiring can override defaults.
func (r *Registry) RegisterExtractor(recordType string, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[recordType] = e
}

// RegisterProcessor binds a processor to a computation name.
func (r *Registry) RegisterProcessor(name string, p ProcessorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[name] = p
}

// RegisterStore binds a store to a record type.
func (r *Registry) RegisterStore(recordType string, s Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[recordType] = s
}

// Extractor resolves the extractor for a record type.
func (r *Registry) Extractor(recordType string) (Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[recordType]
	if !ok {
		return nil, fmt.Errorf("extractor for record type %q: %w", recordType, types.ErrNotFound)
	}
	return e, nil
}

// Processor resolves a processor by computation name.
func (r *Registry) Processor(name string) (ProcessorFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[name]
	if !ok {
		return nil, fmt.Errorf("processor %q: %w", name, types.ErrNotFound)
	}
	return p, nil
}

// Store resolves the store for a record type.
func (r *Registry) Store(recordType string) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[recordType]
	if !ok {
		return nil, fmt.Errorf("store for record type %q: %w", recordType, types.ErrNotFound)
	}
	return s, nil
}

// Computation names for the processor registry.
const (
	ProcCalculateContinuity = "CalculateContinuity"
	ProcCheckAllPass        = "CheckAllPass"
)

// AwardRepository is the persistence contract the stores and extractors work
// against. Implemented over SQL in internal/core/db and in memory for tests
// and the memory:// backend.
type AwardRepository interface {
	CreateRewardPoints(ctx context.Context, rp *types.RewardPoints) error
	DeleteRewardPoints(ctx context.Context, ids []types.RecordID) (int, error)
	ListRewardPoints(ctx context.Context, contextID types.ContextID, category string) ([]types.RewardPoints, error)
	RewardPointsKeyExists(ctx context.Context, contextID types.ContextID, category, key string) (bool, error)

	CreateParticipantBadge(ctx context.Context, pb *types.ParticipantBadge) error
	DeleteParticipantBadges(ctx context.Context, ids []types.RecordID) (int, error)
	ListParticipantBadges(ctx context.Context, contextID types.ContextID, badgeID types.BadgeID) ([]types.ParticipantBadge, error)
	ParticipantBadgeKeyExists(ctx context.Context, contextID types.ContextID, badgeID types.BadgeID, key string) (bool, error)
}

// BadgeCatalog resolves badge definitions referenced by storage keys.
type BadgeCatalog interface {
	GetBadge(ctx context.Context, id types.BadgeID) (*types.Badge, error)
	FindBadge(ctx context.Context, category, name string) (*types.Badge, error)
}

// NewDefaultRegistry wires the built-in extractors, processors and stores
// over the given repositories. This is the assembly the engine runs with;
// callers may register additional capabilities on the result.
func NewDefaultRegistry(awards AwardRepository, badges BadgeCatalog, expiryDays int) *Registry {
	r := NewRegistry()
	r.RegisterExtractor(string(types.RecordRewardPoints), &RewardPointsExtractor{Awards: awards})
	r.RegisterExtractor(string(types.RecordBadge), &BadgeExtractor{Awards: awards, Badges: badges})
	r.RegisterExtractor(RecordFactWindow, &FactWindowExtractor{})
	r.RegisterProcessor(ProcCalculateContinuity, CalculateContinuity)
	r.RegisterProcessor(ProcCheckAllPass, CheckAllPass)
	r.RegisterStore(string(types.RecordRewardPoints), &RewardPointsStore{Awards: awards, DefaultExpiryDays: expiryDays})
	r.RegisterStore(string(types.RecordBadge), &BadgeStore{Awards: awards, Badges: badges})
	return r
}
