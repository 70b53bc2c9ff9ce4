// Package engine implements the rule/event execution engine: condition
// evaluation, action execution, schema instance lifecycle and event dispatch.
package engine

import (
	"time"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

// Well-known fact names seeded by the dispatcher before evaluation.
const (
	FactEventType  = "event.type"
	FactOccurredAt = "event.occurredAt"
	FactContextID  = "context.id"
	FactContextRef = "context.referenceId"
)

// Resolver supplies live or derived facts that are not present in the bag
// itself, e.g. values backed by a fact-source query. Returns the value and
// whether the name resolved.
type Resolver func(name string) (any, bool)

// FactBag holds the facts one evaluation cycle runs against: the decoded
// event payload, dispatcher-seeded event/context facts, and derived values
// published by Mathematical conditions or read-only extraction actions.
type FactBag struct {
	facts    map[string]any
	resolver Resolver
}

// NewFactBag creates a bag over the given facts. The map is used directly,
// not copied; callers hand over ownership.
func NewFactBag(facts map[string]any) *FactBag {
	if facts == nil {
		facts = map[string]any{}
	}
	return &FactBag{facts: facts}
}

// WithResolver attaches a fallback resolver consulted for names missing from
// the bag. Returns the bag for chaining during setup.
func (b *FactBag) WithResolver(r Resolver) *FactBag {
	b.resolver = r
	return b
}

// Get resolves a fact by name: bag first, then the resolver.
func (b *FactBag) Get(name string) (any, bool) {
	if v, ok := b.facts[name]; ok {
		return v, true
	}
	if b.resolver != nil {
		return b.resolver(name)
	}
	return nil, false
}

// Set publishes a derived fact for sibling and parent conditions.
func (b *FactBag) Set(name string, value any) {
	b.facts[name] = value
}

// Delete removes a fact, used to unbind Iterate element aliases.
func (b *FactBag) Delete(name string) {
	delete(b.facts, name)
}

// Snapshot copies the current facts, e.g. as the environment of a custom
// action expression. The resolver is not consulted.
func (b *FactBag) Snapshot() map[string]any {
	out := make(map[string]any, len(b.facts))
	for k, v := range b.facts {
		out[k] = v
	}
	return out
}

// EventFacts builds the standard bag for an incoming event: the decoded
// payload merged with the event/context facts under their well-known names.
func EventFacts(event *types.IncomingEvent, context *types.Context) (*FactBag, error) {
	facts, err := event.Payload.Decode()
	if err != nil {
		return nil, err
	}
	facts[FactEventType] = string(event.TypeID)
	facts[FactOccurredAt] = event.OccurredAt.Format(time.RFC3339)
	facts[FactContextID] = string(context.ID)
	facts[FactContextRef] = context.ReferenceID
	return NewFactBag(facts), nil
}
