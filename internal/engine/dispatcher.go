// internal/engine/dispatcher.go
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

/*
 * Event dispatch.
 *
 * HandleEvent is the engine's single entry point: resolve the context, record
 * the event, find the subscribed schemas and run one evaluation cycle per
 * schema under the pair lock. Cycle failures are isolated: a broken schema
 * logs and reports its error without blocking the other schemas or the
 * caller.
 */

// CycleSkipReason explains why a schema produced no state change.
type CycleSkipReason string

const (
	// SkipPolicy: the reuse policy suppressed the cycle (ExecuteOnce already
	// terminal).
	SkipPolicy CycleSkipReason = "policy"

	// SkipNotAwaited: the instance is Waiting and the node does not await
	// this event type.
	SkipNotAwaited CycleSkipReason = "not-awaited"
)

// CycleResult is the outcome of one schema's evaluation cycle.
type CycleResult struct {
	SchemaID   types.SchemaID
	InstanceID types.InstanceID
	Status     types.ExecutionStatus
	NodeID     types.NodeID

	// FiredRule names the winning rule of the final hop, empty when no rule
	// fired.
	FiredRule string

	// Hops counts chained node executions within the cycle.
	Hops int

	Skipped CycleSkipReason
	Result  *types.ProcessorResult
	Err     error
}

// DispatchReport aggregates the cycle results of one event.
type DispatchReport struct {
	EventID   types.EventID
	ContextID types.ContextID
	Cycles    []CycleResult
}

// Failed reports whether any cycle ended in an error.
func (r *DispatchReport) Failed() bool {
	for _, c := range r.Cycles {
		if c.Err != nil {
			return true
		}
	}
	return false
}

// Dispatcher routes incoming events through the engine.
type Dispatcher struct {
	contexts  ContextLookup
	schemas   SchemaProvider
	instances *InstanceManager
	executor  *Executor
	events    EventRecorder
	logger    *slog.Logger
}

// NewDispatcher wires the dispatcher. The event recorder is optional; nil
// disables the event log.
func NewDispatcher(contexts ContextLookup, schemas SchemaProvider, instances *InstanceManager, executor *Executor, events EventRecorder, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		contexts:  contexts,
		schemas:   schemas,
		instances: instances,
		executor:  executor,
		events:    events,
		logger:    logger,
	}
}

// HandleEvent runs one evaluation cycle per subscribed schema for the event's
// context. The returned report holds one entry per schema; per-schema errors
// live in the entries, the function error covers event-level failures only
// (unknown context, oversized payload, schema listing).
func (d *Dispatcher) HandleEvent(ctx context.Context, event *types.IncomingEvent) (*DispatchReport, error) {
	if len(event.Payload) > types.MaxPayloadSize {
		return nil, fmt.Errorf("event payload %d bytes: %w", len(event.Payload), types.ErrPayloadTooLarge)
	}
	c, err := d.resolveContext(ctx, event)
	if err != nil {
		return nil, err
	}
	event.ContextID = c.ID
	if event.ID == "" {
		event.ID = types.NewEventID()
	}

	if d.events != nil {
		if err := d.events.RecordEvent(ctx, event); err != nil {
			return nil, fmt.Errorf("record event: %w", err)
		}
	}

	schemas, err := d.schemas.SchemasForEvent(ctx, event.TypeID)
	if err != nil {
		return nil, fmt.Errorf("list schemas for %q: %w", event.TypeID, err)
	}

	report := &DispatchReport{EventID: event.ID, ContextID: c.ID}
	for _, schema := range schemas {
		result := d.runCycle(ctx, schema, c, event)
		if result.Err != nil {
			d.logger.Error("evaluation cycle failed",
				"event", event.ID,
				"schema", schema.ID,
				"context", c.ID,
				"error", result.Err)
		}
		report.Cycles = append(report.Cycles, result)
	}
	return report, nil
}

// resolveContext looks the subject up by internal id first, then by external
// reference.
func (d *Dispatcher) resolveContext(ctx context.Context, event *types.IncomingEvent) (*types.Context, error) {
	if event.ContextID != "" {
		c, err := d.contexts.GetContext(ctx, event.ContextID)
		if err != nil {
			return nil, fmt.Errorf("context %s: %w", event.ContextID, err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("event %s has no context: %w", event.ID, types.ErrValidation)
}

// runCycle executes one full evaluation cycle for one schema under the pair
// lock: select the instance, evaluate the current node's rules in order, run
// the winning action and commit, chaining through ExecuteNext hops.
func (d *Dispatcher) runCycle(ctx context.Context, schema *types.Schema, c *types.Context, event *types.IncomingEvent) CycleResult {
	result := CycleResult{SchemaID: schema.ID}

	unlock := d.instances.LockPair(schema.ID, c.ID)
	defer unlock()

	instance, err := d.instances.ObtainInstance(ctx, schema, c.ID)
	if err != nil {
		result.Err = err
		return result
	}
	if instance == nil {
		result.Skipped = SkipPolicy
		return result
	}
	result.InstanceID = instance.ID
	result.NodeID = instance.CurrentNodeID
	result.Status = instance.Status

	node := schema.Node(instance.CurrentNodeID)
	if node == nil {
		result.Err = fmt.Errorf("schema %s: node %q: %w", schema.ID, instance.CurrentNodeID, types.ErrNotFound)
		return result
	}
	if !d.instances.Resumes(instance, node, event) {
		result.Skipped = SkipNotAwaited
		return result
	}
	if instance.Status == types.StatusWaiting {
		// A matching event wakes the instance; the transition is committed
		// with the rest of the cycle, not eagerly.
		instance.Status = types.StatusPending
	}

	facts, err := EventFacts(event, c)
	if err != nil {
		result.Err = fmt.Errorf("decode payload: %w: %w", err, types.ErrValidation)
		return result
	}

	for hop := 0; ; hop++ {
		if hop > types.MaxChainHops {
			result.Err = fmt.Errorf("schema %s: %d hops: %w", schema.ID, hop, types.ErrChainTooLong)
			return result
		}
		result.Hops = hop

		rule, err := d.winningRule(node, facts)
		if err != nil {
			result.Err = err
			return result
		}
		if rule == nil {
			// No rule fired: park. Only the first hop can genuinely miss; a
			// chained hop that misses parks the instance at the new node.
			if err := d.instances.Park(ctx, instance, node); err != nil {
				result.Err = err
				return result
			}
			break
		}
		result.FiredRule = rule.Name

		outcome, err := d.executor.Execute(ctx, rule.Action, instance, c, event, facts)
		if err != nil {
			result.Err = fmt.Errorf("rule %q: %w", rule.Name, err)
			return result
		}
		if outcome.Result != nil {
			result.Result = outcome.Result
		}
		if err := d.instances.Commit(ctx, instance, outcome); err != nil {
			result.Err = err
			return result
		}

		// Pending means the cycle continues, either at a new node
		// (ExecuteNext) or at the same node after a fact-publishing action.
		if outcome.NextStatus != types.StatusPending {
			break
		}
		next := schema.Node(instance.CurrentNodeID)
		if next == nil {
			result.Err = fmt.Errorf("schema %s: node %q: %w", schema.ID, instance.CurrentNodeID, types.ErrNotFound)
			return result
		}
		node = next
	}

	result.Status = instance.Status
	result.NodeID = instance.CurrentNodeID
	return result
}

// winningRule evaluates the node's rules in authored order and returns the
// first whose condition holds. Evaluation errors abort the cycle; the engine
// never guesses past a broken condition.
func (d *Dispatcher) winningRule(node *types.Node, facts *FactBag) (*types.Rule, error) {
	for _, rule := range node.Rules {
		ok, err := Evaluate(rule.Condition, facts)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		if ok {
			return rule, nil
		}
	}
	return nil, nil
}
