// internal/engine/actions.go
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/mitchellh/mapstructure"
	"github.com/meritkeeper/meritkeeper/internal/pipeline"
	"github.com/meritkeeper/meritkeeper/internal/types"
)

/*
 * Action execution.
 *
 * Execute dispatches on ActionType and returns the outcome the instance
 * manager applies: the next execution status, an optional next node, and
 * whatever the pipeline emitted. Award actions drive the extract -> process
 * -> store pipeline; the status transition is only reported after the
 * pipeline's terminal step succeeded, so a partial pipeline failure leaves
 * the instance at its pre-cycle state and the event can be retried.
 *
 * Custom actions are an extension point: callers register Go functions or
 * expr expressions under a key; an action with an unknown key is a
 * configuration error, not a silent no-op.
 */

// ActionOutcome is what executing a rule action decided.
type ActionOutcome struct {
	// NextStatus is the execution status to commit.
	NextStatus types.ExecutionStatus

	// NextNodeID is the node to move to; empty means stay.
	NextNodeID types.NodeID

	// Result carries the pipeline or custom-action output, when any.
	Result *types.ProcessorResult

	// Message is the authored human-readable note of the action.
	Message string
}

// CustomActionFunc is a registered extension point. It may read and publish
// facts; its result is surfaced in the outcome.
type CustomActionFunc func(ctx context.Context, instance *types.SchemaInstance, facts *FactBag) (*types.ProcessorResult, error)

// Executor runs rule actions against the pipeline registry.
type Executor struct {
	pipeline *pipeline.Registry

	mu     sync.RWMutex
	custom map[string]CustomActionFunc
}

// NewExecutor creates an executor over the given pipeline registry.
func NewExecutor(reg *pipeline.Registry) *Executor {
	return &Executor{
		pipeline: reg,
		custom:   make(map[string]CustomActionFunc),
	}
}

// RegisterCustom binds a Go function to a custom action key.
func (e *Executor) RegisterCustom(key string, fn CustomActionFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.custom[key] = fn
}

// RegisterCustomExpr compiles an expression and binds it to a custom action
// key. The expression runs with the fact snapshot as its environment; the
// result is published back into the bag under the key.
func (e *Executor) RegisterCustomExpr(key, expression string) error {
	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return fmt.Errorf("custom action %q: %w: %w", key, err, types.ErrConfiguration)
	}
	e.RegisterCustom(key, func(_ context.Context, _ *types.SchemaInstance, facts *FactBag) (*types.ProcessorResult, error) {
		out, err := runProgram(program, facts.Snapshot())
		if err != nil {
			return nil, fmt.Errorf("custom action %q: %w: %w", key, err, types.ErrPipeline)
		}
		facts.Set(key, out)
		return &types.ProcessorResult{Success: true, Tag: key, Data: out}, nil
	})
	return nil
}

func runProgram(program *vm.Program, env map[string]any) (any, error) {
	return expr.Run(program, env)
}

// Parameter shapes decoded from RuleAction.Params with mapstructure.

type executeNextParams struct {
	NextNodeID string `mapstructure:"NextNodeId"`
	Message    string
}

type extractionSpec struct {
	RecordType string
	FactName   string
	Filters    map[string]string
}

type processingSpec struct {
	Processor        string
	DurationUnitDays int
	MinRunLength     int
	Field            string
	Operator         string
	Value            any
}

// awardParams covers AwardBadge, AwardPoints and CalculateContinuityBadges.
// Keys not claimed by the sub-specs are the storage keys.
type awardParams struct {
	Message    string
	OutputTag  string
	Extraction *extractionSpec
	Processing *processingSpec

	StorageKeys map[string]any `mapstructure:",remain"`
}

type extractParams struct {
	OutputTag string
	Filters   map[string]string
}

type customParams struct {
	Action  string
	Message string
}

// Execute runs one rule action for the instance and returns the outcome to
// commit. The instance itself is not mutated here.
func (e *Executor) Execute(ctx context.Context, action *types.RuleAction, instance *types.SchemaInstance, c *types.Context, event *types.IncomingEvent, facts *FactBag) (ActionOutcome, error) {
	switch action.Type {
	case types.ActionExecuteNext:
		var p executeNextParams
		if err := decodeParams(action, &p); err != nil {
			return ActionOutcome{}, err
		}
		return ActionOutcome{
			NextStatus: types.StatusPending,
			NextNodeID: types.NodeID(p.NextNodeID),
			Message:    p.Message,
		}, nil

	case types.ActionWaitForInputEvents:
		return ActionOutcome{NextStatus: types.StatusWaiting}, nil

	case types.ActionExit:
		return ActionOutcome{NextStatus: types.StatusExited}, nil

	case types.ActionAwardPoints:
		return e.runAwardPipeline(ctx, action, string(types.RecordRewardPoints), c, event, facts)

	case types.ActionAwardBadge, types.ActionCalculateContinuityBadges:
		// CalculateContinuityBadges is an award-badge pipeline with the
		// continuity processor implied.
		return e.runAwardPipeline(ctx, action, string(types.RecordBadge), c, event, facts)

	case types.ActionExtractExistingBadges:
		return e.extractExistingBadges(ctx, action, instance, c, facts)

	case types.ActionCustom:
		var p customParams
		if err := decodeParams(action, &p); err != nil {
			return ActionOutcome{}, err
		}
		e.mu.RLock()
		fn, ok := e.custom[p.Action]
		e.mu.RUnlock()
		if !ok {
			return ActionOutcome{}, fmt.Errorf("custom action %q not registered: %w", p.Action, types.ErrConfiguration)
		}
		result, err := fn(ctx, instance, facts)
		if err != nil {
			return ActionOutcome{}, err
		}
		return ActionOutcome{NextStatus: types.StatusExecuted, Result: result, Message: p.Message}, nil

	default:
		return ActionOutcome{}, fmt.Errorf("unknown action type %q: %w", action.Type, types.ErrConfiguration)
	}
}

// runAwardPipeline drives extract -> process -> store for an award action.
// Storage only happens after extraction and processing succeeded; any stage
// error propagates without a status transition.
func (e *Executor) runAwardPipeline(ctx context.Context, action *types.RuleAction, recordType string, c *types.Context, event *types.IncomingEvent, facts *FactBag) (ActionOutcome, error) {
	var p awardParams
	if err := decodeParams(action, &p); err != nil {
		return ActionOutcome{}, err
	}
	if action.Type == types.ActionCalculateContinuityBadges && p.Processing == nil {
		p.Processing = &processingSpec{Processor: pipeline.ProcCalculateContinuity}
	}
	out := pipeline.OutputParams{Tag: outputTag(p.OutputTag, action)}

	records, err := e.extractRecords(ctx, c, facts, event, p.Extraction)
	if err != nil {
		return ActionOutcome{}, err
	}

	if p.Processing != nil {
		proc, err := e.pipeline.Processor(processorName(p.Processing))
		if err != nil {
			return ActionOutcome{}, fmt.Errorf("%w: %w", err, types.ErrConfiguration)
		}
		result, err := proc(ctx, records, pipeline.ProcessorParams{
			DurationUnitDays: p.Processing.DurationUnitDays,
			MinRunLength:     p.Processing.MinRunLength,
			Field:            p.Processing.Field,
			Operator:         p.Processing.Operator,
			Value:            p.Processing.Value,
		}, out)
		if err != nil {
			return ActionOutcome{}, err
		}
		if !result.Success {
			// A false verdict is not a failure: the action ran, nothing
			// qualified for an award.
			return ActionOutcome{NextStatus: types.StatusExecuted, Result: &result, Message: p.Message}, nil
		}
		records = processedRecords(result, records)
	}

	store, err := e.pipeline.Store(recordType)
	if err != nil {
		return ActionOutcome{}, fmt.Errorf("%w: %w", err, types.ErrConfiguration)
	}
	result, err := store.StoreData(ctx, c, records, pipeline.StorageParams{
		RecordType: recordType,
		Keys:       p.StorageKeys,
	}, out)
	if err != nil {
		return ActionOutcome{}, err
	}
	return ActionOutcome{NextStatus: types.StatusExecuted, Result: &result, Message: p.Message}, nil
}

// extractRecords resolves and runs the extraction stage. Without an
// extraction spec the award covers the event's own day: a single-day window
// keyed for dedup, which is what makes same-day retries idempotent.
func (e *Executor) extractRecords(ctx context.Context, c *types.Context, facts *FactBag, event *types.IncomingEvent, spec *extractionSpec) ([]types.ExtractedRecord, error) {
	if spec == nil {
		day := event.OccurredAt.UTC().Truncate(24 * time.Hour)
		return []types.ExtractedRecord{{
			Start: day,
			End:   day,
			Key:   types.WindowKey(day, day),
		}}, nil
	}
	recordType := spec.RecordType
	if recordType == "" && spec.FactName != "" {
		recordType = pipeline.RecordFactWindow
	}
	extractor, err := e.pipeline.Extractor(recordType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", err, types.ErrConfiguration)
	}
	records, err := extractor.Extract(ctx, c, facts, pipeline.ExtractionParams{
		RecordType: recordType,
		Filters:    spec.Filters,
		FactName:   spec.FactName,
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// extractExistingBadges runs the read-only badge extraction and publishes
// the records as a fact for downstream conditions. No status change.
func (e *Executor) extractExistingBadges(ctx context.Context, action *types.RuleAction, instance *types.SchemaInstance, c *types.Context, facts *FactBag) (ActionOutcome, error) {
	var p extractParams
	if err := decodeParams(action, &p); err != nil {
		return ActionOutcome{}, err
	}
	extractor, err := e.pipeline.Extractor(string(types.RecordBadge))
	if err != nil {
		return ActionOutcome{}, fmt.Errorf("%w: %w", err, types.ErrConfiguration)
	}
	records, err := extractor.Extract(ctx, c, facts, pipeline.ExtractionParams{
		RecordType: string(types.RecordBadge),
		Filters:    p.Filters,
	})
	if err != nil {
		return ActionOutcome{}, err
	}
	tag := p.OutputTag
	if tag == "" {
		tag = "existingBadges"
	}
	asFacts := make([]any, len(records))
	for i, r := range records {
		asFacts[i] = map[string]any{
			"id":    string(r.ID),
			"start": r.Start.Format("2006-01-02"),
			"end":   r.End.Format("2006-01-02"),
			"key":   r.Key,
		}
	}
	facts.Set(tag, asFacts)
	result := &types.ProcessorResult{Success: true, Tag: tag, Data: records}
	return ActionOutcome{NextStatus: instance.Status, Result: result}, nil
}

// processedRecords converts a processor result back into storable records.
// Continuity results carry streak windows; verdict-only results keep the
// original records.
func processedRecords(result types.ProcessorResult, original []types.ExtractedRecord) []types.ExtractedRecord {
	streaks, ok := result.Data.([]pipeline.Streak)
	if !ok {
		return original
	}
	records := make([]types.ExtractedRecord, len(streaks))
	for i, s := range streaks {
		records[i] = types.ExtractedRecord{Start: s.Start, End: s.End, Key: s.Key}
	}
	return records
}

func processorName(spec *processingSpec) string {
	if spec.Processor != "" {
		return spec.Processor
	}
	if spec.Field != "" || spec.Operator != "" {
		return pipeline.ProcCheckAllPass
	}
	return pipeline.ProcCalculateContinuity
}

func outputTag(tag string, action *types.RuleAction) string {
	if tag != "" {
		return tag
	}
	if action.Name != "" {
		return action.Name
	}
	return string(action.Type)
}

// decodeParams maps the action's loose params onto a typed shape. A decode
// failure is an authoring defect.
func decodeParams(action *types.RuleAction, dst any) error {
	if action.Params == nil {
		return nil
	}
	if err := mapstructure.Decode(action.Params, dst); err != nil {
		return fmt.Errorf("action %q params: %w: %w", action.Type, err, types.ErrValidation)
	}
	return nil
}
