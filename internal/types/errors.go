package types

import "errors"

// Error kinds for engine operations. Call sites wrap these with context via
// fmt.Errorf("…: %w", …); the dispatcher and HTTP layer classify failures with
// errors.Is against the sentinels.
var (
	// ErrNotFound indicates a missing context, schema, node, badge or
	// category. Aborts the evaluation cycle with no status change.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a malformed condition or action configuration.
	// Detected at authoring time where possible; at evaluation time the
	// evaluator fails closed instead of crashing the dispatcher.
	ErrValidation = errors.New("validation failed")

	// ErrConfiguration indicates an unknown action type, custom action key or
	// an impossible condition construct. Aborts the cycle with the instance
	// status unchanged.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrPipeline indicates an extractor, processor or store failure. Aborts
	// the action executor before any status transition is committed so the
	// event can be retried safely.
	ErrPipeline = errors.New("pipeline failed")

	// ErrPayloadTooLarge indicates the event payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")

	// ErrConditionTooDeep indicates a condition tree exceeds MaxConditionDepth.
	ErrConditionTooDeep = errors.New("condition tree exceeds maximum depth")

	// ErrChainTooLong indicates an ExecuteNext chain exceeded MaxChainHops
	// within a single evaluation cycle.
	ErrChainTooLong = errors.New("node chain exceeds maximum hops")
)
