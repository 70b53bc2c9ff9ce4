package types

/*
 * Enumerations for the rule/event engine.
 *
 * Each enum is a string type with a fixed value set, a Valid() predicate and a
 * Parse helper. The …Values functions derive iteration lists from the single
 * declaration; no hand-maintained parallel arrays.
 */

// ContextType distinguishes person subjects from group subjects.
type ContextType string

const (
	ContextPerson ContextType = "Person"
	ContextGroup  ContextType = "Group"
)

// ContextTypeValues returns all valid context types.
func ContextTypeValues() []ContextType {
	return []ContextType{ContextPerson, ContextGroup}
}

// Valid reports whether the value is a member of the enum.
func (t ContextType) Valid() bool {
	return t == ContextPerson || t == ContextGroup
}

// SchemaType is the instance reuse policy of a schema.
type SchemaType string

const (
	// ExecuteOnce runs at most one instance ever per (schema, context);
	// never recreated after reaching a terminal state. Suits one-shot
	// promotions.
	ExecuteOnce SchemaType = "ExecuteOnce"

	// ReuseExistingInstance keeps one long-lived instance reused across every
	// matching event. Suits lightweight per-event checks.
	ReuseExistingInstance SchemaType = "ReuseExistingInstance"

	// RecreateNewAfterExecution creates a fresh instance each time the
	// previous one reaches a terminal status.
	RecreateNewAfterExecution SchemaType = "RecreateNewAfterExecution"
)

// SchemaTypeValues returns all valid schema reuse policies.
func SchemaTypeValues() []SchemaType {
	return []SchemaType{ExecuteOnce, ReuseExistingInstance, RecreateNewAfterExecution}
}

// Valid reports whether the value is a member of the enum.
func (t SchemaType) Valid() bool {
	switch t {
	case ExecuteOnce, ReuseExistingInstance, RecreateNewAfterExecution:
		return true
	}
	return false
}

// OperatorType tags a condition node with its evaluation family.
type OperatorType string

const (
	OperatorLogical      OperatorType = "Logical"
	OperatorMathematical OperatorType = "Mathematical"
	OperatorComposition  OperatorType = "Composition"
	OperatorIterate      OperatorType = "Iterate"
)

// OperatorTypeValues returns all valid operator families.
func OperatorTypeValues() []OperatorType {
	return []OperatorType{OperatorLogical, OperatorMathematical, OperatorComposition, OperatorIterate}
}

// Valid reports whether the value is a member of the enum.
func (t OperatorType) Valid() bool {
	switch t {
	case OperatorLogical, OperatorMathematical, OperatorComposition, OperatorIterate:
		return true
	}
	return false
}

// CompositionOperator combines child condition results.
type CompositionOperator string

const (
	CompositionAnd  CompositionOperator = "And"
	CompositionOr   CompositionOperator = "Or"
	CompositionNone CompositionOperator = "None"
)

// CompositionOperatorValues returns all valid composition operators.
func CompositionOperatorValues() []CompositionOperator {
	return []CompositionOperator{CompositionAnd, CompositionOr, CompositionNone}
}

// Valid reports whether the value is a member of the enum.
func (op CompositionOperator) Valid() bool {
	switch op {
	case CompositionAnd, CompositionOr, CompositionNone:
		return true
	}
	return false
}

// LogicalOperator compares a resolved operand against another.
type LogicalOperator string

const (
	OpEqual              LogicalOperator = "Equal"
	OpNotEqual           LogicalOperator = "NotEqual"
	OpGreaterThan        LogicalOperator = "GreaterThan"
	OpGreaterThanOrEqual LogicalOperator = "GreaterThanOrEqual"
	OpLessThan           LogicalOperator = "LessThan"
	OpLessThanOrEqual    LogicalOperator = "LessThanOrEqual"
	OpIn                 LogicalOperator = "In"
	OpNotIn              LogicalOperator = "NotIn"
	OpContains           LogicalOperator = "Contains"
	OpDoesNotContain     LogicalOperator = "DoesNotContain"
	OpBetween            LogicalOperator = "Between"
	OpIsTrue             LogicalOperator = "IsTrue"
	OpIsFalse            LogicalOperator = "IsFalse"
	OpExists             LogicalOperator = "Exists"

	// OpHasConsecutiveOccurrences checks an array operand for a run of at
	// least N consecutive elements equal to a probe value.
	OpHasConsecutiveOccurrences LogicalOperator = "HasConsecutiveOccurrences"

	// OpRangesOverlap checks two {Start, End} ranges for intersection.
	OpRangesOverlap LogicalOperator = "RangesOverlap"

	// OpNone always evaluates to true; placeholder for rules that fire
	// unconditionally.
	OpNone LogicalOperator = "None"
)

// LogicalOperatorValues returns all valid logical operators.
func LogicalOperatorValues() []LogicalOperator {
	return []LogicalOperator{
		OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual,
		OpLessThan, OpLessThanOrEqual, OpIn, OpNotIn, OpContains,
		OpDoesNotContain, OpBetween, OpIsTrue, OpIsFalse, OpExists,
		OpHasConsecutiveOccurrences, OpRangesOverlap, OpNone,
	}
}

// Valid reports whether the value is a member of the enum.
func (op LogicalOperator) Valid() bool {
	for _, v := range LogicalOperatorValues() {
		if op == v {
			return true
		}
	}
	return false
}

// MathematicalOperator computes a derived value from two operands.
type MathematicalOperator string

const (
	MathAdd        MathematicalOperator = "Add"
	MathSubtract   MathematicalOperator = "Subtract"
	MathDivide     MathematicalOperator = "Divide"
	MathMultiply   MathematicalOperator = "Multiply"
	MathPercentage MathematicalOperator = "Percentage"
	MathNone       MathematicalOperator = "None"
)

// MathematicalOperatorValues returns all valid mathematical operators.
func MathematicalOperatorValues() []MathematicalOperator {
	return []MathematicalOperator{MathAdd, MathSubtract, MathDivide, MathMultiply, MathPercentage, MathNone}
}

// Valid reports whether the value is a member of the enum.
func (op MathematicalOperator) Valid() bool {
	switch op {
	case MathAdd, MathSubtract, MathDivide, MathMultiply, MathPercentage, MathNone:
		return true
	}
	return false
}

// OperandDataType is the declared type of a condition operand.
type OperandDataType string

const (
	DataFloat   OperandDataType = "Float"
	DataInteger OperandDataType = "Integer"
	DataBoolean OperandDataType = "Boolean"
	DataText    OperandDataType = "Text"
	DataArray   OperandDataType = "Array"
)

// OperandDataTypeValues returns all valid operand data types.
func OperandDataTypeValues() []OperandDataType {
	return []OperandDataType{DataFloat, DataInteger, DataBoolean, DataText, DataArray}
}

// Valid reports whether the value is a member of the enum.
func (t OperandDataType) Valid() bool {
	switch t {
	case DataFloat, DataInteger, DataBoolean, DataText, DataArray:
		return true
	}
	return false
}

// ActionType selects the effect executed when a rule's condition holds.
type ActionType string

const (
	ActionExecuteNext               ActionType = "ExecuteNext"
	ActionWaitForInputEvents        ActionType = "WaitForInputEvents"
	ActionExit                      ActionType = "Exit"
	ActionAwardBadge                ActionType = "AwardBadge"
	ActionAwardPoints               ActionType = "AwardPoints"
	ActionCalculateContinuityBadges ActionType = "CalculateContinuityBadges"
	ActionExtractExistingBadges     ActionType = "ExtractExistingBadges"
	ActionCustom                    ActionType = "Custom"
)

// ActionTypeValues returns all valid action types.
func ActionTypeValues() []ActionType {
	return []ActionType{
		ActionExecuteNext, ActionWaitForInputEvents, ActionExit,
		ActionAwardBadge, ActionAwardPoints, ActionCalculateContinuityBadges,
		ActionExtractExistingBadges, ActionCustom,
	}
}

// Valid reports whether the value is a member of the enum.
func (t ActionType) Valid() bool {
	for _, v := range ActionTypeValues() {
		if t == v {
			return true
		}
	}
	return false
}

// ExecutionStatus is the lifecycle state of a schema instance.
//
// Transitions: Pending -> Executed -> {Pending | Waiting | Exited},
// Waiting -> Pending on a matching event, Exited terminal.
type ExecutionStatus string

const (
	StatusPending  ExecutionStatus = "Pending"
	StatusExecuted ExecutionStatus = "Executed"
	StatusWaiting  ExecutionStatus = "Waiting"
	StatusExited   ExecutionStatus = "Exited"
)

// ExecutionStatusValues returns all valid execution statuses.
func ExecutionStatusValues() []ExecutionStatus {
	return []ExecutionStatus{StatusPending, StatusExecuted, StatusWaiting, StatusExited}
}

// Valid reports whether the value is a member of the enum.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusExecuted, StatusWaiting, StatusExited:
		return true
	}
	return false
}

// Terminal reports whether the status ends the instance's lifecycle.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusExited
}

// RecordType keys the extractor/store capability registries.
type RecordType string

const (
	RecordRewardPoints RecordType = "RewardPoints"
	RecordBadge        RecordType = "Badge"
)

// RewardPointsStatus is the redemption lifecycle of a points grant.
type RewardPointsStatus string

const (
	PointsActive   RewardPointsStatus = "Active"
	PointsExpired  RewardPointsStatus = "Expired"
	PointsRedeemed RewardPointsStatus = "Redeemed"
)
