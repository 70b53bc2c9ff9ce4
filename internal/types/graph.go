// internal/types/graph.go
package types

/*
 * Static rule-graph structures.
 *
 * A Schema owns a set of Nodes keyed by NodeID; each Node holds an ordered
 * list of Rules; each Rule pairs one Condition tree with one RuleAction.
 * The graph is authored out of band as a JSON document, parsed and validated
 * by internal/engine, and referenced (never copied) by schema instances.
 *
 * Nodes reference each other by NodeID, not by embedded pointers, so a loaded
 * schema has no cyclic object references and lookups stay explicit.
 */

// Schema is a named, versioned rule-graph definition with a reuse policy.
type Schema struct {
	ID          SchemaID
	Name        string
	Description string
	Version     int
	Type        SchemaType
	RootNodeID  NodeID
	Nodes       map[NodeID]*Node

	// EventTypes lists the incoming event types this schema subscribes to.
	// Empty means the schema reacts to every event.
	EventTypes []EventTypeID
}

// Node is a graph vertex holding candidate rules in evaluation order.
type Node struct {
	ID    NodeID
	Name  string
	Rules []*Rule

	// AwaitedEventTypes restricts which events resume a Waiting instance
	// parked on this node. Empty means any subscribed event resumes it.
	AwaitedEventTypes []EventTypeID

	// DeadEnd marks a node whose rule misses exit the traversal instead of
	// parking it in Waiting.
	DeadEnd bool
}

// Node returns the node with the given id, or nil.
func (s *Schema) Node(id NodeID) *Node {
	if s.Nodes == nil {
		return nil
	}
	return s.Nodes[id]
}

// RootNode returns the schema's entry node, or nil for a malformed schema.
func (s *Schema) RootNode() *Node {
	return s.Node(s.RootNodeID)
}

// Subscribed reports whether the schema reacts to the given event type.
func (s *Schema) Subscribed(t EventTypeID) bool {
	if len(s.EventTypes) == 0 {
		return true
	}
	for _, et := range s.EventTypes {
		if et == t {
			return true
		}
	}
	return false
}

// Rule pairs exactly one root condition with one action. Rules are evaluated
// in order; the first rule whose condition holds wins the cycle.
type Rule struct {
	Name      string
	Condition *Condition
	Action    *RuleAction
}

// Condition is a node in a boolean/arithmetic expression tree.
//
// Leaf conditions (Logical, Mathematical) have no children. Composition
// conditions combine zero or more children with And/Or/None. Iterate
// conditions apply their single child across elements of an array operand.
type Condition struct {
	Name string

	// Operator selects the evaluation family and which of the operator
	// fields below applies.
	Operator OperatorType

	Logical      LogicalOperator
	Mathematical MathematicalOperator
	Composition  CompositionOperator

	// First is the left-hand operand of a leaf, or the array operand of an
	// Iterate condition. Second/Third carry the comparison value and
	// operator-specific extras (Between upper bound, minimum run length).
	First  *Operand
	Second *Operand
	Third  *Operand

	// As names the per-element fact an Iterate condition binds while
	// evaluating its child. Defaults to "item".
	As string

	// OutputTag names the derived fact a Mathematical condition publishes
	// for sibling or parent conditions. Defaults to the condition name.
	OutputTag string

	Children []*Condition
}

// Operand describes one input of a leaf condition. A named operand resolves
// from the fact bag; an unnamed operand is a literal.
type Operand struct {
	DataType OperandDataType

	// Name is the fact-bag key to resolve. Empty for literals.
	Name string

	// Value is the literal value. Ignored when Name is set.
	Value any
}

// Literal reports whether the operand carries an inline value.
func (o *Operand) Literal() bool {
	return o != nil && o.Name == ""
}

// RuleAction is the effect executed when a rule's condition is satisfied.
// Params carries action-specific keys decoded by the executor (NextNodeId,
// Message, extraction filters, storage keys).
type RuleAction struct {
	Type   ActionType
	Name   string
	Params map[string]any
}
