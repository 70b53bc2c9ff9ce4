// internal/engine/validate.go
package engine

import (
	"fmt"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

/*
 * Schema graph validation.
 *
 * Validation runs at authoring time, when a schema document is registered,
 * so configuration defects surface to the author instead of failing cycles
 * in production. Evaluation-time checks still exist for the constructs only
 * the fact bag can reveal; everything statically checkable is checked here.
 *
 * Checked invariants:
 *   - enums are members of their value sets
 *   - the root node exists and every ExecuteNext target resolves
 *   - leaf conditions have no children; None composition has no children
 *   - Iterate conditions have exactly one child and an array operand
 *   - condition depth and per-node rule count stay within limits
 */

// ValidateSchema checks a parsed schema graph. All defects are reported as
// ErrValidation wraps naming the offending node or rule.
func ValidateSchema(s *types.Schema) error {
	if s.Name == "" {
		return fmt.Errorf("schema name required: %w", types.ErrValidation)
	}
	if !s.Type.Valid() {
		return fmt.Errorf("schema %q: unknown schema type %q: %w", s.Name, s.Type, types.ErrValidation)
	}
	if s.RootNode() == nil {
		return fmt.Errorf("schema %q: root node %q not defined: %w", s.Name, s.RootNodeID, types.ErrValidation)
	}
	for id, node := range s.Nodes {
		if err := validateNode(s, id, node); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(s *types.Schema, id types.NodeID, node *types.Node) error {
	if node == nil {
		return fmt.Errorf("schema %q: node %q is empty: %w", s.Name, id, types.ErrValidation)
	}
	if len(node.Rules) > types.MaxRulesPerNode {
		return fmt.Errorf("schema %q: node %q has %d rules, limit %d: %w",
			s.Name, id, len(node.Rules), types.MaxRulesPerNode, types.ErrValidation)
	}
	for i, rule := range node.Rules {
		if rule.Action == nil {
			return fmt.Errorf("schema %q: node %q rule %d has no action: %w",
				s.Name, id, i, types.ErrValidation)
		}
		if !rule.Action.Type.Valid() {
			return fmt.Errorf("schema %q: node %q rule %d: unknown action type %q: %w",
				s.Name, id, i, rule.Action.Type, types.ErrValidation)
		}
		if rule.Action.Type == types.ActionExecuteNext {
			next, ok := rule.Action.Params["NextNodeId"].(string)
			if !ok || s.Node(types.NodeID(next)) == nil {
				return fmt.Errorf("schema %q: node %q rule %d: ExecuteNext target %q not defined: %w",
					s.Name, id, i, next, types.ErrValidation)
			}
		}
		if err := validateCondition(rule.Condition, 0); err != nil {
			return fmt.Errorf("schema %q: node %q rule %d: %w", s.Name, id, i, err)
		}
	}
	return nil
}

func validateCondition(cond *types.Condition, depth int) error {
	if cond == nil {
		return nil
	}
	if depth > types.MaxConditionDepth {
		return fmt.Errorf("%w: %w", types.ErrConditionTooDeep, types.ErrValidation)
	}
	switch cond.Operator {
	case types.OperatorLogical:
		if !cond.Logical.Valid() {
			return fmt.Errorf("condition %q: unknown logical operator %q: %w",
				cond.Name, cond.Logical, types.ErrValidation)
		}
		if len(cond.Children) > 0 {
			return fmt.Errorf("condition %q: logical leaf cannot have children: %w",
				cond.Name, types.ErrValidation)
		}
	case types.OperatorMathematical:
		if !cond.Mathematical.Valid() {
			return fmt.Errorf("condition %q: unknown mathematical operator %q: %w",
				cond.Name, cond.Mathematical, types.ErrValidation)
		}
		if len(cond.Children) > 0 {
			return fmt.Errorf("condition %q: mathematical leaf cannot have children: %w",
				cond.Name, types.ErrValidation)
		}
		if cond.OutputTag == "" && cond.Name == "" {
			return fmt.Errorf("mathematical condition needs an output tag or name: %w",
				types.ErrValidation)
		}
	case types.OperatorComposition:
		if !cond.Composition.Valid() {
			return fmt.Errorf("condition %q: unknown composition operator %q: %w",
				cond.Name, cond.Composition, types.ErrValidation)
		}
		if cond.Composition == types.CompositionNone && len(cond.Children) > 0 {
			return fmt.Errorf("condition %q: composition None cannot have children: %w",
				cond.Name, types.ErrValidation)
		}
	case types.OperatorIterate:
		if len(cond.Children) != 1 {
			return fmt.Errorf("condition %q: iterate requires exactly one child: %w",
				cond.Name, types.ErrValidation)
		}
		if cond.First == nil {
			return fmt.Errorf("condition %q: iterate requires an array operand: %w",
				cond.Name, types.ErrValidation)
		}
	default:
		return fmt.Errorf("condition %q: unknown operator type %q: %w",
			cond.Name, cond.Operator, types.ErrValidation)
	}
	for _, child := range cond.Children {
		if err := validateCondition(child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
