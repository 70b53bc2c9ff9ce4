// internal/engine/evaluate.go
package engine

import (
	"fmt"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

/*
 * Condition tree evaluation.
 *
 * Evaluate is a pure function of (tree, fact bag): identical inputs always
 * yield the same boolean. The evaluator is total over well-formed trees -
 * every operator family has a defined result - and fails closed on data
 * problems: missing facts, type mismatches and Undefined arithmetic all
 * evaluate to false rather than erroring.
 *
 * Errors are reserved for configuration defects the author must fix:
 * Composition None with children present, an Iterate condition without
 * exactly one child, or a tree deeper than MaxConditionDepth. Those abort
 * the cycle with the instance untouched.
 *
 * Short-circuit semantics: And stops on the first false child, Or on the
 * first true child. Operand resolution happens strictly in child order, so a
 * side-effecting resolver placed after a determining child is never invoked.
 */

// Evaluate judges a condition tree against the fact bag.
func Evaluate(cond *types.Condition, facts *FactBag) (bool, error) {
	return evaluate(cond, facts, 0)
}

func evaluate(cond *types.Condition, facts *FactBag, depth int) (bool, error) {
	if cond == nil {
		// A rule without a condition fires unconditionally.
		return true, nil
	}
	if depth > types.MaxConditionDepth {
		return false, fmt.Errorf("condition %q: %w", cond.Name, types.ErrConditionTooDeep)
	}

	switch cond.Operator {
	case types.OperatorLogical:
		return evaluateLogical(cond, facts), nil
	case types.OperatorMathematical:
		evaluateMathematical(cond, facts)
		// Publishing a derived value never decides a rule by itself.
		return true, nil
	case types.OperatorComposition:
		return evaluateComposition(cond, facts, depth)
	case types.OperatorIterate:
		return evaluateIterate(cond, facts, depth)
	default:
		return false, fmt.Errorf("condition %q: unknown operator type %q: %w",
			cond.Name, cond.Operator, types.ErrConfiguration)
	}
}

// evaluateLogical judges a leaf. All data problems fail closed.
func evaluateLogical(cond *types.Condition, facts *FactBag) bool {
	switch cond.Logical {
	case types.OpNone:
		return true

	case types.OpExists:
		// Exists is the one operator whose whole point is a possibly-missing
		// operand: present and non-null wins.
		if cond.First == nil || cond.First.Literal() {
			return false
		}
		v, ok := facts.Get(cond.First.Name)
		return ok && v != nil

	case types.OpHasConsecutiveOccurrences:
		arr, ok := resolveCoerced(cond.First, types.DataArray, facts)
		if !ok {
			return false
		}
		probe, ok := resolveRaw(cond.Second, facts)
		if !ok {
			return false
		}
		minRun, ok := resolveCoerced(cond.Third, types.DataInteger, facts)
		if !ok {
			return false
		}
		return hasConsecutiveRun(arr.([]any), probe, int(minRun.(float64)))

	case types.OpRangesOverlap:
		// Ranges are shape-checked by the comparison itself; coercing a
		// {start, end} map through the scalar types would always fail.
		left, ok := resolveOperand(cond.First, facts)
		if !ok {
			return false
		}
		right, ok := resolveOperand(cond.Second, facts)
		if !ok {
			return false
		}
		return rangesOverlap(left, right)

	default:
		left, ok := resolveOperand(cond.First, facts)
		if !ok {
			return false
		}
		coerced, ok := coerce(left, operandType(cond.First, cond.Logical))
		if !ok {
			return false
		}
		right, _ := resolveRaw(cond.Second, facts)
		return compareLogical(cond.Logical, coerced, right)
	}
}

// evaluateMathematical computes the derived value and publishes it under the
// condition's output tag (falling back to the condition name).
func evaluateMathematical(cond *types.Condition, facts *FactBag) {
	a, aok := resolveRaw(cond.First, facts)
	b, bok := resolveRaw(cond.Second, facts)
	result := any(Undefined)
	if aok && bok {
		result = applyMath(cond.Mathematical, a, b)
	}
	tag := cond.OutputTag
	if tag == "" {
		tag = cond.Name
	}
	if tag != "" {
		facts.Set(tag, result)
	}
}

// evaluateComposition combines child results with And/Or short-circuit.
// None with children present is a configuration error; None with zero
// children is vacuously true.
func evaluateComposition(cond *types.Condition, facts *FactBag, depth int) (bool, error) {
	switch cond.Composition {
	case types.CompositionAnd:
		for _, child := range cond.Children {
			ok, err := evaluate(child, facts, depth+1)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case types.CompositionOr:
		for _, child := range cond.Children {
			ok, err := evaluate(child, facts, depth+1)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case types.CompositionNone:
		if len(cond.Children) > 0 {
			return false, fmt.Errorf("condition %q: composition None cannot have children: %w",
				cond.Name, types.ErrConfiguration)
		}
		return true, nil
	default:
		return false, fmt.Errorf("condition %q: unknown composition operator %q: %w",
			cond.Name, cond.Composition, types.ErrConfiguration)
	}
}

// evaluateIterate applies the single child across elements of an array
// operand, binding each element under the alias and combining per the
// condition's composition operator (And=all, Or=any).
func evaluateIterate(cond *types.Condition, facts *FactBag, depth int) (bool, error) {
	if len(cond.Children) != 1 {
		return false, fmt.Errorf("condition %q: iterate requires exactly one child: %w",
			cond.Name, types.ErrConfiguration)
	}
	arrVal, ok := resolveCoerced(cond.First, types.DataArray, facts)
	if !ok {
		return false, nil
	}
	arr := arrVal.([]any)

	alias := cond.As
	if alias == "" {
		alias = "item"
	}
	prev, hadPrev := facts.Get(alias)
	defer func() {
		if hadPrev {
			facts.Set(alias, prev)
		} else {
			facts.Delete(alias)
		}
	}()

	all := cond.Composition != types.CompositionOr
	for _, elem := range arr {
		facts.Set(alias, elem)
		ok, err := evaluate(cond.Children[0], facts, depth+1)
		if err != nil {
			return false, err
		}
		if all && !ok {
			return false, nil
		}
		if !all && ok {
			return true, nil
		}
	}
	// All-mode is vacuously true over an empty array; any-mode found nothing.
	return all, nil
}

// resolveRaw resolves an operand and coerces it to its declared type when one
// is set, returning the raw value otherwise.
func resolveRaw(op *types.Operand, facts *FactBag) (any, bool) {
	v, ok := resolveOperand(op, facts)
	if !ok {
		return nil, false
	}
	if op.DataType == "" {
		return v, true
	}
	return coerce(v, op.DataType)
}

// resolveCoerced resolves an operand and coerces it to an explicit type,
// ignoring the operand's own declaration.
func resolveCoerced(op *types.Operand, dt types.OperandDataType, facts *FactBag) (any, bool) {
	v, ok := resolveOperand(op, facts)
	if !ok {
		return nil, false
	}
	return coerce(v, dt)
}

// operandType returns the declared type. Untyped operands default to the
// shape the operator needs: Boolean for IsTrue/IsFalse, Array for the
// container side of Contains, Float for ordering, Text otherwise.
func operandType(op *types.Operand, logical types.LogicalOperator) types.OperandDataType {
	if op != nil && op.DataType != "" {
		return op.DataType
	}
	switch logical {
	case types.OpIsTrue, types.OpIsFalse:
		return types.DataBoolean
	case types.OpContains, types.OpDoesNotContain:
		return types.DataArray
	case types.OpGreaterThan, types.OpGreaterThanOrEqual,
		types.OpLessThan, types.OpLessThanOrEqual, types.OpBetween:
		return types.DataFloat
	default:
		return types.DataText
	}
}
