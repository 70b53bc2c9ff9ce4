// internal/engine/operators.go
package engine

import "github.com/meritkeeper/meritkeeper/internal/types"

/*
 * Logical operator comparison logic.
 *
 * compareLogical applies one LogicalOperator to already-coerced values. The
 * functions are total: any shape they cannot compare yields false, never an
 * error, which keeps the evaluator fail-closed.
 *
 * Why function-based: seventeen operators via switch read better than
 * seventeen single-method types with minimal behavior variation.
 */

// compareLogical applies op to the coerced left value and raw right value.
// The right side is coerced per operator needs (sets stay []any, scalars get
// numeric tolerance).
func compareLogical(op types.LogicalOperator, left, right any) bool {
	switch op {
	case types.OpEqual:
		return looseEqual(left, right)
	case types.OpNotEqual:
		return !looseEqual(left, right)
	case types.OpGreaterThan:
		c, ok := compareOrdered(left, right)
		return ok && c > 0
	case types.OpGreaterThanOrEqual:
		c, ok := compareOrdered(left, right)
		return ok && c >= 0
	case types.OpLessThan:
		c, ok := compareOrdered(left, right)
		return ok && c < 0
	case types.OpLessThanOrEqual:
		c, ok := compareOrdered(left, right)
		return ok && c <= 0
	case types.OpIn:
		return memberOf(left, right)
	case types.OpNotIn:
		return !memberOf(left, right)
	case types.OpContains:
		return containsElement(left, right)
	case types.OpDoesNotContain:
		return !containsElement(left, right)
	case types.OpBetween:
		return between(left, right)
	case types.OpIsTrue:
		b, ok := left.(bool)
		return ok && b
	case types.OpIsFalse:
		b, ok := left.(bool)
		return ok && !b
	case types.OpRangesOverlap:
		return rangesOverlap(left, right)
	case types.OpNone:
		return true
	default:
		// Exists and HasConsecutiveOccurrences are handled by the evaluator
		// (they need the bag or a third operand); anything else fails closed.
		return false
	}
}

// looseEqual compares with numeric tolerance so float64/int/int64 mixing
// from JSON decoding compares by value.
func looseEqual(a, b any) bool {
	if na, aok := toFloat(a); aok {
		if nb, bok := toFloat(b); bok {
			return na == nb
		}
		// Numeric string vs non-numeric falls through to direct equality.
	}
	return a == b
}

// compareOrdered performs three-way comparison (-1/0/1). Numbers compare
// numerically, strings lexicographically; mixed kinds are incomparable.
func compareOrdered(a, b any) (int, bool) {
	na, aok := toFloat(a)
	nb, bok := toFloat(b)
	if aok && bok {
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		default:
			return 0, true
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		switch {
		case sa < sb:
			return -1, true
		case sa > sb:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

// memberOf checks set membership with looseEqual semantics.
func memberOf(value, set any) bool {
	arr, ok := set.([]any)
	if !ok {
		return false
	}
	for _, elem := range arr {
		if looseEqual(value, elem) {
			return true
		}
	}
	return false
}

// containsElement checks whether the array on the left contains the value on
// the right. Mirror image of memberOf.
func containsElement(arr, value any) bool {
	return memberOf(value, arr)
}

// between checks low <= value <= high against a two-element bounds array.
func between(value, bounds any) bool {
	arr, ok := bounds.([]any)
	if !ok || len(arr) != 2 {
		return false
	}
	v, vok := toFloat(value)
	lo, lok := toFloat(arr[0])
	hi, hok := toFloat(arr[1])
	if !vok || !lok || !hok {
		return false
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// rangesOverlap checks two closed intervals for intersection. Either side
// may be a {start, end} map or a two-element array; bounds may be numbers or
// date strings.
func rangesOverlap(a, b any) bool {
	alo, ahi, aok := toRange(a)
	blo, bhi, bok := toRange(b)
	if !aok || !bok {
		return false
	}
	return alo <= bhi && blo <= ahi
}

// hasConsecutiveRun checks an array for a run of at least minRun consecutive
// elements loosely equal to probe. minRun below 1 never matches.
func hasConsecutiveRun(arr []any, probe any, minRun int) bool {
	if minRun < 1 {
		return false
	}
	run := 0
	for _, elem := range arr {
		if looseEqual(elem, probe) {
			run++
			if run >= minRun {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}
