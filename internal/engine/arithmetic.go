// internal/engine/arithmetic.go
package engine

import "github.com/meritkeeper/meritkeeper/internal/types"

/*
 * Mathematical condition arithmetic.
 *
 * A Mathematical leaf computes a derived value from two operands and
 * publishes it into the fact bag under its output tag, where a sibling or
 * parent Logical condition consumes it. Division by zero yields the
 * Undefined sentinel rather than an error; every comparison against
 * Undefined fails closed.
 */

// applyMath computes the operator over two float operands. An unusable input
// publishes Undefined just like division by zero, keeping the evaluator
// total.
func applyMath(op types.MathematicalOperator, a, b any) any {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if !aok || !bok {
		return Undefined
	}
	switch op {
	case types.MathAdd:
		return fa + fb
	case types.MathSubtract:
		return fa - fb
	case types.MathMultiply:
		return fa * fb
	case types.MathDivide:
		if fb == 0 {
			return Undefined
		}
		return fa / fb
	case types.MathPercentage:
		if fb == 0 {
			return Undefined
		}
		return fa / fb * 100
	case types.MathNone:
		return fa
	default:
		return Undefined
	}
}
