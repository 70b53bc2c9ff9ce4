// internal/engine/operands.go
package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

/*
 * Operand resolution and coercion.
 *
 * An operand resolves from the fact bag when named, or yields its literal
 * value. The resolved value is then coerced to the operand's declared type.
 * Coercion failure is not an error: the evaluator fails closed (false), so a
 * type mismatch in authored data can never crash a cycle.
 *
 * Type modes follow the five-type system:
 *   - Float:   lenient numeric - float64/int/int64 and numeric strings
 *   - Integer: numeric with an integral-value check
 *   - Boolean: strict - bool only (avoids "true" vs 1 ambiguity)
 *   - Text:    lenient - numbers and booleans stringified
 *   - Array:   []any only
 *
 * The Undefined sentinel produced by division by zero fails every coercion,
 * which is what makes comparisons against it evaluate to false.
 */

// undefined is the sentinel for arithmetically undefined results.
type undefined struct{}

// Undefined is the value a Mathematical condition publishes when its result
// does not exist (division by zero). Any comparison against it is false.
var Undefined = undefined{}

// resolveOperand yields the operand's raw value: fact-bag lookup for named
// operands, the inline literal otherwise. ok=false means a named operand was
// missing from the bag.
func resolveOperand(op *types.Operand, facts *FactBag) (any, bool) {
	if op == nil {
		return nil, false
	}
	if op.Literal() {
		return op.Value, true
	}
	return facts.Get(op.Name)
}

// coerce converts a resolved value to the operand's declared type.
// ok=false signals a mismatch; the caller fails closed.
func coerce(value any, dt types.OperandDataType) (any, bool) {
	if value == nil {
		return nil, false
	}
	if _, isUndef := value.(undefined); isUndef {
		return nil, false
	}
	switch dt {
	case types.DataFloat:
		return toFloat(value)
	case types.DataInteger:
		f, ok := toFloat(value)
		if !ok || f != float64(int64(f)) {
			return nil, false
		}
		return f, true
	case types.DataBoolean:
		b, ok := value.(bool)
		return b, ok
	case types.DataText:
		return toText(value)
	case types.DataArray:
		arr, ok := value.([]any)
		return arr, ok
	default:
		return nil, false
	}
}

// toFloat converts numeric types and numeric strings to float64.
// Whitespace-only strings are not valid numbers.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toText stringifies scalars. Arrays and maps do not coerce to text.
func toText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}

// toRange interprets a value as a closed interval for RangesOverlap.
// Accepts {"start": x, "end": y} maps (capitalized keys tolerated) and
// two-element arrays. Bounds may be numbers or RFC3339/date strings; dates
// compare on the time line.
func toRange(v any) (lo, hi float64, ok bool) {
	switch r := v.(type) {
	case map[string]any:
		start, sok := rangeBound(firstOf(r, "start", "Start"))
		end, eok := rangeBound(firstOf(r, "end", "End"))
		if !sok || !eok {
			return 0, 0, false
		}
		return orderBounds(start, end)
	case []any:
		if len(r) != 2 {
			return 0, 0, false
		}
		start, sok := rangeBound(r[0])
		end, eok := rangeBound(r[1])
		if !sok || !eok {
			return 0, 0, false
		}
		return orderBounds(start, end)
	default:
		return 0, 0, false
	}
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

// rangeBound converts one interval bound to a point on the comparison line.
// Date strings map to unix seconds so date and numeric ranges never mix
// meaningfully but each compares consistently within its own kind.
func rangeBound(v any) (float64, bool) {
	if f, ok := toFloat(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return float64(t.Unix()), true
			}
		}
	}
	return 0, false
}

func orderBounds(a, b float64) (float64, float64, bool) {
	if a > b {
		return b, a, true
	}
	return a, b, true
}
