// internal/engine/operators_test.go
package engine

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/meritkeeper/meritkeeper/internal/types"
)

func TestCompareLogical(t *testing.T) {
	tests := []struct {
		name  string
		op    types.LogicalOperator
		left  any
		right any
		want  bool
	}{
		{"equal numeric tolerance", types.OpEqual, float64(5), 5, true},
		{"equal numeric string", types.OpEqual, "5", float64(5), true},
		{"not equal", types.OpNotEqual, "a", "b", true},
		{"greater than strings", types.OpGreaterThan, "beta", "alpha", true},
		{"mixed kinds incomparable", types.OpGreaterThan, "x", float64(1), false},
		{"less than or equal boundary", types.OpLessThanOrEqual, float64(3), float64(3), true},
		{"in with loose equality", types.OpIn, float64(2), []any{1, 2, 3}, true},
		{"in non-array set", types.OpIn, "x", "xyz", false},
		{"contains", types.OpContains, []any{"a", "b"}, "b", true},
		{"does not contain", types.OpDoesNotContain, []any{"a"}, "b", true},
		{"between inclusive bounds", types.OpBetween, float64(10), []any{float64(10), float64(20)}, true},
		{"between reversed bounds", types.OpBetween, float64(15), []any{float64(20), float64(10)}, true},
		{"between outside", types.OpBetween, float64(25), []any{float64(10), float64(20)}, false},
		{"is true non-bool", types.OpIsTrue, "true", nil, false},
		{"none", types.OpNone, nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compareLogical(tt.op, tt.left, tt.right); got != tt.want {
				t.Errorf("compareLogical(%s, %v, %v) = %v, want %v", tt.op, tt.left, tt.right, got, tt.want)
			}
		})
	}
}

func TestApplyMath(t *testing.T) {
	tests := []struct {
		name string
		op   types.MathematicalOperator
		a, b any
		want any
	}{
		{"add", types.MathAdd, float64(2), float64(3), float64(5)},
		{"subtract", types.MathSubtract, float64(2), float64(3), float64(-1)},
		{"multiply", types.MathMultiply, float64(4), float64(2.5), float64(10)},
		{"divide", types.MathDivide, float64(9), float64(3), float64(3)},
		{"divide by zero", types.MathDivide, float64(9), float64(0), Undefined},
		{"percentage", types.MathPercentage, float64(3), float64(4), float64(75)},
		{"percentage of zero total", types.MathPercentage, float64(3), float64(0), Undefined},
		{"numeric strings", types.MathAdd, "2", "3", float64(5)},
		{"unusable input", types.MathAdd, "two", float64(3), Undefined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := applyMath(tt.op, tt.a, tt.b); got != tt.want {
				t.Errorf("applyMath(%s, %v, %v) = %v, want %v", tt.op, tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// Property: hasConsecutiveRun agrees with a brute-force scan for arbitrary
// boolean sequences and run lengths.
func TestHasConsecutiveRun_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("matches brute-force scan", prop.ForAll(
		func(flags []bool, minRun int) bool {
			arr := make([]any, len(flags))
			for i, f := range flags {
				arr[i] = f
			}
			got := hasConsecutiveRun(arr, true, minRun)

			best, run := 0, 0
			for _, f := range flags {
				if f {
					run++
					if run > best {
						best = run
					}
				} else {
					run = 0
				}
			}
			want := minRun >= 1 && best >= minRun
			return got == want
		},
		gen.SliceOf(gen.Bool()),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

func TestRangesOverlap_Dates(t *testing.T) {
	a := map[string]any{"start": "2025-01-01", "end": "2025-01-31"}
	b := map[string]any{"start": "2025-01-31", "end": "2025-02-15"}
	if !rangesOverlap(a, b) {
		t.Errorf("touching date ranges should overlap")
	}
	c := map[string]any{"start": "2025-03-01", "end": "2025-03-02"}
	if rangesOverlap(a, c) {
		t.Errorf("disjoint date ranges should not overlap")
	}
	if rangesOverlap(a, "not a range") {
		t.Errorf("malformed range should fail closed")
	}
}
