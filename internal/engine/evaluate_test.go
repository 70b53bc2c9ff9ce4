// internal/engine/evaluate_test.go
package engine

import (
	"errors"
	"testing"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

func leaf(op types.LogicalOperator, first, second *types.Operand) *types.Condition {
	return &types.Condition{
		Operator: types.OperatorLogical,
		Logical:  op,
		First:    first,
		Second:   second,
	}
}

func fact(name string) *types.Operand {
	return &types.Operand{Name: name}
}

func typedFact(name string, dt types.OperandDataType) *types.Operand {
	return &types.Operand{Name: name, DataType: dt}
}

func lit(v any) *types.Operand {
	return &types.Operand{Value: v}
}

func TestEvaluate_LogicalLeaves(t *testing.T) {
	facts := NewFactBag(map[string]any{
		"status": "active",
		"steps":  float64(9200),
		"done":   true,
		"tags":   []any{"gold", "silver"},
	})

	tests := []struct {
		name string
		cond *types.Condition
		want bool
	}{
		{"equal text match", leaf(types.OpEqual, fact("status"), lit("active")), true},
		{"equal text mismatch", leaf(types.OpEqual, fact("status"), lit("inactive")), false},
		{"equal numeric string vs number", leaf(types.OpEqual, typedFact("steps", types.DataFloat), lit("9200")), true},
		{"greater than", leaf(types.OpGreaterThan, fact("steps"), lit(8000)), true},
		{"greater than fails", leaf(types.OpGreaterThan, fact("steps"), lit(10000)), false},
		{"between inclusive", leaf(types.OpBetween, fact("steps"), lit([]any{float64(9000), float64(9500)})), true},
		{"is true untyped operand", leaf(types.OpIsTrue, fact("done"), nil), true},
		{"is false", leaf(types.OpIsFalse, fact("done"), nil), false},
		{"in", leaf(types.OpIn, fact("status"), lit([]any{"active", "paused"})), true},
		{"not in", leaf(types.OpNotIn, fact("status"), lit([]any{"paused"})), true},
		{"contains untyped array operand", leaf(types.OpContains, fact("tags"), lit("gold")), true},
		{"does not contain", leaf(types.OpDoesNotContain, fact("tags"), lit("bronze")), true},
		{"exists present", leaf(types.OpExists, fact("status"), nil), true},
		{"exists missing", leaf(types.OpExists, fact("nope"), nil), false},
		{"none always true", leaf(types.OpNone, nil, nil), true},
		{"missing fact fails closed", leaf(types.OpEqual, fact("nope"), lit("x")), false},
		{"type mismatch fails closed", leaf(types.OpGreaterThan, fact("status"), lit(5)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.cond, facts)
			if err != nil {
				t.Fatalf("Evaluate() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_NilConditionFires(t *testing.T) {
	got, err := Evaluate(nil, NewFactBag(nil))
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if !got {
		t.Errorf("Evaluate(nil) = false, want true")
	}
}

func TestEvaluate_MathematicalPublishes(t *testing.T) {
	facts := NewFactBag(map[string]any{"completed": float64(7), "total": float64(10)})
	cond := &types.Condition{
		Operator: types.OperatorComposition,
		Children: []*types.Condition{
			{
				Operator:     types.OperatorMathematical,
				Mathematical: types.MathPercentage,
				First:        fact("completed"),
				Second:       fact("total"),
				OutputTag:    "completionRate",
			},
			leaf(types.OpGreaterThanOrEqual, fact("completionRate"), lit(70)),
		},
	}
	// Composition defaults to And when linked from a document; set explicitly
	// here since the tree is hand-built.
	cond.Composition = types.CompositionAnd

	got, err := Evaluate(cond, facts)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if !got {
		t.Errorf("Evaluate() = false, want true")
	}
	if v, ok := facts.Get("completionRate"); !ok || v.(float64) != 70 {
		t.Errorf("completionRate = %v, want 70", v)
	}
}

func TestEvaluate_DivisionByZeroFailsClosed(t *testing.T) {
	facts := NewFactBag(map[string]any{"a": float64(5), "b": float64(0)})
	cond := &types.Condition{
		Operator:    types.OperatorComposition,
		Composition: types.CompositionAnd,
		Children: []*types.Condition{
			{
				Operator:     types.OperatorMathematical,
				Mathematical: types.MathDivide,
				First:        fact("a"),
				Second:       fact("b"),
				OutputTag:    "ratio",
			},
			leaf(types.OpGreaterThan, fact("ratio"), lit(0)),
		},
	}
	got, err := Evaluate(cond, facts)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if got {
		t.Errorf("comparison against undefined ratio = true, want false")
	}
	if v, _ := facts.Get("ratio"); v != any(Undefined) {
		t.Errorf("ratio = %v, want Undefined", v)
	}
}

func TestEvaluate_AndShortCircuits(t *testing.T) {
	calls := 0
	facts := NewFactBag(map[string]any{"present": "yes"}).WithResolver(func(name string) (any, bool) {
		calls++
		return nil, false
	})
	cond := &types.Condition{
		Operator:    types.OperatorComposition,
		Composition: types.CompositionAnd,
		Children: []*types.Condition{
			leaf(types.OpEqual, fact("present"), lit("no")),
			leaf(types.OpEqual, fact("resolved"), lit("x")),
		},
	}
	got, err := Evaluate(cond, facts)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if got {
		t.Errorf("Evaluate() = true, want false")
	}
	if calls != 0 {
		t.Errorf("resolver called %d times after determining child, want 0", calls)
	}
}

func TestEvaluate_OrShortCircuits(t *testing.T) {
	calls := 0
	facts := NewFactBag(map[string]any{"present": "yes"}).WithResolver(func(name string) (any, bool) {
		calls++
		return nil, false
	})
	cond := &types.Condition{
		Operator:    types.OperatorComposition,
		Composition: types.CompositionOr,
		Children: []*types.Condition{
			leaf(types.OpEqual, fact("present"), lit("yes")),
			leaf(types.OpEqual, fact("resolved"), lit("x")),
		},
	}
	got, err := Evaluate(cond, facts)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if !got {
		t.Errorf("Evaluate() = false, want true")
	}
	if calls != 0 {
		t.Errorf("resolver called %d times after determining child, want 0", calls)
	}
}

func TestEvaluate_CompositionNone(t *testing.T) {
	facts := NewFactBag(nil)

	empty := &types.Condition{Operator: types.OperatorComposition, Composition: types.CompositionNone}
	got, err := Evaluate(empty, facts)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if !got {
		t.Errorf("None without children = false, want true")
	}

	withChildren := &types.Condition{
		Operator:    types.OperatorComposition,
		Composition: types.CompositionNone,
		Children:    []*types.Condition{leaf(types.OpNone, nil, nil)},
	}
	_, err = Evaluate(withChildren, facts)
	if !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("None with children error = %v, want ErrConfiguration", err)
	}
}

func TestEvaluate_EmptyCompositionVacuouslyTrue(t *testing.T) {
	for _, comp := range []types.CompositionOperator{types.CompositionAnd} {
		cond := &types.Condition{Operator: types.OperatorComposition, Composition: comp}
		got, err := Evaluate(cond, NewFactBag(nil))
		if err != nil {
			t.Fatalf("Evaluate() error = %v, want nil", err)
		}
		if !got {
			t.Errorf("empty %s = false, want true", comp)
		}
	}
}

func TestEvaluate_Iterate(t *testing.T) {
	facts := NewFactBag(map[string]any{
		"scores": []any{float64(80), float64(90), float64(75)},
	})

	all := &types.Condition{
		Operator:    types.OperatorIterate,
		Composition: types.CompositionAnd,
		First:       fact("scores"),
		Children: []*types.Condition{
			leaf(types.OpGreaterThanOrEqual, fact("item"), lit(70)),
		},
	}
	got, err := Evaluate(all, facts)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if !got {
		t.Errorf("all >= 70 = false, want true")
	}

	any90 := &types.Condition{
		Operator:    types.OperatorIterate,
		Composition: types.CompositionOr,
		First:       fact("scores"),
		As:          "score",
		Children: []*types.Condition{
			leaf(types.OpGreaterThanOrEqual, fact("score"), lit(90)),
		},
	}
	got, err = Evaluate(any90, facts)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if !got {
		t.Errorf("any >= 90 = false, want true")
	}

	// The element alias must not leak out of the iteration.
	if _, ok := facts.Get("score"); ok {
		t.Errorf("alias %q leaked into the bag", "score")
	}
}

func TestEvaluate_IterateEmptyArray(t *testing.T) {
	facts := NewFactBag(map[string]any{"scores": []any{}})
	cond := &types.Condition{
		Operator:    types.OperatorIterate,
		Composition: types.CompositionAnd,
		First:       fact("scores"),
		Children:    []*types.Condition{leaf(types.OpGreaterThan, fact("item"), lit(0))},
	}
	got, err := Evaluate(cond, facts)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if !got {
		t.Errorf("all-mode over empty array = false, want true")
	}
}

func TestEvaluate_IterateRequiresOneChild(t *testing.T) {
	cond := &types.Condition{
		Operator: types.OperatorIterate,
		First:    fact("scores"),
	}
	_, err := Evaluate(cond, NewFactBag(map[string]any{"scores": []any{}}))
	if !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("iterate without child error = %v, want ErrConfiguration", err)
	}
}

func TestEvaluate_DepthLimit(t *testing.T) {
	cond := leaf(types.OpNone, nil, nil)
	for i := 0; i <= types.MaxConditionDepth; i++ {
		cond = &types.Condition{
			Operator:    types.OperatorComposition,
			Composition: types.CompositionAnd,
			Children:    []*types.Condition{cond},
		}
	}
	_, err := Evaluate(cond, NewFactBag(nil))
	if !errors.Is(err, types.ErrConditionTooDeep) {
		t.Errorf("deep tree error = %v, want ErrConditionTooDeep", err)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	facts := NewFactBag(map[string]any{"steps": float64(9000)})
	cond := leaf(types.OpGreaterThan, fact("steps"), lit(8000))
	first, err := Evaluate(cond, facts)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Evaluate(cond, facts)
		if err != nil {
			t.Fatalf("Evaluate() error = %v, want nil", err)
		}
		if again != first {
			t.Fatalf("run %d: Evaluate() = %v, want %v", i, again, first)
		}
	}
}

func TestEvaluate_RangesOverlap(t *testing.T) {
	facts := NewFactBag(map[string]any{
		"booked": map[string]any{"start": "2025-03-01", "end": "2025-03-10"},
	})
	overlap := leaf(types.OpRangesOverlap, fact("booked"),
		lit(map[string]any{"start": "2025-03-08", "end": "2025-03-15"}))
	got, err := Evaluate(overlap, facts)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if !got {
		t.Errorf("overlapping ranges = false, want true")
	}

	disjoint := leaf(types.OpRangesOverlap, fact("booked"),
		lit(map[string]any{"start": "2025-04-01", "end": "2025-04-05"}))
	got, err = Evaluate(disjoint, facts)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if got {
		t.Errorf("disjoint ranges = true, want false")
	}
}

func TestEvaluate_HasConsecutiveOccurrences(t *testing.T) {
	facts := NewFactBag(map[string]any{
		"days": []any{true, true, true, false, true},
	})
	cond := &types.Condition{
		Operator: types.OperatorLogical,
		Logical:  types.OpHasConsecutiveOccurrences,
		First:    fact("days"),
		Second:   lit(true),
		Third:    lit(3),
	}
	got, err := Evaluate(cond, facts)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if !got {
		t.Errorf("run of 3 = false, want true")
	}

	cond.Third = lit(4)
	got, err = Evaluate(cond, facts)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if got {
		t.Errorf("run of 4 = true, want false")
	}
}
