// internal/pipeline/processors.go
package pipeline

import (
	"context"
	"time"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

/*
 * Record processors.
 *
 * CalculateContinuity computes maximal consecutive-duration streaks over
 * extracted records: overlapping or touching windows merge, a gap larger
 * than the duration unit breaks the streak. CheckAllPass verifies a
 * predicate over every record's attributes.
 *
 * Both are total over their inputs: empty record sets succeed with empty
 * data, never error.
 */

// Streak is one qualifying run of consecutive windows.
type Streak struct {
	Start  time.Time
	End    time.Time
	Length int // in duration units
	Key    string
}

// CalculateContinuity finds maximal streaks of records whose windows touch
// or overlap within the duration unit, then keeps streaks of at least
// MinRunLength units. Empty input yields Success=true with no streaks.
func CalculateContinuity(_ context.Context, records []types.ExtractedRecord, p ProcessorParams, out OutputParams) (types.ProcessorResult, error) {
	unit := time.Duration(max(p.DurationUnitDays, 1)) * 24 * time.Hour
	minRun := max(p.MinRunLength, 1)

	windows := mergeWindows(records, unit)

	var streaks []Streak
	for _, w := range windows {
		length := int(w.end.Sub(w.start)/unit) + 1
		if length < minRun {
			continue
		}
		streaks = append(streaks, Streak{
			Start:  w.start,
			End:    w.end,
			Length: length,
			Key:    types.WindowKey(w.start, w.end),
		})
	}

	return types.ProcessorResult{Success: true, Tag: out.Tag, Data: streaks}, nil
}

type window struct {
	start, end time.Time
}

// mergeWindows normalizes record windows into disjoint runs: two windows
// belong to the same run when the later one starts no more than one unit
// after the earlier one ends. Input order does not matter.
func mergeWindows(records []types.ExtractedRecord, unit time.Duration) []window {
	if len(records) == 0 {
		return nil
	}
	sorted := make([]types.ExtractedRecord, len(records))
	copy(sorted, records)
	sortRecords(sorted)

	var out []window
	current := window{start: sorted[0].Start, end: sorted[0].End}
	for _, r := range sorted[1:] {
		if !r.Start.After(current.end.Add(unit)) {
			if r.End.After(current.end) {
				current.end = r.End
			}
			continue
		}
		out = append(out, current)
		current = window{start: r.Start, end: r.End}
	}
	return append(out, current)
}

// AllPassReport is the aggregate outcome of CheckAllPass.
type AllPassReport struct {
	Total     int
	Evaluated int
	Passed    int
	AllPass   bool
}

// CheckAllPass reports whether every record satisfies the predicate
// description in the params. Evaluation short-circuits on the first failure;
// the report still carries how many records were seen and passed.
func CheckAllPass(_ context.Context, records []types.ExtractedRecord, p ProcessorParams, out OutputParams) (types.ProcessorResult, error) {
	report := AllPassReport{Total: len(records), AllPass: true}
	for _, r := range records {
		report.Evaluated++
		if !recordPasses(r, p) {
			report.AllPass = false
			break
		}
		report.Passed++
	}
	return types.ProcessorResult{Success: report.AllPass, Tag: out.Tag, Data: report}, nil
}

// recordPasses evaluates the predicate against one record attribute.
// Supports the comparison subset that makes sense for flat attributes;
// unknown operators and missing attributes fail the record.
func recordPasses(r types.ExtractedRecord, p ProcessorParams) bool {
	v, ok := r.Attributes[p.Field]
	if p.Operator == "Exists" {
		return ok && v != nil
	}
	if !ok {
		return false
	}
	switch p.Operator {
	case "Equal", "":
		return attrEqual(v, p.Value)
	case "NotEqual":
		return !attrEqual(v, p.Value)
	case "GreaterThan":
		a, b, ok := attrNumbers(v, p.Value)
		return ok && a > b
	case "GreaterThanOrEqual":
		a, b, ok := attrNumbers(v, p.Value)
		return ok && a >= b
	case "LessThan":
		a, b, ok := attrNumbers(v, p.Value)
		return ok && a < b
	case "LessThanOrEqual":
		a, b, ok := attrNumbers(v, p.Value)
		return ok && a <= b
	case "IsTrue":
		b, ok := v.(bool)
		return ok && b
	case "IsFalse":
		b, ok := v.(bool)
		return ok && !b
	default:
		return false
	}
}

func attrEqual(a, b any) bool {
	if fa, fb, ok := attrNumbers(a, b); ok {
		return fa == fb
	}
	return a == b
}

func attrNumbers(a, b any) (float64, float64, bool) {
	fa, aok := attrFloat(a)
	fb, bok := attrFloat(b)
	return fa, fb, aok && bok
}

func attrFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
