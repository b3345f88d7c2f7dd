package resolution

import "strings"

// Operator is a condition comparison operator.
type Operator string

const (
	OpEqual          Operator = "="
	OpNotEqual       Operator = "!="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpIn             Operator = "in"
	OpContains       Operator = "contains"
)

// validOperators is the set of all recognized condition operators.
var validOperators = map[Operator]bool{
	OpEqual:          true,
	OpNotEqual:       true,
	OpGreater:        true,
	OpGreaterOrEqual: true,
	OpLess:           true,
	OpLessOrEqual:    true,
	OpIn:             true,
	OpContains:       true,
}

// IsValidOperator checks whether a condition operator is recognized.
func IsValidOperator(op Operator) bool {
	return validOperators[op]
}

// Condition is a single comparison against one event metadata field.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Matches evaluates a rule's condition list against event metadata.
//
// Semantics are AND over all conditions; an empty list matches
// unconditionally. A field absent from metadata fails its condition
// regardless of operator, and a type mismatch between the metadata value and
// the condition value fails rather than erroring. Closed world: nothing here
// can make a rule match by accident.
func Matches(conditions []Condition, metadata map[string]any) bool {
	for _, cond := range conditions {
		if !matchOne(cond, metadata) {
			return false
		}
	}
	return true
}

func matchOne(cond Condition, metadata map[string]any) bool {
	actual, ok := metadata[cond.Field]
	if !ok {
		return false
	}

	switch cond.Operator {
	case OpEqual:
		eq, ok := looseEqual(actual, cond.Value)
		return ok && eq
	case OpNotEqual:
		eq, ok := looseEqual(actual, cond.Value)
		return ok && !eq
	case OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual:
		return matchOrdered(cond.Operator, actual, cond.Value)
	case OpIn:
		return matchIn(actual, cond.Value)
	case OpContains:
		return matchContains(actual, cond.Value)
	default:
		return false
	}
}

// looseEqual compares two metadata values of matching kind. The second
// return reports whether the two were comparable at all; numeric values
// compare across int/float representations since JSON decoding and Go
// callers disagree on the concrete type.
func looseEqual(a, b any) (equal, comparable bool) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return false, false
		}
		return af == bf, true
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return false, false
		}
		return av == bv, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return false, false
		}
		return av == bv, true
	default:
		return false, false
	}
}

func matchOrdered(op Operator, actual, expected any) bool {
	if af, aok := toFloat(actual); aok {
		bf, bok := toFloat(expected)
		if !bok {
			return false
		}
		return compareOrdered(op, af, bf)
	}

	as, aok := actual.(string)
	bs, bok := expected.(string)
	if aok && bok {
		switch {
		case as < bs:
			return op == OpLess || op == OpLessOrEqual
		case as > bs:
			return op == OpGreater || op == OpGreaterOrEqual
		default:
			return op == OpLessOrEqual || op == OpGreaterOrEqual
		}
	}
	return false
}

func compareOrdered(op Operator, a, b float64) bool {
	switch op {
	case OpGreater:
		return a > b
	case OpGreaterOrEqual:
		return a >= b
	case OpLess:
		return a < b
	case OpLessOrEqual:
		return a <= b
	default:
		return false
	}
}

// matchIn tests membership of the metadata value in the condition's
// collection value.
func matchIn(actual, expected any) bool {
	for _, item := range toSlice(expected) {
		if eq, ok := looseEqual(actual, item); ok && eq {
			return true
		}
	}
	return false
}

// matchContains tests the inverse: the metadata value (a string or a
// collection) contains the condition value.
func matchContains(actual, expected any) bool {
	switch av := actual.(type) {
	case string:
		es, ok := expected.(string)
		if !ok {
			return false
		}
		return strings.Contains(av, es)
	default:
		for _, item := range toSlice(actual) {
			if eq, ok := looseEqual(item, expected); ok && eq {
				return true
			}
		}
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	case []int:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	case []float64:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	default:
		return nil
	}
}
