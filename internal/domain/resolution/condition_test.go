package resolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches_EmptyConditionList(t *testing.T) {
	assert.True(t, Matches(nil, map[string]any{"priority": 5}))
	assert.True(t, Matches([]Condition{}, nil))
}

func TestMatches_Operators(t *testing.T) {
	metadata := map[string]any{
		"priority":    7.0,
		"status":      "open",
		"region":      "emea",
		"total":       149.99,
		"tags":        []any{"vip", "fleet"},
		"description": "engine warning light",
		"urgent":      true,
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"equal match", Condition{Field: "status", Operator: OpEqual, Value: "open"}, true},
		{"equal mismatch", Condition{Field: "status", Operator: OpEqual, Value: "closed"}, false},
		{"equal numeric across int and float", Condition{Field: "priority", Operator: OpEqual, Value: 7}, true},
		{"equal bool", Condition{Field: "urgent", Operator: OpEqual, Value: true}, true},
		{"not equal match", Condition{Field: "status", Operator: OpNotEqual, Value: "closed"}, true},
		{"not equal mismatch", Condition{Field: "status", Operator: OpNotEqual, Value: "open"}, false},
		{"greater", Condition{Field: "priority", Operator: OpGreater, Value: 5}, true},
		{"greater at boundary", Condition{Field: "priority", Operator: OpGreater, Value: 7}, false},
		{"greater or equal at boundary", Condition{Field: "priority", Operator: OpGreaterOrEqual, Value: 7}, true},
		{"less", Condition{Field: "total", Operator: OpLess, Value: 150}, true},
		{"less or equal", Condition{Field: "total", Operator: OpLessOrEqual, Value: 149.99}, true},
		{"string ordering", Condition{Field: "region", Operator: OpLess, Value: "na"}, true},
		{"in match", Condition{Field: "status", Operator: OpIn, Value: []any{"open", "pending"}}, true},
		{"in mismatch", Condition{Field: "status", Operator: OpIn, Value: []any{"closed", "archived"}}, false},
		{"in over string slice", Condition{Field: "region", Operator: OpIn, Value: []string{"emea", "apac"}}, true},
		{"contains substring", Condition{Field: "description", Operator: OpContains, Value: "warning"}, true},
		{"contains substring mismatch", Condition{Field: "description", Operator: OpContains, Value: "coolant"}, false},
		{"contains collection member", Condition{Field: "tags", Operator: OpContains, Value: "vip"}, true},
		{"contains collection mismatch", Condition{Field: "tags", Operator: OpContains, Value: "retail"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches([]Condition{tt.cond}, metadata))
		})
	}
}

func TestMatches_ClosedWorld(t *testing.T) {
	metadata := map[string]any{"priority": 7}

	// An absent field fails its condition under every operator.
	for op := range validOperators {
		cond := Condition{Field: "missing", Operator: op, Value: "anything"}
		assert.False(t, Matches([]Condition{cond}, metadata), "operator %s", op)
	}

	// A type mismatch fails rather than erroring.
	assert.False(t, Matches([]Condition{{Field: "priority", Operator: OpEqual, Value: "seven"}}, metadata))
	assert.False(t, Matches([]Condition{{Field: "priority", Operator: OpGreater, Value: "seven"}}, metadata))
	assert.False(t, Matches([]Condition{{Field: "priority", Operator: OpContains, Value: "7"}}, metadata))

	// Nil metadata behaves like all-absent fields.
	assert.False(t, Matches([]Condition{{Field: "priority", Operator: OpEqual, Value: 7}}, nil))
}

func TestMatches_AndSemantics(t *testing.T) {
	metadata := map[string]any{"priority": 9.0, "status": "open"}

	both := []Condition{
		{Field: "priority", Operator: OpGreaterOrEqual, Value: 5},
		{Field: "status", Operator: OpEqual, Value: "open"},
	}
	assert.True(t, Matches(both, metadata))

	oneFails := []Condition{
		{Field: "priority", Operator: OpGreaterOrEqual, Value: 5},
		{Field: "status", Operator: OpEqual, Value: "closed"},
	}
	assert.False(t, Matches(oneFails, metadata))
}
