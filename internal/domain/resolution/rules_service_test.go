package resolution

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatchly/internal/common"
)

func validRule() *DealerRule {
	return &DealerRule{
		DealerID:   "d1",
		Module:     "sales_orders",
		Event:      "order_created",
		RuleName:   "notify-managers",
		Recipients: RuleRecipients{Roles: []string{"manager"}},
		Channels:   []Channel{ChannelInApp},
		Priority:   50,
		Enabled:    true,
	}
}

func TestRuleService_CreateAssignsID(t *testing.T) {
	svc := NewRuleService(newMemRuleStore())

	created, err := svc.Create(context.Background(), validRule())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := svc.Get(context.Background(), "d1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "notify-managers", got.RuleName)
}

func TestRuleService_CreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DealerRule)
		wantCfg bool
	}{
		{"missing dealer", func(r *DealerRule) { r.DealerID = "" }, false},
		{"missing module", func(r *DealerRule) { r.Module = "" }, false},
		{"missing event", func(r *DealerRule) { r.Event = "" }, false},
		{"missing name", func(r *DealerRule) { r.RuleName = "" }, false},
		{"priority too high", func(r *DealerRule) { r.Priority = 101 }, false},
		{"priority negative", func(r *DealerRule) { r.Priority = -1 }, false},
		{"no channels", func(r *DealerRule) { r.Channels = nil }, false},
		{"unknown channel", func(r *DealerRule) { r.Channels = []Channel{"carrier_pigeon"} }, true},
		{"condition missing field", func(r *DealerRule) {
			r.Conditions = []Condition{{Operator: OpEqual, Value: "x"}}
		}, false},
		{"unknown operator", func(r *DealerRule) {
			r.Conditions = []Condition{{Field: "region", Operator: "~=", Value: "x"}}
		}, true},
	}

	svc := NewRuleService(newMemRuleStore())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validRule()
			tt.mutate(rule)

			_, err := svc.Create(context.Background(), rule)
			require.Error(t, err)

			if tt.wantCfg {
				var cfgErr *common.ConfigurationError
				assert.True(t, errors.As(err, &cfgErr), "want ConfigurationError, got %T", err)
			} else {
				var valErr *common.ValidationError
				assert.True(t, errors.As(err, &valErr), "want ValidationError, got %T", err)
			}
		})
	}
}

func TestRuleService_UpdateUnknownRule(t *testing.T) {
	svc := NewRuleService(newMemRuleStore())

	rule := validRule()
	rule.ID = "missing"
	_, err := svc.Update(context.Background(), rule)
	require.Error(t, err)

	var nfErr *common.NotFoundError
	assert.True(t, errors.As(err, &nfErr))
}

func TestRuleService_Update(t *testing.T) {
	svc := NewRuleService(newMemRuleStore())

	created, err := svc.Create(context.Background(), validRule())
	require.NoError(t, err)

	created.Priority = 90
	created.Enabled = false
	updated, err := svc.Update(context.Background(), created)
	require.NoError(t, err)
	assert.Equal(t, 90, updated.Priority)

	got, err := svc.Get(context.Background(), "d1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, got.Priority)
	assert.False(t, got.Enabled)
}

func TestRuleService_GetNotFound(t *testing.T) {
	svc := NewRuleService(newMemRuleStore())

	_, err := svc.Get(context.Background(), "d1", "missing")
	require.Error(t, err)

	var nfErr *common.NotFoundError
	assert.True(t, errors.As(err, &nfErr))
}

func TestRuleService_ListRequiresDealer(t *testing.T) {
	svc := NewRuleService(newMemRuleStore())

	_, err := svc.List(context.Background(), "", "")
	assert.Error(t, err)
}

func TestRuleService_MatchingRules(t *testing.T) {
	svc := NewRuleService(newMemRuleStore())

	mk := func(name string, priority int, enabled bool, conds []Condition) {
		rule := validRule()
		rule.RuleName = name
		rule.Priority = priority
		rule.Enabled = enabled
		rule.Conditions = conds
		_, err := svc.Create(context.Background(), rule)
		require.NoError(t, err)
	}

	mk("low", 20, true, nil)
	mk("high", 80, true, nil)
	mk("disabled", 95, false, nil)
	mk("emea-only", 60, true, []Condition{{Field: "region", Operator: OpEqual, Value: "emea"}})
	mk("big-orders", 70, true, []Condition{{Field: "total", Operator: OpGreater, Value: 10000}})

	matched, err := svc.MatchingRules(context.Background(), "d1", "sales_orders", "order_created", map[string]any{
		"region": "emea",
		"total":  500,
	})
	require.NoError(t, err)

	names := make([]string, len(matched))
	for i, r := range matched {
		names[i] = r.RuleName
	}
	assert.Equal(t, []string{"high", "emea-only", "low"}, names)
}

func TestRuleService_MatchingRulesScopedToTuple(t *testing.T) {
	svc := NewRuleService(newMemRuleStore())

	other := validRule()
	other.Event = "order_cancelled"
	_, err := svc.Create(context.Background(), other)
	require.NoError(t, err)

	matched, err := svc.MatchingRules(context.Background(), "d1", "sales_orders", "order_created", nil)
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestRuleService_MatchingRulesStoreFailure(t *testing.T) {
	store := newMemRuleStore()
	store.fail = true
	svc := NewRuleService(store)

	_, err := svc.MatchingRules(context.Background(), "d1", "sales_orders", "order_created", nil)
	assert.Error(t, err)
}
