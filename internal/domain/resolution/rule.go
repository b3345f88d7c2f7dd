package resolution

import (
	"fmt"
	"time"

	"dispatchly/internal/common"
)

// RuleRecipients describes who a dealer rule targets.
type RuleRecipients struct {
	Roles               []string `json:"roles,omitempty"`
	ExplicitUsers       []string `json:"explicit_users,omitempty"`
	IncludeAssignedUser bool     `json:"include_assigned_user"`
	IncludeFollowers    bool     `json:"include_followers"`
	IncludeCreator      bool     `json:"include_creator"`
}

// DealerRule is a tenant-level broadcast target specification for one event
// within one module. Multiple rules may exist for the same
// (dealer, module, event) tuple. Rules are disabled via the Enabled flag
// rather than deleted, preserving tenant audit history.
type DealerRule struct {
	ID         string         `json:"id"`
	DealerID   string         `json:"dealer_id"`
	Module     string         `json:"module"`
	Event      string         `json:"event"`
	RuleName   string         `json:"rule_name"`
	Recipients RuleRecipients `json:"recipients"`
	Conditions []Condition    `json:"conditions,omitempty"`
	Channels   []Channel      `json:"channels"`
	Priority   int            `json:"priority"`
	Enabled    bool           `json:"enabled"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Validate checks a rule before it is written. Unsupported channels and
// operators are configuration errors; everything else is plain validation.
func (r *DealerRule) Validate() error {
	if r.DealerID == "" {
		return common.NewValidationError("dealer_id is required")
	}
	if r.Module == "" {
		return common.NewValidationError("module is required")
	}
	if r.Event == "" {
		return common.NewValidationError("event is required")
	}
	if r.RuleName == "" {
		return common.NewValidationError("rule_name is required")
	}
	if r.Priority < 0 || r.Priority > 100 {
		return common.NewValidationError(fmt.Sprintf("priority must be in [0,100], got %d", r.Priority))
	}
	if len(r.Channels) == 0 {
		return common.NewValidationError("at least one channel is required")
	}
	for _, c := range r.Channels {
		if !IsValidChannel(c) {
			return common.NewConfigurationError(fmt.Sprintf("unsupported channel: %s", c))
		}
	}
	for i, cond := range r.Conditions {
		if cond.Field == "" {
			return common.NewValidationError(fmt.Sprintf("condition %d: field is required", i))
		}
		if !IsValidOperator(cond.Operator) {
			return common.NewConfigurationError(fmt.Sprintf("condition %d: unsupported operator: %s", i, cond.Operator))
		}
	}
	return nil
}
