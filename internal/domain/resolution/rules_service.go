package resolution

import (
	"context"
	"fmt"
	"sort"

	"dispatchly/internal/common"

	"github.com/google/uuid"
)

// RuleService owns the dealer rule CRUD surface and rule matching.
type RuleService struct {
	store RuleStore
}

// NewRuleService creates a new rule service.
func NewRuleService(store RuleStore) *RuleService {
	return &RuleService{store: store}
}

// Create validates and stores a new rule, assigning its id.
func (s *RuleService) Create(ctx context.Context, rule *DealerRule) (*DealerRule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	rule.ID = uuid.New().String()
	if err := s.store.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("creating rule: %w", err)
	}
	return rule, nil
}

// Update validates and overwrites an existing rule. Records are
// independently keyed, so last writer wins at whole-record granularity.
func (s *RuleService) Update(ctx context.Context, rule *DealerRule) (*DealerRule, error) {
	if rule.ID == "" {
		return nil, common.NewValidationError("rule id is required")
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.GetByID(ctx, rule.DealerID, rule.ID)
	if err != nil {
		return nil, fmt.Errorf("fetching rule: %w", err)
	}
	if existing == nil {
		return nil, common.NewNotFoundError("rule", rule.ID)
	}

	if err := s.store.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("updating rule: %w", err)
	}
	return rule, nil
}

// Get retrieves one rule.
func (s *RuleService) Get(ctx context.Context, dealerID, id string) (*DealerRule, error) {
	rule, err := s.store.GetByID(ctx, dealerID, id)
	if err != nil {
		return nil, fmt.Errorf("fetching rule: %w", err)
	}
	if rule == nil {
		return nil, common.NewNotFoundError("rule", id)
	}
	return rule, nil
}

// List retrieves a dealer's rules, optionally narrowed to one module.
func (s *RuleService) List(ctx context.Context, dealerID, module string) ([]*DealerRule, error) {
	if dealerID == "" {
		return nil, common.NewValidationError("dealer_id is required")
	}
	rules, err := s.store.ListByDealer(ctx, dealerID, module)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	return rules, nil
}

// MatchingRules returns the enabled rules for a (dealer, module, event)
// tuple whose conditions hold against the event metadata, sorted by priority
// descending. Ties break on rule id for determinism.
func (s *RuleService) MatchingRules(ctx context.Context, dealerID, module, event string, metadata map[string]any) ([]*DealerRule, error) {
	rules, err := s.store.ListByEvent(ctx, dealerID, module, event)
	if err != nil {
		return nil, fmt.Errorf("listing rules for event: %w", err)
	}

	matched := make([]*DealerRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if !Matches(rule.Conditions, metadata) {
			continue
		}
		matched = append(matched, rule)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].ID < matched[j].ID
	})

	return matched, nil
}
