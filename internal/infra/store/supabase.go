package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dispatchly/internal/domain/resolution"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const (
	rulesTable       = "dealer_rules"
	preferencesTable = "notification_preferences"
	resolutionsTable = "resolution_logs"
)

var (
	_ resolution.RuleStore       = (*SupabaseRuleStore)(nil)
	_ resolution.PreferenceStore = (*SupabasePreferenceStore)(nil)
	_ resolution.ResolutionStore = (*SupabaseResolutionStore)(nil)
)

// NewClient creates the Supabase client shared by the store types.
func NewClient(supabaseURL, serviceKey string) (*supa.Client, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return client, nil
}

// SupabaseRuleStore implements resolution.RuleStore over PostgREST.
type SupabaseRuleStore struct {
	client *supa.Client
}

// NewSupabaseRuleStore creates a new Supabase-backed rule store.
func NewSupabaseRuleStore(client *supa.Client) *SupabaseRuleStore {
	return &SupabaseRuleStore{client: client}
}

// SupabasePreferenceStore implements resolution.PreferenceStore over PostgREST.
type SupabasePreferenceStore struct {
	client *supa.Client
}

// NewSupabasePreferenceStore creates a new Supabase-backed preference store.
func NewSupabasePreferenceStore(client *supa.Client) *SupabasePreferenceStore {
	return &SupabasePreferenceStore{client: client}
}

// SupabaseResolutionStore implements resolution.ResolutionStore over PostgREST.
type SupabaseResolutionStore struct {
	client *supa.Client
}

// NewSupabaseResolutionStore creates a new Supabase-backed resolution store.
func NewSupabaseResolutionStore(client *supa.Client) *SupabaseResolutionStore {
	return &SupabaseResolutionStore{client: client}
}

// ---- dealer rules ----

// ruleRow is the internal representation for Supabase PostgREST
// insert/update. Nested recipient, condition, and channel structures live
// in jsonb columns.
type ruleRow struct {
	ID         string                    `json:"id,omitempty"`
	DealerID   string                    `json:"dealer_id"`
	Module     string                    `json:"module"`
	Event      string                    `json:"event"`
	RuleName   string                    `json:"rule_name"`
	Recipients resolution.RuleRecipients `json:"recipients"`
	Conditions []resolution.Condition    `json:"conditions"`
	Channels   []resolution.Channel      `json:"channels"`
	Priority   int                       `json:"priority"`
	Enabled    bool                      `json:"enabled"`
	CreatedAt  string                    `json:"created_at,omitempty"`
	UpdatedAt  string                    `json:"updated_at,omitempty"`
}

func ruleToRow(rule *resolution.DealerRule) ruleRow {
	conditions := rule.Conditions
	if conditions == nil {
		conditions = []resolution.Condition{}
	}
	return ruleRow{
		ID:         rule.ID,
		DealerID:   rule.DealerID,
		Module:     rule.Module,
		Event:      rule.Event,
		RuleName:   rule.RuleName,
		Recipients: rule.Recipients,
		Conditions: conditions,
		Channels:   rule.Channels,
		Priority:   rule.Priority,
		Enabled:    rule.Enabled,
	}
}

func rowToRule(row *ruleRow) *resolution.DealerRule {
	rule := &resolution.DealerRule{
		ID:         row.ID,
		DealerID:   row.DealerID,
		Module:     row.Module,
		Event:      row.Event,
		RuleName:   row.RuleName,
		Recipients: row.Recipients,
		Conditions: row.Conditions,
		Channels:   row.Channels,
		Priority:   row.Priority,
		Enabled:    row.Enabled,
	}
	if t, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
		rule.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, row.UpdatedAt); err == nil {
		rule.UpdatedAt = t
	}
	return rule
}

// Create inserts a new rule.
func (s *SupabaseRuleStore) Create(ctx context.Context, rule *resolution.DealerRule) error {
	data, _, err := s.client.From(rulesTable).
		Insert(ruleToRow(rule), false, "", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("inserting rule: %w", err)
	}

	var results []ruleRow
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("parsing insert response: %w", err)
	}
	if len(results) > 0 {
		if t, err := time.Parse(time.RFC3339Nano, results[0].CreatedAt); err == nil {
			rule.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, results[0].UpdatedAt); err == nil {
			rule.UpdatedAt = t
		}
	}
	return nil
}

// Update overwrites an existing rule.
func (s *SupabaseRuleStore) Update(ctx context.Context, rule *resolution.DealerRule) error {
	row := ruleToRow(rule)
	row.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	_, _, err := s.client.From(rulesTable).
		Update(row, "", "").
		Eq("dealer_id", rule.DealerID).
		Eq("id", rule.ID).
		Execute()
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}
	return nil
}

// GetByID retrieves a rule by dealer and id. Returns nil, nil if missing.
func (s *SupabaseRuleStore) GetByID(ctx context.Context, dealerID, id string) (*resolution.DealerRule, error) {
	data, _, err := s.client.From(rulesTable).
		Select("*", "exact", false).
		Eq("dealer_id", dealerID).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching rule: %w", err)
	}

	var rows []ruleRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing rule: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToRule(&rows[0]), nil
}

// ListByDealer retrieves a dealer's rules, optionally narrowed to a module.
func (s *SupabaseRuleStore) ListByDealer(ctx context.Context, dealerID, module string) ([]*resolution.DealerRule, error) {
	query := s.client.From(rulesTable).
		Select("*", "exact", false).
		Eq("dealer_id", dealerID)
	if module != "" {
		query = query.Eq("module", module)
	}
	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: false})

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}

	var rows []ruleRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing rule list: %w", err)
	}

	rules := make([]*resolution.DealerRule, len(rows))
	for i, row := range rows {
		rules[i] = rowToRule(&row)
	}
	return rules, nil
}

// ListByEvent retrieves all rules scoped to one (dealer, module, event) tuple.
func (s *SupabaseRuleStore) ListByEvent(ctx context.Context, dealerID, module, event string) ([]*resolution.DealerRule, error) {
	data, _, err := s.client.From(rulesTable).
		Select("*", "exact", false).
		Eq("dealer_id", dealerID).
		Eq("module", module).
		Eq("event", event).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing rules by event: %w", err)
	}

	var rows []ruleRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing rule list: %w", err)
	}

	rules := make([]*resolution.DealerRule, len(rows))
	for i, row := range rows {
		rules[i] = rowToRule(&row)
	}
	return rules, nil
}

// ---- notification preferences ----

// preferenceRow mirrors the notification_preferences table; the nested
// preference structures live in jsonb columns.
type preferenceRow struct {
	UserID           string                                      `json:"user_id"`
	DealerID         string                                      `json:"dealer_id"`
	Module           string                                      `json:"module"`
	Channels         resolution.ChannelToggles                   `json:"channels"`
	EventPreferences map[string]resolution.EventPreference       `json:"event_preferences,omitempty"`
	QuietHours       resolution.QuietHours                       `json:"quiet_hours"`
	RateLimits       map[resolution.Channel]resolution.RateLimit `json:"rate_limits,omitempty"`
	Frequency        string                                      `json:"frequency"`
	PhoneOverride    *string                                     `json:"phone_override,omitempty"`
	CreatedAt        string                                      `json:"created_at,omitempty"`
	UpdatedAt        string                                      `json:"updated_at,omitempty"`
}

func rowToPreference(row *preferenceRow) *resolution.NotificationPreference {
	pref := &resolution.NotificationPreference{
		UserID:           row.UserID,
		DealerID:         row.DealerID,
		Module:           row.Module,
		Channels:         row.Channels,
		EventPreferences: row.EventPreferences,
		QuietHours:       row.QuietHours,
		RateLimits:       row.RateLimits,
		Frequency:        resolution.Frequency(row.Frequency),
	}
	if row.PhoneOverride != nil {
		pref.PhoneOverride = *row.PhoneOverride
	}
	if t, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
		pref.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, row.UpdatedAt); err == nil {
		pref.UpdatedAt = t
	}
	return pref
}

// Get retrieves a user's preference record. Returns nil, nil if missing.
func (s *SupabasePreferenceStore) Get(ctx context.Context, userID, dealerID, module string) (*resolution.NotificationPreference, error) {
	data, _, err := s.client.From(preferencesTable).
		Select("*", "exact", false).
		Eq("user_id", userID).
		Eq("dealer_id", dealerID).
		Eq("module", module).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching preference: %w", err)
	}

	var rows []preferenceRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing preference: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToPreference(&rows[0]), nil
}

// Upsert creates or replaces a preference record; the (user, dealer, module)
// unique key makes last writer win at whole-record granularity.
func (s *SupabasePreferenceStore) Upsert(ctx context.Context, pref *resolution.NotificationPreference) error {
	row := preferenceRow{
		UserID:           pref.UserID,
		DealerID:         pref.DealerID,
		Module:           pref.Module,
		Channels:         pref.Channels,
		EventPreferences: pref.EventPreferences,
		QuietHours:       pref.QuietHours,
		RateLimits:       pref.RateLimits,
		Frequency:        string(pref.Frequency),
		UpdatedAt:        time.Now().UTC().Format(time.RFC3339Nano),
	}
	if pref.PhoneOverride != "" {
		row.PhoneOverride = &pref.PhoneOverride
	}

	data, _, err := s.client.From(preferencesTable).
		Insert(row, true, "user_id,dealer_id,module", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("upserting preference: %w", err)
	}

	var results []preferenceRow
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("parsing upsert response: %w", err)
	}
	if len(results) > 0 {
		if t, err := time.Parse(time.RFC3339Nano, results[0].CreatedAt); err == nil {
			pref.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, results[0].UpdatedAt); err == nil {
			pref.UpdatedAt = t
		}
	}
	return nil
}

// ---- resolution logs ----

// resolutionRow mirrors the resolution_logs table.
type resolutionRow struct {
	ID             string                          `json:"id,omitempty"`
	DealerID       string                          `json:"dealer_id"`
	Module         string                          `json:"module"`
	Event          string                          `json:"event"`
	Metadata       map[string]any                  `json:"metadata,omitempty"`
	EventTimestamp string                          `json:"event_timestamp,omitempty"`
	Status         string                          `json:"status"`
	Recipients     []*resolution.ResolvedRecipient `json:"recipients,omitempty"`
	RecipientCount int                             `json:"recipient_count"`
	ErrorMessage   *string                         `json:"error_message,omitempty"`
	CreatedAt      string                          `json:"created_at,omitempty"`
	UpdatedAt      string                          `json:"updated_at,omitempty"`
	ResolvedAt     *string                         `json:"resolved_at,omitempty"`
}

func rowToResolution(row *resolutionRow) *resolution.ResolutionLog {
	log := &resolution.ResolutionLog{
		ID:             row.ID,
		DealerID:       row.DealerID,
		Module:         row.Module,
		Event:          row.Event,
		Metadata:       row.Metadata,
		Status:         resolution.ResolutionStatus(row.Status),
		Recipients:     row.Recipients,
		RecipientCount: row.RecipientCount,
	}
	if row.ErrorMessage != nil {
		log.ErrorMessage = *row.ErrorMessage
	}
	if t, err := time.Parse(time.RFC3339Nano, row.EventTimestamp); err == nil {
		log.EventTimestamp = t
	}
	if t, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
		log.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, row.UpdatedAt); err == nil {
		log.UpdatedAt = t
	}
	if row.ResolvedAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *row.ResolvedAt); err == nil {
			log.ResolvedAt = &t
		}
	}
	return log
}

// Create inserts a new resolution log record.
func (s *SupabaseResolutionStore) Create(ctx context.Context, log *resolution.ResolutionLog) error {
	row := resolutionRow{
		DealerID:       log.DealerID,
		Module:         log.Module,
		Event:          log.Event,
		Metadata:       log.Metadata,
		EventTimestamp: log.EventTimestamp.UTC().Format(time.RFC3339Nano),
		Status:         string(log.Status),
	}

	data, _, err := s.client.From(resolutionsTable).
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("inserting resolution log: %w", err)
	}

	var results []resolutionRow
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("parsing insert response: %w", err)
	}
	if len(results) > 0 {
		log.ID = results[0].ID
		if t, err := time.Parse(time.RFC3339Nano, results[0].CreatedAt); err == nil {
			log.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, results[0].UpdatedAt); err == nil {
			log.UpdatedAt = t
		}
	}
	return nil
}

// GetByID retrieves a resolution log by its ID.
func (s *SupabaseResolutionStore) GetByID(ctx context.Context, id string) (*resolution.ResolutionLog, error) {
	data, _, err := s.client.From(resolutionsTable).
		Select("*", "exact", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching resolution log: %w", err)
	}

	var rows []resolutionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing resolution log: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToResolution(&rows[0]), nil
}

// UpdateStatus updates the status of a resolution log.
func (s *SupabaseResolutionStore) UpdateStatus(ctx context.Context, id string, status resolution.ResolutionStatus, errMsg string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	update := map[string]any{
		"status":     string(status),
		"updated_at": now,
	}
	if errMsg != "" {
		update["error_message"] = errMsg
	}

	_, _, err := s.client.From(resolutionsTable).
		Update(update, "", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("updating resolution status: %w", err)
	}
	return nil
}

// RecordOutcome stores the resolved recipient list and final status.
func (s *SupabaseResolutionStore) RecordOutcome(ctx context.Context, id string, status resolution.ResolutionStatus, recipients []*resolution.ResolvedRecipient) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if recipients == nil {
		recipients = []*resolution.ResolvedRecipient{}
	}

	update := map[string]any{
		"status":          string(status),
		"recipients":      recipients,
		"recipient_count": len(recipients),
		"updated_at":      now,
		"resolved_at":     now,
	}

	_, _, err := s.client.From(resolutionsTable).
		Update(update, "", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("recording resolution outcome: %w", err)
	}
	return nil
}

// List retrieves resolution logs with pagination and filtering.
func (s *SupabaseResolutionStore) List(ctx context.Context, filter resolution.ListFilter) ([]*resolution.ResolutionLog, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	query := s.client.From(resolutionsTable).Select("*", "exact", false)
	if filter.DealerID != "" {
		query = query.Eq("dealer_id", filter.DealerID)
	}
	if filter.Module != "" {
		query = query.Eq("module", filter.Module)
	}
	if filter.Event != "" {
		query = query.Eq("event", filter.Event)
	}
	if filter.Status != "" {
		query = query.Eq("status", filter.Status)
	}

	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: false})
	query = query.Range(offset, offset+filter.PageSize-1, "")

	data, count, err := query.Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("listing resolution logs: %w", err)
	}

	var rows []resolutionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("parsing resolution list: %w", err)
	}

	logs := make([]*resolution.ResolutionLog, len(rows))
	for i, row := range rows {
		logs[i] = rowToResolution(&row)
	}
	return logs, int(count), nil
}

// ListStale retrieves resolution logs stuck in queued/processing for longer
// than olderThan.
func (s *SupabaseResolutionStore) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*resolution.ResolutionLog, error) {
	if limit <= 0 {
		limit = 50
	}

	threshold := olderThan.UTC().Format(time.RFC3339Nano)

	query := s.client.From(resolutionsTable).
		Select("*", "exact", false).
		In("status", []string{string(resolution.StatusQueued), string(resolution.StatusProcessing)}).
		Lt("updated_at", threshold).
		Order("updated_at", &postgrest.OrderOpts{Ascending: true}).
		Range(0, limit-1, "")

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("listing stale resolutions: %w", err)
	}

	var rows []resolutionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing stale resolutions: %w", err)
	}

	logs := make([]*resolution.ResolutionLog, len(rows))
	for i, row := range rows {
		logs[i] = rowToResolution(&row)
	}
	return logs, nil
}
