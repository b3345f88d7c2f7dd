package platform

import (
	"context"
	"encoding/json"
	"fmt"

	"dispatchly/internal/domain/resolution"

	supa "github.com/supabase-community/supabase-go"
)

const (
	membersTable   = "dealer_members"
	followersTable = "entity_followers"
)

var (
	_ resolution.TenantMembershipProvider = (*SupabaseMembershipProvider)(nil)
	_ resolution.FollowerProvider         = (*SupabaseFollowerProvider)(nil)
)

// SupabaseMembershipProvider reads tenant membership from the platform's
// dealer_members view. Membership itself is owned by the surrounding
// platform; this adapter only exists so standalone deployments have a
// working collaborator.
type SupabaseMembershipProvider struct {
	client *supa.Client
}

// NewSupabaseMembershipProvider creates a new membership provider.
func NewSupabaseMembershipProvider(client *supa.Client) *SupabaseMembershipProvider {
	return &SupabaseMembershipProvider{client: client}
}

type memberRow struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

// ListActiveMembers returns every active member of a dealer.
func (p *SupabaseMembershipProvider) ListActiveMembers(ctx context.Context, dealerID string) ([]resolution.Member, error) {
	data, _, err := p.client.From(membersTable).
		Select("user_id,roles", "exact", false).
		Eq("dealer_id", dealerID).
		Eq("active", "true").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing dealer members: %w", err)
	}

	var rows []memberRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing dealer members: %w", err)
	}

	members := make([]resolution.Member, len(rows))
	for i, row := range rows {
		members[i] = resolution.Member{UserID: row.UserID, Roles: row.Roles}
	}
	return members, nil
}

// MembersWithRole returns the user ids holding a role within a dealer.
func (p *SupabaseMembershipProvider) MembersWithRole(ctx context.Context, dealerID, role string) ([]string, error) {
	data, _, err := p.client.From(membersTable).
		Select("user_id,roles", "exact", false).
		Eq("dealer_id", dealerID).
		Eq("active", "true").
		Contains("roles", []string{role}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing members with role %q: %w", role, err)
	}

	var rows []memberRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing members with role: %w", err)
	}

	users := make([]string, len(rows))
	for i, row := range rows {
		users[i] = row.UserID
	}
	return users, nil
}

// SupabaseFollowerProvider reads per-entity follower lists from the
// platform's entity_followers view.
type SupabaseFollowerProvider struct {
	client *supa.Client
}

// NewSupabaseFollowerProvider creates a new follower provider.
func NewSupabaseFollowerProvider(client *supa.Client) *SupabaseFollowerProvider {
	return &SupabaseFollowerProvider{client: client}
}

type followerRow struct {
	UserID string `json:"user_id"`
}

// FollowersOf returns the user ids following a business entity.
func (p *SupabaseFollowerProvider) FollowersOf(ctx context.Context, entityType, entityID string) ([]string, error) {
	data, _, err := p.client.From(followersTable).
		Select("user_id", "exact", false).
		Eq("entity_type", entityType).
		Eq("entity_id", entityID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing followers of %s/%s: %w", entityType, entityID, err)
	}

	var rows []followerRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing followers: %w", err)
	}

	users := make([]string, len(rows))
	for i, row := range rows {
		users[i] = row.UserID
	}
	return users, nil
}
