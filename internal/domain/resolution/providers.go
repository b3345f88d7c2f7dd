package resolution

import (
	"context"
	"time"
)

// Member is one active tenant member with the roles they hold.
type Member struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

// TenantMembershipProvider exposes tenant membership, owned by the
// surrounding platform. Implementations live outside the resolver core;
// infra/platform/ ships a thin adapter for standalone deployments.
type TenantMembershipProvider interface {
	// ListActiveMembers returns every active member of a dealer.
	ListActiveMembers(ctx context.Context, dealerID string) ([]Member, error)

	// MembersWithRole returns the user ids holding a role within a dealer.
	MembersWithRole(ctx context.Context, dealerID, role string) ([]string, error)
}

// FollowerProvider exposes per-entity follower lists, owned by the
// surrounding platform.
type FollowerProvider interface {
	// FollowersOf returns the user ids following a business entity.
	FollowersOf(ctx context.Context, entityType, entityID string) ([]string, error)
}

// DeliveryKey identifies one rate-limited delivery stream.
type DeliveryKey struct {
	UserID   string
	DealerID string
	Module   string
	Channel  Channel
}

// DeliveryLedger is the minimal delivery-count ledger the rate limiter
// needs. Reserve must be atomic per key: two concurrent resolutions must
// not both observe "allowed" when one slot remains.
type DeliveryLedger interface {
	// RecordSend appends a delivery to the ledger without checking caps.
	RecordSend(ctx context.Context, key DeliveryKey, at time.Time) error

	// CountSince returns the number of deliveries for the key since the
	// given instant (exclusive).
	CountSince(ctx context.Context, key DeliveryKey, since time.Time) (int, error)

	// Reserve atomically checks the trailing 1-hour and 24-hour counts
	// against the caps and, when both are under, records the delivery.
	// A cap of zero or below means that window is uncapped.
	Reserve(ctx context.Context, key DeliveryKey, maxPerHour, maxPerDay int, at time.Time) (bool, error)
}
