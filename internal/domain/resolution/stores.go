package resolution

import (
	"context"
	"time"
)

// RuleStore defines the contract for persisting dealer rules.
// Implementations live in infra/store/ (e.g., Supabase).
type RuleStore interface {
	// Create inserts a new rule.
	Create(ctx context.Context, rule *DealerRule) error

	// Update overwrites an existing rule (last writer wins).
	Update(ctx context.Context, rule *DealerRule) error

	// GetByID retrieves a rule by dealer and id.
	// Returns nil, nil if no record is found.
	GetByID(ctx context.Context, dealerID, id string) (*DealerRule, error)

	// ListByDealer retrieves all rules for a dealer, optionally narrowed to
	// one module (empty module means all).
	ListByDealer(ctx context.Context, dealerID, module string) ([]*DealerRule, error)

	// ListByEvent retrieves all rules scoped to one (dealer, module, event)
	// tuple, enabled or not.
	ListByEvent(ctx context.Context, dealerID, module, event string) ([]*DealerRule, error)
}

// PreferenceStore defines the contract for persisting notification
// preferences. At most one record exists per (user, dealer, module).
type PreferenceStore interface {
	// Get retrieves a user's preference record.
	// Returns nil, nil if no record is found — absence is not an error, the
	// caller applies defaults.
	Get(ctx context.Context, userID, dealerID, module string) (*NotificationPreference, error)

	// Upsert creates or replaces a preference record (last writer wins).
	Upsert(ctx context.Context, pref *NotificationPreference) error
}

// ResolutionStore defines the contract for persisting resolution records
// created by the async event intake.
type ResolutionStore interface {
	// Create inserts a new resolution log record.
	Create(ctx context.Context, log *ResolutionLog) error

	// GetByID retrieves a resolution log by its ID.
	GetByID(ctx context.Context, id string) (*ResolutionLog, error)

	// UpdateStatus updates the status of a resolution log.
	UpdateStatus(ctx context.Context, id string, status ResolutionStatus, errMsg string) error

	// RecordOutcome stores the resolved recipient list and final status.
	RecordOutcome(ctx context.Context, id string, status ResolutionStatus, recipients []*ResolvedRecipient) error

	// List retrieves resolution logs with pagination and filtering.
	List(ctx context.Context, filter ListFilter) ([]*ResolutionLog, int, error)

	// ListStale retrieves resolution logs stuck in queued/processing for
	// longer than the given threshold. Used by the reaper for reconciliation.
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*ResolutionLog, error)
}
