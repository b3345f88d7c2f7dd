package resolution

import (
	"context"
	"fmt"
	"log/slog"
)

// PreferenceService owns the preference CRUD surface consumed by the
// settings API.
type PreferenceService struct {
	store PreferenceStore
}

// NewPreferenceService creates a new preference service.
func NewPreferenceService(store PreferenceStore) *PreferenceService {
	return &PreferenceService{store: store}
}

// Get retrieves a user's preference record, lazily creating it with
// conservative defaults on first access. The lazy write is best-effort: a
// store failure there degrades to returning the unpersisted defaults.
func (s *PreferenceService) Get(ctx context.Context, userID, dealerID, module string) (*NotificationPreference, error) {
	pref, err := s.store.Get(ctx, userID, dealerID, module)
	if err != nil {
		return nil, fmt.Errorf("fetching preference: %w", err)
	}
	if pref != nil {
		return pref, nil
	}

	pref = DefaultPreference(userID, dealerID, module)
	if err := s.store.Upsert(ctx, pref); err != nil {
		slog.Warn("lazy preference creation failed, returning defaults",
			"user_id", userID,
			"dealer_id", dealerID,
			"module", module,
			"error", err,
		)
	}
	return pref, nil
}

// Upsert validates and stores a preference record. Last writer wins at
// whole-record granularity; records are never deleted.
func (s *PreferenceService) Upsert(ctx context.Context, pref *NotificationPreference) (*NotificationPreference, error) {
	if err := pref.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Upsert(ctx, pref); err != nil {
		return nil, fmt.Errorf("upserting preference: %w", err)
	}
	return pref, nil
}
