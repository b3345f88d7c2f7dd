package resolution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dispatchly/internal/common"
)

// Enqueuer defines the contract for enqueuing resolution tasks.
// This allows the service to be decoupled from the specific queue implementation.
type Enqueuer interface {
	EnqueueResolveEvent(logID string) error
}

// Service is the async event intake: validate → record → enqueue. The
// worker picks the task up and runs the resolver.
type Service struct {
	store    ResolutionStore
	enqueuer Enqueuer
}

// NewService creates a new event intake service.
func NewService(store ResolutionStore, enqueuer Enqueuer) *Service {
	return &Service{store: store, enqueuer: enqueuer}
}

// Accept validates an event, persists a resolution log, and enqueues the
// task for async processing.
func (s *Service) Accept(ctx context.Context, evt *EventContext) (*ResolutionLog, error) {
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	log := &ResolutionLog{
		DealerID:       evt.DealerID,
		Module:         evt.Module,
		Event:          evt.Event,
		Metadata:       evt.Metadata,
		EventTimestamp: evt.Timestamp,
		Status:         StatusQueued,
	}

	if err := s.store.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("creating resolution log: %w", err)
	}

	if err := s.enqueuer.EnqueueResolveEvent(log.ID); err != nil {
		// Mark the log failed since the worker will never see it.
		_ = s.store.UpdateStatus(ctx, log.ID, StatusFailed, "failed to enqueue: "+err.Error())
		return nil, fmt.Errorf("enqueuing resolution: %w", err)
	}

	slog.Info("event accepted for resolution",
		"log_id", log.ID,
		"dealer_id", evt.DealerID,
		"module", evt.Module,
		"event", evt.Event,
	)

	return log, nil
}

// GetResolution retrieves a resolution log by ID.
func (s *Service) GetResolution(ctx context.Context, id string) (*ResolutionLog, error) {
	log, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching resolution log: %w", err)
	}
	if log == nil {
		return nil, common.NewNotFoundError("resolution", id)
	}
	return log, nil
}

// ListResolutions retrieves resolution logs with pagination and filtering.
func (s *Service) ListResolutions(ctx context.Context, filter ListFilter) (*ListResponse, error) {
	logs, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing resolution logs: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	return &ListResponse{
		Resolutions: logs,
		Total:       total,
		Page:        filter.Page,
		PageSize:    filter.PageSize,
	}, nil
}
