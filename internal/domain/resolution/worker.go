package resolution

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Worker processes resolution tasks from the queue. It picks up a task,
// fetches the log from the store, runs the resolver against the recorded
// event, and stores the outcome.
type Worker struct {
	store    ResolutionStore
	resolver *Resolver
}

// NewWorker creates a new resolution worker.
func NewWorker(store ResolutionStore, resolver *Resolver) *Worker {
	return &Worker{store: store, resolver: resolver}
}

// ProcessTask handles a resolve event task from the queue.
func (w *Worker) ProcessTask(ctx context.Context, logID string) error {
	start := time.Now()

	log, err := w.store.GetByID(ctx, logID)
	if err != nil {
		return fmt.Errorf("fetching resolution log %s: %w", logID, err)
	}
	if log == nil {
		slog.Error("resolution log not found", "log_id", logID)
		return fmt.Errorf("resolution log not found: %s", logID)
	}

	if err := w.store.UpdateStatus(ctx, logID, StatusProcessing, ""); err != nil {
		slog.Error("failed to update status to processing", "log_id", logID, "error", err)
	}

	recipients, err := w.resolver.Resolve(ctx, log.EventContext())
	if err != nil {
		errMsg := fmt.Sprintf("resolving event: %s", err.Error())
		_ = w.store.UpdateStatus(ctx, logID, StatusFailed, errMsg)
		slog.Error("event resolution failed",
			"log_id", logID,
			"dealer_id", log.DealerID,
			"event", log.Event,
			"error", err,
			"duration", time.Since(start),
		)
		return fmt.Errorf("resolving event %s: %w", logID, err)
	}

	status := StatusResolved
	if len(recipients) == 0 {
		status = StatusEmpty
	}

	if err := w.store.RecordOutcome(ctx, logID, status, recipients); err != nil {
		slog.Error("failed to record resolution outcome", "log_id", logID, "error", err)
		return fmt.Errorf("recording outcome for %s: %w", logID, err)
	}

	slog.Info("event resolved",
		"log_id", logID,
		"dealer_id", log.DealerID,
		"module", log.Module,
		"event", log.Event,
		"recipients", len(recipients),
		"duration", time.Since(start),
	)

	return nil
}
