package resolution

import (
	"context"
	"log/slog"
	"time"
)

// ReaperConfig holds configuration for the stale resolution reaper.
type ReaperConfig struct {
	// Interval is how often the reaper scans for stale resolutions.
	Interval time.Duration

	// StaleThreshold is how long a resolution can stay in queued/processing
	// before the reaper considers it stale and re-enqueues it.
	StaleThreshold time.Duration

	// BatchSize is the maximum number of stale resolutions to recover per cycle.
	BatchSize int
}

// Reaper periodically scans the resolution store for stuck records and
// re-enqueues them, so no accepted event is ever permanently lost even if
// Redis data is wiped or a worker crashes without recovery.
//
// The database is the source of truth; the reaper reconciles it with the
// queue on a timer.
type Reaper struct {
	store    ResolutionStore
	enqueuer Enqueuer
	config   ReaperConfig
}

// NewReaper creates a new stale resolution reaper.
func NewReaper(store ResolutionStore, enqueuer Enqueuer, cfg ReaperConfig) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	return &Reaper{
		store:    store,
		enqueuer: enqueuer,
		config:   cfg,
	}
}

// Run starts the reaper loop. It blocks until the context is cancelled.
// Should be called in a goroutine.
func (r *Reaper) Run(ctx context.Context) {
	slog.Info("reaper started",
		"interval", r.config.Interval,
		"stale_threshold", r.config.StaleThreshold,
		"batch_size", r.config.BatchSize,
	)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reaper stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep performs one reaper cycle: find stale resolutions and re-enqueue them.
func (r *Reaper) sweep(ctx context.Context) {
	olderThan := time.Now().Add(-r.config.StaleThreshold)

	stale, err := r.store.ListStale(ctx, olderThan, r.config.BatchSize)
	if err != nil {
		slog.Error("reaper: failed to list stale resolutions", "error", err)
		return
	}

	if len(stale) == 0 {
		return
	}

	slog.Warn("reaper: found stale resolutions", "count", len(stale))

	recovered := 0
	for _, log := range stale {
		// Reset status to queued before re-enqueuing so the worker picks it
		// up cleanly.
		if err := r.store.UpdateStatus(ctx, log.ID, StatusQueued, ""); err != nil {
			slog.Error("reaper: failed to reset status",
				"log_id", log.ID,
				"error", err,
			)
			continue
		}

		if err := r.enqueuer.EnqueueResolveEvent(log.ID); err != nil {
			slog.Error("reaper: failed to re-enqueue resolution",
				"log_id", log.ID,
				"error", err,
			)
			continue
		}

		recovered++
		slog.Info("reaper: recovered stale resolution", "log_id", log.ID)
	}

	slog.Info("reaper: sweep complete", "recovered", recovered, "stale", len(stale))
}
