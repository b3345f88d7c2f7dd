package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dispatchly/internal/config"
	"dispatchly/internal/domain/resolution"
	"dispatchly/internal/infra/ledger"
	"dispatchly/internal/infra/platform"
	"dispatchly/internal/infra/queue"
	"dispatchly/internal/infra/store"

	"github.com/hibiken/asynq"
)

// queueEnqueuer adapts the asynq client to the resolution.Enqueuer interface.
// Used by the reaper to re-enqueue stale resolutions.
type queueEnqueuer struct {
	client   *asynq.Client
	maxRetry int
}

func (q *queueEnqueuer) EnqueueResolveEvent(logID string) error {
	return queue.EnqueueResolveEvent(q.client, logID, q.maxRetry)
}

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("worker configuration loaded")

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	// Supabase client and stores
	supaClient, err := store.NewClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize supabase client", "error", err)
		os.Exit(1)
	}
	ruleStore := store.NewSupabaseRuleStore(supaClient)
	prefStore := store.NewSupabasePreferenceStore(supaClient)
	resolutionStore := store.NewSupabaseResolutionStore(supaClient)
	slog.Info("supabase stores initialized")

	// Platform collaborators
	membershipProvider := platform.NewSupabaseMembershipProvider(supaClient)
	followerProvider := platform.NewSupabaseFollowerProvider(supaClient)

	// Redis delivery ledger
	deliveryLedger := ledger.NewRedisLedger(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer deliveryLedger.Close()

	// Resolver
	resolver := resolution.NewResolver(
		resolution.NewRuleService(ruleStore),
		prefStore,
		resolution.NewQuietHoursEvaluator(prefStore),
		resolution.NewChannelRateLimiter(deliveryLedger),
		membershipProvider,
		followerProvider,
		resolution.ResolverOptions{
			OverrideThreshold:   cfg.Resolver.OverrideThreshold,
			DealerOverrides:     cfg.Resolver.DealerOverrides,
			Parallelism:         cfg.Resolver.Parallelism,
			CollaboratorTimeout: time.Duration(cfg.Resolver.CollaboratorTimeoutSec) * time.Second,
		},
	)

	// Resolution worker
	worker := resolution.NewWorker(resolutionStore, resolver)

	// Asynq client (for reaper re-enqueuing)
	asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer asynqClient.Close()

	enqueuer := &queueEnqueuer{
		client:   asynqClient,
		maxRetry: cfg.Queue.MaxRetry,
	}

	// ==========================================
	// Asynq Server (task processing)
	// ==========================================

	asynqServer := queue.NewServer(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Queue.Concurrency,
	)

	// Register task handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(resolution.TaskTypeResolveEvent, func(ctx context.Context, task *asynq.Task) error {
		payload, err := resolution.ParseResolveEventPayload(task.Payload())
		if err != nil {
			return err
		}
		return worker.ProcessTask(ctx, payload.LogID)
	})

	// Start the asynq worker in a goroutine
	go func() {
		slog.Info("worker starting",
			"concurrency", cfg.Queue.Concurrency,
			"redis", cfg.Redis.Address,
		)
		if err := asynqServer.Run(mux); err != nil {
			slog.Error("worker failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// ==========================================
	// Stale Resolution Reaper
	// ==========================================

	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	defer reaperCancel()

	reaper := resolution.NewReaper(resolutionStore, enqueuer, resolution.ReaperConfig{
		Interval:       time.Duration(cfg.Reaper.IntervalSec) * time.Second,
		StaleThreshold: time.Duration(cfg.Reaper.StaleThresholdSec) * time.Second,
		BatchSize:      cfg.Reaper.BatchSize,
	})

	go reaper.Run(reaperCtx)

	// ==========================================
	// Graceful Shutdown
	// ==========================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	reaperCancel() // Stop the reaper first
	asynqServer.Shutdown()
	slog.Info("worker exited gracefully")
}
