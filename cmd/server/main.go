package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
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
	"dispatchly/internal/router"

	"github.com/hibiken/asynq"
)

// queueEnqueuer adapts the asynq client to the resolution.Enqueuer interface.
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

	slog.Info("configuration loaded", "port", cfg.Server.Port, "mode", cfg.Server.Mode)

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

	// Platform collaborators (membership, followers)
	membershipProvider := platform.NewSupabaseMembershipProvider(supaClient)
	followerProvider := platform.NewSupabaseFollowerProvider(supaClient)

	// Redis delivery ledger
	deliveryLedger := ledger.NewRedisLedger(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer deliveryLedger.Close()
	slog.Info("delivery ledger initialized", "redis", cfg.Redis.Address)

	// Asynq client (for enqueuing event resolutions)
	asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer asynqClient.Close()

	enqueuer := &queueEnqueuer{
		client:   asynqClient,
		maxRetry: cfg.Queue.MaxRetry,
	}

	// Domain services
	ruleService := resolution.NewRuleService(ruleStore)
	prefService := resolution.NewPreferenceService(prefStore)
	quietEvaluator := resolution.NewQuietHoursEvaluator(prefStore)
	rateLimiter := resolution.NewChannelRateLimiter(deliveryLedger)

	resolver := resolution.NewResolver(
		ruleService,
		prefStore,
		quietEvaluator,
		rateLimiter,
		membershipProvider,
		followerProvider,
		resolution.ResolverOptions{
			OverrideThreshold:   cfg.Resolver.OverrideThreshold,
			DealerOverrides:     cfg.Resolver.DealerOverrides,
			Parallelism:         cfg.Resolver.Parallelism,
			CollaboratorTimeout: time.Duration(cfg.Resolver.CollaboratorTimeoutSec) * time.Second,
		},
	)
	slog.Info("resolver initialized", "override_threshold", cfg.Resolver.OverrideThreshold)

	intakeService := resolution.NewService(resolutionStore, enqueuer)

	// Handler and router
	resolutionHandler := resolution.NewHandler(resolver, intakeService, ruleService, prefService)
	r := router.New(cfg, resolutionHandler)

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
