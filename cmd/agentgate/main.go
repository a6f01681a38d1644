package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/openworkhq/agentgate/internal/adapter/discord"
	"github.com/openworkhq/agentgate/internal/adapter/email"
	aghttp "github.com/openworkhq/agentgate/internal/adapter/http"
	"github.com/openworkhq/agentgate/internal/adapter/llm"
	agnats "github.com/openworkhq/agentgate/internal/adapter/nats"
	"github.com/openworkhq/agentgate/internal/adapter/natskv"
	"github.com/openworkhq/agentgate/internal/adapter/otel"
	"github.com/openworkhq/agentgate/internal/adapter/planapi"
	"github.com/openworkhq/agentgate/internal/adapter/postgres"
	"github.com/openworkhq/agentgate/internal/adapter/ristretto"
	"github.com/openworkhq/agentgate/internal/adapter/slack"
	"github.com/openworkhq/agentgate/internal/adapter/tiered"
	"github.com/openworkhq/agentgate/internal/adapter/websearch"
	"github.com/openworkhq/agentgate/internal/adapter/ws"
	"github.com/openworkhq/agentgate/internal/config"
	"github.com/openworkhq/agentgate/internal/executor"
	"github.com/openworkhq/agentgate/internal/logger"
	"github.com/openworkhq/agentgate/internal/middleware"
	"github.com/openworkhq/agentgate/internal/port/notifier"
	"github.com/openworkhq/agentgate/internal/resilience"
	"github.com/openworkhq/agentgate/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"queue_workers", cfg.Queue.Workers,
	)

	ctx := context.Background()

	// --- Observability ---
	shutdownOtel, err := otel.Init(ctx, cfg.Logging.Service, cfg.Otel.Endpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(shutdownCtx); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	store := postgres.NewStore(pool)

	queue, err := agnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	localCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer localCache.Close()

	// Plan limits are cached in two tiers: in-process ristretto in front of
	// a NATS KV bucket shared by all instances.
	planKV, err := queue.KeyValue(ctx, "plan-limits", cfg.Cache.PlanTTL)
	if err != nil {
		return fmt.Errorf("plan kv bucket: %w", err)
	}
	planCache := tiered.New(localCache, natskv.New(planKV), cfg.Cache.PlanTTL)

	// --- Collaborators ---
	resolver := planapi.NewResolver(cfg.Plans)
	searcher := websearch.NewClient(cfg.Search)

	providerClient := llm.NewClient(cfg.Provider)
	providerClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	var notifiers []notifier.Notifier
	if cfg.Notify.SlackWebhookURL != "" {
		notifiers = append(notifiers, slack.NewNotifier(cfg.Notify.SlackWebhookURL))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		notifiers = append(notifiers, discord.NewNotifier(cfg.Notify.DiscordWebhookURL))
	}
	if cfg.Notify.EmailEndpoint != "" {
		notifiers = append(notifiers, email.NewNotifier(cfg.Notify))
	}

	// --- Services ---
	hub := ws.NewHub()
	exec := executor.New(cfg.Executor, searcher)

	notifySvc := service.NewNotificationService(notifiers)
	lifecycle := service.NewLifecycleService(store, exec, queue, hub, metrics)
	usageSvc := service.NewUsageService(store, resolver, notifySvc, metrics)
	rate := service.NewRateLimitService(cfg.Rate, cfg.Cache.PlanTTL, resolver, planCache)
	stopCleanup := rate.StartCleanup(cfg.Rate.CleanupInterval)
	defer stopCleanup()

	dispatcher := service.NewDispatcherService(cfg.Queue, store, exec, queue, hub, metrics)
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	defer func() {
		if err := dispatcher.Stop(); err != nil {
			slog.Error("dispatcher stop", "error", err)
		}
	}()

	orch := service.NewOrchestratorService(store, providerClient, lifecycle, usageSvc, rate)

	// --- HTTP ---
	handlers := &aghttp.Handlers{
		Agents:        service.NewAgentService(store),
		Conversations: orch,
		ToolCalls:     lifecycle,
		Usage:         usageSvc,
		Probes: aghttp.HealthProbes{
			Database:        pool.Ping,
			QueueConnected:  queue.IsConnected,
			ProviderBreaker: providerClient.BreakerState,
		},
	}

	r := chi.NewRouter()

	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(aghttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(aghttp.Logger)
	r.Use(aghttp.SecurityHeaders)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/ws", hub.HandleWS)
	aghttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := queue.Drain(); err != nil {
		slog.Error("queue drain", "error", err)
	}
	return nil
}
