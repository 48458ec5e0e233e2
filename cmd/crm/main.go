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
	_ "time/tzdata" // TIMEZONE must resolve on images without zoneinfo

	"github.com/boddenberg/farma-crm-bfa-go/internal/config"
	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/handler"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/cache"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/connectivity"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/observability"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/realtime"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/webhook"
	"github.com/boddenberg/farma-crm-bfa-go/internal/service"
	"github.com/boddenberg/farma-crm-bfa-go/internal/session"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogSuppress...)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("realtime_enabled", cfg.RealtimeEnabled),
		zap.String("report_scope", cfg.ReportScope),
		zap.String("timezone", cfg.Timezone),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}
	if cfg.SupabaseJWTSecret == "" {
		logger.Fatal("SUPABASE_JWT_SECRET is required")
	}
	if cfg.WebhookURL == "" {
		logger.Warn("WEBHOOK_URL not set, campaign notifications will fail")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "farma-crm-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	seriesCache := cache.New[[]domain.Series](cfg.CacheTTL)
	defer seriesCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	onBreakerChange := func(name string, from, to gobreaker.State) {
		logger.Warn("circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	supabaseCB := resilience.NewCircuitBreaker("supabase", onBreakerChange)
	webhookCB := resilience.NewCircuitBreaker("webhook", onBreakerChange)

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	logger.Info("using Supabase as data backend",
		zap.String("supabase_url", cfg.SupabaseURL),
	)
	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		supabaseCB,
		resilienceCfg,
		logger,
	)

	notifier := webhook.NewClient(
		&http.Client{Timeout: cfg.WebhookTimeout},
		cfg.WebhookURL,
		webhookCB,
		metrics,
		logger,
	)

	// --- Services ---
	crm := service.NewCRM(store, notifier, seriesCache, metrics, logger, service.Options{
		ReportScope: cfg.ReportScope,
		Location:    cfg.Location(),
	})
	feeds := service.NewFeedRegistry(store, logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.RealtimeEnabled {
		accessToken := cfg.SupabaseServiceKey
		if accessToken == "" {
			accessToken = cfg.SupabaseAnonKey
		}
		subscriber, err := realtime.NewSubscriber(cfg.SupabaseURL, cfg.SupabaseAnonKey, accessToken, metrics, logger)
		if err != nil {
			logger.Fatal("failed to configure realtime", zap.Error(err))
		}
		go func() {
			if err := feeds.Run(ctx, subscriber); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("realtime subscription stopped", zap.Error(err))
			}
		}()
		logger.Info("realtime conversation updates enabled")
	} else {
		logger.Warn("realtime disabled, conversation lists refresh only on reload")
	}

	// --- Connectivity ---
	monitor := connectivity.NewMonitor(cfg.ConnectivityInterval, cfg.ConnectivityTimeout, logger,
		connectivity.Probe{Name: "supabase", Check: store.Ping},
		connectivity.Probe{Name: "webhook", Check: notifier.HealthCheck},
	)
	go monitor.Start(ctx)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		CRM:       crm,
		Feeds:     feeds,
		Monitor:   monitor,
		Validator: session.NewValidator(cfg.SupabaseJWTSecret),
		Metrics:   metrics,
		Logger:    logger,
	})

	// --- Server ---
	// WriteTimeout stays zero: the conversation stream is a long-lived
	// websocket and sets its own write deadlines.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
