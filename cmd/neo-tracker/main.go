package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/Franciscooxz/Neo-Tracker/internal/api/http"
	"github.com/Franciscooxz/Neo-Tracker/internal/config"
	"github.com/Franciscooxz/Neo-Tracker/internal/neo"
	"github.com/Franciscooxz/Neo-Tracker/internal/neo/providers"
	"github.com/Franciscooxz/Neo-Tracker/internal/notify"
	"github.com/Franciscooxz/Neo-Tracker/internal/scheduler"
	"github.com/Franciscooxz/Neo-Tracker/internal/store"
	"github.com/Franciscooxz/Neo-Tracker/pkg/logger"
)

func main() {
	ctx := context.Background()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		_ = logger.Init("info")
		logger.Get().Fatal(ctx, "failed to load config", logger.Error(err))
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		_ = logger.Init("info")
		logger.Get().Fatal(ctx, "invalid log level", logger.Error(err))
	}
	log := logger.Get()

	// run returns instead of exiting so its deferred cleanups run.
	if err := run(ctx, cfg, log); err != nil {
		log.Fatal(ctx, "neo-tracker stopped", logger.Error(err))
	}
}

func run(ctx context.Context, cfg *config.AppConfig, log logger.Logger) error {
	// Shared HTTP client for outbound NeoWs calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// NeoWs with resilience (backoff + circuit breaker).
	fetcher := providers.NewNeoWsProvider(providers.NeoWsConfig{
		BaseURL: cfg.NASABaseURL,
		APIKey:  cfg.NASAAPIKey,
		HTTP:    providers.HTTPClientConfig{Client: httpClient},
	}, log)

	// Optional downstream sinks.
	var sinks []neo.Sink
	deps := map[string]httpapi.Pinger{}

	if cfg.PostgresDSN != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		db, err := store.OpenPostgres(pingCtx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		pg := store.NewPostgresSink(db)
		defer func() {
			if err := pg.Close(); err != nil {
				log.Error(ctx, "failed to close postgres", logger.Error(err))
			}
		}()

		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = pg.Migrate(migrateCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("migrate postgres schema: %w", err)
		}
		sinks = append(sinks, pg)
		deps["postgres"] = pg
	}

	if cfg.NATSURL != "" {
		nc, err := notify.Connect(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer func() {
			if err := nc.Drain(); err != nil {
				log.Error(ctx, "failed to drain nats connection", logger.Error(err))
			}
		}()

		level, _ := neo.ParseRiskLevel(cfg.AlertMinLevel)
		sinks = append(sinks, notify.NewAlertSink(nc, cfg.AlertSubject, level, nil))
	}

	publisher := neo.NewPublisher(log.Named("sinks"), cfg.FetchTimeout, sinks...)

	// Upstream cache in front of NeoWs.
	cache := store.NewUpstreamCache(
		store.WithFetchTimeout(cfg.FetchTimeout),
		store.WithLogger(log.Named("cache")),
		store.WithRefreshHook(publisher.OnRefresh),
	)

	// Core query service.
	service := neo.NewService(cache, fetcher,
		neo.WithFeedTTL(cfg.FeedTTL),
		neo.WithLookupTTL(cfg.LookupTTL),
		neo.WithFeedWindowDays(cfg.FeedWindowDays),
		neo.WithUpcomingDefaultDays(cfg.UpcomingDefaultDays),
		neo.WithLogger(log.Named("service")),
	)

	// Scheduler that keeps the feed warm.
	sched := scheduler.New(cfg.WarmInterval, cfg.FetchTimeout, service, log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := httpapi.NewApp(service, httpapi.Options{
		Cache:        cache,
		Dependencies: deps,
		Log:          log,
	})

	// Start server with graceful shutdown
	go func() {
		log.Info(ctx, "http server listening", logger.String("addr", cfg.Addr))
		if err := app.Listen(cfg.Addr); err != nil {
			log.Error(ctx, "fiber server stopped", logger.Error(err))
		}
	}()

	// Wait for termination signal
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error(ctx, "error during shutdown", logger.Error(err))
	}
	publisher.Wait()
	return nil
}
