package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	funnelboard "funnelboard"
	"funnelboard/internal/ai"
	"funnelboard/internal/auth"
	"funnelboard/internal/board"
	"funnelboard/internal/boardcache"
	"funnelboard/internal/events"
	"funnelboard/internal/funnels"
	funnelservice "funnelboard/internal/funnels/service"
	apphttp "funnelboard/internal/http"
	"funnelboard/internal/http/router"
	"funnelboard/internal/leads"
	"funnelboard/internal/notification"
	"funnelboard/internal/presence"
	"funnelboard/internal/realtime"
	"funnelboard/internal/scheduler"
	"funnelboard/internal/storage"
	"funnelboard/internal/tags"
	"funnelboard/internal/tenancy"
	"funnelboard/internal/whatsapp"
	"funnelboard/platform/config"
	"funnelboard/platform/db"
	"funnelboard/platform/logger"
	"funnelboard/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, funnelboard.Migrations)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	cache := boardcache.New(log)

	schedClient := initScheduler(cfg, log)
	defer func() {
		_ = schedClient.Close()
	}()

	presenceSvc := initPresence(cfg, log)

	storageSvc, err := storage.New(cfg)
	if err != nil {
		log.Error("failed to initialize object storage", "error", err)
		panic("failed to initialize object storage: " + err.Error())
	}
	if storageSvc.Enabled() {
		if err := withRetry(ctx, log, "ensure attachments bucket", 5, 2*time.Second, func() error {
			return storageSvc.EnsureBucketExists(ctx)
		}); err != nil {
			log.Error("failed to ensure attachments bucket", "error", err)
			panic("failed to ensure attachments bucket: " + err.Error())
		}
	}

	summarizer, err := ai.NewSummarizer(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize ai summarizer", "error", err)
		panic("failed to initialize ai summarizer: " + err.Error())
	}

	seeds, err := funnelservice.LoadStageSeeds(cfg.GetStageSeedPath())
	if err != nil {
		log.Warn("stage seed file unavailable, using built-in defaults", "error", err)
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	authModule := auth.NewModule(pool, cfg, eventBus, log)
	resolver := tenancy.NewResolver(authModule.Repository())

	funnelsModule := funnels.NewModule(pool, resolver, eventBus, seeds, log)
	leadsModule := leads.NewModule(pool, funnelsModule.Service(), resolver, cache, eventBus, log)
	tagsModule := tags.NewModule(pool, resolver, cache, eventBus, log)
	realtimeModule := realtime.NewModule(leadsModule.Service(), cache, presenceSvc, resolver, eventBus, log)
	boardModule := board.NewModule(leadsModule.Service(), funnelsModule.Service(), cache, eventBus, log)
	val := validator.New()
	whatsappModule := whatsapp.NewModule(cfg, leadsModule.Service(), funnelsModule.Service(), schedClient, val, log)
	storageModule := storage.NewModule(storageSvc, leadsModule.Service(), log)
	aiModule := ai.NewModule(summarizer, leadsModule.Service(), log)

	// Notification module subscribes to domain events (not HTTP-facing).
	notification.NewModule(cfg, authModule.Repository(), leadsModule.Service(), schedClient, eventBus, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			authModule,
			funnelsModule,
			leadsModule,
			tagsModule,
			boardModule,
			realtimeModule,
			whatsappModule,
			storageModule,
			aiModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		realtimeModule.Listener().Unsubscribe()
		realtimeModule.Fanout().Close()
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initScheduler returns a nil client when Redis is not configured; queued
// sends then answer 503 instead of blocking startup.
func initScheduler(cfg *config.Config, log *logger.Logger) *scheduler.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; queued delivery disabled")
		return nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil
	}
	return client
}

// initPresence returns a nil service when Redis is not configured; the SSE
// layer then skips presence tracking.
func initPresence(cfg *config.Config, log *logger.Logger) *presence.Service {
	if cfg.GetRedisURL() == "" {
		return nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("failed to parse REDIS_URL for presence", "error", err)
		return nil
	}
	if opt.TLSConfig != nil && cfg.GetRedisTLSInsecure() {
		opt.TLSConfig.InsecureSkipVerify = true
	}

	return presence.New(redis.NewClient(opt), log)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
