package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shiftbrew/dispatch/internal/api"
	"github.com/shiftbrew/dispatch/internal/cache"
	"github.com/shiftbrew/dispatch/internal/config"
	"github.com/shiftbrew/dispatch/internal/db"
	"github.com/shiftbrew/dispatch/internal/metrics"
	"github.com/shiftbrew/dispatch/internal/queue"
	"github.com/shiftbrew/dispatch/internal/ratelimiter"
	"github.com/shiftbrew/dispatch/internal/render"
	"github.com/shiftbrew/dispatch/internal/repository"
	"github.com/shiftbrew/dispatch/internal/service"
	"github.com/shiftbrew/dispatch/internal/transport"
	"github.com/shiftbrew/dispatch/internal/whitelist"
	"github.com/shiftbrew/dispatch/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	q := queue.New(cfg.QueueCapacity)
	repo := repository.NewPgJobRepository(pool)
	renderer := render.NewRegistry()
	wl := whitelist.NewPgWhitelist(pool, cfg.OperatorSeedIDs)
	limiter := ratelimiter.New(cfg.RateLimit)

	var tr transport.Transport
	switch cfg.Transport {
	case config.TransportTelegram:
		tg, err := transport.NewTelegram(cfg.BotToken, cfg.AttemptTimeout)
		if err != nil {
			logger.Fatal("failed to init telegram transport", zap.Error(err))
		}
		tr = tg
	case config.TransportWebhook:
		tr = transport.NewWebhook(cfg.WebhookURL, cfg.AttemptTimeout)
	}
	logger.Info("transport ready", zap.String("transport", cfg.Transport))

	var receipts cache.ReceiptCache = cache.Noop{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		receipts = cache.NewRedisReceipts(rdb, cfg.ReceiptTTL)
		logger.Info("delivery-receipt cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	producer := service.NewProducer(repo, q, renderer, wl, cfg.MaxAttempts, logger)
	monitor := service.NewMonitor(repo, q)

	// ---- worker pool and pollers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	onDelivered, onFailed, onRetry := m.WorkerHooks()
	wpool := worker.NewPool(cfg.Workers, worker.Deps{
		Queue:     q,
		Repo:      repo,
		Renderer:  renderer,
		Transport: tr,
		Limiter:   limiter,
		Receipts:  receipts,

		Backoff:        worker.NewBackoff(cfg.RetryBaseDelay, cfg.RetryMaxDelay),
		AttemptTimeout: cfg.AttemptTimeout,

		StoreRetryAttempts: cfg.StoreRetryAttempts,
		StoreRetryDelay:    cfg.StoreRetryDelay,

		Hooks: worker.MetricHooks{
			OnDelivered: onDelivered,
			OnFailed:    onFailed,
			OnRetry:     onRetry,
		},
	}, logger)
	wpool.Start(workerCtx)

	retryPoller := worker.NewRetryPoller(repo, q, cfg.RetryPollInterval, logger)
	go retryPoller.Run(workerCtx)

	schedulerPoller := worker.NewSchedulerPoller(repo, q, cfg.SchedulerPollInterval, logger)
	go schedulerPoller.Run(workerCtx)

	sweeper := worker.NewSweeper(repo, q,
		cfg.SweepInterval, cfg.LivenessTimeout, cfg.StalePendingAfter,
		logger, m.JobsRecovered.Inc)
	go sweeper.Run(workerCtx)

	// Mirror the queue depth into the gauge on a coarse tick.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				m.QueueDepth.Set(float64(q.Depth()))
			}
		}
	}()

	// ---- HTTP server ----
	router := api.NewRouter(producer, monitor, pool, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal workers and pollers to stop taking new jobs.
	cancelWorkers()

	// 3. Wait for in-flight delivery attempts to finish and persist.
	wpool.Wait()

	logger.Info("server stopped cleanly")
}
