package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sisko/internal/api"
	"sisko/internal/config"
	"sisko/internal/events"
	"sisko/internal/logging"
	"sisko/internal/metrics"
	"sisko/internal/models"
	"sisko/internal/netmon"
	"sisko/internal/queue"
	"sisko/internal/store"
	"sisko/internal/syncer"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := logging.Component(baseLogger, "syncd")

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := buildStore(cfg.Storage, baseLogger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	retention := time.Duration(cfg.Sync.RetentionMinutes) * time.Minute
	queueLogger := logging.Component(baseLogger, "queue")
	manager, err := queue.NewManager(ctx, st, retention, &queueLogger)
	if err != nil {
		return err
	}

	notifierLogger := logging.Component(baseLogger, "events")
	notifier := events.NewNotifier(&notifierLogger)

	caller := syncer.NewHTTPCaller(
		cfg.Server.BaseURL,
		syncer.EnvTokenSource{Var: cfg.Server.TokenEnv},
		time.Duration(cfg.Server.RequestTimeoutSeconds)*time.Second,
	)

	engineLogger := logging.Component(baseLogger, "syncer")
	engine := syncer.NewEngine(manager, caller, notifier, syncer.Options{
		BatchSize:         cfg.Sync.BatchSize,
		RequestsPerSecond: cfg.Sync.RequestsPerSecond,
		Burst:             cfg.Sync.Burst,
	}, &engineLogger)

	monitorLogger := logging.Component(baseLogger, "netmon")
	monitor := netmon.NewMonitor(
		cfg.Network.ProbeURL,
		time.Duration(cfg.Network.ProbeIntervalSeconds)*time.Second,
		time.Duration(cfg.Network.SlowThresholdMillis)*time.Millisecond,
		&monitorLogger,
	)
	monitor.OnReconnect(func() {
		logger.Info().Msg("connectivity restored, triggering sync")
		go engine.Sync(ctx)
	})
	go monitor.Start(ctx)

	notifier.OnSyncComplete(func(res models.SyncResult) {
		logger.Info().
			Int("processed", res.ActionsProcessed).
			Int("failed", res.ActionsFailed).
			Int("conflicts", len(res.Conflicts)).
			Bool("success", res.Success).
			Msg("sync completed")
	})

	if cfg.Admin.Enabled {
		apiLogger := logging.Component(baseLogger, "admin-api")
		adminServer := api.NewServer(cfg.Admin, manager, engine, cfg.Exports.Path, &apiLogger)
		go func() {
			if err := adminServer.Start(); err != nil {
				logger.Error().Err(err).Msg("admin API server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = adminServer.Shutdown(shutdownCtx)
		}()
	}

	go janitorLoop(ctx, manager, time.Duration(cfg.Sync.JanitorIntervalSeconds)*time.Second)

	syncLoop(ctx, engine, monitor, cfg.Sync, &logger)
	return nil
}

func buildStore(cfg config.StorageConfig, baseLogger *zerolog.Logger) (store.Store, func(), error) {
	storeLogger := logging.Component(baseLogger, "store")

	var primary store.Store
	var cleanup func()

	switch cfg.Backend {
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Path, &storeLogger)
		if err != nil {
			return nil, nil, err
		}
		primary = s
		cleanup = func() { _ = s.Close() }
	case "redis":
		client := store.NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
		primary = store.NewRedisStore(client, &storeLogger)
		cleanup = func() { _ = client.Close() }
	default:
		primary = store.NewFileStore(cfg.Path, &storeLogger)
	}

	if cfg.Failover {
		primary = store.NewFailoverStore(primary, store.NewMemoryStore(), &storeLogger)
	}
	return primary, cleanup, nil
}

// syncLoop runs periodic sync passes, backing off after consecutive failed
// passes so a dead backend is not hammered.
func syncLoop(ctx context.Context, engine *syncer.Engine, monitor *netmon.Monitor, cfg config.SyncConfig, logger *zerolog.Logger) {
	policy := syncer.RetryPolicy{
		MaxRetries:    cfg.Retry.MaxRetries,
		InitialDelay:  time.Duration(cfg.Retry.InitialDelaySeconds) * time.Second,
		MaxDelay:      time.Duration(cfg.Retry.MaxDelaySeconds) * time.Second,
		BackoffFactor: cfg.Retry.BackoffFactor,
	}
	interval := time.Duration(cfg.IntervalSeconds) * time.Second

	failures := 0
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if monitor.IsOnline() {
			result := engine.Sync(ctx)
			if result.Success {
				failures = 0
			} else {
				failures++
			}
		}

		delay := interval
		if failures > 0 {
			delay = policy.NextDelay(failures)
			if delay < interval {
				delay = interval
			}
			logger.Debug().Int("failures", failures).Dur("delay", delay).Msg("backing off sync")
		}
		timer.Reset(delay)
	}
}

func janitorLoop(ctx context.Context, manager *queue.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			manager.ClearCompleted(ctx)
		}
	}
}
