package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"folio/internal/api"
	"folio/internal/auth"
	"folio/internal/config"
	"folio/internal/logger"
	"folio/internal/monitoring"
	"folio/internal/scheduler"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path (optional)")
		watch      = flag.Duration("watch", 30*time.Second, "Config file poll interval, 0 disables reloading")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Logging.LoggerConfig())
	logger.Info("Starting Folio",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"store", cfg.Store.Driver,
	)

	// production secrets come from the environment, never from the config file
	if cfg.App.Environment == "production" {
		if err := config.NewEnvManager(config.EnvPrefix).ValidateRequired([]string{"jwt_secret_key"}); err != nil {
			logger.Fatal("Production configuration incomplete", "error", err)
		}
	}

	if err := run(cfg, *configPath, *watch); err != nil {
		logger.Fatal("Folio exited with error", "error", err)
	}
}

func run(cfg *config.Config, configPath string, watchInterval time.Duration) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metrics *monitoring.Metrics
	if cfg.Monitoring.PrometheusEnabled {
		metrics = monitoring.NewMetrics(nil)
	}

	stores, err := openStores(ctx, cfg, metrics)
	if err != nil {
		return err
	}

	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL, cfg.JWT.Issuer)
	authService := auth.NewService(stores.identities, jwtManager)

	sched := scheduler.NewScheduler()
	if cfg.Maintenance.Enabled {
		sched.RegisterHandler(scheduler.TaskTypePurgeSessions, scheduler.PurgeSessionsTask(authService))
		if err := sched.AddTask(scheduler.TaskTypePurgeSessions, cfg.Maintenance.SessionPurgeSchedule); err != nil {
			stores.documents.Close()
			return fmt.Errorf("failed to schedule session purge: %w", err)
		}
	}
	sched.Start()
	// Stop is idempotent; this covers the early returns below
	defer stopScheduler(sched, cfg.Server.ShutdownTimeout)

	server, err := api.NewServer(cfg, api.Dependencies{
		Documents: stores.documents,
		Auth:      authService,
		Metrics:   metrics,
		Scheduler: sched,
	})
	if err != nil {
		stores.documents.Close()
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	if configPath != "" && watchInterval > 0 {
		go watchConfig(ctx, configPath, watchInterval)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// stop scheduled jobs before the server closes the store they use
	sched.Stop(shutdownCtx)
	if err := server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// watchConfig applies log level changes from the config file without a restart.
// Other sections need a restart to take effect.
func watchConfig(ctx context.Context, path string, interval time.Duration) {
	watcher := config.NewConfigWatcher(path, interval)
	watcher.OnChange(func(updated *config.Config) error {
		level := logger.ParseLevel(updated.Logging.Level)
		logger.GetGlobalLogger().SetLevel(level)
		logger.Info("Configuration reloaded", "log_level", string(level))
		return nil
	})

	if err := watcher.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Config watcher stopped", "error", err)
	}
}

func stopScheduler(sched *scheduler.Scheduler, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	sched.Stop(ctx)
}
