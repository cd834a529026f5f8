package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/config"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/events"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/healthcheck"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/observer"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/storage"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/usecase"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/webhook"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	logger.Log.Info("Starting Caselane Intake Processor",
		zap.String("environment", cfg.Environment),
		zap.Int("webhook_port", cfg.Server.Port),
		zap.String("nats_url", cfg.NATS.URL),
	)

	// Initialize repositories
	postgresRepo, err := initPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	// Initialize the lifecycle event publisher. An empty NATS URL disables
	// publishing rather than blocking startup.
	publisher, err := initPublisher(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize event publisher", zap.Error(err))
	}

	// Create repository adapters for the service
	orgRepo := storage.NewOrgRepoAdapter(postgresRepo)
	contactRepo := storage.NewContactRepoAdapter(postgresRepo)
	leadRepo := storage.NewLeadRepoAdapter(postgresRepo)
	intakeRepo := storage.NewIntakeRepoAdapter(postgresRepo)
	callRepo := storage.NewCallRepoAdapter(postgresRepo)
	webhookEventRepo := storage.NewWebhookEventRepoAdapter(postgresRepo)
	outcomeRepo := storage.NewOutcomeRepoAdapter(postgresRepo)

	// Create outcome recorder pool
	outcomeWorker, err := usecase.NewOutcomeWorker(
		cfg.WorkerPools.Outcome,
		outcomeRepo,
		logger.Log,
	)
	if err != nil {
		logger.Log.Fatal("Failed to initialize outcome worker pool", zap.Error(err))
	}

	// Create service, injecting the worker pool
	service := usecase.NewIntakeService(orgRepo, contactRepo, leadRepo, intakeRepo, callRepo, webhookEventRepo, publisher, outcomeWorker)

	// Create webhook server
	webhookServer := webhook.NewServer(cfg.Server.Port, service, cfg.Providers)

	// Create health check server, readiness gated on the database
	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Server.HealthPort), logger.Log, postgresRepo.Ping)

	// Register metrics handler if enabled BEFORE starting the server
	if metricsEnabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Server.HealthPort))
	} else {
		logger.Log.Info("Metrics endpoint disabled for environment", zap.String("environment", cfg.Environment))
	}

	healthServer.Start()

	logger.Log.Info("Health check endpoints available",
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.HealthPort)),
		zap.String("readiness", fmt.Sprintf("http://localhost:%d/ready", cfg.Server.HealthPort)),
	)

	// Start webhook server. A listener failure ends the process the same way a
	// termination signal would.
	sigChan := make(chan os.Signal, 1)
	go func() {
		if err := webhookServer.Start(); err != nil {
			logger.Log.Error("Webhook server failed, initiating shutdown...", zap.Error(err))
			select {
			case sigChan <- syscall.SIGTERM:
			default:
				logger.Log.Warn("Could not send SIGTERM to signal channel immediately")
			}
		}
	}()

	// Wait for termination signal
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	// Use WaitGroup to track shutdown of all components
	var wg sync.WaitGroup

	numComponents := 4
	wg.Add(numComponents)

	// Shutdown webhook server first so no new work arrives
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping webhook server")
		start := time.Now()
		if err := webhookServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping webhook server", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] Webhook server stopped",
				zap.Duration("duration", time.Since(start)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping webhook server",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Shutdown outcome worker pool
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping outcome worker pool")
		start := time.Now()
		outcomeWorker.Stop()
		logger.Log.Info("[shutdown] Outcome worker pool stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping outcome worker pool",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Shutdown health check server (includes metrics if enabled)
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping health check server")
		start := time.Now()
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping health check server", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] Health check server stopped",
				zap.Duration("duration", time.Since(start)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping health check server",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Close publisher and database connections
	utils.SafeGo(func() {
		defer wg.Done()

		logger.Log.Info("[shutdown] Closing event publisher")
		pubStart := time.Now()
		publisher.Close()
		logger.Log.Info("[shutdown] Event publisher closed",
			zap.Duration("duration", time.Since(pubStart)))

		logger.Log.Info("[shutdown] Closing PostgreSQL connection")
		pgStart := time.Now()
		if err := postgresRepo.Close(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] PostgreSQL connection closed",
				zap.Duration("duration", time.Since(pgStart)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while closing connections",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Wait with a timeout for all components to shut down
	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	logger.Log.Info("Caselane Intake Processor shutdown complete")
}

// Initialize PostgreSQL repository
func initPostgresRepo(dsn string, autoMigrate bool) (*storage.PostgresRepo, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	repo, err := storage.NewPostgresRepo(dsn, autoMigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}

	logger.Log.Info("Initialized PostgreSQL repository")
	return repo, nil
}

// initPublisher initializes the JetStream publisher, or a no-op publisher when
// no NATS URL is configured.
func initPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.NATS.URL == "" {
		logger.Log.Info("NATS URL not set, lifecycle events disabled")
		return events.NoopPublisher{}, nil
	}

	publisher, err := events.NewJetStreamPublisher(cfg.NATS.URL, cfg.NATS.Stream, cfg.NATS.Subject+".>")
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
	}
	return publisher, nil
}
