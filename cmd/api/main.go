package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dentalops/clinic-platform/cmd/mainconfig"
	"github.com/dentalops/clinic-platform/internal/api/router"
	"github.com/dentalops/clinic-platform/internal/app/bootstrap"
	"github.com/dentalops/clinic-platform/internal/appointments"
	"github.com/dentalops/clinic-platform/internal/audit"
	"github.com/dentalops/clinic-platform/internal/cascade"
	"github.com/dentalops/clinic-platform/internal/closure"
	appconfig "github.com/dentalops/clinic-platform/internal/config"
	"github.com/dentalops/clinic-platform/internal/events"
	"github.com/dentalops/clinic-platform/internal/http/handlers"
	"github.com/dentalops/clinic-platform/internal/observability/metrics"
	"github.com/dentalops/clinic-platform/internal/queue"
	"github.com/dentalops/clinic-platform/internal/slots"
	"github.com/dentalops/clinic-platform/pkg/logging"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic scheduling API",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	sqsClient := sqs.NewFromConfig(awsCfg)

	m := metrics.NewSchedulingMetrics(nil)

	slotStore := slots.NewStore(pool)
	outbox := events.NewOutboxStore(pool)
	emitter := events.NewSQSEmitter(sqsClient, cfg.EventQueueURL)
	deliverer := events.NewDeliverer(outbox, emitter, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxInterval)
	go deliverer.Start(ctx)

	apptClient := appointments.NewClient(cfg.AppointmentServiceURL, cfg.CollaboratorTimeout, cfg.CollaboratorRetries, logger)
	dir := bootstrap.BuildDirectory(cfg, redisClient, logger)

	resolver := cascade.NewResolver(apptClient, outbox, m, logger)
	builder := audit.NewBuilder(dir, m, logger)
	auditStore := audit.NewStore(pool)
	orchestrator := closure.NewOrchestrator(slotStore, resolver, builder, auditStore, m, logger)

	allocator := queue.NewAllocator(pool)
	queueService := queue.NewService(allocator, slotStore, outbox, apptClient, m, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		ClosuresHandler:    handlers.NewClosuresHandler(orchestrator, auditStore, logger),
		QueueHandler:       handlers.NewQueueHandler(queueService, logger),
		SlotsHandler:       handlers.NewSlotsHandler(slotStore, logger),
		HealthHandler:      handlers.NewHealthHandler(pool),
		MetricsHandler:     promhttp.Handler(),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
