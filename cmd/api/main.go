package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/patient-portal/cmd/mainconfig"
	"github.com/wolfman30/patient-portal/internal/api/router"
	"github.com/wolfman30/patient-portal/internal/app/bootstrap"
	appconfig "github.com/wolfman30/patient-portal/internal/config"
	httpmiddleware "github.com/wolfman30/patient-portal/internal/http/middleware"
	"github.com/wolfman30/patient-portal/internal/identity"
	"github.com/wolfman30/patient-portal/internal/notify"
	"github.com/wolfman30/patient-portal/internal/observability/metrics"
	"github.com/wolfman30/patient-portal/internal/portal"
	"github.com/wolfman30/patient-portal/internal/scheduling"
	mailworker "github.com/wolfman30/patient-portal/internal/worker/mail"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting patient portal API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := buildServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
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

// buildServer wires every dependency named by cfg. cleanup releases pools and
// clients and is safe to call once the server has stopped.
func buildServer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*http.Server, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*http.Server, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	metricsHandler, portalMetrics := setupMetrics()
	healthChecks := map[string]router.HealthCheck{}

	pool, err := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fail(err)
	}
	if pool != nil {
		closers = append(closers, pool.Close)
		healthChecks["postgres"] = pool.Ping
	}

	var redisClient *redis.Client
	if cfg.StoreBackend == "redis" {
		redisClient = bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	}
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	repo, err := bootstrap.BuildRepository(ctx, cfg, pool, redisClient, logger)
	if err != nil {
		return fail(err)
	}

	var awsCfg *aws.Config
	if bootstrap.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fail(fmt.Errorf("load aws config: %w", err))
		}
		awsCfg = &loaded
	}
	var mailer notify.EmailSender
	if cfg.DeskEmail != "" {
		sender, err := bootstrap.BuildEmailSender(cfg, awsCfg, logger.Component("mail"))
		if err != nil {
			return fail(err)
		}
		retrying := mailworker.NewRetrySender(sender, logger.Component("mail"))
		go retrying.Run(ctx)
		mailer = retrying
	}
	publisher, err := bootstrap.BuildPublisher(cfg, awsCfg, mailer, logger)
	if err != nil {
		return fail(err)
	}

	auditLog, auditDB, err := bootstrap.OpenAuditLog(ctx, cfg.AuditDatabaseURL, logger)
	if err != nil {
		return fail(err)
	}
	if auditDB != nil {
		closers = append(closers, func() { _ = auditDB.Close() })
		healthChecks["audit"] = auditDB.PingContext
	}

	store := scheduling.NewStore(repo, logger.Component("scheduling")).
		WithLatency(bootstrap.StoreLatency(cfg)).
		WithPublisher(publisher).
		WithMetrics(portalMetrics)
	if auditLog != nil {
		store.WithAuditor(auditLog)
	}

	center := notify.NewCenter(cfg.NotificationTTL).WithObserver(portalMetrics)
	go center.Run(ctx, time.Minute)
	signer := identity.NewSessionSigner(cfg.SessionSecret, cfg.SessionTTL)
	portalHandler := portal.NewHandler(store, center, signer, logger.Component("portal")).
		WithConfirmationTTL(cfg.ConfirmationTTL).
		WithLoginObserver(portalMetrics)
	origins := httpmiddleware.NewOriginPolicy(cfg.CORSAllowedOrigins)
	if origins.Enabled() {
		portalHandler.WithStreamOrigins(origins.Allows)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Portal:             portalHandler,
		Sessions:           signer,
		LoginLimiter:       httpmiddleware.NewRateLimiter(ctx, cfg.LoginRateLimit, cfg.LoginRateBurst),
		MetricsHandler:     metricsHandler,
		Origins:            origins,
		HealthChecks:       healthChecks,
	})

	// No WriteTimeout: the notification stream is long-lived.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return srv, cleanup, nil
}

func setupMetrics() (http.Handler, *metrics.PortalMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewPortalMetrics(reg)
}
