package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/user-weather-hub/internal/api/http"
	"github.com/i474232898/user-weather-hub/internal/config"
	"github.com/i474232898/user-weather-hub/internal/events"
	"github.com/i474232898/user-weather-hub/internal/observability"
	"github.com/i474232898/user-weather-hub/internal/scheduler"
	"github.com/i474232898/user-weather-hub/internal/store"
	"github.com/i474232898/user-weather-hub/internal/users"
	"github.com/i474232898/user-weather-hub/internal/weather"
	"github.com/i474232898/user-weather-hub/internal/weather/providers"
)

type publisher interface {
	users.EventPublisher
	Close() error
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", cfg.DBPath), zap.Error(err))
	}

	// Shared HTTP client for outbound NWS calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	nws := providers.NewNWSProvider(httpClient, cfg.NWSBaseURL, cfg.NWSUserAgent, metrics, logger.Named("nws"))

	weatherSvc := weather.NewService(
		nws,
		store.NewMemoryCache[[]weather.Zone](cfg.CacheTTL, nil),
		store.NewMemoryCache[weather.ZoneForecast](cfg.CacheTTL, nil),
		cfg.FetchConcurrency,
		metrics,
		logger.Named("weather"),
	)

	var pub publisher = events.NopPublisher{}
	if cfg.KafkaEnabled() {
		pub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaUserTopic)
		logger.Info("publishing user events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaUserTopic))
	}

	userSvc := users.NewService(db, pub, metrics, logger.Named("users"))

	sched := scheduler.New(scheduler.Config{
		PruneInterval: cfg.CachePruneInterval,
		WarmStates:    cfg.WarmStates,
		WarmInterval:  cfg.WarmInterval,
		WarmTimeout:   cfg.HTTPTimeout * 3,
	}, weatherSvc, logger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	app := httpapi.NewApp(httpapi.Options{
		AppName:     "user-weather-hub",
		CORSOrigins: cfg.CORSOrigin,
		Metrics:     metrics,
		Logger:      logger,
	})
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Users:     userSvc,
		Weather:   weatherSvc,
		DB:        db,
		Gatherer:  prometheus.DefaultGatherer,
		StaticDir: cfg.StaticDir,
		Logger:    logger,
	})

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	exitCode := 0
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
		exitCode = 1
	}
	if err := pub.Close(); err != nil {
		logger.Warn("closing event publisher", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		logger.Warn("closing database", zap.Error(err))
	}

	if exitCode != 0 {
		_ = logger.Sync()
		os.Exit(exitCode)
	}
}
