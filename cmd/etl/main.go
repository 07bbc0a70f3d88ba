package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urbanaq/airq-etl/internal/adapter/artifact"
	httpadapter "github.com/urbanaq/airq-etl/internal/adapter/http"
	"github.com/urbanaq/airq-etl/internal/adapter/openmeteo"
	"github.com/urbanaq/airq-etl/internal/adapter/postgres"
	"github.com/urbanaq/airq-etl/internal/config"
	"github.com/urbanaq/airq-etl/internal/observability"
	"github.com/urbanaq/airq-etl/internal/pipeline"
	"github.com/urbanaq/airq-etl/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := artifact.NewStore(cfg.DataDir)
	if err != nil {
		logger.Error("failed to create artifact store", "error", err)
		os.Exit(1)
	}

	client := openmeteo.NewClient(openmeteo.Config{
		AirQualityBaseURL: cfg.AirQualityAPIBase,
		WeatherBaseURL:    cfg.WeatherAPIBase,
		GeocodingBaseURL:  cfg.GeocodingAPIBase,
		MaxRetries:        cfg.MaxRetries,
		Timeout:           cfg.HTTPTimeout,
	}, logger)
	geocoder := openmeteo.NewCachedGeocoder(client, cfg.GeocodeCacheSize)

	// The warehouse is optional: without DATABASE_URL the run still stages
	// and analyzes, and only the load stage is skipped.
	var loader pipeline.Loader
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, load stage will be skipped")
		loader = pipeline.NewSkipLoader(logger)
	} else {
		db, err := postgres.New(ctx, cfg.DatabaseURL, cfg.DBBatchSize, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		loader = pipeline.NewStoreLoader(db, store, logger)
	}

	p := pipeline.New(
		pipeline.NewFetchExtractor(client, geocoder, store, cfg.Cities, cfg.ForecastDays, cfg.FetchPause, logger),
		pipeline.NewCSVTransformer(store, cfg.Thresholds, logger),
		loader,
		pipeline.NewArtifactAnalyzer(store, store, logger),
		logger,
		metrics,
	)

	// One-shot mode: run once and exit with the run's outcome.
	if cfg.RunInterval <= 0 {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Scheduled mode: serve operational endpoints while the scheduler
	// triggers runs.
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, store, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	sched := scheduler.New(p, cfg.RunInterval, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
