// Package main provides the API server entry point for the contribution
// dashboard. It wires the full stack: upstream client, storage, services,
// crawler scheduler and the HTTP API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lok-dashboard/internal/api"
	"github.com/lok-dashboard/internal/config"
	"github.com/lok-dashboard/internal/crawler"
	"github.com/lok-dashboard/internal/logging"
	"github.com/lok-dashboard/internal/lok"
	"github.com/lok-dashboard/internal/ratelimit"
	"github.com/lok-dashboard/internal/service"
	"github.com/lok-dashboard/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	landRepo := storage.NewLandRepository(postgres)
	jobRepo := storage.NewBatchJobRepository(postgres)
	visitorRepo := storage.NewVisitorRepository(postgres)

	bucket, err := ratelimit.NewTokenBucket(&ratelimit.TokenBucketConfig{
		Capacity: cfg.API.TokensPerPeriod,
		Period:   time.Duration(cfg.API.PeriodSeconds) * time.Second,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create token bucket")
	}

	client, err := ratelimit.NewClient(&ratelimit.ClientConfig{
		Bucket:        bucket,
		HTTPClient:    &http.Client{Timeout: cfg.API.Timeout},
		MaxRetries:    cfg.API.MaxRetries,
		ForbiddenWait: cfg.API.ForbiddenWait,
		Logger:        logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create rate-limited client")
	}

	fetcher, err := lok.NewFetcher(&lok.FetcherConfig{
		Client:  client,
		BaseURL: cfg.API.BaseURL,
		Logger:  logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create fetcher")
	}

	contributionService, err := service.NewContributionService(&service.ContributionServiceConfig{
		Store:    landRepo,
		Fetcher:  fetcher,
		Cache:    redis,
		IsMiss:   storage.IsMiss,
		CacheTTL: cfg.Cache.LeaderboardTTL,
		Logger:   logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create contribution service")
	}

	visitorService := service.NewVisitorService(visitorRepo, logger)

	batchCrawler, err := crawler.NewCrawler(&crawler.CrawlerConfig{
		Contributions: contributionService,
		Jobs:          jobRepo,
		Policy:        crawler.NewConsecutiveFailures(cfg.Crawler.QuarantineThreshold),
		StartLandID:   cfg.Crawler.StartLandID,
		EndLandID:     cfg.Crawler.EndLandID,
		Logger:        logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create crawler")
	}

	runAtHour, runAtMinute, err := config.ParseTimeOfDay(cfg.Crawler.DailyRunAt)
	if err != nil {
		logger.WithError(err).Fatal("Invalid daily run time")
	}

	scheduler, err := crawler.NewScheduler(&crawler.SchedulerConfig{
		Runner:           batchCrawler,
		RunAtHour:        runAtHour,
		RunAtMinute:      runAtMinute,
		RecoveryInterval: cfg.Crawler.RecoveryInterval,
		Logger:           logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create scheduler")
	}

	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	defer cancelScheduler()

	if err := scheduler.Start(schedulerCtx); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RateLimitRPS:    cfg.RateLimit.RequestsPerSecond,
		RateLimitBurst:  cfg.RateLimit.Burst,
	}

	server, err := api.NewServer(serverConfig, &api.ServerDeps{
		Contributions: contributionService,
		Batch:         scheduler,
		BadLands:      batchCrawler,
		Jobs:          jobRepo,
		Analytics:     visitorService,
		Visitors:      visitorService,
		DB:            postgres,
		Cache:         redis,
		Logger:        logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create API server")
	}

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	cancelScheduler()
	if err := scheduler.Stop(ctx); err != nil {
		logger.WithError(err).Warn("Scheduler did not stop cleanly")
	}

	logger.Info("Server exited")
}
