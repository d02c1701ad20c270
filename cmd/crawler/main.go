// Package main provides a one-shot crawler run: sweep the configured land-ID
// range for a single date and exit. Useful for cron setups and manual
// re-runs.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lok-dashboard/internal/config"
	"github.com/lok-dashboard/internal/crawler"
	"github.com/lok-dashboard/internal/logging"
	"github.com/lok-dashboard/internal/lok"
	"github.com/lok-dashboard/internal/ratelimit"
	"github.com/lok-dashboard/internal/service"
	"github.com/lok-dashboard/internal/storage"
	"github.com/lok-dashboard/internal/types"
)

func main() {
	var (
		dateFlag    = flag.String("date", "", "Target date (YYYY-MM-DD). Defaults to yesterday (UTC).")
		recoverFlag = flag.Bool("recover", false, "Only sweep if yesterday's latest status is absent or FAILED")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	date := types.Yesterday(time.Now())
	if *dateFlag != "" {
		date, err = types.ParseDate(*dateFlag)
		if err != nil {
			logger.WithError(err).Fatal("Invalid -date value")
		}
	}

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	landRepo := storage.NewLandRepository(postgres)
	jobRepo := storage.NewBatchJobRepository(postgres)

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
		Store:   landRepo,
		Fetcher: fetcher,
		Logger:  logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create contribution service")
	}

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

	// A signal cancels the sweep; the crawler records a FAILED status so the
	// next recovery check picks the date back up.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *recoverFlag {
		ran, err := batchCrawler.CheckAndRecover(ctx)
		if err != nil {
			logger.WithError(err).Fatal("Recovery run failed")
		}
		if !ran {
			logger.Info("Nothing to recover")
		}
		return
	}

	if err := batchCrawler.RunSweep(ctx, date); err != nil {
		logger.WithError(err).Fatal("Sweep failed")
	}
}
