// Package main wires together the reference-data ingestion service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yamelab/medref/internal/api"
	"github.com/yamelab/medref/internal/blob"
	"github.com/yamelab/medref/internal/clock/system"
	"github.com/yamelab/medref/internal/collector"
	"github.com/yamelab/medref/internal/config"
	"github.com/yamelab/medref/internal/events"
	"github.com/yamelab/medref/internal/fetch"
	collyfetcher "github.com/yamelab/medref/internal/fetch/colly"
	"github.com/yamelab/medref/internal/fetch/detector"
	headlessfetcher "github.com/yamelab/medref/internal/fetch/headless"
	"github.com/yamelab/medref/internal/hash/sha256"
	"github.com/yamelab/medref/internal/ingest"
	"github.com/yamelab/medref/internal/logging"
	"github.com/yamelab/medref/internal/metrics"
	"github.com/yamelab/medref/internal/queue"
	"github.com/yamelab/medref/internal/seed"
	"github.com/yamelab/medref/internal/storage/memory"
	"github.com/yamelab/medref/internal/storage/postgres"
	"github.com/yamelab/medref/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		records ingest.RecordStore
		q       queue.Store
		runs    queue.RunStore
		seeds   queue.SeedStore
		pages   queue.PageStore
	)
	if cfg.DB.DSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.DB.DSN, cfg.DB.MaxConns)
		if err != nil {
			logger.Fatal("database connect failed", zap.Error(err))
		}
		defer pool.Close()
		records = postgres.NewRecordStore(pool, logger.Named("records"))
		q = postgres.NewQueueStore(pool, logger.Named("queue"))
		runs = postgres.NewRunStore(pool, logger.Named("runs"))
		seeds = postgres.NewSeedStore(pool, logger.Named("seeds"))
		pages = postgres.NewPageStore(pool, logger.Named("pages"))
	} else {
		logger.Warn("no database configured, using in-memory stores")
		records = memory.NewRecordStore()
		q = memory.NewQueueStore()
		runs = memory.NewRunStore()
		seeds = memory.NewSeedStore(nil, nil)
		pages = memory.NewPageStore()
	}

	retryCfg := ingest.RetryConfig{
		MaxAttempts: cfg.HTTP.MaxAttempts,
		BaseDelay:   time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
		Timeout:     cfg.RetryTimeout(),
	}
	executor := ingest.NewExecutor(&http.Client{}, retryCfg, logger.Named("http"))
	fetcher := ingest.NewPageFetcher(executor, logger.Named("fetcher"))

	var publisher events.Publisher = events.Noop{}
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		ps, err := events.NewPubSub(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName, logger.Named("events"))
		if err != nil {
			logger.Warn("pubsub init failed, events disabled", zap.Error(err))
		} else {
			defer ps.Close()
			publisher = ps
		}
	}

	collectors := collector.Build(cfg, fetcher, records, logger.Named("collector"))
	orchestrator := collector.NewOrchestrator(collectors, publisher, logger.Named("orchestrator"))

	var blobs blob.Store = blob.Noop{}
	if cfg.Blob.GCSBucket != "" {
		gcs, err := blob.NewGCS(ctx, cfg.Blob.GCSBucket, logger.Named("blob"))
		if err != nil {
			logger.Warn("blob store init failed, snapshots disabled", zap.Error(err))
		} else {
			defer gcs.Close()
			blobs = gcs
		}
	}

	probe := collyfetcher.New(collyfetcher.Config{
		Timeout: cfg.RetryTimeout(),
	})
	var headless fetch.Fetcher = headlessfetcher.Noop{}
	if cfg.Headless.Enabled {
		chromeFetcher, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			defer chromeFetcher.Close()
			headless = chromeFetcher
		}
	}
	detect := detector.NewHeuristic(cfg.Headless.PromotionThresh)

	if cfg.Worker.Enabled {
		sources := make(map[string]worker.SourceRule, len(cfg.Worker.Sources))
		for name, rule := range cfg.Worker.Sources {
			sources[name] = worker.SourceRule{
				URLTemplate: rule.URLTemplate,
				MinInterval: time.Duration(rule.MinIntervalMs) * time.Millisecond,
			}
		}
		w := worker.New(
			worker.Config{
				JobName:         cfg.Worker.JobName,
				MaxItems:        cfg.Worker.MaxItems,
				ContentType:     cfg.Blob.ContentType,
				BlobPrefix:      cfg.Blob.Prefix,
				HeadlessAllowed: cfg.Headless.Enabled,
				Sources:         sources,
			},
			q, runs, pages,
			probe, headless, detect,
			blobs, sha256.New(), system.New(),
			publisher, logger.Named("worker"),
		)

		planner := seed.NewPlanner(seeds, q, logger.Named("seed"))
		if inserted, err := planner.Plan(ctx); err != nil {
			logger.Error("seed planning failed", zap.Error(err))
		} else {
			logger.Info("seed planning done", zap.Int("newItems", inserted))
		}

		go w.Run(ctx, time.Duration(cfg.Worker.IntervalSeconds)*time.Second)
	}

	apiServer := api.NewServer(orchestrator, q, runs, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
