package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vportnov/repostq/app/api"
	"github.com/vportnov/repostq/app/cfg"
	"github.com/vportnov/repostq/app/database"
	"github.com/vportnov/repostq/app/ingest"
	"github.com/vportnov/repostq/app/profiles"
	"github.com/vportnov/repostq/app/publish"
	"github.com/vportnov/repostq/app/scheduler"
	"github.com/vportnov/repostq/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting RepostQ", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	contentRepo := database.NewContentRepository(db)
	reservationRepo := database.NewReservationRepository(db)
	healthRepo := database.NewHealthRepository(db)

	profileCache := profiles.NewCache(appCfg.ProfilesDir)
	if err := profileCache.Run(); err != nil {
		slog.Error("Failed to load profiles", "dir", appCfg.ProfilesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Profiles loaded", "dir", appCfg.ProfilesDir, "count", profileCache.GetCount())

	httpClient := &http.Client{Timeout: 30 * time.Second}

	feedParser := ingest.NewParser()
	filterer := ingest.NewFilterer()
	contentExtractor := ingest.NewContentExtractor()

	ingestScheduler := tasks.NewScheduler(profileCache, contentRepo, healthRepo,
		httpClient, feedParser, filterer, contentExtractor)
	ingestScheduler.Start()
	defer ingestScheduler.Stop()
	slog.Info("Ingest scheduler started",
		"workers", appCfg.WorkerCount, "interval_seconds", appCfg.IngestInterval)

	schedulerSvc := scheduler.NewService(scheduler.PolicyFromCfg(appCfg), reservationRepo)

	// A slow publish run must not overlap the next tick; overlapping runs
	// would race on the same due reservations.
	crontab := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if appCfg.PublisherURL != "" {
		publisher := publish.NewWebhookPublisher(appCfg.PublisherURL, httpClient, appCfg.UserAgent)
		worker := publish.NewWorker(reservationRepo, healthRepo, publisher,
			appCfg.MaxPostsPerHour, appCfg.MaxRetries,
			time.Duration(appCfg.RetryBackoffMin)*time.Minute)

		if _, err := crontab.AddFunc(appCfg.PublishSpec, func() {
			if err := worker.Run(context.Background()); err != nil {
				slog.Error("Publish run failed", "error", err)
			}
		}); err != nil {
			slog.Error("Invalid publish cron spec", "spec", appCfg.PublishSpec, "error", err)
			os.Exit(1)
		}
		slog.Info("Publish worker scheduled", "spec", appCfg.PublishSpec, "url", appCfg.PublisherURL)
	} else {
		slog.Warn("Publishing disabled (PUBLISHER_URL not set)")
	}

	if _, err := crontab.AddFunc(appCfg.SweepSpec, func() {
		report, err := schedulerSvc.Sweep(context.Background(),
			appCfg.DeadThresholdDays, appCfg.StaleThresholdDays, false)
		if err != nil {
			slog.Error("Sweep run failed", "error", err)
			return
		}
		slog.Info("Sweep completed",
			"checked", report.Checked, "removed", len(report.Removed), "flagged", len(report.Flagged))
	}); err != nil {
		slog.Error("Invalid sweep cron spec", "spec", appCfg.SweepSpec, "error", err)
		os.Exit(1)
	}

	crontab.Start()
	defer crontab.Stop()

	apiHandler := api.NewHandler(schedulerSvc, contentRepo, healthRepo, profileCache,
		appCfg.DeadThresholdDays, appCfg.StaleThresholdDays)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
