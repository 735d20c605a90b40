package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vportnov/repostq/app/cfg"
	"github.com/vportnov/repostq/app/database"
	"github.com/vportnov/repostq/app/ingest"
	"github.com/vportnov/repostq/app/profiles"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	profileCache     *profiles.Cache
	contentRepo      database.ContentRepository
	healthRepo       database.HealthRepository
	httpClient       *http.Client
	parser           *ingest.Parser
	filterer         *ingest.Filterer
	contentExtractor *ingest.ContentExtractor
	userAgent        string
	interval         time.Duration
	workerCount      int
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	taskQueue        chan TaskInterface
}

func NewScheduler(profileCache *profiles.Cache, contentRepo database.ContentRepository,
	healthRepo database.HealthRepository, httpClient *http.Client, parser *ingest.Parser,
	filterer *ingest.Filterer, contentExtractor *ingest.ContentExtractor) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		profileCache:     profileCache,
		contentRepo:      contentRepo,
		healthRepo:       healthRepo,
		httpClient:       httpClient,
		parser:           parser,
		filterer:         filterer,
		contentExtractor: contentExtractor,
		userAgent:        cfg.UserAgent,
		interval:         time.Duration(cfg.IngestInterval) * time.Second,
		workerCount:      cfg.WorkerCount,
		ctx:              ctx,
		cancel:           cancel,
		taskQueue:        make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueTasks() {
	enabled := s.profileCache.GetEnabled()
	if len(enabled) == 0 {
		slog.Debug("No enabled profiles found")
		return
	}

	slog.Debug("Scheduling ingest tasks", "count", len(enabled))

	for _, profile := range enabled {
		fetchTask := NewFetchProfileTask(profile.Name, profile, s.httpClient,
			s.parser, s.filterer, s.contentRepo, s.healthRepo, s.userAgent)
		if err := s.EnqueueTask(fetchTask); err != nil {
			slog.Warn("Failed to enqueue FetchProfileTask", "profile", profile.Name, "error", err)
			continue
		}

		if profile.Settings.ExtractContent {
			extractTask := NewExtractContentTask(profile.Name, profile, s.httpClient,
				s.contentExtractor, s.contentRepo, s.userAgent)
			if err := s.EnqueueTask(extractTask); err != nil {
				slog.Warn("Failed to enqueue ExtractContentTask", "profile", profile.Name, "error", err)
			}
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID,
		"type", string(task.GetType()), "id", task.GetID(),
		"retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()),
			"id", task.GetID(), "retry_count", task.GetRetryCount(),
			"max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()),
		"profile", task.GetProfileName(), "retry_count", task.GetRetryCount(),
		"max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		time.Sleep(retryDelay)
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry",
				"type", string(task.GetType()), "id", task.GetID())
			return
		default:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry",
					"type", string(task.GetType()), "id", task.GetID(),
					"retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
