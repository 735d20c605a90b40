package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vportnov/repostq/app/database"
	"github.com/vportnov/repostq/app/ingest"
	"github.com/vportnov/repostq/app/profiles"
)

// FetchProfileTask pulls a monitored profile's feed, drops cross-profile
// duplicates by content hash, applies the profile's keyword filters, and
// stores what survives as new content items.
type FetchProfileTask struct {
	Task
	Profile     *profiles.Profile
	httpClient  *http.Client
	parser      *ingest.Parser
	filterer    *ingest.Filterer
	contentRepo database.ContentRepository
	healthRepo  database.HealthRepository
	userAgent   string
}

func NewFetchProfileTask(profileName string, profile *profiles.Profile, httpClient *http.Client,
	parser *ingest.Parser, filterer *ingest.Filterer, contentRepo database.ContentRepository,
	healthRepo database.HealthRepository, userAgent string) *FetchProfileTask {
	return &FetchProfileTask{
		Task:        NewTask(TaskTypeFetchProfile, profileName),
		Profile:     profile,
		httpClient:  httpClient,
		parser:      parser,
		filterer:    filterer,
		contentRepo: contentRepo,
		healthRepo:  healthRepo,
		userAgent:   userAgent,
	}
}

func (t *FetchProfileTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.Profile.Settings.Enabled {
		slog.Debug("Profile disabled, skipping", "profile", t.ProfileName)
		return nil
	}

	data, err := t.fetchFeed(ctx, t.Profile.FeedURL)
	if err != nil {
		return fmt.Errorf("failed to fetch profile feed: %w", err)
	}

	posts, err := t.parser.Run(data)
	if err != nil {
		return fmt.Errorf("failed to parse profile feed: %w", err)
	}

	if len(posts) > t.Profile.Settings.MaxItems {
		posts = posts[:t.Profile.Settings.MaxItems]
	}

	duplicateCount := 0
	filteredCount := 0
	newCount := 0

	if len(posts) > 0 {
		var nonDuplicatePosts []ingest.Post
		for _, post := range posts {
			isDuplicate, err := t.contentRepo.CheckDuplicate(post.ContentHash)
			if err != nil {
				return fmt.Errorf("failed to check for duplicates: %w", err)
			}

			if isDuplicate {
				duplicateCount++
			} else {
				nonDuplicatePosts = append(nonDuplicatePosts, post)
			}
		}

		if len(nonDuplicatePosts) > 0 {
			filteredPosts := t.filterer.Run(nonDuplicatePosts, t.Profile)

			for _, post := range filteredPosts {
				if post.IsFiltered {
					filteredCount++
				} else {
					newCount++
				}
			}

			if err := t.storePosts(filteredPosts); err != nil {
				return fmt.Errorf("failed to store posts: %w", err)
			}
		}
	}

	if err := t.healthRepo.RecordIngestSuccess(time.Now().UTC()); err != nil {
		slog.Warn("Failed to record ingest success", "profile", t.ProfileName, "error", err)
	}

	slog.Info("Task completed",
		"type", "FetchProfile",
		"profile", t.ProfileName,
		"duration", t.GetDuration(),
		"total", len(posts),
		"duplicates", duplicateCount,
		"filtered", filteredCount,
		"new", newCount)

	return nil
}

func (t *FetchProfileTask) fetchFeed(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.Profile.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func (t *FetchProfileTask) storePosts(posts []ingest.Post) error {
	for _, post := range posts {
		item := database.ContentItem{
			Profile:         t.ProfileName,
			GUID:            post.GUID,
			AuthorHandle:    post.AuthorHandle,
			AuthorName:      post.AuthorName,
			Link:            post.Link,
			Title:           post.Title,
			Body:            post.Body,
			SourceTimestamp: post.PublishedAt,
			ContentHash:     post.ContentHash,
		}

		id, inserted, err := t.contentRepo.UpsertItem(item)
		if err != nil {
			return fmt.Errorf("failed to upsert content item: %w", err)
		}

		// Filtered posts are kept for the audit trail but never enter the
		// rewrite pipeline.
		if inserted && post.IsFiltered {
			if err := t.contentRepo.UpdateItemStatus(id, database.ContentStatusSkipped); err != nil {
				return fmt.Errorf("failed to mark filtered item skipped: %w", err)
			}
			slog.Debug("Post filtered", "profile", t.ProfileName, "guid", post.GUID,
				"reason", post.FilterReason)
		}
	}

	return nil
}
