package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vportnov/repostq/app/database"
	"github.com/vportnov/repostq/app/ingest"
	"github.com/vportnov/repostq/app/profiles"
)

// ExtractContentTask fetches the linked article for recently ingested items
// and stores the readable text, giving the rewrite service more material
// than the feed snippet alone.
type ExtractContentTask struct {
	Task
	Profile          *profiles.Profile
	httpClient       *http.Client
	contentExtractor *ingest.ContentExtractor
	contentRepo      database.ContentRepository
	userAgent        string
}

func NewExtractContentTask(profileName string, profile *profiles.Profile, httpClient *http.Client,
	contentExtractor *ingest.ContentExtractor, contentRepo database.ContentRepository,
	userAgent string) *ExtractContentTask {
	return &ExtractContentTask{
		Task:             NewTask(TaskTypeExtractContent, profileName),
		Profile:          profile,
		httpClient:       httpClient,
		contentExtractor: contentExtractor,
		contentRepo:      contentRepo,
		userAgent:        userAgent,
	}
}

func (t *ExtractContentTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.Profile.Settings.ExtractContent {
		slog.Debug("Content extraction disabled for profile", "profile", t.ProfileName)
		return nil
	}

	items, err := t.contentRepo.GetRecentItems(t.Profile.Settings.MaxItems)
	if err != nil {
		return fmt.Errorf("failed to get items for content extraction: %w", err)
	}

	successCount := 0
	errorCount := 0

	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !t.needsExtraction(item) {
			continue
		}

		if err := t.extractContentForItem(ctx, item); err != nil {
			slog.Error("Failed to extract content for item",
				"item_id", item.ID, "url", item.Link, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	if successCount > 0 || errorCount > 0 {
		slog.Info("Task completed",
			"type", "ExtractContent",
			"profile", t.ProfileName,
			"duration", t.GetDuration(),
			"success", successCount,
			"errors", errorCount)
	}

	return nil
}

func (t *ExtractContentTask) needsExtraction(item database.ContentItem) bool {
	return item.Profile == t.ProfileName &&
		item.Status == database.ContentStatusNew &&
		item.ExtractedContent == "" &&
		item.Link != ""
}

func (t *ExtractContentTask) extractContentForItem(ctx context.Context, item database.ContentItem) error {
	data, err := t.fetchArticleContent(ctx, item.Link)
	if err != nil {
		return fmt.Errorf("failed to fetch article content: %w", err)
	}

	extractedContent, err := t.contentExtractor.Run(data)
	if err != nil {
		return fmt.Errorf("failed to extract content: %w", err)
	}

	if err := t.contentRepo.UpdateExtractedContent(item.ID, extractedContent); err != nil {
		return fmt.Errorf("failed to store extracted content: %w", err)
	}

	slog.Debug("Content extracted successfully",
		"item_id", item.ID, "url", item.Link, "content_length", len(extractedContent))
	return nil
}

func (t *ExtractContentTask) fetchArticleContent(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.Profile.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("content type is not HTML: %s", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
