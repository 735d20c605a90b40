package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Post is the payload handed to the external publishing service.
type Post struct {
	ContentID    int64     `json:"content_id"`
	CandidateID  int64     `json:"candidate_id"`
	Text         string    `json:"text"`
	AuthorHandle string    `json:"author_handle,omitempty"`
	SourceLink   string    `json:"source_link,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

type Publisher interface {
	Publish(ctx context.Context, post Post) error
}

// WebhookPublisher delivers posts to an external service over a JSON
// webhook. The service owns the actual social network credentials.
type WebhookPublisher struct {
	url        string
	httpClient *http.Client
	userAgent  string
}

var _ Publisher = (*WebhookPublisher)(nil)

func NewWebhookPublisher(url string, httpClient *http.Client, userAgent string) *WebhookPublisher {
	return &WebhookPublisher{
		url:        url,
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

func (p *WebhookPublisher) Publish(ctx context.Context, post Post) error {
	body, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("failed to encode post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("publisher returned %d: %s", resp.StatusCode, string(msg))
	}

	return nil
}
