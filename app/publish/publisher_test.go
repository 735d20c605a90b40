package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWebhookPublisher_DeliversJSON(t *testing.T) {
	var received Post
	var gotUserAgent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	publisher := NewWebhookPublisher(server.URL, server.Client(), "RepostQ/test")
	post := Post{
		ContentID:    1,
		CandidateID:  2,
		Text:         "rewritten text",
		AuthorHandle: "@acme",
		SourceLink:   "https://example.com/post",
		ScheduledFor: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
	}

	if err := publisher.Publish(context.Background(), post); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if received.Text != post.Text {
		t.Errorf("expected text %q, got %q", post.Text, received.Text)
	}
	if received.AuthorHandle != post.AuthorHandle {
		t.Errorf("expected handle %q, got %q", post.AuthorHandle, received.AuthorHandle)
	}
	if gotUserAgent != "RepostQ/test" {
		t.Errorf("expected configured user agent, got %q", gotUserAgent)
	}
}

func TestWebhookPublisher_NonSuccessStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited by upstream", http.StatusTooManyRequests)
	}))
	defer server.Close()

	publisher := NewWebhookPublisher(server.URL, server.Client(), "RepostQ/test")

	err := publisher.Publish(context.Background(), Post{ContentID: 1})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status code in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("expected response excerpt in error, got %v", err)
	}
}
