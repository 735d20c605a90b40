package database

import (
	"testing"
	"time"
)

func TestHealthRepo_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewHealthRepository(db)

	// The migration seeds the singleton row.
	health, err := repo.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if health.LastSuccessfulPublish != nil || health.LastSuccessfulIngest != nil {
		t.Errorf("expected no timestamps on a fresh database, got %+v", health)
	}
	if health.ConsecutiveFailedPublishes != 0 {
		t.Errorf("expected zero failures on a fresh database, got %d", health.ConsecutiveFailedPublishes)
	}

	if err := repo.RecordPublishFailure(); err != nil {
		t.Fatalf("RecordPublishFailure failed: %v", err)
	}
	if err := repo.RecordPublishFailure(); err != nil {
		t.Fatalf("RecordPublishFailure failed: %v", err)
	}

	health, err = repo.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if health.ConsecutiveFailedPublishes != 2 {
		t.Errorf("expected 2 consecutive failures, got %d", health.ConsecutiveFailedPublishes)
	}

	publishedAt := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	if err := repo.RecordPublishSuccess(publishedAt); err != nil {
		t.Fatalf("RecordPublishSuccess failed: %v", err)
	}

	health, err = repo.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if health.ConsecutiveFailedPublishes != 0 {
		t.Errorf("expected success to reset the failure count, got %d", health.ConsecutiveFailedPublishes)
	}
	if health.LastSuccessfulPublish == nil || !health.LastSuccessfulPublish.Equal(publishedAt) {
		t.Errorf("expected last publish %s, got %v", publishedAt, health.LastSuccessfulPublish)
	}

	ingestedAt := publishedAt.Add(time.Hour)
	if err := repo.RecordIngestSuccess(ingestedAt); err != nil {
		t.Fatalf("RecordIngestSuccess failed: %v", err)
	}
	health, err = repo.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if health.LastSuccessfulIngest == nil || !health.LastSuccessfulIngest.Equal(ingestedAt) {
		t.Errorf("expected last ingest %s, got %v", ingestedAt, health.LastSuccessfulIngest)
	}
}
