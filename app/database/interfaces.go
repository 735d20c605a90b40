package database

import (
	"context"
	"time"
)

// ContentStats summarizes content item counts for the stats endpoint.
type ContentStats struct {
	Total     int
	ByStatus  map[ContentStatus]int
	Profiles  int
	LastAdded *time.Time
}

type ContentRepository interface {
	UpsertItem(item ContentItem) (int64, bool, error)
	GetItem(id int64) (*ContentItem, error)
	GetRecentItems(limit int) ([]ContentItem, error)
	UpdateItemStatus(id int64, status ContentStatus) error
	UpdateExtractedContent(id int64, content string) error
	CheckDuplicate(contentHash string) (bool, error)
	GetStats() (*ContentStats, error)

	InsertCandidate(candidate RewriteCandidate) (int64, error)
	GetCandidate(id int64) (*RewriteCandidate, error)
	GetCandidatesForItem(contentID int64) ([]RewriteCandidate, error)
	UpdateCandidateStatus(id int64, status CandidateStatus) error
}

// ReservationTx is the transaction-scoped view of the reservation table.
// Every scheduling decision runs entirely inside one of these; the single
// database connection guarantees transactions execute one at a time.
type ReservationTx interface {
	GetContentItem(id int64) (*ContentItem, error)
	GetCandidate(id int64) (*RewriteCandidate, error)
	GetReservation(id int64) (*Reservation, error)
	GetPending() ([]Reservation, error)
	GetActiveSince(cutoff time.Time) ([]Reservation, error)
	GetByContentID(contentID int64) ([]Reservation, error)
	Insert(r *Reservation) error
	Update(r *Reservation) error
	Delete(id int64) error
	UpdateContentStatus(id int64, status ContentStatus) error
	UpdateCandidateStatus(id int64, status CandidateStatus) error
}

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(tx ReservationTx) error) error
	GetReservation(id int64) (*Reservation, error)
	GetPending() ([]Reservation, error)
	GetDue(now time.Time) ([]Reservation, error)
	Update(r *Reservation) error
	UpdateContentStatus(id int64, status ContentStatus) error
	UpdateCandidateStatus(id int64, status CandidateStatus) error
	GetCount() (int, error)
}

type HealthRepository interface {
	Get() (*SystemHealth, error)
	RecordPublishSuccess(t time.Time) error
	RecordPublishFailure() error
	RecordIngestSuccess(t time.Time) error
}
