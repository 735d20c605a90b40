package database

import (
	"time"
)

type ContentStatus string

const (
	ContentStatusNew       ContentStatus = "new"
	ContentStatusRewriting ContentStatus = "rewriting"
	ContentStatusReview    ContentStatus = "review"
	ContentStatusApproved  ContentStatus = "approved"
	ContentStatusScheduled ContentStatus = "scheduled"
	ContentStatusPublished ContentStatus = "published"
	ContentStatusFailed    ContentStatus = "failed"
	ContentStatusSkipped   ContentStatus = "skipped"
)

type CandidateStatus string

const (
	CandidateStatusPending   CandidateStatus = "pending"
	CandidateStatusApproved  CandidateStatus = "approved"
	CandidateStatusRejected  CandidateStatus = "rejected"
	CandidateStatusPublished CandidateStatus = "published"
)

type ReservationStatus string

const (
	ReservationStatusPending    ReservationStatus = "pending"
	ReservationStatusPublishing ReservationStatus = "publishing"
	ReservationStatusPublished  ReservationStatus = "published"
	ReservationStatusFailed     ReservationStatus = "failed"
	ReservationStatusCancelled  ReservationStatus = "cancelled"
)

// PriorityLevel is the golden-hour urgency tier assigned at scheduling time.
// The empty string means the tier is unknown (never classified).
type PriorityLevel string

const (
	PriorityUrgent PriorityLevel = "URGENT"
	PriorityGood   PriorityLevel = "GOOD"
	PriorityOK     PriorityLevel = "OK"
	PriorityStale  PriorityLevel = "STALE"
)

// Rank orders priority tiers for queue sorting. Lower sorts first.
func (p PriorityLevel) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityGood:
		return 1
	case PriorityOK:
		return 2
	case PriorityStale:
		return 3
	default:
		return 4
	}
}

// ContentItem is a source post picked up from a monitored profile.
// Owned by the ingest pipeline; the scheduler only reads the id and
// the source timestamp.
type ContentItem struct {
	ID               int64
	Profile          string
	GUID             string
	AuthorHandle     string
	AuthorName       string
	Link             string
	Title            string
	Body             string
	ExtractedContent string
	SourceTimestamp  *time.Time
	ContentHash      string
	Status           ContentStatus
	CreatedAt        time.Time
}

// RewriteCandidate is one alternative rewritten text for a content item,
// produced by the external rewrite service and registered through the API.
type RewriteCandidate struct {
	ID        int64
	ContentID int64
	Body      string
	Status    CandidateStatus
	CreatedAt time.Time
}

// Reservation binds an approved content item and rewrite candidate to a
// future publish slot.
type Reservation struct {
	ID            int64
	ContentID     int64
	CandidateID   int64
	ApprovedAt    time.Time
	ScheduledFor  time.Time
	PublishedAt   *time.Time
	Status        ReservationStatus
	RetryCount    int
	LastError     string
	PriorityLevel PriorityLevel
	PriorityScore int
	AgeHours      *float64
	CreatedAt     time.Time
}

// ApplyPublishSuccess transitions a pending or in-flight reservation to
// published.
func (r *Reservation) ApplyPublishSuccess(now time.Time) error {
	if r.Status != ReservationStatusPending && r.Status != ReservationStatusPublishing {
		return invalidStateError("publish", r.ID, r.Status)
	}
	r.Status = ReservationStatusPublished
	r.PublishedAt = &now
	r.LastError = ""
	return nil
}

// ApplyPublishFailure records a failed publish attempt. Below the retry
// ceiling the reservation returns to pending and is pushed out by the fixed
// backoff delta; at the ceiling it becomes terminally failed. Returns true
// when the reservation reached the terminal state.
func (r *Reservation) ApplyPublishFailure(cause string, now time.Time, maxRetries int, backoff time.Duration) (bool, error) {
	if r.Status != ReservationStatusPending && r.Status != ReservationStatusPublishing {
		return false, invalidStateError("publish", r.ID, r.Status)
	}

	r.RetryCount++
	r.LastError = cause

	if r.RetryCount >= maxRetries {
		r.Status = ReservationStatusFailed
		return true, nil
	}

	r.Status = ReservationStatusPending
	r.ScheduledFor = now.Add(backoff)
	return false, nil
}

// SystemHealth is the singleton health record updated by the publish and
// ingest workers and surfaced on the health endpoint.
type SystemHealth struct {
	LastSuccessfulPublish      *time.Time
	LastSuccessfulIngest       *time.Time
	ConsecutiveFailedPublishes int
	UpdatedAt                  time.Time
}
