package publish

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vportnov/repostq/app/database"
)

type fakePublisher struct {
	mu    sync.Mutex
	posts []Post
	fail  bool
}

func (p *fakePublisher) Publish(ctx context.Context, post Post) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts = append(p.posts, post)
	if p.fail {
		return fmt.Errorf("webhook unreachable")
	}
	return nil
}

func (p *fakePublisher) published() []Post {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Post(nil), p.posts...)
}

type funcPublisher func(ctx context.Context, post Post) error

func (f funcPublisher) Publish(ctx context.Context, post Post) error {
	return f(ctx, post)
}

type fixture struct {
	reservations *database.ReservationRepo
	content      *database.ContentRepo
	health       *database.HealthRepo
}

func setupWorkerTest(t *testing.T) fixture {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return fixture{
		reservations: database.NewReservationRepository(db),
		content:      database.NewContentRepository(db),
		health:       database.NewHealthRepository(db),
	}
}

func (f fixture) seedReservation(t *testing.T, guid string, scheduledFor time.Time) int64 {
	t.Helper()

	contentID, _, err := f.content.UpsertItem(database.ContentItem{
		Profile:      "acme",
		GUID:         guid,
		AuthorHandle: "@acme",
		Link:         "https://example.com/" + guid,
		ContentHash:  "hash-" + guid,
	})
	if err != nil {
		t.Fatalf("failed to seed content: %v", err)
	}
	candidateID, err := f.content.InsertCandidate(database.RewriteCandidate{
		ContentID: contentID,
		Body:      "rewritten " + guid,
	})
	if err != nil {
		t.Fatalf("failed to seed candidate: %v", err)
	}

	var resID int64
	err = f.reservations.WithTx(context.Background(), func(tx database.ReservationTx) error {
		res := &database.Reservation{
			ContentID:     contentID,
			CandidateID:   candidateID,
			ApprovedAt:    scheduledFor.Add(-time.Hour),
			ScheduledFor:  scheduledFor,
			Status:        database.ReservationStatusPending,
			PriorityLevel: database.PriorityOK,
		}
		if err := tx.Insert(res); err != nil {
			return err
		}
		resID = res.ID
		return nil
	})
	if err != nil {
		t.Fatalf("failed to seed reservation: %v", err)
	}
	return resID
}

func TestWorker_PublishesDueReservation(t *testing.T) {
	f := setupWorkerTest(t)
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	resID := f.seedReservation(t, "post-1", now.Add(-5*time.Minute))

	publisher := &fakePublisher{}
	worker := NewWorker(f.reservations, f.health, publisher, 10, 5, 30*time.Minute,
		WithClock(func() time.Time { return now }))

	if err := worker.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	posts := publisher.published()
	if len(posts) != 1 {
		t.Fatalf("expected 1 publish attempt, got %d", len(posts))
	}
	if posts[0].Text != "rewritten post-1" {
		t.Errorf("expected candidate body in payload, got %q", posts[0].Text)
	}
	if posts[0].AuthorHandle != "@acme" {
		t.Errorf("expected author handle in payload, got %q", posts[0].AuthorHandle)
	}

	res, err := f.reservations.GetReservation(resID)
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if res.Status != database.ReservationStatusPublished {
		t.Errorf("expected published status, got %s", res.Status)
	}
	if res.PublishedAt == nil || !res.PublishedAt.Equal(now) {
		t.Errorf("expected published_at %s, got %v", now, res.PublishedAt)
	}

	health, err := f.health.Get()
	if err != nil {
		t.Fatalf("health Get failed: %v", err)
	}
	if health.LastSuccessfulPublish == nil {
		t.Error("expected publish success to be recorded")
	}
}

func TestWorker_LeavesFutureReservationsAlone(t *testing.T) {
	f := setupWorkerTest(t)
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	f.seedReservation(t, "post-1", now.Add(2*time.Hour))

	publisher := &fakePublisher{}
	worker := NewWorker(f.reservations, f.health, publisher, 10, 5, 30*time.Minute,
		WithClock(func() time.Time { return now }))

	if err := worker.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(publisher.published()) != 0 {
		t.Error("expected no publish attempts for future reservations")
	}
}

func TestWorker_FailureReschedulesWithBackoff(t *testing.T) {
	f := setupWorkerTest(t)
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	resID := f.seedReservation(t, "post-1", now.Add(-5*time.Minute))

	publisher := &fakePublisher{fail: true}
	worker := NewWorker(f.reservations, f.health, publisher, 10, 5, 30*time.Minute,
		WithClock(func() time.Time { return now }))

	if err := worker.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	res, err := f.reservations.GetReservation(resID)
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if res.Status != database.ReservationStatusPending {
		t.Errorf("expected reservation to stay pending, got %s", res.Status)
	}
	if res.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", res.RetryCount)
	}
	if want := now.Add(30 * time.Minute); !res.ScheduledFor.Equal(want) {
		t.Errorf("expected backoff reschedule to %s, got %s", want, res.ScheduledFor)
	}
	if res.LastError == "" {
		t.Error("expected failure cause to be recorded")
	}

	health, err := f.health.Get()
	if err != nil {
		t.Fatalf("health Get failed: %v", err)
	}
	if health.ConsecutiveFailedPublishes != 1 {
		t.Errorf("expected 1 consecutive failure, got %d", health.ConsecutiveFailedPublishes)
	}
}

func TestWorker_FailureAtCeilingIsTerminal(t *testing.T) {
	f := setupWorkerTest(t)
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	resID := f.seedReservation(t, "post-1", now.Add(-5*time.Minute))

	// Push the reservation to one attempt below the ceiling.
	res, err := f.reservations.GetReservation(resID)
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	res.RetryCount = 4
	if err := f.reservations.Update(res); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	publisher := &fakePublisher{fail: true}
	worker := NewWorker(f.reservations, f.health, publisher, 10, 5, 30*time.Minute,
		WithClock(func() time.Time { return now }))

	if err := worker.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	res, err = f.reservations.GetReservation(resID)
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if res.Status != database.ReservationStatusFailed {
		t.Errorf("expected terminal failed status, got %s", res.Status)
	}
	if res.RetryCount != 5 {
		t.Errorf("expected retry count 5, got %d", res.RetryCount)
	}
}

func TestWorker_HourlyCapDefersRemainder(t *testing.T) {
	f := setupWorkerTest(t)
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	f.seedReservation(t, "post-1", now.Add(-30*time.Minute))
	f.seedReservation(t, "post-2", now.Add(-20*time.Minute))
	f.seedReservation(t, "post-3", now.Add(-10*time.Minute))

	publisher := &fakePublisher{}
	worker := NewWorker(f.reservations, f.health, publisher, 2, 5, 30*time.Minute,
		WithClock(func() time.Time { return now }))

	if err := worker.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := len(publisher.published()); got != 2 {
		t.Errorf("expected the hourly cap to stop at 2 publishes, got %d", got)
	}

	pending, err := f.reservations.GetPending()
	if err != nil {
		t.Fatalf("GetPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("expected 1 reservation deferred, got %d", len(pending))
	}
}

func TestWorker_ClaimedReservationIsNotDueAgain(t *testing.T) {
	f := setupWorkerTest(t)
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	resID := f.seedReservation(t, "post-1", now.Add(-5*time.Minute))

	// While the publish call is in flight the reservation must be claimed
	// exclusively: an overlapping due query may not see it.
	var dueMidFlight int
	var statusMidFlight database.ReservationStatus
	publisher := funcPublisher(func(ctx context.Context, post Post) error {
		due, err := f.reservations.GetDue(now)
		if err != nil {
			t.Errorf("GetDue during publish failed: %v", err)
		}
		dueMidFlight = len(due)

		res, err := f.reservations.GetReservation(resID)
		if err != nil {
			t.Errorf("GetReservation during publish failed: %v", err)
		} else {
			statusMidFlight = res.Status
		}
		return nil
	})

	worker := NewWorker(f.reservations, f.health, publisher, 10, 5, 30*time.Minute,
		WithClock(func() time.Time { return now }))

	if err := worker.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if dueMidFlight != 0 {
		t.Errorf("expected claimed reservation hidden from due query, got %d due", dueMidFlight)
	}
	if statusMidFlight != database.ReservationStatusPublishing {
		t.Errorf("expected publishing status mid-flight, got %s", statusMidFlight)
	}

	res, err := f.reservations.GetReservation(resID)
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if res.Status != database.ReservationStatusPublished {
		t.Errorf("expected published status after the run, got %s", res.Status)
	}
}

func TestWorker_SkipsReservationCancelledMidFlight(t *testing.T) {
	f := setupWorkerTest(t)
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	resID := f.seedReservation(t, "post-1", now.Add(-5*time.Minute))

	// Cancel after the seed; the due query would already be stale by the
	// time the worker claims.
	res, err := f.reservations.GetReservation(resID)
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	res.Status = database.ReservationStatusCancelled
	if err := f.reservations.Update(res); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	publisher := &fakePublisher{}
	worker := NewWorker(f.reservations, f.health, publisher, 10, 5, 30*time.Minute,
		WithClock(func() time.Time { return now }))

	if err := worker.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(publisher.published()) != 0 {
		t.Error("expected cancelled reservation not to be published")
	}
}
