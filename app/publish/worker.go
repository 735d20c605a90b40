package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/vportnov/repostq/app/database"
)

// Worker drains due reservations on each publish tick. Reads and state
// transitions run in short transactions; the publish attempt itself happens
// outside any database lock, so a slow webhook never stalls scheduling.
type Worker struct {
	reservations database.ReservationRepository
	health       database.HealthRepository
	publisher    Publisher
	limiter      *rate.Limiter
	maxRetries   int
	retryBackoff time.Duration
	now          func() time.Time
}

type WorkerOption func(*Worker)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) WorkerOption {
	return func(w *Worker) { w.now = now }
}

func NewWorker(reservations database.ReservationRepository, health database.HealthRepository,
	publisher Publisher, maxPostsPerHour, maxRetries int, retryBackoff time.Duration,
	opts ...WorkerOption) *Worker {
	w := &Worker{
		reservations: reservations,
		health:       health,
		publisher:    publisher,
		limiter:      rate.NewLimiter(rate.Every(time.Hour/time.Duration(maxPostsPerHour)), maxPostsPerHour),
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run publishes every due reservation, respecting the hourly cap. Called
// from the publish cron tick.
func (w *Worker) Run(ctx context.Context) error {
	now := w.now()

	due, err := w.reservations.GetDue(now)
	if err != nil {
		return fmt.Errorf("failed to get due reservations: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	slog.Debug("Publish check", "due", len(due))

	for i, res := range due {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !w.limiter.Allow() {
			slog.Info("Hourly publish cap reached, deferring remaining reservations",
				"remaining", len(due)-i)
			return nil
		}

		w.publishOne(ctx, res.ID)
	}

	return nil
}

func (w *Worker) publishOne(ctx context.Context, reservationID int64) {
	post, ok := w.claim(ctx, reservationID)
	if !ok {
		return
	}

	publishErr := w.publisher.Publish(ctx, post)

	if err := w.recordOutcome(ctx, reservationID, publishErr); err != nil {
		slog.Error("Failed to record publish outcome",
			"reservation_id", reservationID, "error", err)
	}
}

// claim re-reads the reservation inside a transaction, marks it in-flight,
// and builds the outgoing payload. The status change makes the claim
// exclusive: a second tick running the same due query cannot claim the
// reservation again. A reservation cancelled since the due query simply
// stops being claimable.
func (w *Worker) claim(ctx context.Context, reservationID int64) (Post, bool) {
	var post Post
	claimed := false

	err := w.reservations.WithTx(ctx, func(tx database.ReservationTx) error {
		res, err := tx.GetReservation(reservationID)
		if err != nil {
			return err
		}
		if res == nil || res.Status != database.ReservationStatusPending {
			return nil
		}

		item, err := tx.GetContentItem(res.ContentID)
		if err != nil {
			return err
		}
		candidate, err := tx.GetCandidate(res.CandidateID)
		if err != nil {
			return err
		}
		if item == nil || candidate == nil {
			return database.NotFoundError("reservation payload", res.ID)
		}

		res.Status = database.ReservationStatusPublishing
		if err := tx.Update(res); err != nil {
			return err
		}

		post = Post{
			ContentID:    res.ContentID,
			CandidateID:  res.CandidateID,
			Text:         candidate.Body,
			AuthorHandle: item.AuthorHandle,
			SourceLink:   item.Link,
			ScheduledFor: res.ScheduledFor,
		}
		claimed = true
		return nil
	})
	if err != nil {
		slog.Error("Failed to claim reservation", "reservation_id", reservationID, "error", err)
		return Post{}, false
	}

	return post, claimed
}

func (w *Worker) recordOutcome(ctx context.Context, reservationID int64, publishErr error) error {
	now := w.now()
	applied := false

	err := w.reservations.WithTx(ctx, func(tx database.ReservationTx) error {
		res, err := tx.GetReservation(reservationID)
		if err != nil {
			return err
		}
		if res == nil {
			return database.NotFoundError("reservation", reservationID)
		}

		if publishErr == nil {
			if err := res.ApplyPublishSuccess(now); err != nil {
				if errors.Is(err, database.ErrInvalidState) {
					slog.Debug("Reservation left claimable state mid-flight, skipping",
						"reservation_id", res.ID, "status", string(res.Status))
					return nil
				}
				return err
			}
			if err := tx.Update(res); err != nil {
				return err
			}
			if err := tx.UpdateContentStatus(res.ContentID, database.ContentStatusPublished); err != nil {
				return err
			}
			if err := tx.UpdateCandidateStatus(res.CandidateID, database.CandidateStatusPublished); err != nil {
				return err
			}
			applied = true

			slog.Info("Published reservation",
				"reservation_id", res.ID, "content_id", res.ContentID,
				"scheduled_for", res.ScheduledFor)
			return nil
		}

		terminal, err := res.ApplyPublishFailure(publishErr.Error(), now, w.maxRetries, w.retryBackoff)
		if err != nil {
			if errors.Is(err, database.ErrInvalidState) {
				return nil
			}
			return err
		}
		if err := tx.Update(res); err != nil {
			return err
		}
		if terminal {
			if err := tx.UpdateContentStatus(res.ContentID, database.ContentStatusFailed); err != nil {
				return err
			}
			slog.Error("Reservation failed permanently",
				"reservation_id", res.ID, "retry_count", res.RetryCount,
				"error", publishErr)
		} else {
			slog.Warn("Publish attempt failed, rescheduled",
				"reservation_id", res.ID, "retry_count", res.RetryCount,
				"next_attempt", res.ScheduledFor, "error", publishErr)
		}
		applied = true

		return nil
	})
	if err != nil {
		return err
	}

	// The pool holds a single connection; the health write must wait until
	// the transaction above has released it.
	if applied {
		if publishErr == nil {
			if err := w.health.RecordPublishSuccess(now); err != nil {
				slog.Warn("Failed to record publish success", "error", err)
			}
		} else {
			if err := w.health.RecordPublishFailure(); err != nil {
				slog.Warn("Failed to record publish failure", "error", err)
			}
		}
	}

	return nil
}
