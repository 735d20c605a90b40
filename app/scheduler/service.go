package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/vportnov/repostq/app/database"
)

// activeWindow is how far back published reservations still count for
// spacing continuity.
const activeWindow = 7 * 24 * time.Hour

// Service owns one scheduling policy and the reservation store. Instances
// are constructed explicitly and injected; there is no package-level
// singleton, so tests can run several services with distinct policies side
// by side.
type Service struct {
	policy       Policy
	reservations database.ReservationRepository
	now          func() time.Time
	jitter       func(maxMinutes int) int
}

type Option func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithJitter overrides the jitter source, for tests.
func WithJitter(jitter func(maxMinutes int) int) Option {
	return func(s *Service) { s.jitter = jitter }
}

func NewService(policy Policy, reservations database.ReservationRepository, opts ...Option) *Service {
	s := &Service{
		policy:       policy,
		reservations: reservations,
		now:          time.Now,
		jitter: func(maxMinutes int) int {
			if maxMinutes <= 0 {
				return 0
			}
			return rand.Intn(2*maxMinutes+1) - maxMinutes
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) Policy() Policy {
	return s.policy
}

// AssignSlot computes a publish time for an approved (content, candidate)
// pair and records the reservation. The whole decision runs in one store
// transaction.
func (s *Service) AssignSlot(ctx context.Context, contentID, candidateID int64) (*database.Reservation, error) {
	now := s.now()

	var reservation *database.Reservation

	err := s.reservations.WithTx(ctx, func(tx database.ReservationTx) error {
		item, err := tx.GetContentItem(contentID)
		if err != nil {
			return err
		}
		if item == nil {
			return database.NotFoundError("content item", contentID)
		}

		candidate, err := tx.GetCandidate(candidateID)
		if err != nil {
			return err
		}
		if candidate == nil {
			return database.NotFoundError("rewrite candidate", candidateID)
		}
		if candidate.ContentID != contentID {
			return fmt.Errorf("candidate %d does not belong to content item %d: %w",
				candidateID, contentID, database.ErrInvalidState)
		}

		classification := s.policy.Classify(item.SourceTimestamp, now)

		existing, err := tx.GetActiveSince(now.Add(-activeWindow))
		if err != nil {
			return err
		}

		var jitterFn func(int) int
		if s.policy.EnableJitter {
			jitterFn = s.jitter
		}

		result := FindSlot(s.policy, classification.Level, now, existing, jitterFn)

		reservation = &database.Reservation{
			ContentID:     contentID,
			CandidateID:   candidateID,
			ApprovedAt:    now,
			ScheduledFor:  result.ScheduledFor,
			Status:        database.ReservationStatusPending,
			PriorityLevel: classification.Level,
			PriorityScore: classification.Score,
			AgeHours:      classification.AgeHours,
		}

		if err := tx.Insert(reservation); err != nil {
			return err
		}
		if err := tx.UpdateContentStatus(contentID, database.ContentStatusScheduled); err != nil {
			return err
		}
		if err := tx.UpdateCandidateStatus(candidateID, database.CandidateStatusApproved); err != nil {
			return err
		}

		slog.Info("Assigned publish slot",
			"content_id", contentID,
			"candidate_id", candidateID,
			"scheduled_for", result.ScheduledFor,
			"priority", string(classification.Level),
			"queue_size", len(existing),
			"iterations", result.Iterations,
			"degenerate", result.Degenerate)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return reservation, nil
}

// Scrub repairs queue-wide invariant violations: duplicate reservations per
// content item, priority-order inversions, and spacing violations from
// manual edits. Running it twice without intervening approvals applies no
// further changes.
func (s *Service) Scrub(ctx context.Context) (*ScrubReport, error) {
	now := s.now()
	report := &ScrubReport{}

	err := s.reservations.WithTx(ctx, func(tx database.ReservationTx) error {
		pending, err := tx.GetPending()
		if err != nil {
			return err
		}
		report.Checked = len(pending)
		if len(pending) == 0 {
			return nil
		}

		// Deduplicate: the list is ordered by scheduled time, so the first
		// reservation seen per content item is the earliest one.
		seen := make(map[int64]bool)
		var remaining []database.Reservation
		for _, res := range pending {
			if seen[res.ContentID] {
				if err := tx.Delete(res.ID); err != nil {
					return err
				}
				report.DuplicatesRemoved++
				slog.Info("Removed duplicate reservation",
					"reservation_id", res.ID, "content_id", res.ContentID,
					"scheduled_for", res.ScheduledFor)
				continue
			}
			seen[res.ContentID] = true
			remaining = append(remaining, res)
		}

		if len(remaining) == 0 {
			return nil
		}

		sortByPriority(remaining)

		// Reflow from the earliest scheduled time or now, whichever is
		// later. Hours and weekday rules are re-applied per item; the daily
		// cap is kept implicitly by the min-spacing advance.
		earliest := remaining[0].ScheduledFor
		for _, res := range remaining[1:] {
			if res.ScheduledFor.Before(earliest) {
				earliest = res.ScheduledFor
			}
		}
		current := earliest
		if now.After(current) {
			current = now
		}

		for i := range remaining {
			current = nextAllowedTime(current, s.policy)

			if !remaining[i].ScheduledFor.Equal(current) {
				old := remaining[i].ScheduledFor
				remaining[i].ScheduledFor = current
				if err := tx.Update(&remaining[i]); err != nil {
					return err
				}
				report.Rescheduled++
				slog.Info("Reflowed reservation",
					"reservation_id", remaining[i].ID,
					"priority", string(remaining[i].PriorityLevel),
					"from", old, "to", current)
			}

			current = current.Add(s.policy.MinSpacing)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}

// nextAllowedTime applies the posting-hours and weekday rules until neither
// moves the time, bounded by the iteration ceiling.
func nextAllowedTime(t time.Time, policy Policy) time.Time {
	for i := 0; i < policy.maxIterations(); i++ {
		t = normalizeToPostingHours(t, policy)
		if policy.WeekdaysOnly && isWeekend(t) {
			t = moveToNextMonday(t, policy)
			continue
		}
		return t
	}
	return t
}

// sortByPriority orders reservations by priority rank, then by scheduled
// time as a tie-break. Insertion sort keeps the pass dependency-free and the
// queues are small.
func sortByPriority(reservations []database.Reservation) {
	for i := 1; i < len(reservations); i++ {
		for j := i; j > 0 && lessByPriority(reservations[j], reservations[j-1]); j-- {
			reservations[j], reservations[j-1] = reservations[j-1], reservations[j]
		}
	}
}

func lessByPriority(a, b database.Reservation) bool {
	if a.PriorityLevel.Rank() != b.PriorityLevel.Rank() {
		return a.PriorityLevel.Rank() < b.PriorityLevel.Rank()
	}
	return a.ScheduledFor.Before(b.ScheduledFor)
}

// Sweep removes pending reservations whose content has aged past the dead
// threshold and flags those past the stale threshold. Urgent reservations
// are never removed. With preview set, the same report is computed without
// mutating storage.
func (s *Service) Sweep(ctx context.Context, deadDays, staleDays int, preview bool) (*SweepReport, error) {
	now := s.now()
	report := &SweepReport{Preview: preview}

	deadCutoff := time.Duration(deadDays) * 24 * time.Hour
	staleCutoff := time.Duration(staleDays) * 24 * time.Hour

	err := s.reservations.WithTx(ctx, func(tx database.ReservationTx) error {
		pending, err := tx.GetPending()
		if err != nil {
			return err
		}
		report.Checked = len(pending)

		for _, res := range pending {
			item, err := tx.GetContentItem(res.ContentID)
			if err != nil {
				return err
			}
			if item == nil || item.SourceTimestamp == nil {
				continue
			}

			if res.PriorityLevel == database.PriorityUrgent {
				slog.Debug("Skipping urgent reservation, protected from cleanup",
					"reservation_id", res.ID)
				continue
			}

			age := now.Sub(*item.SourceTimestamp)
			entry := SweepEntry{
				ReservationID: res.ID,
				ContentID:     res.ContentID,
				AgeDays:       age.Hours() / 24,
				Priority:      res.PriorityLevel,
			}

			switch {
			case age >= deadCutoff:
				report.Removed = append(report.Removed, entry)
				if !preview {
					if err := tx.Delete(res.ID); err != nil {
						return err
					}
					if err := tx.UpdateContentStatus(res.ContentID, database.ContentStatusSkipped); err != nil {
						return err
					}
					slog.Info("Removed dead reservation",
						"reservation_id", res.ID, "age_days", entry.AgeDays,
						"priority", string(res.PriorityLevel))
				}
			case age >= staleCutoff:
				report.Flagged = append(report.Flagged, entry)
				slog.Debug("Reservation past stale threshold",
					"reservation_id", res.ID, "age_days", entry.AgeDays)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Sweep complete",
		"removed", len(report.Removed),
		"flagged", len(report.Flagged),
		"checked", report.Checked,
		"preview", preview)

	return report, nil
}

// QueueSummary returns the read-only queue projection for dashboards.
func (s *Service) QueueSummary() (*QueueSummary, error) {
	pending, err := s.reservations.GetPending()
	if err != nil {
		return nil, err
	}

	now := s.now()
	todayYear, todayMonth, todayDay := now.Date()
	weekEnd := now.Add(activeWindow)

	summary := &QueueSummary{
		Total: len(pending),
		Items: pending,
	}

	for _, res := range pending {
		// Overdue reservations dated before today do not count as today's.
		y, m, d := res.ScheduledFor.In(now.Location()).Date()
		if y == todayYear && m == todayMonth && d == todayDay {
			summary.TodayCount++
		}
		if !res.ScheduledFor.After(weekEnd) {
			summary.WeekCount++
		}
	}

	if len(pending) > 0 {
		summary.NextScheduled = &pending[0].ScheduledFor
	}

	return summary, nil
}

// Reschedule moves a pending reservation to a caller-chosen time.
func (s *Service) Reschedule(ctx context.Context, reservationID int64, newTime time.Time) (*database.Reservation, error) {
	var updated *database.Reservation

	err := s.reservations.WithTx(ctx, func(tx database.ReservationTx) error {
		res, err := tx.GetReservation(reservationID)
		if err != nil {
			return err
		}
		if res == nil {
			return database.NotFoundError("reservation", reservationID)
		}
		if res.Status != database.ReservationStatusPending {
			return database.InvalidStateError("reschedule", res.ID, res.Status)
		}
		if !newTime.After(s.now()) {
			return fmt.Errorf("new time %s is not in the future: %w",
				newTime.Format(time.RFC3339), database.ErrInvalidState)
		}

		old := res.ScheduledFor
		res.ScheduledFor = newTime
		if err := tx.Update(res); err != nil {
			return err
		}

		slog.Info("Rescheduled reservation",
			"reservation_id", res.ID, "from", old, "to", newTime)

		updated = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Cancel marks a pending reservation cancelled and releases the content
// item back to the approved pool.
func (s *Service) Cancel(ctx context.Context, reservationID int64) (*database.Reservation, error) {
	var updated *database.Reservation

	err := s.reservations.WithTx(ctx, func(tx database.ReservationTx) error {
		res, err := tx.GetReservation(reservationID)
		if err != nil {
			return err
		}
		if res == nil {
			return database.NotFoundError("reservation", reservationID)
		}
		if res.Status != database.ReservationStatusPending {
			return database.InvalidStateError("cancel", res.ID, res.Status)
		}

		res.Status = database.ReservationStatusCancelled
		if err := tx.Update(res); err != nil {
			return err
		}
		if err := tx.UpdateContentStatus(res.ContentID, database.ContentStatusApproved); err != nil {
			return err
		}

		slog.Info("Cancelled reservation", "reservation_id", res.ID)

		updated = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}
