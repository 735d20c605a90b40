package scheduler

import (
	"log/slog"
	"time"

	"github.com/vportnov/repostq/app/database"
)

// FindSlot computes the earliest publish time satisfying the policy, given
// the active reservations sorted by scheduled time ascending. jitterFn, when
// non-nil and jitter is enabled, returns a random minute offset in
// [-max, +max]; it is applied after acceptance and deliberately exempt from
// re-validation, so a slot may land a few minutes outside the nominal
// window.
func FindSlot(policy Policy, level database.PriorityLevel, now time.Time,
	existing []database.Reservation, jitterFn func(maxMinutes int) int) SlotResult {

	candidate := seedCandidate(policy, level, now, existing)

	iterations := 0
	valid := false

	for iterations < policy.maxIterations() {
		iterations++

		candidate = normalizeToPostingHours(candidate, policy)

		if policy.WeekdaysOnly && isWeekend(candidate) {
			candidate = moveToNextMonday(candidate, policy)
			continue
		}

		if countPendingOnDay(existing, candidate) >= policy.DailyPostLimit {
			candidate = moveToNextDay(candidate, policy)
			continue
		}

		if last, ok := lastScheduledBefore(existing, candidate); ok {
			if gap := candidate.Sub(last); gap < policy.MinSpacing {
				candidate = candidate.Add(policy.MinSpacing - gap)
				continue
			}
		}

		valid = true
		break
	}

	if !valid {
		slog.Warn("Slot search hit iteration ceiling, accepting best-effort candidate",
			"candidate", candidate, "iterations", iterations)
	}

	if policy.EnableJitter && jitterFn != nil {
		offset := jitterFn(policy.JitterMinutes)
		candidate = candidate.Add(time.Duration(offset) * time.Minute)
	}

	return SlotResult{
		ScheduledFor: candidate,
		Iterations:   iterations,
		Degenerate:   !valid,
	}
}

// seedCandidate picks the starting point of the search. Stale content goes
// to the back of the queue; everything else attempts placement from now.
func seedCandidate(policy Policy, level database.PriorityLevel, now time.Time,
	existing []database.Reservation) time.Time {

	if level == database.PriorityStale && len(existing) > 0 {
		last := existing[0].ScheduledFor
		for _, res := range existing[1:] {
			if res.ScheduledFor.After(last) {
				last = res.ScheduledFor
			}
		}
		return last.Add(policy.MinSpacing)
	}

	return now
}

// normalizeToPostingHours clamps a time into the posting window: before the
// window it moves to the window start the same day, at or past the window
// end it moves to the window start the next day.
func normalizeToPostingHours(t time.Time, policy Policy) time.Time {
	switch {
	case t.Hour() < policy.PostingHourStart:
		return atHour(t, policy.PostingHourStart)
	case t.Hour() >= policy.PostingHourEnd:
		return atHour(t.AddDate(0, 0, 1), policy.PostingHourStart)
	default:
		return t
	}
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// moveToNextMonday advances to the following Monday at the window start.
func moveToNextMonday(t time.Time, policy Policy) time.Time {
	daysAhead := (int(time.Monday) - int(t.Weekday()) + 7) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}
	return atHour(t.AddDate(0, 0, daysAhead), policy.PostingHourStart)
}

func moveToNextDay(t time.Time, policy Policy) time.Time {
	return atHour(t.AddDate(0, 0, 1), policy.PostingHourStart)
}

func atHour(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
}

// countPendingOnDay counts pending reservations sharing the candidate's
// calendar date. Published reservations participate in spacing checks only,
// never in the daily cap.
func countPendingOnDay(existing []database.Reservation, candidate time.Time) int {
	count := 0
	cy, cm, cd := candidate.Date()
	for _, res := range existing {
		if res.Status != database.ReservationStatusPending {
			continue
		}
		y, m, d := res.ScheduledFor.Date()
		if y == cy && m == cm && d == cd {
			count++
		}
	}
	return count
}

// lastScheduledBefore returns the latest scheduled time strictly before the
// candidate, across both pending and recently published reservations.
func lastScheduledBefore(existing []database.Reservation, candidate time.Time) (time.Time, bool) {
	var last time.Time
	found := false
	for _, res := range existing {
		if res.ScheduledFor.Before(candidate) {
			if !found || res.ScheduledFor.After(last) {
				last = res.ScheduledFor
				found = true
			}
		}
	}
	return last, found
}
