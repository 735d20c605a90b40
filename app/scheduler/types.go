package scheduler

import (
	"time"

	"github.com/vportnov/repostq/app/cfg"
	"github.com/vportnov/repostq/app/database"
)

// DefaultMaxIterations bounds the slot search loop. A year of daily
// advances is far beyond any sane queue depth; hitting it means the policy
// is degenerate, not that more iterations would help.
const DefaultMaxIterations = 365

// Policy is the immutable scheduling configuration for one service instance.
type Policy struct {
	DailyPostLimit   int
	MinSpacing       time.Duration
	PostingHourStart int
	PostingHourEnd   int
	WeekdaysOnly     bool
	EnableJitter     bool
	JitterMinutes    int

	// Golden hour thresholds, in hours since the source post appeared
	UrgentThresholdHours float64
	GoodThresholdHours   float64
	OKThresholdHours     float64

	MaxRetries   int
	RetryBackoff time.Duration

	MaxIterations int
}

// PolicyFromCfg builds a scheduling policy from the loaded configuration.
func PolicyFromCfg(c *cfg.Cfg) Policy {
	return Policy{
		DailyPostLimit:       c.DailyPostLimit,
		MinSpacing:           time.Duration(c.MinSpacingMinutes) * time.Minute,
		PostingHourStart:     c.PostingHourStart,
		PostingHourEnd:       c.PostingHourEnd,
		WeekdaysOnly:         c.WeekdaysOnly,
		EnableJitter:         c.EnableJitter,
		JitterMinutes:        c.JitterMinutes,
		UrgentThresholdHours: c.UrgentThresholdHours,
		GoodThresholdHours:   c.GoodThresholdHours,
		OKThresholdHours:     c.OKThresholdHours,
		MaxRetries:           c.MaxRetries,
		RetryBackoff:         time.Duration(c.RetryBackoffMin) * time.Minute,
		MaxIterations:        DefaultMaxIterations,
	}
}

func (p Policy) maxIterations() int {
	if p.MaxIterations > 0 {
		return p.MaxIterations
	}
	return DefaultMaxIterations
}

// Classification is the golden-hour urgency assigned to a content item at
// scheduling time. AgeHours is nil when the source timestamp is unknown.
type Classification struct {
	Level    database.PriorityLevel
	Score    int
	AgeHours *float64
}

// SlotResult is the outcome of one slot search. Degenerate is set when the
// iteration ceiling was exhausted and ScheduledFor holds the best-effort
// candidate.
type SlotResult struct {
	ScheduledFor time.Time
	Iterations   int
	Degenerate   bool
}

// ScrubReport summarizes the mutations applied by one scrub pass.
type ScrubReport struct {
	DuplicatesRemoved int
	Rescheduled       int
	Checked           int
}

// SweepEntry identifies one reservation touched by a staleness sweep.
type SweepEntry struct {
	ReservationID int64
	ContentID     int64
	AgeDays       float64
	Priority      database.PriorityLevel
}

// SweepReport lists reservations removed and reservations kept but flagged
// as low value.
type SweepReport struct {
	Removed []SweepEntry
	Flagged []SweepEntry
	Checked int
	Preview bool
}

// QueueSummary is the read-only queue projection for dashboards.
type QueueSummary struct {
	Total         int
	TodayCount    int
	WeekCount     int
	NextScheduled *time.Time
	Items         []database.Reservation
}
