package scheduler

import (
	"time"

	"github.com/vportnov/repostq/app/database"
)

// Classify maps a content item's age to a golden-hour urgency tier.
// A missing source timestamp classifies as OK with a neutral score; the
// age is never guessed. Pure function of the two inputs.
func (p Policy) Classify(sourceTime *time.Time, now time.Time) Classification {
	if sourceTime == nil {
		return Classification{Level: database.PriorityOK, Score: 50}
	}

	ageHours := now.Sub(*sourceTime).Hours()

	var level database.PriorityLevel
	var score int

	switch {
	case ageHours < p.UrgentThresholdHours:
		level = database.PriorityUrgent
		score = 100
	case ageHours < p.GoodThresholdHours:
		level = database.PriorityGood
		score = 75
	case ageHours < p.OKThresholdHours:
		level = database.PriorityOK
		score = 50
	default:
		level = database.PriorityStale
		score = 25
	}

	return Classification{Level: level, Score: score, AgeHours: &ageHours}
}
