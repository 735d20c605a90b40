package scheduler

import (
	"testing"
	"time"

	"github.com/vportnov/repostq/app/database"
)

func testPolicy() Policy {
	return Policy{
		DailyPostLimit:       3,
		MinSpacing:           90 * time.Minute,
		PostingHourStart:     6,
		PostingHourEnd:       21,
		WeekdaysOnly:         true,
		UrgentThresholdHours: 3,
		GoodThresholdHours:   12,
		OKThresholdHours:     24,
		MaxRetries:           5,
		RetryBackoff:         30 * time.Minute,
	}
}

func TestClassify_Tiers(t *testing.T) {
	policy := testPolicy()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		ageHours  float64
		wantLevel database.PriorityLevel
		wantScore int
	}{
		{"well inside golden hour", 0.5, database.PriorityUrgent, 100},
		{"just under urgent threshold", 2.9, database.PriorityUrgent, 100},
		{"just over urgent threshold", 3.1, database.PriorityGood, 75},
		{"just under good threshold", 11.9, database.PriorityGood, 75},
		{"between good and ok", 18, database.PriorityOK, 50},
		{"just over ok threshold", 24.1, database.PriorityStale, 25},
		{"very old", 120, database.PriorityStale, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sourceTime := now.Add(-time.Duration(tt.ageHours * float64(time.Hour)))
			got := policy.Classify(&sourceTime, now)

			if got.Level != tt.wantLevel {
				t.Errorf("Classify(%.1fh): expected level %s, got %s", tt.ageHours, tt.wantLevel, got.Level)
			}
			if got.Score != tt.wantScore {
				t.Errorf("Classify(%.1fh): expected score %d, got %d", tt.ageHours, tt.wantScore, got.Score)
			}
			if got.AgeHours == nil {
				t.Fatalf("Classify(%.1fh): expected age to be recorded", tt.ageHours)
			}
			if diff := *got.AgeHours - tt.ageHours; diff > 0.001 || diff < -0.001 {
				t.Errorf("Classify(%.1fh): recorded age %.3f", tt.ageHours, *got.AgeHours)
			}
		})
	}
}

func TestClassify_ThresholdBoundaries(t *testing.T) {
	policy := testPolicy()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	// Ages exactly at a threshold belong to the less urgent tier: the
	// urgent band is [0, 3), the good band [3, 12), the ok band [12, 24).
	boundaries := []struct {
		ageHours  float64
		wantLevel database.PriorityLevel
	}{
		{3, database.PriorityGood},
		{12, database.PriorityOK},
		{24, database.PriorityStale},
	}

	for _, b := range boundaries {
		sourceTime := now.Add(-time.Duration(b.ageHours * float64(time.Hour)))
		got := policy.Classify(&sourceTime, now)
		if got.Level != b.wantLevel {
			t.Errorf("Classify(exactly %.0fh): expected %s, got %s", b.ageHours, b.wantLevel, got.Level)
		}
	}
}

func TestClassify_UnknownTimestamp(t *testing.T) {
	policy := testPolicy()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	got := policy.Classify(nil, now)

	if got.Level != database.PriorityOK {
		t.Errorf("Expected OK for unknown timestamp, got %s", got.Level)
	}
	if got.Score != 50 {
		t.Errorf("Expected neutral score 50, got %d", got.Score)
	}
	if got.AgeHours != nil {
		t.Errorf("Expected no age for unknown timestamp, got %.1f", *got.AgeHours)
	}
}

func TestPriorityLevelRank(t *testing.T) {
	ranks := []struct {
		level database.PriorityLevel
		want  int
	}{
		{database.PriorityUrgent, 0},
		{database.PriorityGood, 1},
		{database.PriorityOK, 2},
		{database.PriorityStale, 3},
		{database.PriorityLevel(""), 4},
	}

	for _, r := range ranks {
		if got := r.level.Rank(); got != r.want {
			t.Errorf("Rank(%q): expected %d, got %d", r.level, r.want, got)
		}
	}
}
