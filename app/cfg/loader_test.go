package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	// Test default version
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}

	version := GetVersion()
	if version != "dev" && version != "unknown" {
		// This is fine, version could be set at build time
		t.Logf("Version: %s", version)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Cfg {
		return &Cfg{
			PostingHourStart:     6,
			PostingHourEnd:       21,
			UrgentThresholdHours: 3,
			GoodThresholdHours:   12,
			OKThresholdHours:     24,
			MaxPostsPerHour:      5,
		}
	}

	if err := validate(base()); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}

	cfg := base()
	cfg.PostingHourStart = 21
	cfg.PostingHourEnd = 6
	if err := validate(cfg); err == nil {
		t.Error("Expected error for inverted posting window")
	}

	cfg = base()
	cfg.PostingHourStart = -1
	if err := validate(cfg); err == nil {
		t.Error("Expected error for negative posting hour start")
	}

	cfg = base()
	cfg.GoodThresholdHours = 3
	if err := validate(cfg); err == nil {
		t.Error("Expected error for non-increasing golden hour thresholds")
	}

	cfg = base()
	cfg.MaxPostsPerHour = 0
	if err := validate(cfg); err == nil {
		t.Error("Expected error for zero hourly publish cap")
	}
}

func TestConfigFields(t *testing.T) {
	cfg := &Cfg{
		DBPath:            "./data/test.db",
		ProfilesDir:       "./profiles",
		Port:              "8080",
		APIAccessKey:      "test-key",
		WorkerCount:       3,
		IngestInterval:    300,
		PublisherURL:      "http://localhost:9090/publish",
		MaxPostsPerHour:   5,
		DailyPostLimit:    3,
		MinSpacingMinutes: 90,
		PostingHourStart:  6,
		PostingHourEnd:    21,
		WeekdaysOnly:      true,
		JitterMinutes:     15,
		MaxRetries:        5,
		RetryBackoffMin:   30,
		Timezone:          "UTC",
		Version:           "test-version",
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.DBPath != "./data/test.db" {
		t.Errorf("Expected DB path './data/test.db', got '%s'", cfg.DBPath)
	}
	if cfg.DailyPostLimit != 3 {
		t.Errorf("Expected daily post limit 3, got %d", cfg.DailyPostLimit)
	}
	if cfg.MinSpacingMinutes != 90 {
		t.Errorf("Expected min spacing 90, got %d", cfg.MinSpacingMinutes)
	}
	if !cfg.WeekdaysOnly {
		t.Error("Expected weekdays-only to be set")
	}
	if cfg.RetryBackoffMin != 30 {
		t.Errorf("Expected retry backoff 30, got %d", cfg.RetryBackoffMin)
	}
	if cfg.Version != "test-version" {
		t.Errorf("Expected version 'test-version', got '%s'", cfg.Version)
	}
}
