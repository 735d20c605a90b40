package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/repostq.db" description:"Path to the SQLite database file"`

	// Application configuration
	ProfilesDir    string `long:"profiles-dir" env:"PROFILES_DIR" default:"./profiles" description:"Directory containing monitored profile configuration files"`
	Port           string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey   string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	WorkerCount    int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers for content ingestion"`
	IngestInterval int    `long:"ingest-interval" env:"INGEST_INTERVAL" default:"300" description:"Ingest scheduler interval in seconds"`

	// Publishing configuration
	PublisherURL    string `long:"publisher-url" env:"PUBLISHER_URL" description:"Webhook endpoint of the external publishing service"`
	PublishSpec     string `long:"publish-spec" env:"PUBLISH_SPEC" default:"*/5 * * * *" description:"Cron spec for the publish check"`
	SweepSpec       string `long:"sweep-spec" env:"SWEEP_SPEC" default:"0 3 * * *" description:"Cron spec for the staleness sweep"`
	MaxPostsPerHour int    `long:"max-posts-per-hour" env:"MAX_POSTS_PER_HOUR" default:"5" description:"Hard hourly publishing rate cap"`

	// Scheduling policy
	DailyPostLimit    int  `long:"daily-post-limit" env:"DAILY_POST_LIMIT" default:"3" description:"Maximum posts published per calendar day"`
	MinSpacingMinutes int  `long:"min-spacing" env:"MIN_POST_SPACING_MINUTES" default:"90" description:"Minimum spacing between posts in minutes"`
	PostingHourStart  int  `long:"posting-hour-start" env:"POSTING_HOUR_START" default:"6" description:"First hour of the posting window (inclusive)"`
	PostingHourEnd    int  `long:"posting-hour-end" env:"POSTING_HOUR_END" default:"21" description:"End hour of the posting window (exclusive)"`
	WeekdaysOnly      bool `long:"weekdays-only" env:"POSTING_WEEKDAYS_ONLY" description:"Restrict publishing to Monday-Friday"`
	EnableJitter      bool `long:"enable-jitter" env:"ENABLE_POSTING_JITTER" description:"Add random jitter to computed slots"`
	JitterMinutes     int  `long:"jitter-minutes" env:"POSTING_JITTER_MINUTES" default:"15" description:"Jitter magnitude in minutes"`
	MaxRetries        int  `long:"max-retries" env:"MAX_PUBLISH_RETRIES" default:"5" description:"Publish attempts before a reservation is marked failed"`
	RetryBackoffMin   int  `long:"retry-backoff" env:"RETRY_BACKOFF_MINUTES" default:"30" description:"Fixed reschedule delay after a failed publish attempt in minutes"`

	// Golden hour thresholds
	UrgentThresholdHours float64 `long:"urgent-threshold" env:"GOLDEN_HOUR_URGENT" default:"3" description:"Content younger than this many hours is URGENT"`
	GoodThresholdHours   float64 `long:"good-threshold" env:"GOLDEN_HOUR_GOOD" default:"12" description:"Content younger than this many hours is GOOD"`
	OKThresholdHours     float64 `long:"ok-threshold" env:"GOLDEN_HOUR_OK" default:"24" description:"Content younger than this many hours is OK, older is STALE"`

	// Staleness cleanup thresholds
	DeadThresholdDays  int `long:"dead-threshold" env:"DEAD_POST_THRESHOLD_DAYS" default:"7" description:"Content older than this many days is removed from the queue"`
	StaleThresholdDays int `long:"stale-threshold" env:"STALE_POST_THRESHOLD_DAYS" default:"2" description:"Content older than this many days is flagged as low value"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RepostQ/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/Denver)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:               raw.DBPath,
		ProfilesDir:          raw.ProfilesDir,
		Port:                 raw.Port,
		APIAccessKey:         raw.APIAccessKey,
		WorkerCount:          raw.WorkerCount,
		IngestInterval:       raw.IngestInterval,
		PublisherURL:         raw.PublisherURL,
		PublishSpec:          raw.PublishSpec,
		SweepSpec:            raw.SweepSpec,
		MaxPostsPerHour:      raw.MaxPostsPerHour,
		DailyPostLimit:       raw.DailyPostLimit,
		MinSpacingMinutes:    raw.MinSpacingMinutes,
		PostingHourStart:     raw.PostingHourStart,
		PostingHourEnd:       raw.PostingHourEnd,
		WeekdaysOnly:         raw.WeekdaysOnly,
		EnableJitter:         raw.EnableJitter,
		JitterMinutes:        raw.JitterMinutes,
		MaxRetries:           raw.MaxRetries,
		RetryBackoffMin:      raw.RetryBackoffMin,
		UrgentThresholdHours: raw.UrgentThresholdHours,
		GoodThresholdHours:   raw.GoodThresholdHours,
		OKThresholdHours:     raw.OKThresholdHours,
		DeadThresholdDays:    raw.DeadThresholdDays,
		StaleThresholdDays:   raw.StaleThresholdDays,
		UserAgent:            raw.UserAgent,
		Timezone:             raw.Timezone,
		Debug:                raw.Debug,
		Version:              GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	if cfg.PostingHourStart < 0 || cfg.PostingHourStart > 23 {
		return fmt.Errorf("posting hour start must be in [0,23], got %d", cfg.PostingHourStart)
	}
	if cfg.PostingHourEnd < 1 || cfg.PostingHourEnd > 24 {
		return fmt.Errorf("posting hour end must be in [1,24], got %d", cfg.PostingHourEnd)
	}
	if cfg.PostingHourStart >= cfg.PostingHourEnd {
		return fmt.Errorf("posting window is empty: start %d >= end %d", cfg.PostingHourStart, cfg.PostingHourEnd)
	}
	if cfg.UrgentThresholdHours >= cfg.GoodThresholdHours || cfg.GoodThresholdHours >= cfg.OKThresholdHours {
		return fmt.Errorf("golden hour thresholds must be strictly increasing: %.1f, %.1f, %.1f",
			cfg.UrgentThresholdHours, cfg.GoodThresholdHours, cfg.OKThresholdHours)
	}
	if cfg.MaxPostsPerHour < 1 {
		return fmt.Errorf("max posts per hour must be at least 1, got %d", cfg.MaxPostsPerHour)
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
