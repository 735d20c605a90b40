package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	ProfilesDir    string
	Port           string
	APIAccessKey   string
	WorkerCount    int
	IngestInterval int

	// Publishing configuration
	PublisherURL    string
	PublishSpec     string
	SweepSpec       string
	MaxPostsPerHour int

	// Scheduling policy
	DailyPostLimit    int
	MinSpacingMinutes int
	PostingHourStart  int
	PostingHourEnd    int
	WeekdaysOnly      bool
	EnableJitter      bool
	JitterMinutes     int
	MaxRetries        int
	RetryBackoffMin   int

	// Golden hour thresholds (hours since the source post appeared)
	UrgentThresholdHours float64
	GoodThresholdHours   float64
	OKThresholdHours     float64

	// Staleness cleanup thresholds (days)
	DeadThresholdDays  int
	StaleThresholdDays int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
