package profiles

// Profile is one monitored account, loaded from a YAML file in the
// profiles directory. The profile name is derived from the filename.
type Profile struct {
	Name     string   // Derived from filename (without .yml extension)
	Handle   string   `yaml:"handle"`
	FeedURL  string   `yaml:"feed_url"`
	Settings Settings `yaml:"settings"`
	Filters  []Filter `yaml:"filters"`
}

type Settings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	MaxItems        int  `yaml:"max_items"`
	Timeout         int  `yaml:"timeout"`         // seconds
	ExtractContent  bool `yaml:"extract_content"` // fetch and extract linked article content
}

// Filter keeps or drops incoming posts by keyword match on one field.
type Filter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
