package ingest

import (
	"time"
)

// Post is one entry pulled from a monitored profile's feed, normalized for
// storage and duplicate detection.
type Post struct {
	GUID         string
	Title        string
	Link         string
	Body         string
	AuthorHandle string
	AuthorName   string
	PublishedAt  *time.Time
	Categories   []string

	ContentHash  string
	IsFiltered   bool
	FilterReason string
}
