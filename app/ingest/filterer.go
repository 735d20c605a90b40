package ingest

import (
	"fmt"
	"strings"

	"github.com/vportnov/repostq/app/profiles"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

func (f *Filterer) Run(posts []Post, profile *profiles.Profile) []Post {
	if len(profile.Filters) == 0 {
		return posts
	}

	filtered := make([]Post, 0, len(posts))
	for _, post := range posts {
		isFiltered, filterReason := f.applyFilters(post, profile.Filters)
		post.IsFiltered = isFiltered
		post.FilterReason = filterReason
		filtered = append(filtered, post)
	}

	return filtered
}

func (f *Filterer) applyFilters(post Post, filters []profiles.Filter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(post, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(post Post, field string) string {
	switch field {
	case "title":
		return post.Title
	case "body":
		return post.Body
	case "author":
		return strings.TrimSpace(post.AuthorHandle + " " + post.AuthorName)
	case "link":
		return post.Link
	case "categories":
		return strings.Join(post.Categories, " ")
	default:
		return ""
	}
}
