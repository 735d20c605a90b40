package ingest

import (
	"testing"

	"github.com/vportnov/repostq/app/profiles"
)

func TestFilterer_NoFilters(t *testing.T) {
	filterer := NewFilterer()

	posts := []Post{
		{Title: "First post", Body: "Body one"},
		{Title: "Second post", Body: "Body two"},
	}

	profile := &profiles.Profile{}

	result := filterer.Run(posts, profile)

	if len(result) != 2 {
		t.Fatalf("Expected 2 posts, got %d", len(result))
	}
	for i, post := range result {
		if post.IsFiltered {
			t.Errorf("Post %d should not be filtered when no filters are configured", i)
		}
		if post.FilterReason != "" {
			t.Errorf("Post %d should have empty filter reason, got: %s", i, post.FilterReason)
		}
	}
}

func TestFilterer_TitleIncludeFilter(t *testing.T) {
	filterer := NewFilterer()

	posts := []Post{
		{Title: "Release announcement: v2.0"},
		{Title: "Office dog pictures"},
	}

	profile := &profiles.Profile{
		Filters: []profiles.Filter{
			{Field: "title", Includes: []string{"release", "announcement"}},
		},
	}

	result := filterer.Run(posts, profile)

	if result[0].IsFiltered {
		t.Error("Post matching an include keyword should pass")
	}
	if !result[1].IsFiltered {
		t.Error("Post matching no include keyword should be filtered")
	}
	if result[1].FilterReason == "" {
		t.Error("Filtered post should carry a reason")
	}
}

func TestFilterer_BodyExcludeFilter(t *testing.T) {
	filterer := NewFilterer()

	posts := []Post{
		{Title: "Post A", Body: "This post is SPONSORED content"},
		{Title: "Post B", Body: "Regular update"},
	}

	profile := &profiles.Profile{
		Filters: []profiles.Filter{
			{Field: "body", Excludes: []string{"sponsored"}},
		},
	}

	result := filterer.Run(posts, profile)

	if !result[0].IsFiltered {
		t.Error("Post containing an exclude keyword should be filtered regardless of case")
	}
	if result[0].FilterReason == "" {
		t.Error("Filtered post should carry a reason")
	}
	if result[1].IsFiltered {
		t.Error("Clean post should pass")
	}
}

func TestFilterer_AuthorFilter(t *testing.T) {
	filterer := NewFilterer()

	posts := []Post{
		{Title: "Post A", AuthorHandle: "@intern"},
		{Title: "Post B", AuthorHandle: "@ceo"},
	}

	profile := &profiles.Profile{
		Filters: []profiles.Filter{
			{Field: "author", Excludes: []string{"@intern"}},
		},
	}

	result := filterer.Run(posts, profile)

	if !result[0].IsFiltered {
		t.Error("Excluded author should be filtered")
	}
	if result[1].IsFiltered {
		t.Error("Other authors should pass")
	}
}

func TestFilterer_MultipleFiltersFirstMatchWins(t *testing.T) {
	filterer := NewFilterer()

	posts := []Post{
		{Title: "Giveaway: win prizes", Categories: []string{"promo"}},
	}

	profile := &profiles.Profile{
		Filters: []profiles.Filter{
			{Field: "title", Excludes: []string{"giveaway"}},
			{Field: "categories", Excludes: []string{"promo"}},
		},
	}

	result := filterer.Run(posts, profile)

	if !result[0].IsFiltered {
		t.Fatal("Post should be filtered")
	}
	if got := result[0].FilterReason; got != "Excluded by title filter: contains 'giveaway'" {
		t.Errorf("Expected the first matching filter in the reason, got: %s", got)
	}
}
