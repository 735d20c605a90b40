package ingest

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/text/unicode/norm"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) ([]Post, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	posts := make([]Post, 0, len(feed.Items))
	for _, item := range feed.Items {
		normalized := p.normalizePost(item)
		normalized.ContentHash = p.generateContentHash(normalized)
		posts = append(posts, normalized)
	}

	return posts, nil
}

func (p *Parser) normalizePost(item *gofeed.Item) Post {
	post := Post{
		GUID:  cmp.Or(item.GUID, item.Link),
		Title: item.Title,
		Link:  item.Link,
		Body:  cmp.Or(item.Content, item.Description),
	}

	if item.PublishedParsed != nil {
		post.PublishedAt = item.PublishedParsed
	}

	post.AuthorHandle, post.AuthorName = p.extractAuthor(item)

	if item.Categories != nil {
		post.Categories = item.Categories
	}

	return post
}

// generateContentHash fingerprints a post for cross-profile duplicate
// detection. Text goes through NFC normalization first, so the same post
// fetched from sources with different Unicode composition hashes the same.
func (p *Parser) generateContentHash(post Post) string {
	content := fmt.Sprintf("%s|%s|%s",
		norm.NFC.String(strings.TrimSpace(post.Title)),
		post.Link,
		norm.NFC.String(strings.TrimSpace(post.Body)))

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

func (p *Parser) extractAuthor(item *gofeed.Item) (handle, name string) {
	var author *gofeed.Person
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		author = item.Authors[0]
	} else if item.Author != nil {
		author = item.Author
	}
	if author == nil {
		return "", ""
	}

	name = strings.TrimSpace(author.Name)
	email := strings.TrimSpace(author.Email)

	// Feeds from social sources often carry the handle in the email slot.
	if strings.HasPrefix(email, "@") {
		return email, name
	}
	if strings.HasPrefix(name, "@") {
		return name, ""
	}
	return "", cmp.Or(name, email)
}
