package database

import (
	"database/sql"
	"fmt"
	"time"
)

// ContentRepo handles database operations for content items and rewrite candidates
type ContentRepo struct {
	db *DB
}

var _ ContentRepository = (*ContentRepo)(nil)

// NewContentRepository creates a new content repository
func NewContentRepository(db *DB) *ContentRepo {
	return &ContentRepo{db: db}
}

// UpsertItem inserts a content item, or refreshes its text fields when the
// (profile, guid) pair already exists. Returns the row id and whether a new
// row was created.
func (r *ContentRepo) UpsertItem(item ContentItem) (int64, bool, error) {
	var existingID int64
	err := r.db.QueryRow(`
		SELECT id FROM content_items WHERE profile = ? AND guid = ?
	`, item.Profile, item.GUID).Scan(&existingID)

	if err != nil && err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("failed to check existing item: %w", err)
	}

	if err == nil {
		_, err = r.db.Exec(`
			UPDATE content_items
			SET title = ?, body = ?, link = ?, content_hash = ?
			WHERE id = ?
		`, item.Title, item.Body, item.Link, item.ContentHash, existingID)
		if err != nil {
			return 0, false, fmt.Errorf("failed to update content item: %w", err)
		}
		return existingID, false, nil
	}

	result, err := r.db.Exec(`
		INSERT INTO content_items (
			profile, guid, author_handle, author_name, link, title, body,
			extracted_content, source_timestamp, content_hash, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.Profile, item.GUID, item.AuthorHandle, item.AuthorName, item.Link,
		item.Title, item.Body, item.ExtractedContent, item.SourceTimestamp,
		item.ContentHash, ContentStatusNew)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert content item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read inserted item id: %w", err)
	}

	return id, true, nil
}

func (r *ContentRepo) GetItem(id int64) (*ContentItem, error) {
	return getContentItem(r.db, id)
}

func (r *ContentRepo) GetRecentItems(limit int) ([]ContentItem, error) {
	rows, err := r.db.Query(contentItemSelect+`
		ORDER BY COALESCE(source_timestamp, created_at) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent items: %w", err)
	}
	defer rows.Close()

	var items []ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content item row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content item rows: %w", err)
	}

	return items, nil
}

func (r *ContentRepo) UpdateItemStatus(id int64, status ContentStatus) error {
	return updateContentStatus(r.db, id, status)
}

func (r *ContentRepo) UpdateExtractedContent(id int64, content string) error {
	_, err := r.db.Exec(`
		UPDATE content_items SET extracted_content = ? WHERE id = ?
	`, content, id)
	if err != nil {
		return fmt.Errorf("failed to update extracted content: %w", err)
	}
	return nil
}

// CheckDuplicate reports whether any item with the given content hash exists,
// across all monitored profiles.
func (r *ContentRepo) CheckDuplicate(contentHash string) (bool, error) {
	var id int64
	err := r.db.QueryRow(`
		SELECT id FROM content_items WHERE content_hash = ? LIMIT 1
	`, contentHash).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}
	return true, nil
}

func (r *ContentRepo) GetStats() (*ContentStats, error) {
	stats := &ContentStats{ByStatus: make(map[ContentStatus]int)}

	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM content_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get content stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status ContentStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats rows: %w", err)
	}

	err = r.db.QueryRow(`SELECT COUNT(DISTINCT profile) FROM content_items`).Scan(&stats.Profiles)
	if err != nil {
		return nil, fmt.Errorf("failed to count profiles: %w", err)
	}

	// MAX() strips the column's time affinity, so the driver hands the
	// aggregate back as raw text.
	var lastAdded sql.NullString
	err = r.db.QueryRow(`SELECT MAX(created_at) FROM content_items`).Scan(&lastAdded)
	if err != nil {
		return nil, fmt.Errorf("failed to get last added time: %w", err)
	}
	if lastAdded.Valid {
		parsed, err := parseStoredTime(lastAdded.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last added time: %w", err)
		}
		stats.LastAdded = &parsed
	}

	return stats, nil
}

// parseStoredTime decodes a timestamp that came back as raw text. The
// driver writes time.Time binds in its own layout while CURRENT_TIMESTAMP
// defaults use the plain sqlite form, so both must be accepted.
func parseStoredTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (r *ContentRepo) InsertCandidate(candidate RewriteCandidate) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO rewrite_candidates (content_id, body, status)
		VALUES (?, ?, ?)
	`, candidate.ContentID, candidate.Body, CandidateStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to insert candidate: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted candidate id: %w", err)
	}

	return id, nil
}

func (r *ContentRepo) GetCandidate(id int64) (*RewriteCandidate, error) {
	return getCandidate(r.db, id)
}

func (r *ContentRepo) GetCandidatesForItem(contentID int64) ([]RewriteCandidate, error) {
	rows, err := r.db.Query(candidateSelect+`
		WHERE content_id = ?
		ORDER BY id
	`, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidates: %w", err)
	}
	defer rows.Close()

	var candidates []RewriteCandidate
	for rows.Next() {
		var c RewriteCandidate
		if err := rows.Scan(&c.ID, &c.ContentID, &c.Body, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidate rows: %w", err)
	}

	return candidates, nil
}

func (r *ContentRepo) UpdateCandidateStatus(id int64, status CandidateStatus) error {
	return updateCandidateStatus(r.db, id, status)
}

const contentItemSelect = `
	SELECT id, profile, guid, author_handle, author_name, link, title, body,
	       extracted_content, source_timestamp, content_hash, status, created_at
	FROM content_items`

const candidateSelect = `
	SELECT id, content_id, body, status, created_at
	FROM rewrite_candidates`

func getContentItem(q querier, id int64) (*ContentItem, error) {
	row := q.QueryRow(contentItemSelect+` WHERE id = ?`, id)

	item, err := scanContentItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return item, nil
}

func scanContentItem(row rowScanner) (*ContentItem, error) {
	var item ContentItem
	err := row.Scan(
		&item.ID, &item.Profile, &item.GUID, &item.AuthorHandle, &item.AuthorName,
		&item.Link, &item.Title, &item.Body, &item.ExtractedContent,
		&item.SourceTimestamp, &item.ContentHash, &item.Status, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func getCandidate(q querier, id int64) (*RewriteCandidate, error) {
	var c RewriteCandidate
	err := q.QueryRow(candidateSelect+` WHERE id = ?`, id).Scan(
		&c.ID, &c.ContentID, &c.Body, &c.Status, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	return &c, nil
}

func updateContentStatus(q querier, id int64, status ContentStatus) error {
	_, err := q.Exec(`UPDATE content_items SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update content status: %w", err)
	}
	return nil
}

func updateCandidateStatus(q querier, id int64, status CandidateStatus) error {
	_, err := q.Exec(`UPDATE rewrite_candidates SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update candidate status: %w", err)
	}
	return nil
}
