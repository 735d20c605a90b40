package database

import (
	"fmt"
	"time"
)

// HealthRepo maintains the singleton system health record.
type HealthRepo struct {
	db *DB
}

var _ HealthRepository = (*HealthRepo)(nil)

func NewHealthRepository(db *DB) *HealthRepo {
	return &HealthRepo{db: db}
}

func (r *HealthRepo) Get() (*SystemHealth, error) {
	var health SystemHealth
	err := r.db.QueryRow(`
		SELECT last_successful_publish, last_successful_ingest,
		       consecutive_failed_publishes, updated_at
		FROM system_health WHERE id = 1
	`).Scan(&health.LastSuccessfulPublish, &health.LastSuccessfulIngest,
		&health.ConsecutiveFailedPublishes, &health.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get system health: %w", err)
	}
	return &health, nil
}

func (r *HealthRepo) RecordPublishSuccess(t time.Time) error {
	_, err := r.db.Exec(`
		UPDATE system_health
		SET last_successful_publish = ?, consecutive_failed_publishes = 0, updated_at = ?
		WHERE id = 1
	`, t, t)
	if err != nil {
		return fmt.Errorf("failed to record publish success: %w", err)
	}
	return nil
}

func (r *HealthRepo) RecordPublishFailure() error {
	_, err := r.db.Exec(`
		UPDATE system_health
		SET consecutive_failed_publishes = consecutive_failed_publishes + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`)
	if err != nil {
		return fmt.Errorf("failed to record publish failure: %w", err)
	}
	return nil
}

func (r *HealthRepo) RecordIngestSuccess(t time.Time) error {
	_, err := r.db.Exec(`
		UPDATE system_health
		SET last_successful_ingest = ?, updated_at = ?
		WHERE id = 1
	`, t, t)
	if err != nil {
		return fmt.Errorf("failed to record ingest success: %w", err)
	}
	return nil
}
