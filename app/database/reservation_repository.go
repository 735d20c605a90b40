package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the same scan
// helpers serve transactional and direct access.
type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// ReservationRepo handles database operations for reservations
type ReservationRepo struct {
	db *DB
}

var _ ReservationRepository = (*ReservationRepo)(nil)

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db *DB) *ReservationRepo {
	return &ReservationRepo{db: db}
}

// WithTx runs fn inside a single database transaction. The pool holds one
// connection, so concurrent callers queue up here instead of interleaving
// their read-then-write sequences.
func (r *ReservationRepo) WithTx(ctx context.Context, fn func(tx ReservationTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&reservationTx{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *ReservationRepo) GetReservation(id int64) (*Reservation, error) {
	return getReservation(r.db, id)
}

func (r *ReservationRepo) GetPending() ([]Reservation, error) {
	return getPendingReservations(r.db)
}

// GetDue returns pending reservations whose slot has arrived, earliest first.
func (r *ReservationRepo) GetDue(now time.Time) ([]Reservation, error) {
	rows, err := r.db.Query(reservationSelect+`
		WHERE status = ? AND scheduled_for <= ?
		ORDER BY scheduled_for
	`, ReservationStatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due reservations: %w", err)
	}
	return scanReservations(rows)
}

func (r *ReservationRepo) Update(res *Reservation) error {
	return updateReservation(r.db, res)
}

func (r *ReservationRepo) UpdateContentStatus(id int64, status ContentStatus) error {
	return updateContentStatus(r.db, id, status)
}

func (r *ReservationRepo) UpdateCandidateStatus(id int64, status CandidateStatus) error {
	return updateCandidateStatus(r.db, id, status)
}

func (r *ReservationRepo) GetCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM reservations`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

// reservationTx implements ReservationTx over a live transaction.
type reservationTx struct {
	q querier
}

var _ ReservationTx = (*reservationTx)(nil)

func (t *reservationTx) GetContentItem(id int64) (*ContentItem, error) {
	return getContentItem(t.q, id)
}

func (t *reservationTx) GetCandidate(id int64) (*RewriteCandidate, error) {
	return getCandidate(t.q, id)
}

func (t *reservationTx) GetReservation(id int64) (*Reservation, error) {
	return getReservation(t.q, id)
}

func (t *reservationTx) GetPending() ([]Reservation, error) {
	return getPendingReservations(t.q)
}

// GetActiveSince returns pending and in-flight reservations plus
// reservations published after cutoff, ordered by scheduled time.
// Published entries participate in spacing checks only.
func (t *reservationTx) GetActiveSince(cutoff time.Time) ([]Reservation, error) {
	rows, err := t.q.Query(reservationSelect+`
		WHERE status IN (?, ?, ?) AND scheduled_for >= ?
		ORDER BY scheduled_for
	`, ReservationStatusPending, ReservationStatusPublishing, ReservationStatusPublished, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get active reservations: %w", err)
	}
	return scanReservations(rows)
}

func (t *reservationTx) GetByContentID(contentID int64) ([]Reservation, error) {
	rows, err := t.q.Query(reservationSelect+`
		WHERE content_id = ?
		ORDER BY scheduled_for
	`, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservations by content id: %w", err)
	}
	return scanReservations(rows)
}

func (t *reservationTx) Insert(res *Reservation) error {
	result, err := t.q.Exec(`
		INSERT INTO reservations (
			content_id, candidate_id, approved_at, scheduled_for, published_at,
			status, retry_count, last_error, priority_level, priority_score, age_hours
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, res.ContentID, res.CandidateID, res.ApprovedAt, res.ScheduledFor, res.PublishedAt,
		res.Status, res.RetryCount, res.LastError, nullableLevel(res.PriorityLevel),
		res.PriorityScore, res.AgeHours)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted reservation id: %w", err)
	}
	res.ID = id

	return nil
}

func (t *reservationTx) Update(res *Reservation) error {
	return updateReservation(t.q, res)
}

func (t *reservationTx) Delete(id int64) error {
	_, err := t.q.Exec(`DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	return nil
}

func (t *reservationTx) UpdateContentStatus(id int64, status ContentStatus) error {
	return updateContentStatus(t.q, id, status)
}

func (t *reservationTx) UpdateCandidateStatus(id int64, status CandidateStatus) error {
	return updateCandidateStatus(t.q, id, status)
}

const reservationSelect = `
	SELECT id, content_id, candidate_id, approved_at, scheduled_for, published_at,
	       status, retry_count, COALESCE(last_error, ''), COALESCE(priority_level, ''),
	       priority_score, age_hours, created_at
	FROM reservations`

func getReservation(q querier, id int64) (*Reservation, error) {
	row := q.QueryRow(reservationSelect+` WHERE id = ?`, id)

	res, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return res, nil
}

func getPendingReservations(q querier) ([]Reservation, error) {
	rows, err := q.Query(reservationSelect+`
		WHERE status = ?
		ORDER BY scheduled_for
	`, ReservationStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending reservations: %w", err)
	}
	return scanReservations(rows)
}

func updateReservation(q querier, res *Reservation) error {
	_, err := q.Exec(`
		UPDATE reservations
		SET scheduled_for = ?, published_at = ?, status = ?, retry_count = ?,
		    last_error = ?, priority_level = ?, priority_score = ?, age_hours = ?
		WHERE id = ?
	`, res.ScheduledFor, res.PublishedAt, res.Status, res.RetryCount,
		res.LastError, nullableLevel(res.PriorityLevel), res.PriorityScore, res.AgeHours, res.ID)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*Reservation, error) {
	var res Reservation
	var level string
	err := row.Scan(
		&res.ID, &res.ContentID, &res.CandidateID, &res.ApprovedAt, &res.ScheduledFor,
		&res.PublishedAt, &res.Status, &res.RetryCount, &res.LastError, &level,
		&res.PriorityScore, &res.AgeHours, &res.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.PriorityLevel = PriorityLevel(level)
	return &res, nil
}

func scanReservations(rows *sql.Rows) ([]Reservation, error) {
	defer rows.Close()

	var reservations []Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation row: %w", err)
		}
		reservations = append(reservations, *res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservation rows: %w", err)
	}

	return reservations, nil
}

func nullableLevel(level PriorityLevel) interface{} {
	if level == "" {
		return nil
	}
	return string(level)
}
