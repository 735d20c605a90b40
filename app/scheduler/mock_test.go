package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/vportnov/repostq/app/database"
)

// memStore is an in-memory ReservationRepository for tests. WithTx holds a
// mutex for the duration of the callback, mirroring the serialization the
// sqlite store provides.
type memStore struct {
	mu           sync.Mutex
	items        map[int64]*database.ContentItem
	candidates   map[int64]*database.RewriteCandidate
	reservations map[int64]*database.Reservation
	nextID       int64
}

var _ database.ReservationRepository = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		items:        make(map[int64]*database.ContentItem),
		candidates:   make(map[int64]*database.RewriteCandidate),
		reservations: make(map[int64]*database.Reservation),
	}
}

func (m *memStore) addItem(item database.ContentItem) int64 {
	m.nextID++
	item.ID = m.nextID
	if item.Status == "" {
		item.Status = database.ContentStatusApproved
	}
	m.items[item.ID] = &item
	return item.ID
}

func (m *memStore) addCandidate(contentID int64) int64 {
	m.nextID++
	m.candidates[m.nextID] = &database.RewriteCandidate{
		ID:        m.nextID,
		ContentID: contentID,
		Body:      "rewritten text",
		Status:    database.CandidateStatusPending,
	}
	return m.nextID
}

func (m *memStore) addReservation(res database.Reservation) int64 {
	m.nextID++
	res.ID = m.nextID
	if res.Status == "" {
		res.Status = database.ReservationStatusPending
	}
	m.reservations[res.ID] = &res
	return res.ID
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx database.ReservationTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTx{store: m})
}

func (m *memStore) GetReservation(id int64) (*database.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{store: m}).GetReservation(id)
}

func (m *memStore) GetPending() ([]database.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{store: m}).GetPending()
}

func (m *memStore) GetDue(now time.Time) ([]database.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []database.Reservation
	for _, res := range m.sorted() {
		if res.Status == database.ReservationStatusPending && !res.ScheduledFor.After(now) {
			due = append(due, res)
		}
	}
	return due, nil
}

func (m *memStore) Update(res *database.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{store: m}).Update(res)
}

func (m *memStore) UpdateContentStatus(id int64, status database.ContentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{store: m}).UpdateContentStatus(id, status)
}

func (m *memStore) UpdateCandidateStatus(id int64, status database.CandidateStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{store: m}).UpdateCandidateStatus(id, status)
}

func (m *memStore) GetCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reservations), nil
}

func (m *memStore) sorted() []database.Reservation {
	var out []database.Reservation
	for _, res := range m.reservations {
		out = append(out, *res)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ScheduledFor.Before(out[j-1].ScheduledFor); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

type memTx struct {
	store *memStore
}

var _ database.ReservationTx = (*memTx)(nil)

func (t *memTx) GetContentItem(id int64) (*database.ContentItem, error) {
	item, ok := t.store.items[id]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (t *memTx) GetCandidate(id int64) (*database.RewriteCandidate, error) {
	c, ok := t.store.candidates[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (t *memTx) GetReservation(id int64) (*database.Reservation, error) {
	res, ok := t.store.reservations[id]
	if !ok {
		return nil, nil
	}
	copied := *res
	return &copied, nil
}

func (t *memTx) GetPending() ([]database.Reservation, error) {
	var pending []database.Reservation
	for _, res := range t.store.sorted() {
		if res.Status == database.ReservationStatusPending {
			pending = append(pending, res)
		}
	}
	return pending, nil
}

func (t *memTx) GetActiveSince(cutoff time.Time) ([]database.Reservation, error) {
	var active []database.Reservation
	for _, res := range t.store.sorted() {
		if res.Status != database.ReservationStatusPending &&
			res.Status != database.ReservationStatusPublishing &&
			res.Status != database.ReservationStatusPublished {
			continue
		}
		if res.ScheduledFor.Before(cutoff) {
			continue
		}
		active = append(active, res)
	}
	return active, nil
}

func (t *memTx) GetByContentID(contentID int64) ([]database.Reservation, error) {
	var out []database.Reservation
	for _, res := range t.store.sorted() {
		if res.ContentID == contentID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (t *memTx) Insert(res *database.Reservation) error {
	t.store.nextID++
	res.ID = t.store.nextID
	copied := *res
	t.store.reservations[res.ID] = &copied
	return nil
}

func (t *memTx) Update(res *database.Reservation) error {
	copied := *res
	t.store.reservations[res.ID] = &copied
	return nil
}

func (t *memTx) Delete(id int64) error {
	delete(t.store.reservations, id)
	return nil
}

func (t *memTx) UpdateContentStatus(id int64, status database.ContentStatus) error {
	if item, ok := t.store.items[id]; ok {
		item.Status = status
	}
	return nil
}

func (t *memTx) UpdateCandidateStatus(id int64, status database.CandidateStatus) error {
	if c, ok := t.store.candidates[id]; ok {
		c.Status = status
	}
	return nil
}
