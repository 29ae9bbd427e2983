// Package localstore keeps the field device's visit list and pending-sync
// queue in the local SQLite database.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/evcraddock/vigia/internal/visit"
)

// Storage keys in the kv table.
const (
	VisitsKey = "visits"
	QueueKey  = "sync_queue"
)

// ErrNotFound is returned when a visit id is not in the local list.
var ErrNotFound = errors.New("visit not found")

// Store is the local visit store. Every mutation reads, modifies and writes
// back a whole key while holding mu, so one Store must be the only writer
// to its database.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a local store over a database opened with the local schema.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Stats summarizes the local list.
type Stats struct {
	Total        int                      `json:"total"`
	ByType       map[visit.Type]int       `json:"by_type"`
	PendingSync  int                      `json:"pending_sync"`
	BySyncStatus map[visit.SyncStatus]int `json:"by_sync_status"`
}

// Persist stores v at the front of the list and enqueues its id. An entry
// with the same id is replaced.
func (s *Store) Persist(ctx context.Context, v *visit.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	visits, err := s.loadVisits(ctx)
	if err != nil {
		return err
	}
	visits = removeVisit(visits, v.ID)
	visits = append([]*visit.Visit{v.Clone()}, visits...)
	if err := s.save(ctx, VisitsKey, visits); err != nil {
		return fmt.Errorf("saving visit %s: %w", v.ID, err)
	}

	return s.enqueueLocked(ctx, v.ID)
}

// ListAll returns every stored visit, most recent first.
func (s *Store) ListAll(ctx context.Context) ([]*visit.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadVisits(ctx)
}

// Get returns the visit with the given id.
func (s *Store) Get(ctx context.Context, id string) (*visit.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	visits, err := s.loadVisits(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range visits {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, fmt.Errorf("visit %s: %w", id, ErrNotFound)
}

// Update replaces the stored visit with the same id. It does nothing when
// the id is absent.
func (s *Store) Update(ctx context.Context, v *visit.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	visits, err := s.loadVisits(ctx)
	if err != nil {
		return err
	}
	found := false
	for i, existing := range visits {
		if existing.ID == v.ID {
			visits[i] = v.Clone()
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	if err := s.save(ctx, VisitsKey, visits); err != nil {
		return fmt.Errorf("updating visit %s: %w", v.ID, err)
	}
	return nil
}

// Remove deletes the visit from the list and the queue.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	visits, err := s.loadVisits(ctx)
	if err != nil {
		return err
	}
	if err := s.save(ctx, VisitsKey, removeVisit(visits, id)); err != nil {
		return fmt.Errorf("removing visit %s: %w", id, err)
	}
	return s.dequeueLocked(ctx, id)
}

// Enqueue adds id to the sync queue if it is not already there.
func (s *Store) Enqueue(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueueLocked(ctx, id)
}

// Dequeue removes id from the sync queue. Removing an absent id is not an error.
func (s *Store) Dequeue(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dequeueLocked(ctx, id)
}

// Queue returns a copy of the pending ids in enqueue order.
func (s *Store) Queue(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadQueue(ctx)
}

// Stats counts the stored visits.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	visits, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	st := &Stats{
		Total:        len(visits),
		ByType:       make(map[visit.Type]int),
		BySyncStatus: make(map[visit.SyncStatus]int),
	}
	for _, v := range visits {
		st.ByType[v.Type]++
		st.BySyncStatus[v.SyncStatus]++
		if v.SyncStatus == visit.SyncPending {
			st.PendingSync++
		}
	}
	return st, nil
}

// RecoverStale moves visits stuck in syncing since before now-olderThan
// back to pending and re-enqueues them. It returns the recovered ids.
func (s *Store) RecoverStale(ctx context.Context, olderThan time.Duration, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	visits, err := s.loadVisits(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-olderThan)
	var recovered []string
	for _, v := range visits {
		if v.SyncStatus != visit.SyncSyncing || !v.UpdatedAt.Before(cutoff) {
			continue
		}
		v.SyncStatus = visit.SyncPending
		v.SyncError = ""
		v.UpdatedAt = now
		recovered = append(recovered, v.ID)
	}
	if len(recovered) == 0 {
		return nil, nil
	}

	if err := s.save(ctx, VisitsKey, visits); err != nil {
		return nil, fmt.Errorf("saving recovered visits: %w", err)
	}
	for _, id := range recovered {
		if err := s.enqueueLocked(ctx, id); err != nil {
			return nil, err
		}
	}
	return recovered, nil
}

func (s *Store) enqueueLocked(ctx context.Context, id string) error {
	queue, err := s.loadQueue(ctx)
	if err != nil {
		return err
	}
	for _, q := range queue {
		if q == id {
			return nil
		}
	}
	if err := s.save(ctx, QueueKey, append(queue, id)); err != nil {
		return fmt.Errorf("enqueuing %s: %w", id, err)
	}
	return nil
}

func (s *Store) dequeueLocked(ctx context.Context, id string) error {
	queue, err := s.loadQueue(ctx)
	if err != nil {
		return err
	}
	kept := queue[:0]
	for _, q := range queue {
		if q != id {
			kept = append(kept, q)
		}
	}
	if len(kept) == len(queue) {
		return nil
	}
	if err := s.save(ctx, QueueKey, kept); err != nil {
		return fmt.Errorf("dequeuing %s: %w", id, err)
	}
	return nil
}

func (s *Store) loadVisits(ctx context.Context) ([]*visit.Visit, error) {
	raw, err := s.load(ctx, VisitsKey)
	if err != nil || raw == nil {
		return nil, err
	}
	var visits []*visit.Visit
	if err := json.Unmarshal(raw, &visits); err != nil {
		slog.Warn("discarding unparsable local value", "key", VisitsKey, "error", err)
		return nil, nil
	}
	return visits, nil
}

func (s *Store) loadQueue(ctx context.Context) ([]string, error) {
	raw, err := s.load(ctx, QueueKey)
	if err != nil || raw == nil {
		return nil, err
	}
	var queue []string
	if err := json.Unmarshal(raw, &queue); err != nil {
		slog.Warn("discarding unparsable local value", "key", QueueKey, "error", err)
		return nil, nil
	}
	return queue, nil
}

// load returns the raw value under key, or nil when the key is missing.
func (s *Store) load(ctx context.Context, key string) ([]byte, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return []byte(raw), nil
}

func (s *Store) save(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, string(data),
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func removeVisit(visits []*visit.Visit, id string) []*visit.Visit {
	out := make([]*visit.Visit, 0, len(visits))
	for _, v := range visits {
		if v.ID != id {
			out = append(out, v)
		}
	}
	return out
}
