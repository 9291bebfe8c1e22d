package pending

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with in-process state. Rows do not
// survive a restart; it exists for tests and for embedders that opt out
// of durable retry.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*Delivery
}

// NewMemoryStore creates an empty in-memory pending store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*Delivery)}
}

// Enqueue inserts a new delivery row.
func (s *MemoryStore) Enqueue(ctx context.Context, d *Delivery) error {
	if d == nil || d.ID == "" || d.EventID == "" {
		return fmt.Errorf("delivery id and event id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *d
	s.rows[d.ID] = &clone
	return nil
}

// Due returns all rows due at now, in creation order.
func (s *MemoryStore) Due(ctx context.Context, now time.Time) ([]*Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*Delivery
	for _, row := range s.rows {
		if !row.NextRetryAt.After(now) {
			clone := *row
			due = append(due, &clone)
		}
	}
	sortByCreation(due)
	return due, nil
}

// Update persists mutable fields for an existing row.
func (s *MemoryStore) Update(ctx context.Context, d *Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[d.ID]
	if !ok {
		return fmt.Errorf("delivery %s not found", d.ID)
	}
	row.AttemptCount = d.AttemptCount
	row.RetryID = d.RetryID
	row.NextRetryAt = d.NextRetryAt
	row.Payload = d.Payload
	return nil
}

// Delete removes a row.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// GetByRetryID returns the row stamped with a server retry id, or nil.
func (s *MemoryStore) GetByRetryID(ctx context.Context, retryID string) (*Delivery, error) {
	if retryID == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, row := range s.rows {
		if row.RetryID == retryID {
			clone := *row
			return &clone, nil
		}
	}
	return nil, nil
}

// Count returns the number of rows.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows), nil
}

// All returns every row in creation order.
func (s *MemoryStore) All(ctx context.Context) ([]*Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Delivery, 0, len(s.rows))
	for _, row := range s.rows {
		clone := *row
		all = append(all, &clone)
	}
	sortByCreation(all)
	return all, nil
}

// Close releases no resources for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func sortByCreation(rows []*Delivery) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
}
