package transactions

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory transaction store for demo/development mode.
type MemoryStore struct {
	byUser map[string][]*Record
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUser: make(map[string][]*Record)}
}

func (m *MemoryStore) CreateBatch(ctx context.Context, records []*Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		cp := *r
		m.byUser[r.UserID] = append(m.byUser[r.UserID], &cp)
	}
	return nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID string, limit int, afterCreatedAt time.Time, afterID string) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*Record, 0, len(m.byUser[userID]))
	for _, r := range m.byUser[userID] {
		cp := *r
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	var result []*Record
	for _, r := range all {
		if !afterCreatedAt.IsZero() {
			if r.CreatedAt.After(afterCreatedAt) || (r.CreatedAt.Equal(afterCreatedAt) && r.ID >= afterID) {
				continue
			}
		}
		result = append(result, r)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryStore) AllByUser(ctx context.Context, userID string) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Record, 0, len(m.byUser[userID]))
	for _, r := range m.byUser[userID] {
		cp := *r
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MemoryStore) CountByUser(ctx context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userID]), nil
}

func (m *MemoryStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.byUser[userID])
	delete(m.byUser, userID)
	return n, nil
}
