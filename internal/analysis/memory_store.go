package analysis

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory assessment store for demo/development mode.
type MemoryStore struct {
	byID   map[string]*Assessment
	byUser map[string][]*Assessment // newest first
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory assessment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Assessment),
		byUser: make(map[string][]*Assessment),
	}
}

func (m *MemoryStore) Create(ctx context.Context, a *Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *a
	m.byID[a.ID] = &cp
	m.byUser[a.UserID] = append([]*Assessment{&cp}, m.byUser[a.UserID]...)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byID[id]
	if !ok {
		return nil, ErrAssessmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) GetLatestByUser(ctx context.Context, userID string) (*Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.byUser[userID]
	if len(list) == 0 {
		return nil, ErrAssessmentNotFound
	}
	cp := *list[0]
	return &cp, nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.byUser[userID]
	if len(list) > limit {
		list = list[:limit]
	}
	result := make([]*Assessment, 0, len(list))
	for _, a := range list {
		cp := *a
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MemoryStore) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type latest struct {
		userID string
		at     time.Time
	}
	var candidates []latest
	for userID, list := range m.byUser {
		if len(list) > 0 && list[0].CreatedAt.Before(olderThan) {
			candidates = append(candidates, latest{userID, list[0].CreatedAt})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].at.Before(candidates[j].at) })

	var result []string
	for _, c := range candidates {
		result = append(result, c.userID)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}
