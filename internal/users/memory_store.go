package users

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory user store for demo/development mode.
type MemoryStore struct {
	users     map[string]*User  // by ID
	byAccount map[string]string // account number → ID
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*User),
		byAccount: make(map[string]string),
	}
}

func (m *MemoryStore) Create(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byAccount[u.AccountNumber]; ok {
		return ErrDuplicateAccount
	}

	cp := *u
	m.users[u.ID] = &cp
	m.byAccount[u.AccountNumber] = u.ID
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) GetByAccountNumber(ctx context.Context, accountNumber string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byAccount[accountNumber]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.ID]; !ok {
		return ErrUserNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(m.byAccount, u.AccountNumber)
	delete(m.users, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	var result []*User
	for _, u := range all {
		if !afterCreatedAt.IsZero() {
			// Cursor position: strictly after (older than) the cursor row.
			if u.CreatedAt.After(afterCreatedAt) || (u.CreatedAt.Equal(afterCreatedAt) && u.ID >= afterID) {
				continue
			}
		}
		result = append(result, u)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}
