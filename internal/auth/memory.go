package auth

import (
	"context"
	"sync"
)

// MemStore is an in-process UserStore used in tests and when no database is
// configured. It deliberately does not enforce email uniqueness: the service
// layer's pre-check is the only guard, matching production behavior on stores
// without a unique index.
type MemStore struct {
	mu    sync.RWMutex
	users map[string]*User
	order []string
}

var _ UserStore = (*MemStore)(nil)

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{users: make(map[string]*User)}
}

func (s *MemStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	s.order = append(s.order, u.ID)
	return nil
}

func (s *MemStore) Find(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if s.users[id].Email == email {
			cp := *s.users[id]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) List(ctx context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.order))
	for _, id := range s.order {
		cp := *s.users[id]
		out = append(out, &cp)
	}
	return out, nil
}
