package sessions

import (
	"context"
	"sync"

	"github.com/quickauth/auth-service/internal/models"
)

// MemoryRepository keeps sessions in process memory.
type MemoryRepository struct {
	mu    sync.Mutex
	store map[string]models.Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: map[string]models.Session{}}
}

func (m *MemoryRepository) Create(ctx context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := *s
	rec.Token = ""
	m.store[s.TokenHash] = rec
	return nil
}

func (m *MemoryRepository) GetByTokenHash(ctx context.Context, hash string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[hash]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryRepository) DeleteByTokenHash(ctx context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.store[hash]
	delete(m.store, hash)
	return ok, nil
}

// Len returns the number of stored sessions.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}
