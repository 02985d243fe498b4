package identities

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quickauth/auth-service/internal/models"
)

// MemoryRepository keeps identities in process memory. It is meant for tests
// and single-instance development.
type MemoryRepository struct {
	mu        sync.RWMutex
	byID      map[string]*models.Identity
	bySubject map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:      map[string]*models.Identity{},
		bySubject: map[string]string{},
	}
}

func subjectKey(provider, subject string) string { return provider + "\x00" + subject }

func (r *MemoryRepository) Upsert(ctx context.Context, id *models.Identity) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	key := subjectKey(id.Provider, id.Subject)
	if existingID, ok := r.bySubject[key]; ok {
		cur := r.byID[existingID]
		if id.Email != "" {
			cur.Email = id.Email
		}
		if id.Name != "" {
			cur.Name = id.Name
		}
		if id.AvatarURL != "" {
			cur.AvatarURL = id.AvatarURL
		}
		cur.UpdatedAt = now
		cp := *cur
		return &cp, nil
	}
	rec := *id
	rec.ID = uuid.NewString()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	r.byID[rec.ID] = &rec
	r.bySubject[key] = rec.ID
	cp := rec
	return &cp, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// Len returns the number of stored identities.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
