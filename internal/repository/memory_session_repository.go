package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/models"
)

// Compile-time check to ensure the implementation satisfies the interface.
var _ SessionRepository = (*memorySessionRepository)(nil)

// memorySessionRepository keeps sessions in a map guarded by an RWMutex.
// Sessions are stored and returned as deep copies so callers never alias the
// stored record.
type memorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*models.Session
}

// NewMemorySessionRepository creates an in-memory SessionRepository.
func NewMemorySessionRepository() SessionRepository {
	return &memorySessionRepository{
		sessions: make(map[uuid.UUID]*models.Session),
	}
}

func (r *memorySessionRepository) Create(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return models.ErrSessionExists
	}

	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	session.Version = 1

	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *memorySessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, exists := r.sessions[id]
	if !exists {
		return nil, models.ErrSessionNotFound
	}
	return stored.Clone(), nil
}

func (r *memorySessionRepository) Update(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.sessions[session.ID]
	if !exists {
		return models.ErrSessionNotFound
	}

	if stored.Version != session.Version {
		return models.ErrConcurrentModification
	}

	session.Version++
	session.UpdatedAt = time.Now().UTC()

	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *memorySessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}
