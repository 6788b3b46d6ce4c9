package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/models"
)

// SessionRepository is the pluggable session store. All drivers implement
// optimistic locking: Update verifies the submitted Version against the
// stored one and returns models.ErrConcurrentModification on mismatch, which
// is how racing progression calls on the same session are rejected.
type SessionRepository interface {
	// Create stores a new session with Version set to 1.
	Create(ctx context.Context, session *models.Session) error

	// GetByID retrieves a session. Returns models.ErrSessionNotFound when
	// the id has no record.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)

	// Update persists a mutated session, incrementing its Version.
	// Returns models.ErrConcurrentModification if the stored version has
	// moved on, models.ErrSessionNotFound if the record is gone.
	Update(ctx context.Context, session *models.Session) error

	// Delete removes a session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id uuid.UUID) error
}
