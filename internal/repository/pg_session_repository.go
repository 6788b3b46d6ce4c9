package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/models"
)

// Compile-time check to ensure the implementation satisfies the interface.
var _ SessionRepository = (*pgSessionRepository)(nil)

type pgSessionRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgSessionRepository creates a PostgreSQL-backed SessionRepository.
func NewPgSessionRepository(pool *pgxpool.Pool, logger *zap.Logger) SessionRepository {
	return &pgSessionRepository{
		pool:   pool,
		logger: logger.Named("PgSessionRepo"),
	}
}

const ensureSessionsTableQuery = `
CREATE TABLE IF NOT EXISTS story_sessions (
    id         UUID PRIMARY KEY,
    data       JSONB NOT NULL,
    version    BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`

const insertSessionQuery = `
INSERT INTO story_sessions (id, data, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)`

const getSessionQuery = `
SELECT data FROM story_sessions WHERE id = $1`

const updateSessionQuery = `
UPDATE story_sessions
SET data = $2, version = $3, updated_at = $4
WHERE id = $1 AND version = $5`

const deleteSessionQuery = `
DELETE FROM story_sessions WHERE id = $1`

const sessionExistsQuery = `
SELECT EXISTS (SELECT 1 FROM story_sessions WHERE id = $1)`

// EnsureSchema creates the sessions table if it does not exist yet. Called
// once at startup by cmd/server.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ensureSessionsTableQuery); err != nil {
		return fmt.Errorf("failed to ensure story_sessions table: %w", err)
	}
	return nil
}

func (r *pgSessionRepository) Create(ctx context.Context, session *models.Session) error {
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	session.Version = 1

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}

	_, err = r.pool.Exec(ctx, insertSessionQuery, session.ID, data, session.Version, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return models.ErrSessionExists
		}
		r.logger.Error("Failed to insert session", zap.Error(err), zap.String("sessionID", session.ID.String()))
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *pgSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, getSessionQuery, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSessionNotFound
		}
		r.logger.Error("Failed to query session", zap.Error(err), zap.String("sessionID", id.String()))
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("corrupted session data for %s: %w", id, err)
	}
	return &session, nil
}

func (r *pgSessionRepository) Update(ctx context.Context, session *models.Session) error {
	expectedVersion := session.Version
	session.Version++
	session.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(session)
	if err != nil {
		session.Version = expectedVersion
		return fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}

	tag, err := r.pool.Exec(ctx, updateSessionQuery, session.ID, data, session.Version, session.UpdatedAt, expectedVersion)
	if err != nil {
		session.Version = expectedVersion
		r.logger.Error("Failed to update session", zap.Error(err), zap.String("sessionID", session.ID.String()))
		return fmt.Errorf("failed to update session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		session.Version = expectedVersion
		// Either the row is gone or another writer bumped the version.
		var exists bool
		if checkErr := r.pool.QueryRow(ctx, sessionExistsQuery, session.ID).Scan(&exists); checkErr != nil {
			r.logger.Error("Failed to probe session existence", zap.Error(checkErr), zap.String("sessionID", session.ID.String()))
			return fmt.Errorf("failed to probe session %s after update miss: %w", session.ID, checkErr)
		} else if !exists {
			return models.ErrSessionNotFound
		}
		return models.ErrConcurrentModification
	}
	return nil
}

func (r *pgSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, deleteSessionQuery, id); err != nil {
		r.logger.Error("Failed to delete session", zap.Error(err), zap.String("sessionID", id.String()))
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
