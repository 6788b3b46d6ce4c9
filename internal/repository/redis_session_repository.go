package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/giacomomaggiore/gdc-blackswan-edutech/internal/models"
)

const sessionKeyPrefix = "session:"

// Compile-time check to ensure the implementation satisfies the interface.
var _ SessionRepository = (*redisSessionRepository)(nil)

// redisSessionRepository stores each session as a JSON blob under
// "session:{id}" with a TTL. Updates use WATCH/MULTI/EXEC so that the version
// check and the write are atomic.
type redisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSessionRepository creates a Redis-backed SessionRepository.
func NewRedisSessionRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) SessionRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisSessionRepository{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisSessionRepo"),
	}
}

func (r *redisSessionRepository) Create(ctx context.Context, session *models.Session) error {
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	session.Version = 1

	val, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}

	key := sessionKey(session.ID)
	set, err := r.client.SetNX(ctx, key, val, r.ttl).Result()
	if err != nil {
		r.logger.Error("Failed to store session in redis", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("failed to store session in redis: %w", err)
	}
	if !set {
		return models.ErrSessionExists
	}
	r.logger.Debug("Session stored in redis", zap.String("key", key), zap.Duration("ttl", r.ttl))
	return nil
}

func (r *redisSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	key := sessionKey(id)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get session from redis", zap.Error(err), zap.String("key", key))
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		r.logger.Error("Corrupted session data in redis", zap.Error(err), zap.String("key", key))
		return nil, fmt.Errorf("corrupted session data in redis for %s: %w", id, err)
	}

	// Active sessions stay alive: refresh the TTL on every read.
	if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
		r.logger.Warn("Failed to refresh session TTL", zap.Error(err), zap.String("key", key))
	}

	return &session, nil
}

func (r *redisSessionRepository) Update(ctx context.Context, session *models.Session) error {
	key := sessionKey(session.ID)

	expectedVersion := session.Version
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return models.ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		var stored models.Session
		if err := json.Unmarshal([]byte(val), &stored); err != nil {
			return fmt.Errorf("corrupted session data in redis for %s: %w", session.ID, err)
		}

		if stored.Version != session.Version {
			return models.ErrConcurrentModification
		}

		session.Version++
		session.UpdatedAt = time.Now().UTC()

		newVal, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, r.ttl)
			return nil
		})
		return err
	}, key)

	if err == redis.TxFailedErr {
		// Another writer touched the key between WATCH and EXEC.
		session.Version = expectedVersion
		return models.ErrConcurrentModification
	}
	if err != nil {
		session.Version = expectedVersion
	}
	return err
}

func (r *redisSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.client.Del(ctx, sessionKey(id)).Err()
}

func sessionKey(id uuid.UUID) string {
	return sessionKeyPrefix + id.String()
}
