package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stanipov/NeuroQuest/internal/models"
)

// Compile-time check.
var _ SessionRepository = (*redisSessionRepository)(nil)

const (
	sessionKeyPrefix = "session:"
	sessionIndexKey  = "sessions"
)

// redisSessionRepository stores snapshots as JSON values with a TTL plus a
// set of live session IDs for listing.
type redisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSessionRepository creates a Redis-backed SessionRepository.
func NewRedisSessionRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) SessionRepository {
	return &redisSessionRepository{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisSessionRepo"),
	}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// Save writes the snapshot value and registers the ID in the session set,
// pipelined so both land together.
func (r *redisSessionRepository) Save(ctx context.Context, snap models.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, sessionKey(snap.SessionID), raw, r.ttl)
	pipe.SAdd(ctx, sessionIndexKey, snap.SessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session %s: %w", snap.SessionID, err)
	}

	r.logger.Debug("Session saved",
		zap.String("sessionID", snap.SessionID), zap.Int("turnIndex", snap.TurnIndex))
	return nil
}

func (r *redisSessionRepository) Load(ctx context.Context, sessionID string) (*models.Snapshot, error) {
	raw, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("corrupted snapshot for session %s: %w", sessionID, err)
	}
	return &snap, nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, sessionID string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.SRem(ctx, sessionIndexKey, sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// List walks the session set, dropping IDs whose value already expired.
func (r *redisSessionRepository) List(ctx context.Context) ([]SessionInfo, error) {
	ids, err := r.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	out := make([]SessionInfo, 0, len(ids))
	for _, id := range ids {
		snap, err := r.Load(ctx, id)
		if errors.Is(err, models.ErrSessionNotFound) {
			// TTL outlived the index entry; clean it up lazily.
			r.client.SRem(ctx, sessionIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, SessionInfo{SessionID: id, TurnIndex: snap.TurnIndex})
	}
	return out, nil
}
