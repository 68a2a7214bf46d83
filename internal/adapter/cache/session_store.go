package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"newspaper/internal/domain/session"
)

// RedisSessionStore keeps sessions in Redis and lets key expiry do the
// cleanup.
type RedisSessionStore struct {
	client *redis.Client
	log    *zap.Logger
	now    func() time.Time
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(client *redis.Client, log *zap.Logger) *RedisSessionStore {
	return &RedisSessionStore{client: client, log: log, now: time.Now}
}

func sessionKey(key string) string {
	return "session:" + key
}

// Save stores s until its expiry.
func (st *RedisSessionStore) Save(ctx context.Context, s *session.Session) error {
	ttl := s.ExpiresAt.Sub(st.now())
	if ttl <= 0 {
		return st.Delete(ctx, s.Key)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := st.client.Set(ctx, sessionKey(s.Key), data, ttl).Err(); err != nil {
		st.log.Error("failed to save session", zap.Int64("user_id", s.UserID), zap.Error(err))
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get returns the session for key, or nil when it is missing or expired.
func (st *RedisSessionStore) Get(ctx context.Context, key string) (*session.Session, error) {
	data, err := st.client.Get(ctx, sessionKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		st.log.Error("failed to load session", zap.Error(err))
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if s.Expired(st.now()) {
		return nil, nil
	}
	return &s, nil
}

// Delete removes the session for key.
func (st *RedisSessionStore) Delete(ctx context.Context, key string) error {
	if err := st.client.Del(ctx, sessionKey(key)).Err(); err != nil {
		st.log.Error("failed to delete session", zap.Error(err))
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
