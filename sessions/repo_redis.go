package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/go-device-link/internal/errors"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "device-link:session:"

var _ Repo = (*RedisRepo)(nil)

// RedisRepo stores sessions as JSON values that Redis expires at ExpiresAt
type RedisRepo struct {
	client  *redis.Client
	nowFunc func() time.Time
}

func NewRedisRepo(client *redis.Client) *RedisRepo {
	return &RedisRepo{client: client, nowFunc: time.Now}
}

func (r *RedisRepo) Upsert(ctx context.Context, sessionID string, session Session) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}

	ttl := session.ExpiresAt.Sub(r.nowFunc())
	if ttl <= 0 {
		return errors.ErrSessionExpired
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return r.client.Set(ctx, sessionKey(sessionID), data, ttl).Err()
}

func (r *RedisRepo) Get(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, errors.ErrSessionNotFound
	}

	data, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, errors.ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to read session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, errors.Wrapf(errors.ErrSessionNotFound, "malformed session")
	}
	return session, nil
}

func (r *RedisRepo) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKey(sessionID)).Err()
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}
