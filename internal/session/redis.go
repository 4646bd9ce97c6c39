package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"waitroom-intake/pkg"
)

// DefaultTTL bounds how long an abandoned session is kept.
const DefaultTTL = 24 * time.Hour

// RedisStore keeps sessions as JSON blobs so several bot replicas can share
// them.  Every save refreshes the TTL.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore constructs a RedisStore. A non-positive ttl uses DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{redis: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, key string) (*pkg.Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: failed to load %s: %w", key, err)
	}
	var sess pkg.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: failed to decode %s: %w", key, err)
	}
	if sess.Answers == nil {
		sess.Answers = pkg.Answers{}
	}
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *pkg.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: failed to marshal %s: %w", sess.Key, err)
	}
	if err := s.redis.Set(ctx, sessionKey(sess.Key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: failed to persist %s: %w", sess.Key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, sessionKey(key)).Err(); err != nil {
		return fmt.Errorf("session: failed to delete %s: %w", key, err)
	}
	return nil
}

func sessionKey(key string) string {
	return fmt.Sprintf("intake:session:%s", key)
}
