package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a lock only when the caller still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript renews a lock's expiry only when the caller still owns it
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisStore keeps authorization sessions, run locks and webhook markers in Redis so
// that every API instance shares them.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	lockTTL   time.Duration
	seenTTL   time.Duration
}

// NewRedisStore creates a store on an existing client
func NewRedisStore(client redis.UniversalClient, keyPrefix string, lockTTL, seenTTL time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "channelsync:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		lockTTL:   lockTTL,
		seenTTL:   seenTTL,
	}
}

// Put stores a session until ttl elapses
func (s *RedisStore) Put(ctx context.Context, session *domain.ConnectSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+sessionKey(session.State), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Take consumes a session with GETDEL so a state token can be used once
func (s *RedisStore) Take(ctx context.Context, state string) (*domain.ConnectSession, error) {
	data, err := s.client.GetDel(ctx, s.keyPrefix+sessionKey(state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session domain.ConnectSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// TryAcquire takes the lock with SET NX EX
func (s *RedisStore) TryAcquire(ctx context.Context, key string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.keyPrefix+lockKey(key), token, s.lockTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lock if token still owns it
func (s *RedisStore) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.keyPrefix + lockKey(key)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Extend renews the lock TTL if token still owns it
func (s *RedisStore) Extend(ctx context.Context, key, token string) (bool, error) {
	n, err := extendScript.Run(ctx, s.client, []string{s.keyPrefix + lockKey(key)}, token, s.lockTTL.Milliseconds()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to extend lock: %w", err)
	}
	return n == 1, nil
}

// MarkProcessed uses SETNX so concurrent deliveries of the same id race safely
func (s *RedisStore) MarkProcessed(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+seenKey(key), "1", s.seenTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark delivery as processed: %w", err)
	}
	return ok, nil
}

// Forget removes a processed marker
func (s *RedisStore) Forget(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+seenKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to forget delivery: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var (
	_ ports.ConnectSessionStore = (*RedisStore)(nil)
	_ ports.RunGuard            = (*RedisStore)(nil)
	_ ports.IdempotencyStore    = (*RedisStore)(nil)
)
