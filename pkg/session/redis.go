package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultPrefix namespaces engine keys in a shared Redis.
const defaultPrefix = "vaani"

// maxTTL caps snapshot lifetime; a stale snapshot must never outlive the
// dialing window by more than the contract allows.
const maxTTL = 2 * time.Hour

// Compile-time assertion that RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix. Default is "vaani".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// RedisStore is the production [Store]: snapshots as JSON values under
// "<prefix>:call:<id>" with a per-write TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore on the given client.
//
// Example:
//
//	store := session.NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultPrefix}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Put implements Store. TTLs above the 2 h contract cap are clamped.
func (s *RedisStore) Put(ctx context.Context, callID string, customer Customer, ttl time.Duration) error {
	if callID == "" {
		return errors.New("session: callID must not be empty")
	}
	if ttl <= 0 || ttl > maxTTL {
		ttl = maxTTL
	}
	data, err := json.Marshal(customer)
	if err != nil {
		return fmt.Errorf("session: marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(callID), data, ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, callID string) (Customer, error) {
	data, err := s.client.Get(ctx, s.key(callID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, fmt.Errorf("session: redis get: %w", err)
	}
	var c Customer
	if err := json.Unmarshal(data, &c); err != nil {
		return Customer{}, fmt.Errorf("session: unmarshal snapshot: %w", err)
	}
	return c, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, callID string) error {
	if err := s.client.Del(ctx, s.key(callID)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}

// Ping reports Redis reachability; wired into the readiness probe.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(callID string) string {
	return s.prefix + ":call:" + callID
}
