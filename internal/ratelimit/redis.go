package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces limiter state in Redis.
const keyPrefix = "grantmatcher:ratelimit:"

// RedisStore persists limiter state in Redis so multiple worker processes
// sharing one external quota coordinate through the same state.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a store for the named limiter.
func NewRedisStore(client *redis.Client, name string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    keyPrefix + name,
	}
}

// Load returns the shared state, or a zero state if the key is absent or
// has expired.
func (r *RedisStore) Load(ctx context.Context) (State, error) {
	var state State

	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		state.normalize()
		return state, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("get limiter state: %w", err)
	}

	if unmarshalErr := json.Unmarshal(data, &state); unmarshalErr != nil {
		return State{}, fmt.Errorf("unmarshal limiter state: %w", unmarshalErr)
	}

	state.normalize()
	return state, nil
}

// Save persists the state with the given expiry.
func (r *RedisStore) Save(ctx context.Context, state State, ttl time.Duration) error {
	data, marshalErr := json.Marshal(state)
	if marshalErr != nil {
		return fmt.Errorf("marshal limiter state: %w", marshalErr)
	}

	if setErr := r.client.Set(ctx, r.key, data, ttl).Err(); setErr != nil {
		return fmt.Errorf("set limiter state: %w", setErr)
	}

	return nil
}
