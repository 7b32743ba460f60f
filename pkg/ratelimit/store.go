package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the quota state. Load returns nil, nil when nothing is stored.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
}

// MemoryStore keeps the state in process.
type MemoryStore struct {
	mu    sync.RWMutex
	state *State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return nil, nil
	}
	s := *m.state
	return &s, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, state *State) error {
	s := *state
	m.mu.Lock()
	m.state = &s
	m.mu.Unlock()
	return nil
}

// stateRetention keeps stored state around briefly after its window resets.
const stateRetention = time.Minute

// RedisStore shares the state between processes using the same API key.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a store backed by redisClient.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context) (*State, error) {
	remaining, err := r.redis.Get(ctx, RedisKeyRemaining).Int()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	limit, err := r.redis.Get(ctx, RedisKeyLimit).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get limit: %w", err)
	}

	resetTimestamp, err := r.redis.Get(ctx, RedisKeyResetTimestamp).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	lastUpdate, err := r.redis.Get(ctx, RedisKeyLastUpdate).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	return &State{
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    time.Unix(resetTimestamp, 0),
		LastUpdate: time.UnixMilli(lastUpdate),
	}, nil
}

// Save implements Store. Keys expire shortly after the window resets.
func (r *RedisStore) Save(ctx context.Context, state *State) error {
	ttl := time.Until(state.ResetAt) + stateRetention
	if ttl < stateRetention {
		ttl = stateRetention
	}

	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyLimit, state.Limit, ttl)
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, ttl)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), ttl)
	pipe.Set(ctx, RedisKeyLastUpdate, state.LastUpdate.UnixMilli(), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}
