package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ukuvago/angelmatch/internal/config"
	"github.com/ukuvago/angelmatch/internal/logger"
	"go.uber.org/zap"
)

// StoredResponse is a replayable response for one idempotency key.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore remembers responses per key. Reserve takes a short lock so two
// concurrent requests with the same key cannot both run the handler.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*StoredResponse, error)
	Put(ctx context.Context, key string, resp StoredResponse) error
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

const idempotencyLockTTL = 30 * time.Second

// NewIdempotencyStore uses redis when REDIS_ADDR is set and reachable, else memory.
func NewIdempotencyStore(ctx context.Context, cfg *config.Config) IdempotencyStore {
	if cfg.RedisAddr == "" {
		return NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
	}
	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := rc.Ping(ctx).Err(); err != nil {
		logger.L().Warn("redis unavailable, idempotency keys kept in memory", zap.Error(err))
		return NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
	}
	return NewRedisIdempotencyStore(rc, cfg.IdempotencyTTL)
}

type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (r *RedisIdempotencyStore) Get(ctx context.Context, key string) (*StoredResponse, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp StoredResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *RedisIdempotencyStore) Put(ctx context.Context, key string, resp StoredResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, raw, r.ttl).Err()
}

func (r *RedisIdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, key+":lock", 1, idempotencyLockTTL).Result()
}

func (r *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, key+":lock").Err()
}

type memoryEntry struct {
	resp    StoredResponse
	expires time.Time
}

// MemoryIdempotencyStore is a single-process store for development and tests.
type MemoryIdempotencyStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	entries   map[string]memoryEntry
	locks     map[string]time.Time
	now       func() time.Time
	nextSweep time.Time
}

// Put sweeps expired entries and stale locks at most once per interval.
const memorySweepInterval = time.Minute

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		ttl:     ttl,
		entries: map[string]memoryEntry{},
		locks:   map[string]time.Time{},
		now:     time.Now,
	}
}

func (m *MemoryIdempotencyStore) Get(_ context.Context, key string) (*StoredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, nil
	}
	resp := e.resp
	return &resp, nil
}

func (m *MemoryIdempotencyStore) Put(_ context.Context, key string, resp StoredResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if !now.Before(m.nextSweep) {
		m.sweep(now)
		m.nextSweep = now.Add(memorySweepInterval)
	}
	m.entries[key] = memoryEntry{resp: resp, expires: now.Add(m.ttl)}
	return nil
}

func (m *MemoryIdempotencyStore) sweep(now time.Time) {
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
		}
	}
	for k, until := range m.locks {
		if !now.Before(until) {
			delete(m.locks, k)
		}
	}
}

func (m *MemoryIdempotencyStore) Reserve(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if until, ok := m.locks[key]; ok && m.now().Before(until) {
		return false, nil
	}
	m.locks[key] = m.now().Add(idempotencyLockTTL)
	return true, nil
}

func (m *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return nil
}
