package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ErrMiss is returned when a key is absent or expired, on every backend.
var ErrMiss = errors.New("cache: key not found")

// Cache is the backend contract. Values are strings; JSON helpers are
// provided for structured payloads.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Manager fronts an optional Redis primary with an always-present memory
// fallback. Without Redis every operation still works process-locally,
// which keeps token revocation functional on single-node deployments.
type Manager struct {
	primary  Cache
	fallback Cache
	prefix   string
	logger   *zap.Logger
}

// NewManager connects to Redis when enabled and reachable; otherwise the
// manager runs on the in-memory backend alone.
func NewManager(cfg *viper.Viper, logger *zap.Logger) *Manager {
	m := &Manager{
		fallback: NewMemoryCache(),
		prefix:   "bookhive:",
		logger:   logger,
	}

	if cfg.GetBool("redis.enabled") {
		rc, err := NewRedisCache(cfg)
		if err != nil {
			logger.Warn("redis unavailable, using in-memory cache", zap.Error(err))
		} else {
			m.primary = rc
			logger.Info("redis cache connected", zap.String("addr", cfg.GetString("redis.addr")))
		}
	}

	return m
}

func (m *Manager) key(key string) string {
	return m.prefix + key
}

func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	full := m.key(key)
	if m.primary != nil {
		value, err := m.primary.Get(ctx, full)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrMiss) {
			m.logger.Warn("cache read failed on primary", zap.Error(err))
		}
	}
	return m.fallback.Get(ctx, full)
}

func (m *Manager) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	full := m.key(key)
	if m.primary != nil {
		if err := m.primary.Set(ctx, full, value, ttl); err == nil {
			return nil
		} else {
			m.logger.Warn("cache write failed on primary", zap.Error(err))
		}
	}
	return m.fallback.Set(ctx, full, value, ttl)
}

func (m *Manager) Delete(ctx context.Context, key string) error {
	full := m.key(key)
	if m.primary != nil {
		if err := m.primary.Delete(ctx, full); err != nil {
			m.logger.Warn("cache delete failed on primary", zap.Error(err))
		}
	}
	return m.fallback.Delete(ctx, full)
}

func (m *Manager) DeletePattern(ctx context.Context, pattern string) error {
	full := m.key(pattern)
	if m.primary != nil {
		if err := m.primary.DeletePattern(ctx, full); err != nil {
			m.logger.Warn("cache pattern delete failed on primary", zap.Error(err))
		}
	}
	return m.fallback.DeletePattern(ctx, full)
}

// Exists consults both backends: a value written to the fallback while the
// primary was down must still be found.
func (m *Manager) Exists(ctx context.Context, key string) (bool, error) {
	full := m.key(key)
	if m.primary != nil {
		found, err := m.primary.Exists(ctx, full)
		if err != nil {
			m.logger.Warn("cache exists failed on primary", zap.Error(err))
		} else if found {
			return true, nil
		}
	}
	return m.fallback.Exists(ctx, full)
}

func (m *Manager) GetJSON(ctx context.Context, key string, dest any) error {
	value, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(value), dest)
}

func (m *Manager) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.Set(ctx, key, string(data), ttl)
}

// Ping probes the active backend. With Redis down the manager still serves
// from memory, so only a primary failure is reported.
func (m *Manager) Ping(ctx context.Context) error {
	if m.primary != nil {
		return m.primary.Ping(ctx)
	}
	return m.fallback.Ping(ctx)
}

// Backend names the backend currently serving reads.
func (m *Manager) Backend() string {
	if m.primary != nil {
		return "redis"
	}
	return "memory"
}

func (m *Manager) Close() error {
	if m.primary != nil {
		m.primary.Close()
	}
	return m.fallback.Close()
}

// RedisCache is the Redis-backed Cache.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(cfg *viper.Viper) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetString("redis.addr"),
		Password:     cfg.GetString("redis.password"),
		DB:           cfg.GetInt("redis.db"),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

func (rc *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := rc.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return value, err
}

func (rc *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return rc.client.Set(ctx, key, value, ttl).Err()
}

func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, key).Err()
}

func (rc *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	keys, err := rc.client.Keys(ctx, pattern).Result()
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		return rc.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (rc *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := rc.client.Exists(ctx, key).Result()
	return count > 0, err
}

func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// MemoryCache is the in-process Cache used when Redis is absent.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]memoryItem
}

type memoryItem struct {
	value     string
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]memoryItem)}
}

func (mc *MemoryCache) Get(_ context.Context, key string) (string, error) {
	mc.mu.RLock()
	item, ok := mc.data[key]
	mc.mu.RUnlock()
	if !ok || item.expired() {
		return "", ErrMiss
	}
	return item.value, nil
}

func (mc *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	mc.mu.Lock()
	mc.sweep()
	mc.data[key] = memoryItem{value: value, expiresAt: expiresAt}
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Delete(_ context.Context, key string) error {
	mc.mu.Lock()
	delete(mc.data, key)
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) DeletePattern(_ context.Context, pattern string) error {
	mc.mu.Lock()
	for key := range mc.data {
		if matchPattern(pattern, key) {
			delete(mc.data, key)
		}
	}
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	mc.mu.RLock()
	item, ok := mc.data[key]
	mc.mu.RUnlock()
	return ok && !item.expired(), nil
}

func (mc *MemoryCache) Ping(_ context.Context) error {
	return nil
}

func (mc *MemoryCache) Close() error {
	mc.mu.Lock()
	mc.data = make(map[string]memoryItem)
	mc.mu.Unlock()
	return nil
}

func (i memoryItem) expired() bool {
	return !i.expiresAt.IsZero() && time.Now().After(i.expiresAt)
}

// sweep drops expired entries. Called under the write lock.
func (mc *MemoryCache) sweep() {
	for key, item := range mc.data {
		if item.expired() {
			delete(mc.data, key)
		}
	}
}

// matchPattern supports the single leading or trailing * the callers use;
// full glob semantics are left to Redis.
func matchPattern(pattern, str string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(str, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(str, strings.TrimPrefix(pattern, "*"))
	default:
		return pattern == str
	}
}
