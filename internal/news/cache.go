package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gwgp-assistant-backend/internal/types"
)

// Cache stores headline lists by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]types.Article, bool, error)
	Set(ctx context.Context, key string, articles []types.Article, ttl time.Duration) error
}

type memoryEntry struct {
	articles  []types.Article
	updatedAt time.Time
	ttl       time.Duration
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]types.Article, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().Sub(e.updatedAt) > e.ttl {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]types.Article(nil), e.articles...), true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, articles []types.Article, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{
		articles:  append([]types.Article(nil), articles...),
		updatedAt: m.now(),
		ttl:       ttl,
	}
	return nil
}

// RedisCache keeps headline lists as JSON strings with an expiry.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCache connects and pings before returning.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisCache{rdb: rdb, prefix: "gwgp:news:"}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]types.Article, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var articles []types.Article
	if err := json.Unmarshal(raw, &articles); err != nil {
		return nil, false, fmt.Errorf("decode cached headlines: %w", err)
	}
	return articles, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, articles []types.Article, ttl time.Duration) error {
	raw, err := json.Marshal(articles)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error { return c.rdb.Close() }

// CachedSource serves headlines from cache when fresh. Cache failures
// are logged and fall through to the wrapped source.
type CachedSource struct {
	next  Source
	cache Cache
	ttl   time.Duration
	log   zerolog.Logger
}

func NewCachedSource(next Source, cache Cache, ttl time.Duration, log zerolog.Logger) *CachedSource {
	return &CachedSource{next: next, cache: cache, ttl: ttl, log: log}
}

func (c *CachedSource) TopHeadlines(ctx context.Context, topic string) ([]types.Article, error) {
	key := "top:" + strings.ToLower(strings.TrimSpace(topic))
	if articles, ok, err := c.cache.Get(ctx, key); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("headline cache read failed")
	} else if ok {
		return articles, nil
	}

	articles, err := c.next.TopHeadlines(ctx, topic)
	if err != nil {
		return nil, err
	}
	if len(articles) > 0 {
		if err := c.cache.Set(ctx, key, articles, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("headline cache write failed")
		}
	}
	return articles, nil
}
