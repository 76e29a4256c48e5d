package lang

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/carfix-labs/carfix/engine/domain"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores finished translations.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// LRUCache is an in-process Cache bounded by entry count.
type LRUCache struct {
	entries *lru.Cache[string, string]
}

// NewLRUCache creates an LRU cache holding up to size translations.
func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("lang: lru cache: %w", err)
	}
	return &LRUCache{entries: c}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) (string, error) {
	if v, ok := c.entries.Get(key); ok {
		return v, nil
	}
	return "", ErrCacheMiss
}

func (c *LRUCache) Set(_ context.Context, key, value string) error {
	c.entries.Add(key, value)
	return nil
}

// Len reports the number of cached entries.
func (c *LRUCache) Len() int { return c.entries.Len() }

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisCache shares translations between API replicas.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// DialRedis connects and pings Redis.
func DialRedis(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("lang: redis ping: %w", err)
	}
	return NewRedisCache(client, cfg.Prefix, cfg.TTL), nil
}

// NewRedisCache wraps an existing client. Entries expire after ttl (0 = never).
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "carfix:tr:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Cached memoizes a Translator. Cache failures are treated as misses and
// never surface to the caller.
type Cached struct {
	next   Translator
	cache  Cache
	logger *slog.Logger
}

// NewCached wraps next with cache.
func NewCached(next Translator, cache Cache, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: next, cache: cache, logger: logger}
}

func (c *Cached) Translate(ctx context.Context, text string, target domain.Language) (string, error) {
	key := cacheKey(text, target)
	if v, err := c.cache.Get(ctx, key); err == nil {
		return v, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.Debug("lang: cache get failed", "err", err)
	}

	out, err := c.next.Translate(ctx, text, target)
	if err != nil {
		return "", err
	}
	if err := c.cache.Set(ctx, key, out); err != nil {
		c.logger.Debug("lang: cache set failed", "err", err)
	}
	return out, nil
}

func cacheKey(text string, target domain.Language) string {
	sum := sha256.Sum256([]byte(text))
	return string(target) + ":" + hex.EncodeToString(sum[:16])
}
