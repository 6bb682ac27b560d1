package page

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pageKeyPrefix   = "page:"
	answerKeyPrefix = "answer:"
)

// RedisStore is a Redis-backed page store for multi-instance deployments.
// Redis key expiry takes the place of the lazy TTL sweep.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a page store over the given Redis client.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, title, html string) (string, error) {
	id, err := newPageID()
	if err != nil {
		return "", err
	}
	p := Page{ID: id, Title: title, HTML: html, CreatedAt: time.Now()}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal page: %w", err)
	}
	if err := s.rdb.Set(ctx, pageKeyPrefix+id, b, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store page: %w", err)
	}
	return id, nil
}

func (s *RedisStore) Rewrite(ctx context.Context, id, html string) error {
	b, err := s.rdb.Get(ctx, pageKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return fmt.Errorf("page %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load page: %w", err)
	}
	var p Page
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("failed to unmarshal page: %w", err)
	}
	p.HTML = html
	nb, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal page: %w", err)
	}
	// KeepTTL keeps the expiry anchored to the original creation.
	if err := s.rdb.Set(ctx, pageKeyPrefix+id, nb, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to rewrite page: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Page, bool, error) {
	b, err := s.rdb.Get(ctx, pageKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return Page{}, false, nil
	}
	if err != nil {
		return Page{}, false, fmt.Errorf("failed to load page: %w", err)
	}
	var p Page
	if err := json.Unmarshal(b, &p); err != nil {
		return Page{}, false, fmt.Errorf("failed to unmarshal page: %w", err)
	}
	return p, true, nil
}

func (s *RedisStore) Len(ctx context.Context) int {
	keys, err := s.rdb.Keys(ctx, pageKeyPrefix+"*").Result()
	if err != nil {
		return 0
	}
	return len(keys)
}

// RedisAnswerCache is a Redis-backed answer cache sharing memo entries
// across instances.
type RedisAnswerCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisAnswerCache creates an answer cache over the given Redis client.
func NewRedisAnswerCache(rdb *redis.Client, ttl time.Duration) *RedisAnswerCache {
	return &RedisAnswerCache{rdb: rdb, ttl: ttl}
}

func (c *RedisAnswerCache) Lookup(ctx context.Context, fingerprint string) (string, bool, error) {
	pageID, err := c.rdb.Get(ctx, answerKeyPrefix+fingerprint).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load answer entry: %w", err)
	}
	return pageID, true, nil
}

func (c *RedisAnswerCache) Record(ctx context.Context, fingerprint, pageID string) error {
	if err := c.rdb.Set(ctx, answerKeyPrefix+fingerprint, pageID, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record answer entry: %w", err)
	}
	return nil
}

func (c *RedisAnswerCache) Len(ctx context.Context) int {
	keys, err := c.rdb.Keys(ctx, answerKeyPrefix+"*").Result()
	if err != nil {
		return 0
	}
	return len(keys)
}
