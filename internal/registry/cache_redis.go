package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	platformredis "forestclient/internal/platform/redis"
)

const cacheKeyPrefix = "bcregistry:document:"

// RedisCache caches registry documents in Redis with a fixed TTL.
type RedisCache struct {
	client *platformredis.Client
	ttl    time.Duration
}

func NewRedisCache(client *platformredis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, businessID string) (*Document, bool, error) {
	data, found, err := c.client.GetBytes(ctx, cacheKeyPrefix+businessID)
	if err != nil || !found {
		return nil, false, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("decode cached document %s: %w", businessID, err)
	}
	return &doc, true, nil
}

func (c *RedisCache) Put(ctx context.Context, businessID string, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", businessID, err)
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+businessID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache document %s: %w", businessID, err)
	}
	return nil
}
