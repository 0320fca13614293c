package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// GrantCache is a redis read-through cache for per-resource grant lists.
// Entries are invalidated on every grant mutation and expire on a short TTL
// as a backstop against other writers.
type GrantCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGrantCache builds a cache on an existing redis client.
func NewGrantCache(client *redis.Client, ttl time.Duration) *GrantCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &GrantCache{client: client, ttl: ttl}
}

// NewGrantCacheFromURL connects to redis and verifies the connection.
func NewGrantCacheFromURL(url string, ttl time.Duration) (*GrantCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewGrantCache(client, ttl), nil
}

// Close releases the redis connection.
func (c *GrantCache) Close() error {
	return c.client.Close()
}

// Client exposes the underlying redis client for health checks.
func (c *GrantCache) Client() *redis.Client {
	return c.client
}

func grantKey(rt ResourceType, resourceID int64) string {
	return fmt.Sprintf("grants:%s:%d", rt, resourceID)
}

// Get returns the cached grant list for a resource and whether it was
// present. Redis errors degrade to a cache miss.
func (c *GrantCache) Get(ctx context.Context, rt ResourceType, resourceID int64) ([]RoleGrant, bool) {
	data, err := c.client.Get(ctx, grantKey(rt, resourceID)).Result()
	if err != nil {
		return nil, false
	}

	var grants []RoleGrant
	if err := json.Unmarshal([]byte(data), &grants); err != nil {
		c.client.Del(ctx, grantKey(rt, resourceID))
		return nil, false
	}
	return grants, true
}

// Put stores a grant list. Failures are ignored; the cache is advisory.
func (c *GrantCache) Put(ctx context.Context, rt ResourceType, resourceID int64, grants []RoleGrant) {
	if grants == nil {
		grants = []RoleGrant{}
	}
	data, err := json.Marshal(grants)
	if err != nil {
		return
	}
	c.client.Set(ctx, grantKey(rt, resourceID), data, c.ttl)
}

// Invalidate drops the cached grant list for a resource.
func (c *GrantCache) Invalidate(ctx context.Context, rt ResourceType, resourceID int64) {
	c.client.Del(ctx, grantKey(rt, resourceID))
}
