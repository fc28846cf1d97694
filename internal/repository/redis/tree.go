package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neargud/catalog/internal/domain"
)

// treeKey holds every cached rendering of the category tree, one hash field
// per variant (active only, all), so a single DEL invalidates them together.
const treeKey = "catalog:category_tree"

// TreeCache implements repository.TreeCache using a Redis hash.
type TreeCache struct {
	client *redis.Client
}

// NewTreeCache creates a new Redis-backed category tree cache.
func NewTreeCache(client *redis.Client) *TreeCache {
	return &TreeCache{client: client}
}

// Get returns the cached tree stored under field, reporting false on a miss.
func (c *TreeCache) Get(ctx context.Context, field string) ([]*domain.Category, bool, error) {
	data, err := c.client.HGet(ctx, treeKey, field).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get category tree: %w", err)
	}

	var tree []*domain.Category
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, false, fmt.Errorf("unmarshal category tree: %w", err)
	}
	return tree, true, nil
}

// Set stores tree under field. The whole hash expires ttl after the last write.
func (c *TreeCache) Set(ctx context.Context, field string, tree []*domain.Category, ttl time.Duration) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("marshal category tree: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, treeKey, field, data)
		if ttl > 0 {
			pipe.Expire(ctx, treeKey, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set category tree: %w", err)
	}
	return nil
}

// Invalidate drops every cached tree.
func (c *TreeCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, treeKey).Err(); err != nil {
		return fmt.Errorf("redis invalidate category tree: %w", err)
	}
	return nil
}
