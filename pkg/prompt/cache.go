// Copyright 2026 The Conductor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package prompt

import (
	"context"
	"encoding/json"
	"log/slog"
	"path"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = time.Hour
)

// Cache fronts composed prompts with an in-process LRU tier and an
// optional shared Redis tier. The in-process tier is authoritative:
// Redis failures are logged and swallowed.
type Cache struct {
	local  *lru.Cache[string, *ComposedPrompt]
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache creates a cache. The redis client is optional; pass nil for
// a purely in-process cache.
func NewCache(size int, client *redis.Client) (*Cache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	local, err := lru.New[string, *ComposedPrompt](size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		local:  local,
		redis:  client,
		ttl:    defaultCacheTTL,
		logger: slog.Default(),
	}, nil
}

// Get looks the key up in the local tier, then in Redis. A Redis hit
// is promoted into the local tier.
func (c *Cache) Get(ctx context.Context, key string) (*ComposedPrompt, bool) {
	if composed, ok := c.local.Get(key); ok {
		return composed, true
	}
	if c.redis == nil {
		return nil, false
	}

	raw, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("redis cache read failed", "key", key, "error", err)
		return nil, false
	}

	var composed ComposedPrompt
	if err := json.Unmarshal(raw, &composed); err != nil {
		c.logger.Warn("corrupt cached prompt discarded", "key", key, "error", err)
		return nil, false
	}
	c.local.Add(key, &composed)
	return &composed, true
}

// Set writes through to both tiers.
func (c *Cache) Set(ctx context.Context, key string, composed *ComposedPrompt) {
	c.local.Add(key, composed)
	if c.redis == nil {
		return
	}

	raw, err := json.Marshal(composed)
	if err != nil {
		c.logger.Warn("failed to serialize composed prompt", "key", key, "error", err)
		return
	}
	if err := c.redis.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("redis cache write failed", "key", key, "error", err)
	}
}

// InvalidatePattern removes every key matching the glob pattern, e.g.
// "tenant:acme:*", from both tiers.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) {
	for _, key := range c.local.Keys() {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			c.local.Remove(key)
		}
	}
	if c.redis == nil {
		return
	}

	var cursor uint64
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.logger.Warn("redis cache scan failed", "pattern", pattern, "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.redis.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warn("redis cache delete failed", "pattern", pattern, "error", err)
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// Purge drops every entry from the local tier. The Redis tier expires
// by TTL; use InvalidatePattern for targeted removal.
func (c *Cache) Purge() {
	c.local.Purge()
}
