package schema

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache stores introspected columns per table. Entries never expire.
type Cache interface {
	Get(ctx context.Context, table string) ([]Column, bool, error)
	Set(ctx context.Context, table string, cols []Column) error
}

// MemoryCache is the per-process cache.
type MemoryCache struct {
	mu     sync.RWMutex
	tables map[string][]Column
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{tables: make(map[string][]Column)}
}

func (c *MemoryCache) Get(_ context.Context, table string) ([]Column, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cols, ok := c.tables[table]
	return cols, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, table string, cols []Column) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[table] = cols
	return nil
}

// RedisCache shares introspection results between processes. Values are
// msgpack-encoded column lists stored without TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "contentdesk"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(table string) string {
	return c.prefix + ":columns:" + table
}

func (c *RedisCache) Get(ctx context.Context, table string) ([]Column, bool, error) {
	b, err := c.client.Get(ctx, c.key(table)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	cols, err := decodeColumns(b)
	if err != nil {
		return nil, false, err
	}
	return cols, true, nil
}

func (c *RedisCache) Set(ctx context.Context, table string, cols []Column) error {
	b, err := encodeColumns(cols)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(table), b, 0).Err()
}

func encodeColumns(cols []Column) ([]byte, error) {
	return msgpack.Marshal(cols)
}

func decodeColumns(b []byte) ([]Column, error) {
	var cols []Column
	if err := msgpack.Unmarshal(b, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}
