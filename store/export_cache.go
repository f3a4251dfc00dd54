package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const exportKeyPrefix = "export:"

// RedisExportCache keeps pre-reset queue snapshots for later retrieval.
// Entries expire on their own; exports are a convenience, not a system of
// record.
type RedisExportCache struct {
	Redis redis.Cmdable
	TTL   time.Duration
}

func NewRedisExportCache(client redis.Cmdable, ttl time.Duration) *RedisExportCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisExportCache{Redis: client, TTL: ttl}
}

func (c *RedisExportCache) SaveExport(ctx context.Context, exportID string, data []byte) error {
	if err := c.Redis.Set(ctx, exportKeyPrefix+exportID, data, c.TTL).Err(); err != nil {
		return fmt.Errorf("save export %s: %w", exportID, err)
	}
	return nil
}

func (c *RedisExportCache) GetExport(ctx context.Context, exportID string) ([]byte, error) {
	data, err := c.Redis.Get(ctx, exportKeyPrefix+exportID).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("export %s not found", exportID)
	} else if err != nil {
		return nil, fmt.Errorf("get export %s: %w", exportID, err)
	}
	return data, nil
}
