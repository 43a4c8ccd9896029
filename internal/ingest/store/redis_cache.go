package store

import (
	"context"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	errs "github.com/kart-io/paperline/pkg/utils/errors"
	"github.com/kart-io/paperline/pkg/utils/json"
)

// DefaultHashKey Redis 缓存默认使用的 hash 键。
const DefaultHashKey = "paperline:embedding_cache"

// RedisCache 将全部记录保存在一个 hash 中，field 为 "document_id:chunk_index"，
// 每次 Upsert 对应一条 HSET。
type RedisCache struct {
	client  goredis.UniversalClient
	hashKey string
}

var _ EmbeddingCache = (*RedisCache)(nil)

// NewRedisCache 创建 Redis 缓存。
func NewRedisCache(client goredis.UniversalClient, hashKey string) *RedisCache {
	if hashKey == "" {
		hashKey = DefaultHashKey
	}
	return &RedisCache{client: client, hashKey: hashKey}
}

// Load implements EmbeddingCache.
func (c *RedisCache) Load(ctx context.Context) ([]*CacheRecord, error) {
	values, err := c.client.HGetAll(ctx, c.hashKey).Result()
	if err != nil {
		return nil, errs.ErrCacheCorruption.WithCause(err)
	}

	records := make([]*CacheRecord, 0, len(values))
	for field, value := range values {
		var rec CacheRecord
		if err := json.Unmarshal([]byte(value), &rec); err != nil {
			logger.Warnw("skipping corrupt cache entry", "key", c.hashKey, "field", field, "error", err.Error())
			continue
		}
		records = append(records, &rec)
	}
	sortRecords(records)
	return records, nil
}

// Upsert implements EmbeddingCache.
func (c *RedisCache) Upsert(ctx context.Context, rec *CacheRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errs.ErrCacheWrite.WithCause(err)
	}
	if err := c.client.HSet(ctx, c.hashKey, rec.Key(), data).Err(); err != nil {
		return errs.ErrCacheWrite.WithCause(err)
	}
	return nil
}
