package cache

import (
	"context"
	"time"
)

// =============================================================================
// 💾 持久层接口（二级）
// =============================================================================

// Store 持久层缓存存储
//
// 实现包括 RedisStore 与 DBStore。未命中与过期统一返回 ErrCacheMiss，
// 其余错误包装为 *CacheError。
type Store interface {
	// Get 读取缓存值
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入缓存值并设置过期时间
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete 删除一个或多个键
	Delete(ctx context.Context, keys ...string) error

	// SweepExpired 清理已过期条目，返回清理数量
	SweepExpired(ctx context.Context) (int64, error)

	// Stats 返回存储统计
	Stats(ctx context.Context) (StoreStats, error)

	// Ping 探活
	Ping(ctx context.Context) error

	// Close 释放资源
	Close() error
}

// StoreStats 持久层统计
type StoreStats struct {
	Total  int64 `json:"total"`  // 总条目数（含过期未清理）
	Active int64 `json:"active"` // 未过期条目数
}
