package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// =============================================================================
// 🔴 Redis 存储
// =============================================================================

// RedisConfig Redis 存储配置
type RedisConfig struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 最大重试次数
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// 最小空闲连接数
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`

	// 键前缀
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "teamflow:cache:",
	}
}

// RedisStore 基于 Redis 的持久层缓存
//
// 过期由 Redis 自身的 TTL 机制负责，SweepExpired 恒返回 0。
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStore 创建 Redis 存储并测试连通性
func NewRedisStore(config RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis cache store initialized",
		zap.String("addr", config.Addr),
		zap.Int("pool_size", config.PoolSize),
	)

	return &RedisStore{
		client: client,
		prefix: config.KeyPrefix,
		logger: logger.With(zap.String("component", "cache_redis")),
	}, nil
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + key
}

// Get 读取缓存值
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, &CacheError{Op: "get", Key: key, Err: err}
	}
	return val, nil
}

// Set 写入缓存值
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.redisKey(key), value, ttl).Err(); err != nil {
		return &CacheError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Delete 删除一个或多个键
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.redisKey(k)
	}

	if err := s.client.Del(ctx, prefixed...).Err(); err != nil {
		return &CacheError{Op: "delete", Err: err}
	}
	return nil
}

// SweepExpired Redis 自行淘汰过期键，本方法恒返回 0
func (s *RedisStore) SweepExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// Stats 返回存储统计
func (s *RedisStore) Stats(ctx context.Context) (StoreStats, error) {
	size, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return StoreStats{}, &CacheError{Op: "stats", Err: err}
	}

	// Redis 中不存在已过期未清理的键
	return StoreStats{Total: size, Active: size}, nil
}

// Ping 探活
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 关闭客户端连接
func (s *RedisStore) Close() error {
	s.logger.Info("closing redis cache store")
	return s.client.Close()
}
