package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// =============================================================================
// 💾 两级缓存管理器
// =============================================================================

// ErrClosed 管理器已关闭
var ErrClosed = errors.New("cache manager is closed")

// Config 缓存管理器配置
type Config struct {
	// 默认过期时间，Set 传 0 时使用
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`

	// 内存缓存容量
	MemoryCapacity int `yaml:"memory_capacity" json:"memory_capacity"`

	// 后台清理间隔，0 表示不启动后台清理
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DefaultTTL:     5 * time.Minute,
		MemoryCapacity: DefaultMemoryCapacity,
		SweepInterval:  time.Minute,
	}
}

// Manager 两级缓存管理器
//
// 一级为进程内 LRU，二级为可插拔的 Store（Redis 或数据库）。
// 读取顺序为先内存后持久层，持久层命中的值会回填到内存。
// 持久层读取故障仅降级为未命中，不向上冒泡。
type Manager struct {
	memory *MemoryCache
	store  Store // 可为 nil，表示仅内存模式
	config Config
	logger *zap.Logger

	group     singleflight.Group
	storeHits atomic.Int64

	mu        sync.RWMutex
	closed    bool
	stopCh    chan struct{}
	closeOnce sync.Once
}

// Stats 两级缓存统计
type Stats struct {
	Memory    MemoryStats `json:"memory"`
	Store     *StoreStats `json:"store,omitempty"`
	StoreHits int64       `json:"store_hits"`
	HitRate   float64     `json:"hit_rate"`
}

// SweepResult 过期清理结果
type SweepResult struct {
	Memory int64 `json:"memory"`
	Store  int64 `json:"store"`
}

// NewManager 创建缓存管理器
//
// store 为 nil 时降级为仅内存模式。SweepInterval 大于 0 时启动后台
// 清理循环，通过 Close 停止。
func NewManager(config Config, store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}

	m := &Manager{
		memory: NewMemoryCache(config.MemoryCapacity),
		store:  store,
		config: config,
		logger: logger.With(zap.String("component", "cache")),
		stopCh: make(chan struct{}),
	}

	if config.SweepInterval > 0 {
		go m.sweepLoop()
	}

	m.logger.Info("cache manager initialized",
		zap.Duration("default_ttl", config.DefaultTTL),
		zap.Int("memory_capacity", m.memory.capacity),
		zap.Bool("persistent", store != nil),
	)

	return m
}

func (m *Manager) guard(op, key string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return &CacheError{Op: op, Key: key, Err: ErrClosed}
	}
	return nil
}

// Get 读取缓存值
//
// 先查内存，未命中再查持久层；持久层命中后回填内存（使用默认 TTL）。
// 两级都未命中返回 ErrCacheMiss。
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	if err := m.guard("get", key); err != nil {
		return nil, err
	}

	if val, ok := m.memory.Get(key); ok {
		return val, nil
	}

	if m.store == nil {
		return nil, ErrCacheMiss
	}

	val, err := m.store.Get(ctx, key)
	if err != nil {
		if IsCacheMiss(err) {
			return nil, ErrCacheMiss
		}
		// 持久层故障只降级为未命中
		m.logger.Warn("persistent cache lookup failed, treating as miss",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, ErrCacheMiss
	}

	m.storeHits.Add(1)
	m.memory.Set(key, val, m.config.DefaultTTL)
	return val, nil
}

// Set 写入缓存值
//
// ttl 为 0 时使用默认 TTL，为负时报错。写入顺序为先持久层后内存，
// 持久层失败时内存不写入。
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := m.guard("set", key); err != nil {
		return err
	}

	if ttl < 0 {
		return &CacheError{Op: "set", Key: key, Err: ErrInvalidTTL}
	}
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	if m.store != nil {
		if err := m.store.Set(ctx, key, value, ttl); err != nil {
			return err
		}
	}

	m.memory.Set(key, value, ttl)
	return nil
}

// GetJSON 读取缓存并反序列化到 dest
func (m *Manager) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return &CacheError{Op: "get", Key: key, Err: err}
	}
	return nil
}

// SetJSON 序列化 value 后写入缓存
func (m *Manager) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &CacheError{Op: "set", Key: key, Err: err}
	}
	return m.Set(ctx, key, data, ttl)
}

// Delete 从两级缓存中删除指定键
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	if err := m.guard("delete", ""); err != nil {
		return err
	}

	for _, key := range keys {
		m.memory.Delete(key)
	}

	if m.store != nil {
		return m.store.Delete(ctx, keys...)
	}
	return nil
}

type computeResult struct {
	value  []byte
	cached bool
}

// GetOrCompute 读取缓存，未命中时计算并写入
//
// 并发请求同一 key 时，fn 只执行一次，其余调用共享结果。
// 返回值的第二个布尔表示是否命中了已有缓存。
func (m *Manager) GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	if val, err := m.Get(ctx, key); err == nil {
		return val, true, nil
	} else if !IsCacheMiss(err) {
		return nil, false, err
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		// 双重检查，避免等待合并期间其他协程已写入
		if val, err := m.Get(ctx, key); err == nil {
			return computeResult{value: val, cached: true}, nil
		}

		val, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		if err := m.Set(ctx, key, val, ttl); err != nil {
			// 写缓存失败不影响计算结果
			m.logger.Warn("failed to cache computed value",
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return computeResult{value: val, cached: false}, nil
	})
	if err != nil {
		return nil, false, err
	}

	res := v.(computeResult)
	return res.value, res.cached, nil
}

// SweepExpired 立即清理两级缓存中的过期条目
func (m *Manager) SweepExpired(ctx context.Context) (SweepResult, error) {
	if err := m.guard("sweep", ""); err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Memory: m.memory.SweepExpired()}

	if m.store != nil {
		removed, err := m.store.SweepExpired(ctx)
		if err != nil {
			return result, err
		}
		result.Store = removed
	}

	return result, nil
}

// Stats 返回两级缓存统计与命中率
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	if err := m.guard("stats", ""); err != nil {
		return nil, err
	}

	memStats := m.memory.Stats()
	storeHits := m.storeHits.Load()

	stats := &Stats{
		Memory:    memStats,
		StoreHits: storeHits,
	}

	// 命中率按总查询数计算，持久层命中也算命中
	lookups := memStats.Hits + memStats.Misses
	if lookups > 0 {
		stats.HitRate = float64(memStats.Hits+storeHits) / float64(lookups)
	}

	if m.store != nil {
		storeStats, err := m.store.Stats(ctx)
		if err != nil {
			return nil, err
		}
		stats.Store = &storeStats
	}

	return stats, nil
}

// Ping 检查持久层连通性，仅内存模式恒为健康
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.guard("ping", ""); err != nil {
		return err
	}

	if m.store == nil {
		return nil
	}
	return m.store.Ping(ctx)
}

// Close 停止后台清理并关闭持久层
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()

		close(m.stopCh)
		m.logger.Info("closing cache manager")

		if m.store != nil {
			err = m.store.Close()
		}
	})
	return err
}

// =============================================================================
// 🧹 后台清理
// =============================================================================

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		result, err := m.SweepExpired(ctx)
		cancel()

		if err != nil {
			m.logger.Warn("cache sweep failed", zap.Error(err))
			continue
		}

		if result.Memory > 0 || result.Store > 0 {
			m.logger.Debug("cache sweep completed",
				zap.Int64("memory_removed", result.Memory),
				zap.Int64("store_removed", result.Store),
			)
		}
	}
}
