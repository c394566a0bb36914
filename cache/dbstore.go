package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/teamflow/internal/database"
)

// =============================================================================
// 🗄️ 数据库存储
// =============================================================================

// DBStore 基于 GORM 的持久层缓存
//
// 条目落在 cache_entries 表，读取时更新访问统计，过期条目由
// SweepExpired 批量清理。连接的生命周期归属调用方，Close 不关库。
type DBStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDBStore 创建数据库存储
func NewDBStore(db *gorm.DB, logger *zap.Logger) *DBStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBStore{
		db:     db,
		logger: logger.With(zap.String("component", "cache_db")),
	}
}

// Get 读取缓存值
//
// 命中时更新 accessed_at 与 access_count；已过期条目按未命中处理
// 并顺手删除。
func (s *DBStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry database.CacheEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, &CacheError{Op: "get", Key: key, Err: err}
	}

	now := time.Now()
	if entry.Expired(now) {
		if err := s.db.WithContext(ctx).Delete(&entry).Error; err != nil {
			s.logger.Warn("failed to remove expired cache entry",
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return nil, ErrCacheMiss
	}

	// 访问统计失败不影响读取结果
	if err := s.db.WithContext(ctx).Model(&entry).Updates(map[string]any{
		"accessed_at":  now,
		"access_count": gorm.Expr("access_count + 1"),
	}).Error; err != nil {
		s.logger.Warn("failed to update cache access stats",
			zap.String("key", key),
			zap.Error(err),
		)
	}

	return entry.Value, nil
}

// Set 写入缓存值，键已存在时覆盖
func (s *DBStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()
	entry := database.CacheEntry{
		Key:        key,
		Value:      value,
		ExpiresAt:  now.Add(ttl),
		AccessedAt: now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "accessed_at"}),
	}).Create(&entry).Error
	if err != nil {
		return &CacheError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Delete 删除一个或多个键
func (s *DBStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).
		Where("key IN ?", keys).
		Delete(&database.CacheEntry{}).Error
	if err != nil {
		return &CacheError{Op: "delete", Err: err}
	}
	return nil
}

// SweepExpired 批量删除已过期条目，返回删除数量
func (s *DBStore) SweepExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", time.Now()).
		Delete(&database.CacheEntry{})
	if result.Error != nil {
		return 0, &CacheError{Op: "sweep", Err: result.Error}
	}
	return result.RowsAffected, nil
}

// Stats 返回存储统计
func (s *DBStore) Stats(ctx context.Context) (StoreStats, error) {
	var total, active int64

	if err := s.db.WithContext(ctx).Model(&database.CacheEntry{}).Count(&total).Error; err != nil {
		return StoreStats{}, &CacheError{Op: "stats", Err: err}
	}

	err := s.db.WithContext(ctx).Model(&database.CacheEntry{}).
		Where("expires_at > ?", time.Now()).
		Count(&active).Error
	if err != nil {
		return StoreStats{}, &CacheError{Op: "stats", Err: err}
	}

	return StoreStats{Total: total, Active: active}, nil
}

// Ping 探活
func (s *DBStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 连接由外部管理，此处无资源需要释放
func (s *DBStore) Close() error {
	return nil
}
