package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// =============================================================================
// 🔌 数据库连接
// =============================================================================

// Open 按驱动名打开数据库连接
//
// 支持的驱动：
//   - "sqlite"：纯 Go 实现，DSN 为文件路径或 ":memory:"
//   - "postgres"：生产环境推荐
func Open(driver, dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres)", driver)
	}

	// GORM 自带日志过于啰嗦，统一交给 zap
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database (driver=%s): %w", driver, err)
	}

	logger.Info("database opened",
		zap.String("driver", driver),
	)

	return db, nil
}

// Migrate 执行全部模型的自动迁移
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}

	logger.Info("database migration completed",
		zap.Int("models", len(AllModels())),
	)

	return nil
}
