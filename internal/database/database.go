// Package database 提供本地主存储的连接、数据模型与结构版本管理
package database

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/weiwangfds/flashcal/config"
	apperrors "github.com/weiwangfds/flashcal/internal/errors"
	"github.com/weiwangfds/flashcal/internal/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sqlitePragmas WAL模式和其他SQLite优化选项
const sqlitePragmas = "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"

// Open 打开主存储并执行结构迁移
// 存储介质无法打开时返回 ErrStoreUnavailable
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite", "":
		if err := ensureDir(cfg.DSN); err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrStoreUnavailable, err, "create database directory")
		}
		dialector = sqlite.Open(withPragmas(cfg.DSN))
	default:
		return nil, apperrors.Wrapf(apperrors.ErrStoreUnavailable, nil, "unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(parseLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrStoreUnavailable, err, "open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrStoreUnavailable, err, "get underlying sql.DB")
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, apperrors.Wrapf(apperrors.ErrStoreUnavailable, err, "ping database")
	}

	// 单写者模型，限制为一个连接以避免SQLite锁冲突
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	if err := Migrate(db, CurrentSchemaVersion); err != nil {
		_ = sqlDB.Close()
		return nil, apperrors.Wrapf(apperrors.ErrStoreUnavailable, err, "migrate schema")
	}

	logger.Infof("[主存储] 数据库已打开: %s (结构版本 %d)", cfg.DSN, CurrentSchemaVersion)
	return db, nil
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqlitePragmas
	}
	return dsn + "?" + sqlitePragmas
}

func parseLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
