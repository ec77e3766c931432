package database

import (
	"fmt"
	"time"

	"github.com/weiwangfds/flashcal/internal/logger"
	"gorm.io/gorm"
)

// 集合名称
const (
	CollectionPlans          = "plans"
	CollectionMonthlyReports = "monthly_reports"
	CollectionWeeklyReports  = "weekly_reports"
	CollectionSystem         = "system"
)

// CurrentSchemaVersion 当前程序期望的结构版本
const CurrentSchemaVersion = 3

// SchemaVersion 已应用的结构版本记录
type SchemaVersion struct {
	Version   int `gorm:"primaryKey;autoIncrement:false"`
	AppliedAt time.Time
}

// TableName 版本记录表
func (SchemaVersion) TableName() string {
	return "schema_versions"
}

type collection struct {
	name  string
	model interface{}
}

// migration 某一版本新增的集合，只增不改
type migration struct {
	version     int
	collections []collection
}

var migrations = []migration{
	{version: 1, collections: []collection{
		{CollectionPlans, &WorkPlan{}},
		{CollectionMonthlyReports, &MonthlyAnalysisData{}},
	}},
	{version: 2, collections: []collection{
		{CollectionWeeklyReports, &WeeklyReportData{}},
	}},
	{version: 3, collections: []collection{
		{CollectionSystem, &SystemEntry{}},
	}},
}

// Migrate 将存储结构升级到目标版本
// 仅创建缺失的集合，已有集合及其数据保持原样；持久化版本高于目标时不做任何改动
// 参数:
//   - db: GORM数据库连接实例
//   - target: 目标版本
//
// 返回值:
//   - error: 迁移失败时返回错误信息
func Migrate(db *gorm.DB, target int) error {
	m := db.Migrator()
	if !m.HasTable(&SchemaVersion{}) {
		if err := m.CreateTable(&SchemaVersion{}); err != nil {
			return fmt.Errorf("failed to create schema_versions: %w", err)
		}
	}

	current, err := PersistedVersion(db)
	if err != nil {
		return err
	}
	if current > target {
		logger.Warnf("[结构迁移] 持久化版本 %d 高于程序版本 %d，跳过迁移", current, target)
		return nil
	}

	for _, mig := range migrations {
		if mig.version <= current || mig.version > target {
			continue
		}
		for _, c := range mig.collections {
			if m.HasTable(c.name) {
				continue
			}
			if err := m.CreateTable(c.model); err != nil {
				return fmt.Errorf("failed to create collection %s (v%d): %w", c.name, mig.version, err)
			}
			logger.Infof("[结构迁移] 创建集合 %s (v%d)", c.name, mig.version)
		}
		if err := db.Create(&SchemaVersion{Version: mig.version, AppliedAt: time.Now()}).Error; err != nil {
			return fmt.Errorf("failed to record schema version %d: %w", mig.version, err)
		}
	}

	logger.Debugf("[结构迁移] 结构版本 %d -> %d", current, target)
	return nil
}

// PersistedVersion 读取已持久化的最高结构版本，从未迁移过时为0
func PersistedVersion(db *gorm.DB) (int, error) {
	if !db.Migrator().HasTable(&SchemaVersion{}) {
		return 0, nil
	}
	var version int
	if err := db.Model(&SchemaVersion{}).Select("COALESCE(MAX(version), 0)").Scan(&version).Error; err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// HasCollection 集合是否存在；其他组件据此把缺失的集合当作空集合处理
func HasCollection(db *gorm.DB, name string) bool {
	return db.Migrator().HasTable(name)
}
