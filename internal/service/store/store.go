// Package store 提供主存储：工作计划、月度与周度报告以及系统元数据的读写
// 所有写操作都是单个事务，事务之间不做跨集合回滚
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/weiwangfds/flashcal/internal/database"
	apperrors "github.com/weiwangfds/flashcal/internal/errors"
	"github.com/weiwangfds/flashcal/internal/logger"
	"github.com/weiwangfds/flashcal/internal/metrics"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Replicator 在计划保存提交后接收快照
// 实现必须立即返回，复制结果不得影响保存结果
type Replicator interface {
	Replicate(plans []database.WorkPlan, settings json.RawMessage)
}

// Store 主存储接口
type Store interface {
	// GetAllPlans 按保存时的顺序返回全部计划
	GetAllPlans(ctx context.Context) ([]database.WorkPlan, error)

	// SavePlans 用给定列表整体替换计划集合，没有ID的计划被丢弃
	// 开始与结束时间按UTC保存，读回的是同一时刻的UTC表示
	// settings 非空时一并保存；提交成功后触发镜像复制
	SavePlans(ctx context.Context, plans []database.WorkPlan, settings json.RawMessage) error

	// SaveMonthlyReport 按ID插入或替换月度报告，ID为空时生成新ID并回写
	SaveMonthlyReport(ctx context.Context, report *database.MonthlyAnalysisData) error

	// GetAllMonthlyReports 按时间戳降序返回全部月度报告
	GetAllMonthlyReports(ctx context.Context) ([]database.MonthlyAnalysisData, error)

	// DeleteMonthlyReport 删除月度报告，ID不存在时返回 ErrNotFound
	DeleteMonthlyReport(ctx context.Context, id string) error

	// SaveWeeklyReport 按ID插入或替换周报，时间戳为零时填入当前时间
	SaveWeeklyReport(ctx context.Context, report *database.WeeklyReportData) error

	// GetAllWeeklyReports 按时间戳降序返回全部周报
	GetAllWeeklyReports(ctx context.Context) ([]database.WeeklyReportData, error)

	// DeleteWeeklyReport 删除周报
	DeleteWeeklyReport(ctx context.Context, id string) error

	// ClearAll 清空计划与报告，系统元数据保留
	ClearAll(ctx context.Context) error

	// GetSettings 返回最近保存的设置，没有时为 nil
	GetSettings(ctx context.Context) (json.RawMessage, error)

	// GetFileMirrorHandle 返回外部镜像句柄，没有时为 nil
	GetFileMirrorHandle(ctx context.Context) (*database.MirrorHandle, error)

	// SetFileMirrorHandle 保存外部镜像句柄
	SetFileMirrorHandle(ctx context.Context, handle *database.MirrorHandle) error

	// ClearFileMirrorHandle 删除外部镜像句柄
	ClearFileMirrorHandle(ctx context.Context) error
}

// GormStore 基于GORM的主存储实现
type GormStore struct {
	db         *gorm.DB
	replicator Replicator
}

// New 创建主存储
// 参数:
//   - db: 已完成结构迁移的数据库连接
//
// 返回值:
//   - *GormStore: 主存储实例，复制器需通过 SetReplicator 另行设置
func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// SetReplicator 设置计划保存后的复制器，nil 表示关闭复制
func (s *GormStore) SetReplicator(r Replicator) {
	s.replicator = r
}

// GetAllPlans 按保存时的顺序返回全部计划
func (s *GormStore) GetAllPlans(ctx context.Context) ([]database.WorkPlan, error) {
	plans := []database.WorkPlan{}
	if !s.hasCollection(database.CollectionPlans) {
		return plans, nil
	}
	err := s.db.WithContext(ctx).Order("position ASC").Find(&plans).Error
	metrics.RecordStoreOperation("get_plans", err)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrPersistenceFailed, err, "read plans")
	}
	return plans, nil
}

// SavePlans 用给定列表整体替换计划集合，时间统一转为UTC
func (s *GormStore) SavePlans(ctx context.Context, plans []database.WorkPlan, settings json.RawMessage) error {
	if settings != nil && !json.Valid(settings) {
		return apperrors.Wrapf(apperrors.ErrInvalidParams, nil, "settings is not valid JSON")
	}
	if !s.hasCollection(database.CollectionPlans) {
		return nil
	}

	kept := preparePlans(plans)
	saveSettings := settings != nil && s.hasCollection(database.CollectionSystem)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&database.WorkPlan{}).Error; err != nil {
			return err
		}
		if len(kept) > 0 {
			if err := tx.CreateInBatches(kept, 100).Error; err != nil {
				return err
			}
		}
		if saveSettings {
			return putSystem(tx, database.SystemKeySettings, settings)
		}
		return nil
	})
	metrics.RecordStoreOperation("save_plans", err)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistenceFailed, err, "save %d plans", len(kept))
	}
	logger.Debugf("[主存储] 已保存 %d 个计划 (丢弃 %d 个无ID计划)", len(kept), len(plans)-len(kept))

	s.replicate(ctx, kept, settings)
	return nil
}

// replicate 把提交后的计划交给镜像，settings 为 nil 时使用已保存的设置
func (s *GormStore) replicate(ctx context.Context, plans []database.WorkPlan, settings json.RawMessage) {
	if s.replicator == nil {
		return
	}
	if settings == nil {
		if stored, err := s.GetSettings(ctx); err == nil {
			settings = stored
		}
	}
	s.replicator.Replicate(plans, settings)
}

// preparePlans 丢弃无ID计划，重复ID取最后一次出现的内容并保留首次出现的位置
func preparePlans(plans []database.WorkPlan) []database.WorkPlan {
	kept := make([]database.WorkPlan, 0, len(plans))
	index := make(map[string]int, len(plans))
	for _, p := range plans {
		if p.ID == "" {
			continue
		}
		p.StartDate = p.StartDate.UTC()
		p.EndDate = p.EndDate.UTC()
		if i, ok := index[p.ID]; ok {
			p.Position = i
			kept[i] = p
			continue
		}
		p.Position = len(kept)
		index[p.ID] = len(kept)
		kept = append(kept, p)
	}
	return kept
}

// SaveMonthlyReport 按ID插入或替换月度报告
func (s *GormStore) SaveMonthlyReport(ctx context.Context, report *database.MonthlyAnalysisData) error {
	if report == nil {
		return apperrors.Wrapf(apperrors.ErrInvalidParams, nil, "monthly report is nil")
	}
	if !s.hasCollection(database.CollectionMonthlyReports) {
		return nil
	}
	if report.ID == "" {
		report.ID = uuid.New().String()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := nextSeq(tx, &database.MonthlyAnalysisData{}, report.ID)
		if err != nil {
			return err
		}
		report.Seq = seq
		return tx.Save(report).Error
	})
	metrics.RecordStoreOperation("save_monthly_report", err)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistenceFailed, err, "save monthly report %s", report.ID)
	}
	return nil
}

// GetAllMonthlyReports 按时间戳降序返回全部月度报告，时间戳相同时先写入的在前
func (s *GormStore) GetAllMonthlyReports(ctx context.Context) ([]database.MonthlyAnalysisData, error) {
	reports := []database.MonthlyAnalysisData{}
	if !s.hasCollection(database.CollectionMonthlyReports) {
		return reports, nil
	}
	err := s.db.WithContext(ctx).Order("timestamp DESC").Order("seq ASC").Find(&reports).Error
	metrics.RecordStoreOperation("get_monthly_reports", err)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrPersistenceFailed, err, "read monthly reports")
	}
	return reports, nil
}

// DeleteMonthlyReport 删除月度报告
func (s *GormStore) DeleteMonthlyReport(ctx context.Context, id string) error {
	return s.deleteByID(ctx, database.CollectionMonthlyReports, &database.MonthlyAnalysisData{}, id)
}

// SaveWeeklyReport 按ID插入或替换周报
func (s *GormStore) SaveWeeklyReport(ctx context.Context, report *database.WeeklyReportData) error {
	if report == nil {
		return apperrors.Wrapf(apperrors.ErrInvalidParams, nil, "weekly report is nil")
	}
	if !s.hasCollection(database.CollectionWeeklyReports) {
		return nil
	}
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.Timestamp == 0 {
		report.Timestamp = time.Now().UnixMilli()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := nextSeq(tx, &database.WeeklyReportData{}, report.ID)
		if err != nil {
			return err
		}
		report.Seq = seq
		return tx.Save(report).Error
	})
	metrics.RecordStoreOperation("save_weekly_report", err)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistenceFailed, err, "save weekly report %s", report.ID)
	}
	return nil
}

// GetAllWeeklyReports 按时间戳降序返回全部周报
func (s *GormStore) GetAllWeeklyReports(ctx context.Context) ([]database.WeeklyReportData, error) {
	reports := []database.WeeklyReportData{}
	if !s.hasCollection(database.CollectionWeeklyReports) {
		return reports, nil
	}
	err := s.db.WithContext(ctx).Order("timestamp DESC").Order("seq ASC").Find(&reports).Error
	metrics.RecordStoreOperation("get_weekly_reports", err)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrPersistenceFailed, err, "read weekly reports")
	}
	return reports, nil
}

// DeleteWeeklyReport 删除周报
func (s *GormStore) DeleteWeeklyReport(ctx context.Context, id string) error {
	return s.deleteByID(ctx, database.CollectionWeeklyReports, &database.WeeklyReportData{}, id)
}

// ClearAll 清空计划与报告
func (s *GormStore) ClearAll(ctx context.Context) error {
	candidates := map[string]interface{}{
		database.CollectionPlans:          &database.WorkPlan{},
		database.CollectionMonthlyReports: &database.MonthlyAnalysisData{},
		database.CollectionWeeklyReports:  &database.WeeklyReportData{},
	}
	// 单连接模型下事务内不能再查询表结构
	models := make([]interface{}, 0, len(candidates))
	for name, model := range candidates {
		if s.hasCollection(name) {
			models = append(models, model)
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range models {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	metrics.RecordStoreOperation("clear_all", err)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistenceFailed, err, "clear store")
	}
	logger.Info("[主存储] 已清空计划与报告")

	// 镜像同步为空快照，启动恢复不会找回已清空的计划
	s.replicate(ctx, []database.WorkPlan{}, nil)
	return nil
}

// GetSettings 返回最近保存的设置
func (s *GormStore) GetSettings(ctx context.Context) (json.RawMessage, error) {
	value, err := s.getSystem(ctx, database.SystemKeySettings)
	if err != nil || value == nil {
		return nil, err
	}
	return json.RawMessage(value), nil
}

// GetFileMirrorHandle 返回外部镜像句柄
func (s *GormStore) GetFileMirrorHandle(ctx context.Context) (*database.MirrorHandle, error) {
	value, err := s.getSystem(ctx, database.SystemKeyFileMirrorHandle)
	if err != nil || value == nil {
		return nil, err
	}
	var handle database.MirrorHandle
	if err := json.Unmarshal(value, &handle); err != nil {
		logger.Warnf("[主存储] 镜像句柄无法解析，视为未设置: %v", err)
		return nil, nil
	}
	return &handle, nil
}

// SetFileMirrorHandle 保存外部镜像句柄
func (s *GormStore) SetFileMirrorHandle(ctx context.Context, handle *database.MirrorHandle) error {
	if handle == nil {
		return s.ClearFileMirrorHandle(ctx)
	}
	if !s.hasCollection(database.CollectionSystem) {
		return nil
	}
	value, err := json.Marshal(handle)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrInvalidParams, err, "encode mirror handle")
	}
	err = putSystem(s.db.WithContext(ctx), database.SystemKeyFileMirrorHandle, value)
	metrics.RecordStoreOperation("set_mirror_handle", err)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistenceFailed, err, "save mirror handle")
	}
	return nil
}

// ClearFileMirrorHandle 删除外部镜像句柄
func (s *GormStore) ClearFileMirrorHandle(ctx context.Context) error {
	if !s.hasCollection(database.CollectionSystem) {
		return nil
	}
	err := s.db.WithContext(ctx).Delete(&database.SystemEntry{}, "key = ?", database.SystemKeyFileMirrorHandle).Error
	metrics.RecordStoreOperation("clear_mirror_handle", err)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistenceFailed, err, "clear mirror handle")
	}
	return nil
}

func (s *GormStore) getSystem(ctx context.Context, key string) (datatypes.JSON, error) {
	if !s.hasCollection(database.CollectionSystem) {
		return nil, nil
	}
	var entry database.SystemEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrPersistenceFailed, err, "read system key %s", key)
	}
	return entry.Value, nil
}

func putSystem(tx *gorm.DB, key string, value []byte) error {
	entry := database.SystemEntry{
		Key:       key,
		Value:     datatypes.JSON(value),
		UpdatedAt: time.Now().UTC(),
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

// nextSeq 已存在的记录沿用原序号，新记录取当前最大序号加一
func nextSeq(tx *gorm.DB, model interface{}, id string) (int64, error) {
	var existing []int64
	if err := tx.Model(model).Where("id = ?", id).Limit(1).Pluck("seq", &existing).Error; err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return existing[0], nil
	}

	var maxSeq int64
	if err := tx.Model(model).Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
		return 0, err
	}
	return maxSeq + 1, nil
}

func (s *GormStore) deleteByID(ctx context.Context, collection string, model interface{}, id string) error {
	if !s.hasCollection(collection) {
		return apperrors.Wrapf(apperrors.ErrNotFound, nil, "%s/%s", collection, id)
	}
	result := s.db.WithContext(ctx).Delete(model, "id = ?", id)
	metrics.RecordStoreOperation("delete_"+collection, result.Error)
	if result.Error != nil {
		return apperrors.Wrapf(apperrors.ErrPersistenceFailed, result.Error, "delete %s/%s", collection, id)
	}
	if result.RowsAffected == 0 {
		return apperrors.Wrapf(apperrors.ErrNotFound, nil, "%s/%s", collection, id)
	}
	return nil
}

func (s *GormStore) hasCollection(name string) bool {
	if database.HasCollection(s.db, name) {
		return true
	}
	logger.Warnf("[主存储] 集合 %s 不存在，按空集合处理", name)
	return false
}
