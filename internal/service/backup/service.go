package backup

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/weiwangfds/flashcal/internal/database"
	apperrors "github.com/weiwangfds/flashcal/internal/errors"
	"github.com/weiwangfds/flashcal/internal/logger"
)

// MaxImportSize 导入内容的大小上限
const MaxImportSize = 32 << 20

// RestoreMode 恢复方式
type RestoreMode string

const (
	// RestoreReplace 用快照包中的计划整体替换
	RestoreReplace RestoreMode = "replace"
	// RestoreMerge 按ID合并，快照包中的计划覆盖同ID计划，其余计划保留
	RestoreMerge RestoreMode = "merge"
)

// PlanStore 备份服务需要的主存储能力
type PlanStore interface {
	GetAllPlans(ctx context.Context) ([]database.WorkPlan, error)
	SavePlans(ctx context.Context, plans []database.WorkPlan, settings json.RawMessage) error
	GetSettings(ctx context.Context) (json.RawMessage, error)
}

// Service 备份服务：导出、导入与恢复
type Service struct {
	store PlanStore
	fs    afero.Fs
	now   func() time.Time
}

// NewService 创建备份服务
// 参数:
//   - store: 主存储
//   - fs: 导出文件所在的文件系统
func NewService(store PlanStore, fs afero.Fs) *Service {
	return &Service{store: store, fs: fs, now: time.Now}
}

// ExportData 读取全部计划和设置并编码为带缩进的快照包
// 返回值:
//   - []byte: 快照内容
//   - string: 建议的文件名
//   - error: 读取主存储失败时返回
func (s *Service) ExportData(ctx context.Context) ([]byte, string, error) {
	plans, err := s.store.GetAllPlans(ctx)
	if err != nil {
		return nil, "", err
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, "", err
	}

	bundle := Encode(plans, settings)
	data, err := Marshal(bundle, true)
	if err != nil {
		return nil, "", apperrors.Wrapf(apperrors.ErrInternalServer, err, "encode backup")
	}
	logger.Infof("[备份] 导出 %d 个计划", len(bundle.Plans))
	return data, ExportFileName(s.now()), nil
}

// ExportToFile 导出到指定目录，返回写入的文件路径
func (s *Service) ExportToFile(ctx context.Context, dir string) (string, error) {
	data, name, err := s.ExportData(ctx)
	if err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Wrapf(apperrors.ErrInternalServer, err, "create export directory")
	}
	path := filepath.Join(dir, name)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return "", apperrors.Wrapf(apperrors.ErrInternalServer, err, "write export file")
	}
	logger.Infof("[备份] 已导出到 %s", path)
	return path, nil
}

// ImportData 读取并解码用户选择的备份文件，不修改主存储
// 内容无法解析、缺少计划数组或版本过高时返回 nil 快照包和对应错误
func (s *Service) ImportData(ctx context.Context, r io.Reader) (*BackupData, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImportSize+1))
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidFormat, err, "read backup")
	}
	if len(data) > MaxImportSize {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidFormat, nil, "backup exceeds %d bytes", MaxImportSize)
	}

	bundle, err := Decode(data)
	if err != nil {
		logger.Warnf("[备份] 导入内容无效: %v", err)
		return nil, err
	}
	logger.Infof("[备份] 解析到 %d 个计划 (版本 %d)", len(bundle.Plans), bundle.Version)
	return bundle, nil
}

// Restore 把快照包写入主存储，写入经过 SavePlans，镜像会随之刷新
func (s *Service) Restore(ctx context.Context, bundle *BackupData, mode RestoreMode) error {
	if bundle == nil {
		return apperrors.Wrapf(apperrors.ErrInvalidParams, nil, "backup is empty")
	}

	plans := bundle.Plans
	switch mode {
	case RestoreReplace, "":
	case RestoreMerge:
		current, err := s.store.GetAllPlans(ctx)
		if err != nil {
			return err
		}
		plans = mergePlans(current, bundle.Plans)
	default:
		return apperrors.Wrapf(apperrors.ErrInvalidParams, nil, "unknown restore mode %q", mode)
	}

	if err := s.store.SavePlans(ctx, plans, bundle.Settings); err != nil {
		return err
	}
	logger.Infof("[备份] 已恢复 %d 个计划 (%s)", len(plans), modeName(mode))
	return nil
}

// mergePlans 保留现有顺序，同ID的计划被替换，新计划追加在末尾
func mergePlans(current, incoming []database.WorkPlan) []database.WorkPlan {
	index := make(map[string]int, len(current))
	merged := make([]database.WorkPlan, 0, len(current)+len(incoming))
	for _, p := range current {
		index[p.ID] = len(merged)
		merged = append(merged, p)
	}
	for _, p := range incoming {
		if p.ID == "" {
			continue
		}
		if i, ok := index[p.ID]; ok {
			merged[i] = p
			continue
		}
		index[p.ID] = len(merged)
		merged = append(merged, p)
	}
	return merged
}

func modeName(mode RestoreMode) string {
	if mode == "" {
		return string(RestoreReplace)
	}
	return string(mode)
}
