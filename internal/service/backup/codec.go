// Package backup 提供备份快照包的编解码以及导出、导入、恢复功能
// 快照包同时用于手动导出导入和镜像同步
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/weiwangfds/flashcal/internal/database"
	apperrors "github.com/weiwangfds/flashcal/internal/errors"
)

// CurrentVersion 快照包的结构版本，与主存储结构版本一致
const CurrentVersion = database.CurrentSchemaVersion

// BackupData 快照包：全部计划和可选的设置
type BackupData struct {
	Version  int                 `json:"version"`
	Date     time.Time           `json:"date"`
	Plans    []database.WorkPlan `json:"plans"`
	Settings json.RawMessage     `json:"settings,omitempty"`
}

// Encode 打包计划和设置，版本与时间在每次编码时重新生成
func Encode(plans []database.WorkPlan, settings json.RawMessage) *BackupData {
	if plans == nil {
		plans = []database.WorkPlan{}
	}
	return &BackupData{
		Version:  CurrentVersion,
		Date:     time.Now().UTC(),
		Plans:    plans,
		Settings: settings,
	}
}

// Marshal 序列化为UTF-8 JSON，pretty 为 true 时缩进输出
func Marshal(b *BackupData, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(b, "", "  ")
	}
	return json.Marshal(b)
}

// Decode 解析快照包
// 根节点必须是对象且 plans 为数组，否则返回 ErrInvalidFormat；版本高于当前支持版本时返回 ErrUnsupportedVersion
func Decode(data []byte) (*BackupData, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidFormat, err, "parse backup")
	}
	if root == nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidFormat, nil, "backup root is not an object")
	}

	rawPlans, ok := root["plans"]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidFormat, nil, "plans is missing")
	}
	if trimmed := bytes.TrimSpace(rawPlans); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidFormat, nil, "plans is not an array")
	}

	var b BackupData
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidFormat, err, "decode backup")
	}
	if b.Version > CurrentVersion {
		return nil, apperrors.Wrapf(apperrors.ErrUnsupportedVersion, nil, "backup version %d > %d", b.Version, CurrentVersion)
	}
	if isNullJSON(b.Settings) {
		b.Settings = nil
	}
	return &b, nil
}

// ExportFileName 导出文件名 flash-calendar-backup-YYYY-MM-DD.json
func ExportFileName(t time.Time) string {
	return fmt.Sprintf("flash-calendar-backup-%s.json", t.Format("2006-01-02"))
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
