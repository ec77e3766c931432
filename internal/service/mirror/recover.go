package mirror

import (
	"context"
	"encoding/json"

	"github.com/weiwangfds/flashcal/internal/database"
	"github.com/weiwangfds/flashcal/internal/logger"
	"github.com/weiwangfds/flashcal/internal/service/backup"
)

// PlanWriter 启动恢复需要的主存储能力
type PlanWriter interface {
	GetAllPlans(ctx context.Context) ([]database.WorkPlan, error)
	SavePlans(ctx context.Context, plans []database.WorkPlan, settings json.RawMessage) error
}

// Recover 主存储没有计划时从镜像恢复，返回恢复的计划数
// 只有本地镜像缺失或无法解码时才使用外部镜像；两者都可用时取时间较新的一份
// 选中的镜像本身没有计划时不恢复任何内容
func (r *Replicator) Recover(ctx context.Context, store PlanWriter) (int, error) {
	current, err := store.GetAllPlans(ctx)
	if err != nil {
		return 0, err
	}
	if len(current) > 0 {
		return 0, nil
	}

	bundle, source := r.loadForRecovery(ctx)
	if bundle == nil || len(bundle.Plans) == 0 {
		logger.Debugf("[镜像同步] 没有可用于恢复的计划")
		return 0, nil
	}

	if err := store.SavePlans(ctx, bundle.Plans, bundle.Settings); err != nil {
		return 0, err
	}
	logger.Infof("[镜像同步] 已从%s镜像恢复 %d 个计划 (镜像时间 %s)",
		source, len(bundle.Plans), bundle.Date.Format("2006-01-02 15:04:05"))
	return len(bundle.Plans), nil
}

func (r *Replicator) loadForRecovery(ctx context.Context) (*backup.BackupData, string) {
	local, err := r.LoadLocalMirror(ctx)
	if err != nil {
		logger.Warnf("[镜像同步] 本地镜像无法读取: %v", err)
	}
	external, err := r.LoadExternalMirror(ctx)
	if err != nil {
		logger.Warnf("[镜像同步] 外部镜像无法读取: %v", err)
	}

	switch {
	case local == nil && external == nil:
		return nil, ""
	case external == nil:
		return local, TierLocal
	case local == nil:
		return external, TierExternal
	case external.Date.After(local.Date):
		return external, TierExternal
	default:
		return local, TierLocal
	}
}
