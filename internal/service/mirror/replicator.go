// Package mirror 在每次计划保存后把快照异步复制到两个独立的持久化后端
// 本地镜像写在应用私有目录，外部镜像写到用户授权的文件或对象存储
// 复制是尽力而为的：失败只记录日志和指标，永远不会影响保存结果
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/weiwangfds/flashcal/config"
	"github.com/weiwangfds/flashcal/internal/database"
	apperrors "github.com/weiwangfds/flashcal/internal/errors"
	"github.com/weiwangfds/flashcal/internal/logger"
	"github.com/weiwangfds/flashcal/internal/metrics"
	"github.com/weiwangfds/flashcal/internal/service/backup"
	"golang.org/x/sync/semaphore"
)

// 镜像层级
const (
	TierLocal    = "local"
	TierExternal = "external"
)

// HandleStore 镜像句柄的持久化，由主存储实现
type HandleStore interface {
	GetFileMirrorHandle(ctx context.Context) (*database.MirrorHandle, error)
	SetFileMirrorHandle(ctx context.Context, handle *database.MirrorHandle) error
	ClearFileMirrorHandle(ctx context.Context) error
}

// Status 镜像状态
type Status struct {
	Enabled        bool                     `json:"enabled"`
	LocalPath      string                   `json:"localPath"`
	LocalUpdatedAt *time.Time               `json:"localUpdatedAt,omitempty"`
	Handle         *database.MirrorHandle   `json:"handle,omitempty"`
	Permission     database.PermissionState `json:"permission,omitempty"`
}

// Replicator 镜像复制器
type Replicator struct {
	cfg     config.MirrorConfig
	local   *LocalMirror
	handles HandleStore
	targets TargetFactory
	timeout time.Duration

	localTier    *tier
	externalTier *tier
	wg           sync.WaitGroup
}

// NewReplicator 创建镜像复制器
// 参数:
//   - cfg: 镜像配置
//   - local: 本地镜像
//   - handles: 外部镜像句柄来源，通常是主存储
//   - targets: 外部目标工厂
func NewReplicator(cfg config.MirrorConfig, local *LocalMirror, handles HandleStore, targets TargetFactory) *Replicator {
	timeout := time.Duration(cfg.WriteTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := &Replicator{
		cfg:     cfg,
		local:   local,
		handles: handles,
		targets: targets,
		timeout: timeout,
	}
	r.localTier = newTier(TierLocal, r.writeLocal)
	r.externalTier = newTier(TierExternal, r.writeExternal)
	return r
}

// Replicate 调度两个镜像写入后立即返回
// 两个层级互不等待、互不影响，同一层级正在写入时新快照替换尚未开始的旧快照
func (r *Replicator) Replicate(plans []database.WorkPlan, settings json.RawMessage) {
	if !r.cfg.Enabled {
		return
	}

	bundle := backup.Encode(plans, settings)
	compact, err := backup.Marshal(bundle, false)
	if err != nil {
		logger.Errorf("[镜像同步] 快照编码失败: %v", err)
		return
	}
	pretty, err := backup.Marshal(bundle, true)
	if err != nil {
		logger.Errorf("[镜像同步] 快照编码失败: %v", err)
		return
	}

	r.localTier.submit(&r.wg, compact)
	r.externalTier.submit(&r.wg, pretty)
}

// Wait 等待所有已调度的写入完成
func (r *Replicator) Wait() {
	r.wg.Wait()
}

func (r *Replicator) writeLocal(data []byte) (string, error) {
	if r.local == nil {
		return metrics.ResultSkipped, nil
	}
	if err := r.local.Write(data); err != nil {
		return metrics.ResultError, err
	}
	return metrics.ResultSuccess, nil
}

func (r *Replicator) writeExternal(data []byte) (string, error) {
	if r.handles == nil || r.targets == nil {
		return metrics.ResultSkipped, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	handle, err := r.handles.GetFileMirrorHandle(ctx)
	if err != nil {
		return metrics.ResultError, err
	}
	if handle == nil {
		return metrics.ResultSkipped, nil
	}

	target, err := r.targets.NewTarget(handle)
	if err != nil {
		return metrics.ResultError, err
	}

	state, err := target.QueryPermission(ctx)
	if err != nil || state != database.PermissionGranted {
		logger.WithFields(map[string]interface{}{
			"target":     handle.String(),
			"permission": state,
		}).Infof("[镜像同步] 外部镜像未授权，本轮跳过: %v", err)
		return metrics.ResultSkipped, nil
	}

	if err := target.Write(ctx, data); err != nil {
		return metrics.ResultError, err
	}
	return metrics.ResultSuccess, nil
}

// RequestFileMirror 由用户显式触发，选择并授权外部镜像目标
// 选择器不可用返回 ErrCapabilityUnsupported，受限环境返回 ErrCapabilityDenied，用户取消返回 (nil, nil)
func (r *Replicator) RequestFileMirror(ctx context.Context, picker Picker) (*database.MirrorHandle, error) {
	if picker == nil {
		return nil, apperrors.Wrapf(apperrors.ErrCapabilityUnsupported, nil, "no mirror target picker")
	}

	handle, err := picker.Pick(ctx)
	switch {
	case errors.Is(err, ErrPickerCancelled):
		logger.Info("[镜像同步] 用户取消了外部镜像选择")
		return nil, nil
	case errors.Is(err, ErrPickerUnavailable):
		return nil, apperrors.Wrap(apperrors.ErrCapabilityUnsupported, err)
	case errors.Is(err, ErrPickerRestricted):
		return nil, apperrors.Wrap(apperrors.ErrCapabilityDenied, err)
	case err != nil:
		return nil, apperrors.Wrapf(apperrors.ErrInvalidParams, err, "pick mirror target")
	case handle == nil:
		return nil, nil
	}

	grant(handle)
	if err := r.handles.SetFileMirrorHandle(ctx, handle); err != nil {
		return nil, err
	}
	logger.Infof("[镜像同步] 外部镜像已授权: %s", handle)
	return handle, nil
}

// RevokeFileMirror 撤销外部镜像授权，句柄保留以便界面提示重新授权
func (r *Replicator) RevokeFileMirror(ctx context.Context) error {
	handle, err := r.handles.GetFileMirrorHandle(ctx)
	if err != nil || handle == nil {
		return err
	}
	handle.Permission = database.PermissionDenied
	if err := r.handles.SetFileMirrorHandle(ctx, handle); err != nil {
		return err
	}
	logger.Infof("[镜像同步] 外部镜像授权已撤销: %s", handle)
	return nil
}

// ForgetFileMirror 删除外部镜像句柄
func (r *Replicator) ForgetFileMirror(ctx context.Context) error {
	return r.handles.ClearFileMirrorHandle(ctx)
}

// Status 返回镜像状态，外部目标的授权会实时查询
func (r *Replicator) Status(ctx context.Context) (*Status, error) {
	status := &Status{Enabled: r.cfg.Enabled}
	if r.local != nil {
		status.LocalPath = r.local.Path()
		if t := r.local.ModTime(); !t.IsZero() {
			status.LocalUpdatedAt = &t
		}
	}

	handle, err := r.handles.GetFileMirrorHandle(ctx)
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return status, nil
	}
	status.Handle = redact(handle)
	status.Permission = handle.Permission

	if target, err := r.targets.NewTarget(handle); err == nil {
		if state, err := target.QueryPermission(ctx); err == nil {
			status.Permission = state
		} else {
			status.Permission = database.PermissionPrompt
		}
	}
	return status, nil
}

// LoadLocalMirror 读取并解码本地镜像，镜像不存在时返回 (nil, nil)
func (r *Replicator) LoadLocalMirror(ctx context.Context) (*backup.BackupData, error) {
	if r.local == nil {
		return nil, nil
	}
	data, err := r.local.Read()
	if err != nil || data == nil {
		return nil, err
	}
	return backup.Decode(data)
}

// LoadExternalMirror 读取并解码外部镜像，仅在授权有效时读取
func (r *Replicator) LoadExternalMirror(ctx context.Context) (*backup.BackupData, error) {
	handle, err := r.handles.GetFileMirrorHandle(ctx)
	if err != nil || handle == nil {
		return nil, err
	}
	target, err := r.targets.NewTarget(handle)
	if err != nil {
		return nil, err
	}
	if state, err := target.QueryPermission(ctx); err != nil || state != database.PermissionGranted {
		return nil, nil
	}
	data, err := target.Read(ctx)
	if err != nil || data == nil {
		return nil, err
	}
	return backup.Decode(data)
}

// redact 去掉凭据中的密钥
func redact(handle *database.MirrorHandle) *database.MirrorHandle {
	cp := *handle
	if cp.ObjectStore != nil {
		osc := *cp.ObjectStore
		osc.SecretKey = ""
		cp.ObjectStore = &osc
	}
	return &cp
}

// tier 单个镜像层级的单写者槽位
// pending 只保留最新的快照，写入完成后若有新快照则继续写
type tier struct {
	name  string
	write func(data []byte) (string, error)
	slot  *semaphore.Weighted

	mu         sync.Mutex
	pending    []byte
	hasPending bool
}

func newTier(name string, write func([]byte) (string, error)) *tier {
	return &tier{
		name:  name,
		write: write,
		slot:  semaphore.NewWeighted(1),
	}
}

func (t *tier) submit(wg *sync.WaitGroup, data []byte) {
	t.mu.Lock()
	if t.hasPending {
		logger.Debugf("[镜像同步] %s 镜像的待写快照被新快照替换", t.name)
	}
	t.pending = data
	t.hasPending = true
	t.mu.Unlock()

	if !t.slot.TryAcquire(1) {
		return
	}
	wg.Add(1)
	go t.drain(wg)
}

func (t *tier) drain(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		t.mu.Lock()
		if !t.hasPending {
			t.slot.Release(1)
			t.mu.Unlock()
			return
		}
		data := t.pending
		t.pending = nil
		t.hasPending = false
		t.mu.Unlock()

		t.run(data)
	}
}

func (t *tier) run(data []byte) {
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("[镜像同步] %s 镜像写入发生panic: %v", t.name, p)
			metrics.RecordMirrorWrite(t.name, metrics.ResultError, 0)
		}
	}()

	start := time.Now()
	result, err := t.write(data)
	elapsed := time.Since(start)
	metrics.RecordMirrorWrite(t.name, result, elapsed)

	switch {
	case err != nil:
		logger.Errorf("[镜像同步] %s 镜像写入失败: %v", t.name, err)
	case result == metrics.ResultSuccess:
		logger.Debugf("[镜像同步] %s 镜像写入完成 (%d 字节, %v)", t.name, len(data), elapsed)
	}
}
