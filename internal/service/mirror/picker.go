package mirror

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/weiwangfds/flashcal/internal/database"
)

// 目标选择的结果
var (
	// ErrPickerUnavailable 宿主环境不提供目标选择能力
	ErrPickerUnavailable = errors.New("mirror target picker is unavailable")
	// ErrPickerRestricted 受限的嵌入环境拒绝授予能力
	ErrPickerRestricted = errors.New("mirror target picker is restricted")
	// ErrPickerCancelled 用户取消了选择
	ErrPickerCancelled = errors.New("mirror target selection cancelled")
)

// DefaultMirrorFileName 外部镜像的默认文件名或对象键
const DefaultMirrorFileName = "flash-calendar-mirror.json"

// Picker 由用户显式触发的镜像目标选择
type Picker interface {
	Pick(ctx context.Context) (*database.MirrorHandle, error)
}

// PathPicker 用户给出的本地文件路径，路径为目录时使用默认文件名
type PathPicker struct {
	Fs   afero.Fs
	Path string
}

// Pick 校验路径并生成文件句柄
func (p *PathPicker) Pick(ctx context.Context) (*database.MirrorHandle, error) {
	path := strings.TrimSpace(p.Path)
	if path == "" {
		return nil, ErrPickerCancelled
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if info, err := p.Fs.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultMirrorFileName)
	}
	if info, err := p.Fs.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("mirror directory %s does not exist", filepath.Dir(path))
	}

	return &database.MirrorHandle{
		Kind:     database.MirrorKindFile,
		Name:     filepath.Base(path),
		Location: path,
	}, nil
}

// ObjectStorePicker 用户给出的对象存储凭据，选择时会先测试连接
type ObjectStorePicker struct {
	Kind    database.MirrorKind
	Key     string
	Config  database.ObjectStoreConfig
	Factory ObjectStoreFactory
}

// Pick 测试连接并生成对象存储句柄
func (p *ObjectStorePicker) Pick(ctx context.Context) (*database.MirrorHandle, error) {
	if p.Factory == nil {
		return nil, ErrPickerUnavailable
	}
	if p.Config.Bucket == "" || p.Config.AccessKey == "" {
		return nil, ErrPickerCancelled
	}

	store, err := p.Factory.Create(p.Kind, &p.Config)
	if err != nil {
		if errors.Is(err, ErrUnsupportedProvider) {
			return nil, ErrPickerUnavailable
		}
		return nil, err
	}
	if err := store.TestConnection(ctx); err != nil {
		return nil, err
	}

	key := strings.TrimPrefix(strings.TrimSpace(p.Key), "/")
	if key == "" {
		key = DefaultMirrorFileName
	}
	cfg := p.Config
	return &database.MirrorHandle{
		Kind:        p.Kind,
		Name:        fmt.Sprintf("%s/%s", cfg.Bucket, key),
		Location:    key,
		ObjectStore: &cfg,
	}, nil
}

// RestrictedPicker 受限嵌入环境下的选择器，总是拒绝
type RestrictedPicker struct{}

// Pick 总是返回 ErrPickerRestricted
func (RestrictedPicker) Pick(ctx context.Context) (*database.MirrorHandle, error) {
	return nil, ErrPickerRestricted
}

func grant(handle *database.MirrorHandle) *database.MirrorHandle {
	handle.Permission = database.PermissionGranted
	handle.GrantedAt = time.Now().UTC()
	return handle
}
