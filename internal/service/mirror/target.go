package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/weiwangfds/flashcal/internal/database"
)

// ContentTypeJSON 镜像内容类型
const ContentTypeJSON = "application/json"

// Target 外部镜像目标
// 授权可能在两次写入之间被撤销，每次写入前都要调用 QueryPermission
type Target interface {
	// QueryPermission 查询当前是否允许写入
	QueryPermission(ctx context.Context) (database.PermissionState, error)

	// Write 覆盖写入镜像内容
	Write(ctx context.Context, data []byte) error

	// Read 读取镜像内容，不存在时返回 (nil, nil)
	Read(ctx context.Context) ([]byte, error)
}

// TargetFactory 根据镜像句柄构造目标
type TargetFactory interface {
	NewTarget(handle *database.MirrorHandle) (Target, error)
}

// DefaultTargetFactory 文件目标使用 Fs，对象存储目标使用 ObjectStores
type DefaultTargetFactory struct {
	Fs           afero.Fs
	ObjectStores ObjectStoreFactory
}

// NewTarget 根据句柄类型创建目标
func (f *DefaultTargetFactory) NewTarget(handle *database.MirrorHandle) (Target, error) {
	if handle == nil {
		return nil, errors.New("mirror handle is nil")
	}
	switch handle.Kind {
	case database.MirrorKindFile:
		return &FileTarget{fs: f.Fs, handle: *handle}, nil
	case database.MirrorKindAliyun, database.MirrorKindTencent, database.MirrorKindQiniu:
		if f.ObjectStores == nil {
			return nil, ErrUnsupportedProvider
		}
		store, err := f.ObjectStores.Create(handle.Kind, handle.ObjectStore)
		if err != nil {
			return nil, err
		}
		return &ObjectTarget{store: store, handle: *handle}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, handle.Kind)
	}
}

// FileTarget 用户选定的本地文件
type FileTarget struct {
	fs     afero.Fs
	handle database.MirrorHandle
}

// QueryPermission 保存的授权仍有效且所在目录仍存在时允许写入
func (t *FileTarget) QueryPermission(ctx context.Context) (database.PermissionState, error) {
	if t.handle.Permission != database.PermissionGranted {
		return t.handle.Permission, nil
	}
	info, err := t.fs.Stat(filepath.Dir(t.handle.Location))
	if err != nil || !info.IsDir() {
		return database.PermissionPrompt, nil
	}
	return database.PermissionGranted, nil
}

// Write 原子地覆盖目标文件
func (t *FileTarget) Write(ctx context.Context, data []byte) error {
	return writeFileAtomic(t.fs, t.handle.Location, data)
}

// Read 读取目标文件
func (t *FileTarget) Read(ctx context.Context) ([]byte, error) {
	data, err := afero.ReadFile(t.fs, t.handle.Location)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// ObjectTarget 对象存储中的单个对象
type ObjectTarget struct {
	store  ObjectStore
	handle database.MirrorHandle
}

// QueryPermission 保存的授权仍有效且凭据能连通存储桶时允许写入
func (t *ObjectTarget) QueryPermission(ctx context.Context) (database.PermissionState, error) {
	if t.handle.Permission != database.PermissionGranted {
		return t.handle.Permission, nil
	}
	if err := t.store.TestConnection(ctx); err != nil {
		return database.PermissionPrompt, err
	}
	return database.PermissionGranted, nil
}

// Write 上传镜像对象
func (t *ObjectTarget) Write(ctx context.Context, data []byte) error {
	return t.store.UploadObject(ctx, t.handle.Location, bytes.NewReader(data), ContentTypeJSON)
}

// Read 下载镜像对象
func (t *ObjectTarget) Read(ctx context.Context) ([]byte, error) {
	body, err := t.store.DownloadObject(ctx, t.handle.Location)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}
