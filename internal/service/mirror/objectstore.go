package mirror

import (
	"context"
	"errors"
	"io"

	"github.com/weiwangfds/flashcal/internal/database"
)

// ErrUnsupportedProvider 不支持的对象存储类型
var ErrUnsupportedProvider = errors.New("unsupported object store provider")

// ObjectStore 对象存储提供商接口，外部镜像只用到其中的单对象读写
type ObjectStore interface {
	// UploadObject 上传对象，已存在时覆盖
	UploadObject(ctx context.Context, key string, reader io.Reader, contentType string) error

	// DownloadObject 下载对象
	DownloadObject(ctx context.Context, key string) (io.ReadCloser, error)

	// TestConnection 测试凭据和存储桶是否可用
	TestConnection(ctx context.Context) error
}

// ObjectStoreFactory 按镜像类型创建对象存储提供商
type ObjectStoreFactory interface {
	Create(kind database.MirrorKind, cfg *database.ObjectStoreConfig) (ObjectStore, error)
}

// ProviderFactory 默认工厂：阿里云OSS、腾讯云COS、七牛云Kodo
type ProviderFactory struct{}

// Create 根据配置创建对象存储提供商实例
func (ProviderFactory) Create(kind database.MirrorKind, cfg *database.ObjectStoreConfig) (ObjectStore, error) {
	if cfg == nil {
		return nil, errors.New("object store config is required")
	}
	switch kind {
	case database.MirrorKindAliyun:
		return NewAliyunOSSProvider(cfg)
	case database.MirrorKindTencent:
		return NewTencentCOSProvider(cfg)
	case database.MirrorKindQiniu:
		return NewQiniuKodoProvider(cfg)
	default:
		return nil, ErrUnsupportedProvider
	}
}
