package mirror

import (
	"context"
	"fmt"
	"io"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/weiwangfds/flashcal/internal/database"
)

// AliyunOSSProvider 阿里云OSS提供商实现
type AliyunOSSProvider struct {
	client *oss.Client
	bucket *oss.Bucket
	config *database.ObjectStoreConfig
}

// NewAliyunOSSProvider 创建阿里云OSS提供商实例
func NewAliyunOSSProvider(config *database.ObjectStoreConfig) (*AliyunOSSProvider, error) {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://oss-%s.aliyuncs.com", config.Region)
	}

	client, err := oss.New(endpoint, config.AccessKey, config.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun oss client: %w", err)
	}

	bucket, err := client.Bucket(config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", config.Bucket, err)
	}

	return &AliyunOSSProvider{
		client: client,
		bucket: bucket,
		config: config,
	}, nil
}

// UploadObject 上传对象到阿里云OSS
func (p *AliyunOSSProvider) UploadObject(ctx context.Context, key string, reader io.Reader, contentType string) error {
	options := []oss.Option{oss.WithContext(ctx)}
	if contentType != "" {
		options = append(options, oss.ContentType(contentType))
	}

	if err := p.bucket.PutObject(key, reader, options...); err != nil {
		return fmt.Errorf("failed to upload object to aliyun oss: %w", err)
	}
	return nil
}

// DownloadObject 从阿里云OSS下载对象
func (p *AliyunOSSProvider) DownloadObject(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := p.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to download object from aliyun oss: %w", err)
	}
	return body, nil
}

// TestConnection 测试连接
func (p *AliyunOSSProvider) TestConnection(ctx context.Context) error {
	if _, err := p.client.GetBucketInfo(p.config.Bucket, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to test aliyun oss connection: %w", err)
	}
	return nil
}
