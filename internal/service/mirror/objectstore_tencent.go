package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tencentyun/cos-go-sdk-v5"
	"github.com/weiwangfds/flashcal/internal/database"
)

// TencentCOSProvider 腾讯云COS提供商实现
type TencentCOSProvider struct {
	client *cos.Client
}

// NewTencentCOSProvider 创建腾讯云COS提供商实例
func NewTencentCOSProvider(config *database.ObjectStoreConfig) (*TencentCOSProvider, error) {
	bucketURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", config.Bucket, config.Region)
	if config.Endpoint != "" {
		bucketURL = config.Endpoint
	}

	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  config.AccessKey,
			SecretKey: config.SecretKey,
		},
	})

	return &TencentCOSProvider{client: client}, nil
}

// UploadObject 上传对象到腾讯云COS
func (p *TencentCOSProvider) UploadObject(ctx context.Context, key string, reader io.Reader, contentType string) error {
	options := &cos.ObjectPutOptions{}
	if contentType != "" {
		options.ObjectPutHeaderOptions = &cos.ObjectPutHeaderOptions{
			ContentType: contentType,
		}
	}

	if _, err := p.client.Object.Put(ctx, key, reader, options); err != nil {
		return fmt.Errorf("failed to upload object to tencent cos: %w", err)
	}
	return nil
}

// DownloadObject 从腾讯云COS下载对象
func (p *TencentCOSProvider) DownloadObject(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := p.client.Object.Get(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download object from tencent cos: %w", err)
	}
	return resp.Body, nil
}

// TestConnection 测试连接
func (p *TencentCOSProvider) TestConnection(ctx context.Context) error {
	if _, err := p.client.Bucket.Head(ctx); err != nil {
		return fmt.Errorf("failed to test tencent cos connection: %w", err)
	}
	return nil
}
