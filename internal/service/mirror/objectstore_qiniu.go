package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	"github.com/qiniu/go-sdk/v7/storage"
	"github.com/weiwangfds/flashcal/internal/database"
)

// QiniuKodoProvider 七牛云Kodo提供商实现
type QiniuKodoProvider struct {
	mac          *qbox.Mac
	bucketName   string
	bucketDomain string
	region       *storage.Region
}

// NewQiniuKodoProvider 创建七牛云Kodo提供商实例
func NewQiniuKodoProvider(config *database.ObjectStoreConfig) (*QiniuKodoProvider, error) {
	mac := qbox.NewMac(config.AccessKey, config.SecretKey)

	region, err := storage.GetRegion(config.AccessKey, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get qiniu region: %w", err)
	}

	// 下载需要绑定的域名，未配置时使用存储桶默认域名
	bucketDomain := config.Endpoint
	if bucketDomain == "" {
		bucketDomain = fmt.Sprintf("%s.%s", config.Bucket, region.RsHost)
	}

	return &QiniuKodoProvider{
		mac:          mac,
		bucketName:   config.Bucket,
		bucketDomain: bucketDomain,
		region:       region,
	}, nil
}

// UploadObject 上传对象到七牛云Kodo
func (p *QiniuKodoProvider) UploadObject(ctx context.Context, key string, reader io.Reader, contentType string) error {
	// scope 带上对象键才允许覆盖已有对象
	putPolicy := storage.PutPolicy{
		Scope: fmt.Sprintf("%s:%s", p.bucketName, key),
	}
	upToken := putPolicy.UploadToken(p.mac)

	formUploader := storage.NewFormUploader(&storage.Config{
		Region:   p.region,
		UseHTTPS: true,
	})

	putExtra := storage.PutExtra{}
	if contentType != "" {
		putExtra.MimeType = contentType
	}

	ret := storage.PutRet{}
	if err := formUploader.Put(ctx, &ret, upToken, key, reader, -1, &putExtra); err != nil {
		return fmt.Errorf("failed to upload object to qiniu kodo: %w", err)
	}
	return nil
}

// DownloadObject 通过私有链接下载对象
func (p *QiniuKodoProvider) DownloadObject(ctx context.Context, key string) (io.ReadCloser, error) {
	deadline := time.Now().Add(time.Hour).Unix()
	privateURL := storage.MakePrivateURL(p.mac, p.bucketDomain, key, deadline)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, privateURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build qiniu download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download object from qiniu kodo: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download object, status: %s", resp.Status)
	}
	return resp.Body, nil
}

// TestConnection 列出一个对象以验证凭据
func (p *QiniuKodoProvider) TestConnection(ctx context.Context) error {
	bucketManager := storage.NewBucketManager(p.mac, &storage.Config{
		Region: p.region,
	})

	done := make(chan error, 1)
	go func() {
		_, _, _, _, err := bucketManager.ListFiles(p.bucketName, "", "", "", 1)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to test qiniu kodo connection: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
