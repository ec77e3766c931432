package database

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// 系统元数据的固定键
const (
	SystemKeyFileMirrorHandle = "fileMirrorHandle"
	SystemKeySettings         = "settings"
)

// SystemEntry 系统元数据，按固定键存储任意JSON值
type SystemEntry struct {
	Key       string         `gorm:"primaryKey;size:64"`
	Value     datatypes.JSON `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName 系统集合
func (SystemEntry) TableName() string {
	return CollectionSystem
}

// MirrorKind 外部镜像目标类型
type MirrorKind string

const (
	MirrorKindFile    MirrorKind = "file"
	MirrorKindAliyun  MirrorKind = "aliyun"
	MirrorKindTencent MirrorKind = "tencent"
	MirrorKindQiniu   MirrorKind = "qiniu"
)

// PermissionState 镜像句柄的写入授权状态
type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionPrompt  PermissionState = "prompt"
	PermissionDenied  PermissionState = "denied"
)

// MirrorHandle 用户选定的外部镜像目标
// 句柄可被撤销，每次写入前都必须重新查询授权
type MirrorHandle struct {
	Kind       MirrorKind      `json:"kind"`
	Name       string          `json:"name"`
	Location   string          `json:"location"` // 文件路径或对象键
	Permission PermissionState `json:"permission"`
	GrantedAt  time.Time       `json:"grantedAt"`
	// ObjectStore 对象存储目标的连接信息，文件目标为空
	ObjectStore *ObjectStoreConfig `json:"objectStore,omitempty"`
}

// ObjectStoreConfig 对象存储连接信息：阿里云OSS、腾讯云COS、七牛云Kodo
type ObjectStoreConfig struct {
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
}

// String 便于日志输出，不包含凭据
func (h MirrorHandle) String() string {
	return fmt.Sprintf("%s:%s", h.Kind, h.Location)
}
