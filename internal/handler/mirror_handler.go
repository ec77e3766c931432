package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/spf13/cast"
	"github.com/weiwangfds/flashcal/internal/database"
	"github.com/weiwangfds/flashcal/internal/response"
	"github.com/weiwangfds/flashcal/internal/service/mirror"
)

// MirrorHandler 外部镜像授权与状态处理器
type MirrorHandler struct {
	replicator   *mirror.Replicator
	fs           afero.Fs
	objectStores mirror.ObjectStoreFactory
	restricted   bool
}

// NewMirrorHandler 创建镜像处理器实例
// 参数:
//   - replicator: 镜像复制器
//   - fs: 文件目标所在的文件系统
//   - objectStores: 对象存储工厂，nil 表示不支持对象存储目标
//   - restricted: 是否运行在受限嵌入环境
func NewMirrorHandler(replicator *mirror.Replicator, fs afero.Fs, objectStores mirror.ObjectStoreFactory, restricted bool) *MirrorHandler {
	return &MirrorHandler{
		replicator:   replicator,
		fs:           fs,
		objectStores: objectStores,
		restricted:   restricted,
	}
}

// RequestMirrorRequest 选择外部镜像目标的请求
// kind 为 file 时使用 path；对象存储类型使用 key 与 objectStore
type RequestMirrorRequest struct {
	Kind        database.MirrorKind         `json:"kind"`
	Path        string                      `json:"path"`
	Key         string                      `json:"key"`
	ObjectStore *database.ObjectStoreConfig `json:"objectStore"`
}

// GetStatus 获取镜像状态
// GET /api/v1/mirror
func (h *MirrorHandler) GetStatus(c *gin.Context) {
	status, err := h.replicator.Status(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// RequestMirror 选择并授权外部镜像目标
// POST /api/v1/mirror/request
func (h *MirrorHandler) RequestMirror(c *gin.Context) {
	var req RequestMirrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	handle, err := h.replicator.RequestFileMirror(c.Request.Context(), h.picker(req))
	if err != nil {
		response.Error(c, err)
		return
	}
	if handle == nil {
		response.SuccessWithMessage(c, response.T(c, "mirror_cancelled"), nil)
		return
	}

	status, err := h.replicator.Status(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, response.T(c, "mirror_enabled"), status)
}

// RevokeMirror 撤销外部镜像授权，forget=true 时同时删除句柄
// DELETE /api/v1/mirror
func (h *MirrorHandler) RevokeMirror(c *gin.Context) {
	ctx := c.Request.Context()
	if cast.ToBool(c.Query("forget")) {
		if err := h.replicator.ForgetFileMirror(ctx); err != nil {
			response.Error(c, err)
			return
		}
		response.SuccessWithMessage(c, response.T(c, "mirror_forgotten"), nil)
		return
	}

	if err := h.replicator.RevokeFileMirror(ctx); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, response.T(c, "mirror_revoked"), nil)
}

// GetSnapshot 读取镜像中的快照，source 为 local（默认）或 external
// GET /api/v1/mirror/snapshot
func (h *MirrorHandler) GetSnapshot(c *gin.Context) {
	ctx := c.Request.Context()
	load := h.replicator.LoadLocalMirror
	if c.Query("source") == "external" {
		load = h.replicator.LoadExternalMirror
	}

	bundle, err := load(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	if bundle == nil {
		response.SuccessWithMessage(c, response.T(c, "import_no_data"), nil)
		return
	}
	response.Success(c, bundle)
}

// picker 受限环境总是拒绝；未知类型交给对象存储工厂判定为不支持
func (h *MirrorHandler) picker(req RequestMirrorRequest) mirror.Picker {
	if h.restricted {
		return mirror.RestrictedPicker{}
	}
	switch req.Kind {
	case database.MirrorKindFile, "":
		return &mirror.PathPicker{Fs: h.fs, Path: req.Path}
	default:
		p := &mirror.ObjectStorePicker{
			Kind:    req.Kind,
			Key:     req.Key,
			Factory: h.objectStores,
		}
		if req.ObjectStore != nil {
			p.Config = *req.ObjectStore
		}
		return p
	}
}
