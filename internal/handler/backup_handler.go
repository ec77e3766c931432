package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/flashcal/internal/response"
	"github.com/weiwangfds/flashcal/internal/service/backup"
)

// BackupHandler 备份导出、导入与恢复处理器
type BackupHandler struct {
	backup    *backup.Service
	exportDir string
}

// NewBackupHandler 创建备份处理器实例
// 参数:
//   - svc: 备份服务
//   - exportDir: 导出到文件时使用的下载目录
func NewBackupHandler(svc *backup.Service, exportDir string) *BackupHandler {
	return &BackupHandler{backup: svc, exportDir: exportDir}
}

// Export 以附件形式下载当前快照
// GET /api/v1/backup/export
func (h *BackupHandler) Export(c *gin.Context) {
	data, name, err := h.backup.ExportData(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// ExportToFile 把快照写入下载目录
// POST /api/v1/backup/export/file
func (h *BackupHandler) ExportToFile(c *gin.Context) {
	path, err := h.backup.ExportToFile(c.Request.Context(), h.exportDir)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"path": path})
}

// Import 解析上传的备份文件并返回内容，不修改主存储
// 支持 multipart 的 file 字段或直接以请求体上传
// POST /api/v1/backup/import
func (h *BackupHandler) Import(c *gin.Context) {
	reader, closer, err := uploadReader(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	defer closer.Close()

	bundle, err := h.backup.ImportData(c.Request.Context(), reader)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, bundle)
}

// Restore 把上传的快照写入主存储
// POST /api/v1/backup/restore?mode=replace|merge
func (h *BackupHandler) Restore(c *gin.Context) {
	reader, closer, err := uploadReader(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	defer closer.Close()

	bundle, err := h.backup.ImportData(c.Request.Context(), reader)
	if err != nil {
		response.Error(c, err)
		return
	}

	mode := backup.RestoreMode(c.DefaultQuery("mode", string(backup.RestoreReplace)))
	if err := h.backup.Restore(c.Request.Context(), bundle, mode); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, response.T(c, "backup_restored"), gin.H{
		"mode":  mode,
		"plans": len(bundle.Plans),
	})
}

func uploadReader(c *gin.Context) (io.Reader, io.Closer, error) {
	if c.ContentType() == "multipart/form-data" {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return nil, nil, err
		}
		file, err := fileHeader.Open()
		if err != nil {
			return nil, nil, err
		}
		return file, file, nil
	}
	if c.Request.Body == nil {
		return nil, nil, errors.New("request body is empty")
	}
	return c.Request.Body, c.Request.Body, nil
}
