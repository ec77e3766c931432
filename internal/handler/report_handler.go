package handler

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/flashcal/internal/response"
	"github.com/weiwangfds/flashcal/internal/service/normalize"
	"github.com/weiwangfds/flashcal/internal/service/store"
)

// maxReportSize 单个报告请求体上限
const maxReportSize = 4 << 20

// ReportHandler 月度与周度报告处理器
// 保存前总是先规整，外部生成的畸形内容不会进入主存储
type ReportHandler struct {
	store store.Store
}

// NewReportHandler 创建报告处理器实例
func NewReportHandler(s store.Store) *ReportHandler {
	return &ReportHandler{store: s}
}

// GetMonthlyReports 获取全部月度报告，最新的在前
// GET /api/v1/reports/monthly
func (h *ReportHandler) GetMonthlyReports(c *gin.Context) {
	reports, err := h.store.GetAllMonthlyReports(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, reports)
}

// SaveMonthlyReport 规整并保存月度报告
// POST /api/v1/reports/monthly
func (h *ReportHandler) SaveMonthlyReport(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	report := normalize.MonthlyReportJSON(body)
	if err := h.store.SaveMonthlyReport(c.Request.Context(), &report); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, response.T(c, "report_saved"), report)
}

// DeleteMonthlyReport 删除月度报告
// DELETE /api/v1/reports/monthly/:id
func (h *ReportHandler) DeleteMonthlyReport(c *gin.Context) {
	if err := h.store.DeleteMonthlyReport(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, response.T(c, "report_deleted"), nil)
}

// GetWeeklyReports 获取全部周报，最新的在前
// GET /api/v1/reports/weekly
func (h *ReportHandler) GetWeeklyReports(c *gin.Context) {
	reports, err := h.store.GetAllWeeklyReports(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, reports)
}

// SaveWeeklyReport 规整并保存周报，未给出时间戳时使用当前时间
// POST /api/v1/reports/weekly
func (h *ReportHandler) SaveWeeklyReport(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	report := normalize.WeeklyReportJSON(body)
	if err := h.store.SaveWeeklyReport(c.Request.Context(), &report); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, response.T(c, "report_saved"), report)
}

// DeleteWeeklyReport 删除周报
// DELETE /api/v1/reports/weekly/:id
func (h *ReportHandler) DeleteWeeklyReport(c *gin.Context) {
	if err := h.store.DeleteWeeklyReport(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, response.T(c, "report_deleted"), nil)
}

// NormalizeMonthly 只规整不保存，供界面预览
// POST /api/v1/normalize/monthly
func (h *ReportHandler) NormalizeMonthly(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	response.Success(c, normalize.MonthlyReportJSON(body))
}

// NormalizeWeekly 只规整不保存
// POST /api/v1/normalize/weekly
func (h *ReportHandler) NormalizeWeekly(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	response.Success(c, normalize.WeeklyReportJSON(body))
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxReportSize+1))
	if err != nil {
		response.BadRequest(c, err.Error())
		return nil, false
	}
	if len(body) > maxReportSize {
		response.BadRequest(c, "request body too large")
		return nil, false
	}
	return body, true
}
