// Package handler 提供供界面壳调用的本地HTTP处理器
// 处理器只做参数绑定和响应封装，业务语义全部在 service 层
package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/flashcal/internal/database"
	"github.com/weiwangfds/flashcal/internal/response"
	"github.com/weiwangfds/flashcal/internal/service/store"
)

// PlanHandler 工作计划处理器
type PlanHandler struct {
	store store.Store
}

// NewPlanHandler 创建计划处理器实例
func NewPlanHandler(s store.Store) *PlanHandler {
	return &PlanHandler{store: s}
}

// SavePlansRequest 整体保存计划的请求
type SavePlansRequest struct {
	Plans    []database.WorkPlan `json:"plans" binding:"required"`
	Settings json.RawMessage     `json:"settings,omitempty"`
}

// GetPlans 获取全部计划
// GET /api/v1/plans
func (h *PlanHandler) GetPlans(c *gin.Context) {
	plans, err := h.store.GetAllPlans(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, plans)
}

// SavePlans 用请求中的列表整体替换计划
// PUT /api/v1/plans
func (h *PlanHandler) SavePlans(c *gin.Context) {
	var req SavePlansRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	settings := req.Settings
	if isJSONNull(settings) {
		settings = nil
	}
	if err := h.store.SavePlans(c.Request.Context(), req.Plans, settings); err != nil {
		response.Error(c, err)
		return
	}

	plans, err := h.store.GetAllPlans(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, response.T(c, "plans_saved"), plans)
}

// ClearAll 清空计划与报告
// DELETE /api/v1/data
func (h *PlanHandler) ClearAll(c *gin.Context) {
	if err := h.store.ClearAll(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, response.T(c, "store_cleared"), nil)
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
