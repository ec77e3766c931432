// Package response 提供统一的HTTP响应格式
package response

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/flashcal/internal/errors"
	"github.com/weiwangfds/flashcal/internal/i18n"
)

// RequestIDKey gin上下文中请求ID的键
const RequestIDKey = "request_id"

// Response 统一返回值结构体
type Response struct {
	// 状态码，0表示成功，非0为 errors.ErrorCode
	Code int `json:"code"`
	// 响应消息
	Message string `json:"message"`
	// 响应数据
	Data interface{} `json:"data,omitempty"`
	// 错误详情
	Details string `json:"details,omitempty"`
	// 请求ID，用于链路追踪
	RequestID string `json:"request_id,omitempty"`
	// 时间戳
	Timestamp int64 `json:"timestamp"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	SuccessWithMessage(c, T(c, "success"), data)
}

// SuccessWithMessage 带消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      0,
		Message:   message,
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: now().Unix(),
	})
}

// Error 应用错误响应，HTTP状态码和消息由错误码决定
// 非 AppError 的错误按内部错误处理
func Error(c *gin.Context, err error) {
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		appErr = apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	_ = c.Error(err)

	c.AbortWithStatusJSON(appErr.StatusCode(), Response{
		Code:      int(appErr.Code),
		Message:   apperrors.GetErrorMessageWithLang(appErr.Code, Language(c)),
		Details:   appErr.Details,
		RequestID: getRequestID(c),
		Timestamp: now().Unix(),
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, details string) {
	Error(c, apperrors.New(apperrors.ErrInvalidParams).WithDetails(details))
}

// T 按请求语言翻译文案
func T(c *gin.Context, key string) string {
	return i18n.GetInstance().Translate(key, Language(c))
}

// Language 从 lang 查询参数或 Accept-Language 头取第一个支持的语言，都没有时使用默认语言
func Language(c *gin.Context) string {
	inst := i18n.GetInstance()
	if lang := c.Query("lang"); inst.IsSupportedLanguage(lang) {
		return lang
	}
	for _, part := range strings.Split(c.GetHeader("Accept-Language"), ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if inst.IsSupportedLanguage(tag) {
			return tag
		}
		switch strings.ToLower(strings.SplitN(tag, "-", 2)[0]) {
		case "zh":
			return i18n.LangZhCN
		case "en":
			return i18n.LangEnUS
		}
	}
	return inst.GetDefaultLanguage()
}

func getRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// now 便于测试时替换
var now = time.Now
