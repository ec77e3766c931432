package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/weiwangfds/flashcal/internal/i18n"
)

// ErrorCode 错误码类型
type ErrorCode int

// 定义错误码常量
const (
	// 通用错误码 (1000-1999)
	ErrSuccess        ErrorCode = 0    // 成功
	ErrInternalServer ErrorCode = 1000 // 内部错误
	ErrInvalidParams  ErrorCode = 1001 // 参数错误
	ErrNotFound       ErrorCode = 1004 // 资源未找到

	// 存储相关错误码 (4000-4999)
	ErrStoreUnavailable  ErrorCode = 4000 // 存储介质无法打开，启动时致命
	ErrPersistenceFailed ErrorCode = 4001 // 单个读写事务失败

	// 外部镜像相关错误码 (5000-5999)
	ErrCapabilityUnsupported ErrorCode = 5000 // 宿主环境不提供目标选择能力
	ErrCapabilityDenied      ErrorCode = 5001 // 受限嵌入环境拒绝授予能力

	// 备份解码错误码 (6000-6999)
	ErrInvalidFormat      ErrorCode = 6000 // 内容无法解析或结构无效
	ErrUnsupportedVersion ErrorCode = 6001 // 备份版本高于当前支持版本
)

// AppError 应用错误结构体
type AppError struct {
	// 错误码
	Code ErrorCode `json:"code"`
	// 错误消息，面向用户
	Message string `json:"message"`
	// 详细错误信息
	Details string `json:"details,omitempty"`
	// 原始错误
	OriginalError error `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.OriginalError
}

// Is 按错误码比较，使 errors.Is(err, ErrPersistenceFailedError) 对任意包装后的同码错误成立
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails 返回带详细信息的副本，不修改接收者
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// StatusCode 错误码对应的HTTP状态码
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrInvalidParams, ErrInvalidFormat, ErrUnsupportedVersion:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrCapabilityDenied:
		return http.StatusForbidden
	case ErrCapabilityUnsupported:
		return http.StatusNotImplemented
	case ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New 创建新的应用错误，消息取自默认语言
func New(code ErrorCode) *AppError {
	return &AppError{
		Code:    code,
		Message: GetErrorMessage(code),
	}
}

// Wrap 包装原始错误
func Wrap(code ErrorCode, err error) *AppError {
	appErr := New(code)
	appErr.OriginalError = err
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// Wrapf 包装原始错误并附加上下文描述
func Wrapf(code ErrorCode, err error, format string, args ...interface{}) *AppError {
	appErr := Wrap(code, err)
	ctx := fmt.Sprintf(format, args...)
	if appErr.Details != "" {
		appErr.Details = ctx + ": " + appErr.Details
	} else {
		appErr.Details = ctx
	}
	return appErr
}

// GetAppError 沿错误链提取应用错误
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode 判断错误链中是否含有指定错误码
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Code == code
}

// 预定义错误，用作 errors.Is 的比较目标
var (
	ErrStoreUnavailableError      = New(ErrStoreUnavailable)
	ErrPersistenceFailedError     = New(ErrPersistenceFailed)
	ErrCapabilityUnsupportedError = New(ErrCapabilityUnsupported)
	ErrCapabilityDeniedError      = New(ErrCapabilityDenied)
	ErrInvalidFormatError         = New(ErrInvalidFormat)
	ErrUnsupportedVersionError    = New(ErrUnsupportedVersion)
)

// 错误码到i18n键的映射
var errorCodeToKeyMap = map[ErrorCode]string{
	ErrSuccess:        "success",
	ErrInternalServer: "internal_server_error",
	ErrInvalidParams:  "invalid_params",
	ErrNotFound:       "not_found",

	ErrStoreUnavailable:  "store_unavailable",
	ErrPersistenceFailed: "persistence_failed",

	ErrCapabilityUnsupported: "capability_unsupported",
	ErrCapabilityDenied:      "capability_denied",

	ErrInvalidFormat:      "invalid_format",
	ErrUnsupportedVersion: "unsupported_version",
}

// GetErrorMessage 根据错误码获取错误消息（使用默认语言）
func GetErrorMessage(code ErrorCode) string {
	return GetErrorMessageWithLang(code, i18n.GetInstance().GetDefaultLanguage())
}

// GetErrorMessageWithLang 根据错误码和语言获取错误消息
func GetErrorMessageWithLang(code ErrorCode, lang string) string {
	key, exists := errorCodeToKeyMap[code]
	if !exists {
		key = "unknown_error"
	}
	return i18n.GetInstance().Translate(key, lang)
}
