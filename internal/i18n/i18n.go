// Package i18n 提供国际化支持
// 负责面向用户的错误提示与状态文案的多语言翻译
package i18n

import (
	"sync"

	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/weiwangfds/flashcal/internal/logger"
)

// 支持的语言
const (
	LangZhCN = "zh-CN"
	LangEnUS = "en-US"
)

var (
	instance *I18n
	once     sync.Once

	catalogue = map[string]map[string]string{
		LangZhCN: {
			"success":                "成功",
			"internal_server_error":  "服务器内部错误",
			"invalid_params":         "参数错误",
			"not_found":              "资源未找到",
			"store_unavailable":      "本地存储不可用，请检查浏览器或磁盘的存储权限",
			"persistence_failed":     "数据保存失败，请重试",
			"capability_unsupported": "当前环境不支持选择外部镜像文件",
			"capability_denied":      "当前嵌入环境禁止访问外部文件，请在独立窗口中打开后重试",
			"invalid_format":         "备份文件格式无效",
			"unsupported_version":    "备份文件版本高于当前程序支持的版本",
			"mirror_enabled":         "外部镜像已启用",
			"mirror_cancelled":       "已取消选择外部镜像",
			"mirror_revoked":         "外部镜像已停用",
			"import_no_data":         "未读取到有效的备份数据",
			"plans_saved":            "计划已保存",
			"report_saved":           "报告已保存",
			"report_deleted":         "报告已删除",
			"backup_restored":        "备份已恢复",
			"store_cleared":          "数据已清空",
			"mirror_forgotten":       "外部镜像已移除",
			"unknown_error":          "未知错误",
		},
		LangEnUS: {
			"success":                "Success",
			"internal_server_error":  "Internal Server Error",
			"invalid_params":         "Invalid Parameters",
			"not_found":              "Resource Not Found",
			"store_unavailable":      "Local storage is unavailable, check storage permissions",
			"persistence_failed":     "Failed to save data, please retry",
			"capability_unsupported": "This environment cannot pick an external mirror file",
			"capability_denied":      "External files are blocked in this embedded context, open the app in its own window and retry",
			"invalid_format":         "Invalid backup file format",
			"unsupported_version":    "Backup file version is newer than this application supports",
			"mirror_enabled":         "External mirror enabled",
			"mirror_cancelled":       "External mirror selection cancelled",
			"mirror_revoked":         "External mirror disabled",
			"import_no_data":         "No valid backup data found",
			"plans_saved":            "Plans saved",
			"report_saved":           "Report saved",
			"report_deleted":         "Report deleted",
			"backup_restored":        "Backup restored",
			"store_cleared":          "All data cleared",
			"mirror_forgotten":       "External mirror removed",
			"unknown_error":          "Unknown Error",
		},
	}
)

// I18n 国际化管理器
type I18n struct {
	mu          sync.RWMutex
	translators map[string]ut.Translator
	defaultLang string
}

// GetInstance 获取I18n单例
func GetInstance() *I18n {
	once.Do(func() {
		instance = &I18n{
			translators: make(map[string]ut.Translator),
			defaultLang: LangZhCN,
		}
		instance.initTranslators()
	})
	return instance
}

// initTranslators 创建翻译器并注册文案
func (i *I18n) initTranslators() {
	zhLocale := zh.New()
	uni := ut.New(zhLocale, zhLocale, en_US.New())

	langMappings := map[string]string{
		LangZhCN: "zh",
		LangEnUS: "en_US",
	}

	for lang, locale := range langMappings {
		trans, found := uni.GetTranslator(locale)
		if !found {
			logger.Errorf("初始化翻译器失败: %s (locale: %s)", lang, locale)
			continue
		}
		for key, text := range catalogue[lang] {
			if err := trans.Add(key, text, false); err != nil {
				logger.Warnf("注册翻译失败: %s/%s: %v", lang, key, err)
			}
		}
		i.translators[lang] = trans
	}
}

// Translate 根据键和语言获取翻译，语言不支持时回退到默认语言，键不存在时返回键本身
func (i *I18n) Translate(key, lang string) string {
	i.mu.RLock()
	defaultLang := i.defaultLang
	i.mu.RUnlock()

	for _, l := range []string{lang, defaultLang} {
		trans, ok := i.translators[l]
		if !ok {
			continue
		}
		if text, err := trans.T(key); err == nil {
			return text
		}
	}

	logger.Warnf("未找到翻译: %s, 语言: %s", key, lang)
	return key
}

// SetDefaultLanguage 设置默认语言，不支持的语言被忽略
func (i *I18n) SetDefaultLanguage(lang string) {
	if !i.IsSupportedLanguage(lang) {
		logger.Warnf("不支持的语言: %s，保持 %s", lang, i.GetDefaultLanguage())
		return
	}
	i.mu.Lock()
	i.defaultLang = lang
	i.mu.Unlock()
}

// GetDefaultLanguage 获取默认语言
func (i *I18n) GetDefaultLanguage() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.defaultLang
}

// IsSupportedLanguage 检查语言是否支持
func (i *I18n) IsSupportedLanguage(lang string) bool {
	_, exists := i.translators[lang]
	return exists
}
