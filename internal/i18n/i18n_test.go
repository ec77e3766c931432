package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	i := GetInstance()

	assert.Equal(t, "备份文件格式无效", i.Translate("invalid_format", LangZhCN))
	assert.Equal(t, "Invalid backup file format", i.Translate("invalid_format", LangEnUS))
	// 不支持的语言回退到默认语言
	assert.Equal(t, "备份文件格式无效", i.Translate("invalid_format", "fr-FR"))
	assert.Equal(t, "no_such_key", i.Translate("no_such_key", LangEnUS))
}

func TestSetDefaultLanguage(t *testing.T) {
	i := GetInstance()
	t.Cleanup(func() { i.SetDefaultLanguage(LangZhCN) })

	i.SetDefaultLanguage("xx")
	assert.Equal(t, LangZhCN, i.GetDefaultLanguage())

	i.SetDefaultLanguage(LangEnUS)
	assert.Equal(t, LangEnUS, i.GetDefaultLanguage())
	assert.Equal(t, "Unknown Error", i.Translate("unknown_error", "fr-FR"))
}
