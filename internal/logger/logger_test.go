package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitFallsBackOnInvalidValues(t *testing.T) {
	require.NoError(t, Init(&Config{Level: "loud", Format: "xml", Output: "pigeon"}))
	assert.Equal(t, logrus.InfoLevel, Logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, Logger.Formatter)
}

func TestInitWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.Format = "json"
	cfg.FilePath = path
	require.NoError(t, Init(cfg))

	Info("hello rotation")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello rotation")
}

func TestGetLoggerLazyInit(t *testing.T) {
	Logger = nil
	assert.NotNil(t, GetLogger())
}
