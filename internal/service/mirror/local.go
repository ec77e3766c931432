package mirror

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// LocalMirror 应用私有目录中的持久化镜像文件
// 每次写入都完整覆盖，先写临时文件再重命名，读取方不会看到写了一半的内容
type LocalMirror struct {
	fs   afero.Fs
	path string
}

// NewLocalMirror 创建本地镜像
func NewLocalMirror(fs afero.Fs, path string) *LocalMirror {
	return &LocalMirror{fs: fs, path: path}
}

// Path 镜像文件路径
func (m *LocalMirror) Path() string {
	return m.path
}

// Write 原子地覆盖镜像文件
func (m *LocalMirror) Write(data []byte) error {
	return writeFileAtomic(m.fs, m.path, data)
}

// Read 读取镜像文件，文件不存在时返回 (nil, nil)
func (m *LocalMirror) Read() ([]byte, error) {
	data, err := afero.ReadFile(m.fs, m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read local mirror: %w", err)
	}
	return data, nil
}

// ModTime 最近一次写入时间，文件不存在时为零值
func (m *LocalMirror) ModTime() time.Time {
	info, err := m.fs.Stat(m.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func writeFileAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create mirror directory: %w", err)
	}

	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("failed to replace mirror file: %w", err)
	}
	return nil
}
