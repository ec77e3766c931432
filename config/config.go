// Package config 提供应用配置的定义与加载
// 配置按 默认值 -> 配置文件 -> 环境变量 的优先级合并
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/weiwangfds/flashcal/internal/logger"
)

// EnvPrefix 环境变量前缀，例如 FLASHCAL_SERVER_PORT
const EnvPrefix = "FLASHCAL"

// DefaultAllowedOrigins 界面壳默认的本地来源
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

// Config 应用配置根结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
	Log      logger.Config  `mapstructure:"log"`
	// Language 用户可读错误信息的默认语言 (zh-CN, en-US)
	Language string `mapstructure:"language"`
}

// ServerConfig 本地HTTP接口配置，仅监听回环地址供界面壳调用
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // 秒
	WriteTimeout int    `mapstructure:"write_timeout"` // 秒
	EnableHTTPS  bool   `mapstructure:"enable_https"`
	EnableHTTP2  bool   `mapstructure:"enable_http2"`
	TLSCertFile  string `mapstructure:"tls_cert_file"`
	TLSKeyFile   string `mapstructure:"tls_key_file"`
	// AllowedOrigins 允许跨域访问的界面壳来源，为空时不开放跨域
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig 主存储配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	// LogLevel gorm日志级别: silent, error, warn, info
	LogLevel string `mapstructure:"log_level"`
}

// MirrorConfig 镜像与备份配置
type MirrorConfig struct {
	// Enabled 为false时保存计划不触发任何镜像写入
	Enabled bool `mapstructure:"enabled"`
	// LocalDir 应用私有的持久化镜像目录
	LocalDir string `mapstructure:"local_dir"`
	// LocalFile 本地镜像文件名，每次覆盖写入
	LocalFile string `mapstructure:"local_file"`
	// ExportDir 导出备份文件的下载目录
	ExportDir string `mapstructure:"export_dir"`
	// Restricted 运行在受限的嵌入环境中，无法授予外部镜像目标
	Restricted bool `mapstructure:"restricted"`
	// RecoverOnStartup 主存储为空时从本地镜像恢复计划
	RecoverOnStartup bool `mapstructure:"recover_on_startup"`
	// WriteTimeout 单次镜像写入的超时，秒
	WriteTimeout int `mapstructure:"write_timeout"`
}

// LocalMirrorPath 返回本地镜像文件的完整路径
func (m MirrorConfig) LocalMirrorPath() string {
	return filepath.Join(m.LocalDir, m.LocalFile)
}

// Load 加载配置
// 配置文件路径可由 FLASHCAL_CONFIG 指定，默认 configs/config.yaml，文件不存在时只使用默认值
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	path := os.Getenv(EnvPrefix + "_CONFIG")
	if path == "" {
		path = "configs/config.yaml"
	}
	if !isMissingFile(path) {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// MustLoad 加载配置，失败时 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

func isMissingFile(path string) bool {
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 17600)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.enable_https", false)
	v.SetDefault("server.enable_http2", false)
	v.SetDefault("server.allowed_origins", DefaultAllowedOrigins)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/flashcal.db")
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("mirror.enabled", true)
	v.SetDefault("mirror.local_dir", "data/mirror")
	v.SetDefault("mirror.local_file", "flash-calendar-mirror.json")
	v.SetDefault("mirror.export_dir", "exports")
	v.SetDefault("mirror.restricted", false)
	v.SetDefault("mirror.recover_on_startup", true)
	v.SetDefault("mirror.write_timeout", 30)

	defaults := logger.DefaultConfig()
	v.SetDefault("log.level", defaults.Level)
	v.SetDefault("log.format", defaults.Format)
	v.SetDefault("log.output", defaults.Output)
	v.SetDefault("log.file_path", defaults.FilePath)
	v.SetDefault("log.max_size", defaults.MaxSize)
	v.SetDefault("log.max_age", defaults.MaxAge)
	v.SetDefault("log.max_backups", defaults.MaxBackups)
	v.SetDefault("log.compress", defaults.Compress)

	v.SetDefault("language", "zh-CN")
}
