package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/weiwangfds/flashcal/config"
	"github.com/weiwangfds/flashcal/internal/database"
	"github.com/weiwangfds/flashcal/internal/i18n"
	"github.com/weiwangfds/flashcal/internal/logger"
	"github.com/weiwangfds/flashcal/internal/middleware"
	"github.com/weiwangfds/flashcal/internal/router"
	"github.com/weiwangfds/flashcal/internal/service/backup"
	"github.com/weiwangfds/flashcal/internal/service/mirror"
	"github.com/weiwangfds/flashcal/internal/service/store"
	"golang.org/x/net/http2"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	i18n.GetInstance().SetDefaultLanguage(cfg.Language)

	// 初始化主存储
	db, err := database.Open(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}

	// 装配主存储与镜像
	fs := afero.NewOsFs()
	objectStores := mirror.ProviderFactory{}
	planStore := store.New(db)
	replicator := mirror.NewReplicator(
		cfg.Mirror,
		mirror.NewLocalMirror(fs, cfg.Mirror.LocalMirrorPath()),
		planStore,
		&mirror.DefaultTargetFactory{Fs: fs, ObjectStores: objectStores},
	)
	planStore.SetReplicator(replicator)
	backupService := backup.NewService(planStore, fs)

	if cfg.Mirror.RecoverOnStartup {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := replicator.Recover(ctx, planStore); err != nil {
			logger.Errorf("[镜像同步] 启动恢复失败: %v", err)
		}
		cancel()
	}

	// 初始化路由
	loggerMiddleware := middleware.NewLoggerMiddleware("/health", "/metrics")
	r := router.NewRouter(loggerMiddleware, &router.Dependencies{
		Config:       cfg,
		DB:           db,
		Store:        planStore,
		Backup:       backupService,
		Replicator:   replicator,
		Fs:           fs,
		ObjectStores: objectStores,
	})

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      r.GetEngine(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	if cfg.Server.EnableHTTPS {
		srv.TLSConfig = &tls.Config{
			NextProtos: []string{"h2", "http/1.1"}, // 支持HTTP/2和HTTP/1.1
		}
		// 如果启用HTTP/2，配置HTTP/2支持
		if cfg.Server.EnableHTTP2 {
			if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
				logger.Fatalf("配置HTTP/2失败: %v", err)
			}
		}
	}

	go func() {
		logger.Infof("服务器启动在 %s (HTTPS: %v, HTTP/2: %v)", srv.Addr, cfg.Server.EnableHTTPS, cfg.Server.EnableHTTP2)
		var err error
		if cfg.Server.EnableHTTPS {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务器...")

	// 优雅关闭服务器
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("服务器强制关闭: %v", err)
	}

	// 等待进行中的镜像写入
	replicator.Wait()
	if err := database.Close(db); err != nil {
		logger.Errorf("关闭数据库失败: %v", err)
	}

	logger.Info("服务器已退出")
}
