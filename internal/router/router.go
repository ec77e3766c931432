package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/weiwangfds/flashcal/config"
	"github.com/weiwangfds/flashcal/internal/handler"
	"github.com/weiwangfds/flashcal/internal/middleware"
	"github.com/weiwangfds/flashcal/internal/service/backup"
	"github.com/weiwangfds/flashcal/internal/service/mirror"
	"github.com/weiwangfds/flashcal/internal/service/store"
	"gorm.io/gorm"
)

// Dependencies 路由需要的已装配组件
type Dependencies struct {
	Config       *config.Config
	DB           *gorm.DB
	Store        store.Store
	Backup       *backup.Service
	Replicator   *mirror.Replicator
	Fs           afero.Fs
	ObjectStores mirror.ObjectStoreFactory
}

// Router 路由配置
type Router struct {
	engine *gin.Engine
	db     *gorm.DB
}

// NewRouter 创建路由实例
func NewRouter(loggerMiddleware *middleware.LoggerMiddleware, deps *Dependencies) *Router {
	engine := gin.New()

	planHandler := handler.NewPlanHandler(deps.Store)
	reportHandler := handler.NewReportHandler(deps.Store)
	backupHandler := handler.NewBackupHandler(deps.Backup, deps.Config.Mirror.ExportDir)
	mirrorHandler := handler.NewMirrorHandler(deps.Replicator, deps.Fs, deps.ObjectStores, deps.Config.Mirror.Restricted)

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(loggerMiddleware.RequestLogger())

	// 只有配置的界面壳来源可以跨域调用，其他来源的请求被拒绝
	corsConfig := cors.Config{
		AllowOrigins:     deps.Config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept-Language", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           86400,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOriginFunc = func(string) bool { return false }
	}
	engine.Use(cors.New(corsConfig))

	engine.GET("/health", func(c *gin.Context) {
		sqlDB, err := deps.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")
	{
		api.GET("/plans", planHandler.GetPlans)
		api.PUT("/plans", planHandler.SavePlans)
		api.DELETE("/data", planHandler.ClearAll)

		reports := api.Group("/reports")
		{
			reports.GET("/monthly", reportHandler.GetMonthlyReports)
			reports.POST("/monthly", reportHandler.SaveMonthlyReport)
			reports.DELETE("/monthly/:id", reportHandler.DeleteMonthlyReport)

			reports.GET("/weekly", reportHandler.GetWeeklyReports)
			reports.POST("/weekly", reportHandler.SaveWeeklyReport)
			reports.DELETE("/weekly/:id", reportHandler.DeleteWeeklyReport)
		}

		api.POST("/normalize/monthly", reportHandler.NormalizeMonthly)
		api.POST("/normalize/weekly", reportHandler.NormalizeWeekly)

		bk := api.Group("/backup")
		{
			bk.GET("/export", backupHandler.Export)
			bk.POST("/export/file", backupHandler.ExportToFile)
			bk.POST("/import", backupHandler.Import)
			bk.POST("/restore", backupHandler.Restore)
		}

		mr := api.Group("/mirror")
		{
			mr.GET("", mirrorHandler.GetStatus)
			mr.POST("/request", mirrorHandler.RequestMirror)
			mr.DELETE("", mirrorHandler.RevokeMirror)
			mr.GET("/snapshot", mirrorHandler.GetSnapshot)
		}
	}

	return &Router{
		engine: engine,
		db:     deps.DB,
	}
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// GetDB 获取数据库连接
func (r *Router) GetDB() *gorm.DB {
	return r.db
}
