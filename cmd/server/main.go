// Package main 是知识库服务的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RobustH/copilot/internal/config"
	"github.com/RobustH/copilot/internal/handler"
	"github.com/RobustH/copilot/internal/knowledge/scanner"
	"github.com/RobustH/copilot/internal/knowledge/splitter"
	"github.com/RobustH/copilot/internal/middleware"
	"github.com/RobustH/copilot/internal/repository"
	"github.com/RobustH/copilot/internal/service"
	"github.com/RobustH/copilot/pkg/database"
	"github.com/RobustH/copilot/pkg/embedding"
	"github.com/RobustH/copilot/pkg/es"
	"github.com/RobustH/copilot/pkg/log"
	"github.com/RobustH/copilot/pkg/token"
	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	// 向量库允许缺席：连接失败时安装空操作实现，检索降级为纯 FTS
	esReady := true
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Warnf("Elasticsearch 不可用，向量检索已禁用（不影响其他功能正常使用）: %v", err)
		esReady = false
	}

	// 4. 初始化 Repository
	stateRepo := repository.NewIndexStateRepository(database.DB)
	ftsRepo := repository.NewKnowledgeFtsRepository(database.DB)
	reportRepo := repository.NewRefreshReportRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	vectorStore := service.NewVectorStore(esReady, embeddingClient, cfg.Elasticsearch)
	ftsService := service.NewKnowledgeFtsService(ftsRepo)
	vectorStoreService := service.NewKnowledgeVectorStoreService(vectorStore, ftsService, cfg.Knowledge.Search)
	splitterFactory := splitter.NewFactory(cfg.Knowledge.Splitter)
	knowledgeService := service.NewKnowledgeService(splitterFactory, vectorStoreService, ftsService)
	fileScanner := scanner.NewFileScanner()
	indexer := service.NewCodebaseIndexer(
		fileScanner,
		stateRepo,
		splitterFactory,
		vectorStoreService,
		reportRepo,
		cfg.Knowledge.Indexer.Workers,
	)

	if knowledgeService.Available() {
		log.Info("向量数据库连接正常，知识库功能已启用")
	} else {
		log.Warnf("向量数据库不可用，语义检索已禁用，仅保留关键词检索")
	}

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	knowledgeHandler := handler.NewKnowledgeHandler(indexer, knowledgeService, reportRepo, cfg.Knowledge.WorkspaceDir)
	api := r.Group("/api")
	{
		knowledge := api.Group("/knowledge")
		{
			// workspace-path 仅作为 UI 的默认值，无需登录
			knowledge.GET("/workspace-path", knowledgeHandler.GetWorkspacePath)

			authed := knowledge.Group("")
			authed.Use(middleware.AuthMiddleware(jwtManager))
			{
				authed.POST("/index", knowledgeHandler.RefreshIndex)
				authed.GET("/index/status", knowledgeHandler.GetIndexStatus)
				authed.GET("/search", knowledgeHandler.Search)
			}
		}
	}

	// 8. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
