// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-writer-go/internal/config"
	"ai-writer-go/internal/handler"
	"ai-writer-go/internal/middleware"
	"ai-writer-go/internal/repository"
	"ai-writer-go/internal/service"
	"ai-writer-go/pkg/database"
	"ai-writer-go/pkg/llm"
	"ai-writer-go/pkg/log"
	"ai-writer-go/pkg/storage"
	"ai-writer-go/pkg/tika"
	"ai-writer-go/pkg/token"

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

	// 3. 远程生成服务的凭证缺失是致命的启动条件
	if cfg.LLM.APIKey == "" {
		log.Fatalf("缺少 LLM API Key，请在配置文件或环境变量 LLM_API_KEY 中提供")
	}

	// 4. 初始化 Redis 与对象存储
	database.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	storage.InitMinIO(cfg.MinIO)

	// 5. 初始化 Repository
	userRepository := repository.NewUserRepository(cfg.Storage.UsersFile)
	historyRepository, err := repository.NewHistoryRepository(cfg.Storage.HistoryDir)
	if err != nil {
		log.Fatal("初始化历史记录存储失败", err)
	}
	sessionRepository := repository.NewSessionRepository(database.RDB)

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	tikaClient := tika.NewClient(cfg.Tika)
	llmClient := llm.NewClient(cfg.LLM)
	userService := service.NewUserService(userRepository, sessionRepository, jwtManager)
	essayService := service.NewEssayService(llmClient, historyRepository)
	documentService := service.NewDocumentService(tikaClient, cfg.MinIO)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			userHandler := handler.NewUserHandler(userService)

			// 无需认证的路由 (公开访问)
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService, sessionRepository))
			{
				authed.GET("/me", userHandler.GetProfile)
				authed.POST("/logout", userHandler.Logout)
			}
		}

		// Document 路由组，需要认证
		documents := apiV1.Group("/documents")
		documents.Use(middleware.AuthMiddleware(jwtManager, userService, sessionRepository))
		{
			documentHandler := handler.NewDocumentHandler(documentService)
			documents.POST("/extract", documentHandler.Extract)
			documents.GET("/uploads", documentHandler.ListUploads)
			documents.GET("/download", documentHandler.DownloadURL)
		}

		// Essay 路由组，需要认证
		essays := apiV1.Group("/essays")
		essays.Use(middleware.AuthMiddleware(jwtManager, userService, sessionRepository))
		{
			essayHandler := handler.NewEssayHandler(essayService)
			essays.POST("/generate", essayHandler.Generate)
			essays.GET("/history", essayHandler.History)
			essays.GET("/export", essayHandler.Export)
		}

		// 流式生成 (WebSocket)
		streamHandler := handler.NewStreamHandler(essayService, userService, jwtManager)
		streamGroup := apiV1.Group("/essays")
		streamGroup.Use(middleware.AuthMiddleware(jwtManager, userService, sessionRepository))
		{
			streamGroup.GET("/websocket-token", streamHandler.GetWebsocketStopToken)
		}
		r.GET("/essays/stream/:token", streamHandler.Handle)
	}

	// 启动 HTTP 服务器并实现优雅停机
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

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
