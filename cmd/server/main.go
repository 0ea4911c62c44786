package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"school/backend/internal/cache"
	"school/backend/internal/config"
	"school/backend/internal/health"
	"school/backend/internal/logger"
	"school/backend/internal/monitoring"
	"school/backend/internal/pool"
	"school/backend/internal/service"
	"school/backend/internal/storage"
	"school/backend/internal/storage/filesystem"
	"school/backend/internal/storage/memory"
	"school/backend/internal/storage/redis"
	sqlstore "school/backend/internal/storage/sql"
	httptransport "school/backend/internal/transport/http"
	"school/backend/internal/websocket"
)

// main 启动学生头像 HTTP 服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting school server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	store, err := initializeStore(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close storage", zap.Error(err))
		}
	}()

	// 初始化文件系统存储（头像文件）
	files, err := filesystem.NewStore(cfg.Avatar.StorageRoot)
	if err != nil {
		log.Fatal("failed to initialize filesystem storage", zap.Error(err))
	}
	log.Info("filesystem storage initialized", zap.String("path", cfg.Avatar.StorageRoot))

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(log)
	healthChecker.AddReadinessCheck("database", store.Health)
	healthChecker.AddReadinessCheck("storage", files.Health)

	// 初始化读缓存
	avatarCache, closeCache, err := initializeCache(cfg, healthChecker, log)
	if err != nil {
		log.Fatal("failed to initialize cache", zap.Error(err))
	}
	defer closeCache()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 异步上传协程池：停止时先排空队列，再关闭存储
	workers := pool.NewWorkerPool(cfg.Avatar.Workers, cfg.Avatar.QueueSize, log)
	workers.Start(context.WithoutCancel(ctx))

	// 初始化服务层
	avatarService, err := service.NewAvatarService(store, files, avatarCache, workers, service.AvatarServiceConfig{
		Dir:     cfg.Avatar.Dir,
		MaxSize: cfg.Avatar.MaxSize,
		TaskTTL: cfg.Avatar.TaskTTL,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize avatar service", zap.Error(err))
	}
	avatarService.SetMetrics(metrics)
	studentService := service.NewStudentService(store, store, avatarService, log)
	facultyService := service.NewFacultyService(store, store)

	// 创建 WebSocket Hub，异步任务完成时推送给订阅者
	wsHub := websocket.NewHub(websocket.HubConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Tasks:          avatarService.Tasks(),
		Presenter:      httptransport.TaskPayload,
		Logger:         log,
	})
	avatarService.Tasks().AddListener(wsHub.NotifyTask)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		AvatarService:  avatarService,
		StudentService: studentService,
		FacultyService: facultyService,
		WebSocketHub:   wsHub,
		Metrics:        metrics,
		Health:         healthChecker,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 孤儿头像文件清理 goroutine
	group.Go(func() error {
		log.Info("starting orphan avatar sweeper",
			zap.Duration("interval", cfg.Avatar.SweepInterval),
			zap.Duration("grace", cfg.Avatar.SweepGrace),
		)
		return avatarService.RunSweeper(groupCtx, cfg.Avatar.SweepInterval, cfg.Avatar.SweepGrace)
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		// 等待排队中的异步上传完成
		workers.Stop()
		avatarCache.Clear(shutdownCtx)

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Error("server error", zap.Error(err))
		return
	}

	log.Info("server exited cleanly")
}

// initializeStore 根据配置选择数据库存储或内存存储
func initializeStore(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	}

	store, err := sqlstore.NewStore(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		return nil, err
	}
	log.Info("using database storage", zap.String("type", cfg.Database.Type))
	return store, nil
}

// initializeCache 创建头像读缓存，返回释放函数
//
// Redis 后端会同时注册就绪检查。
func initializeCache(cfg *config.Config, checker *health.HealthChecker, log *zap.Logger) (cache.AvatarCache, func(), error) {
	switch cfg.Cache.Backend {
	case "", "local":
		log.Info("using local avatar cache", zap.Int("size", cfg.Cache.Size), zap.Duration("ttl", cfg.Cache.TTL))
		return cache.NewLocalCache(cfg.Cache.Size, cfg.Cache.TTL), func() {}, nil
	case "redis":
		client, err := redis.New(&cfg.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		checker.AddReadinessCheck("redis", client.Health)
		log.Info("using redis avatar cache", zap.String("address", cfg.Redis.Address), zap.Duration("ttl", cfg.Cache.TTL))

		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Warn("failed to close redis client", zap.Error(err))
			}
		}
		return redis.NewAvatarCache(client, cfg.Cache.TTL, log), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend: %s (supported: local, redis)", cfg.Cache.Backend)
	}
}
