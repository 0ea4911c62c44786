package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"school/backend/internal/config"
	"school/backend/internal/health"
	"school/backend/internal/middleware"
	"school/backend/internal/monitoring"
	"school/backend/internal/service"
	"school/backend/internal/websocket"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	avatars   *service.AvatarService
	students  *service.StudentService
	faculties *service.FacultyService
	log       *zap.Logger
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	AvatarService  *service.AvatarService
	StudentService *service.StudentService
	FacultyService *service.FacultyService
	WebSocketHub   *websocket.Hub        // 异步任务推送，可为 nil
	Metrics        *monitoring.Metrics   // 可为 nil
	Health         *health.HealthChecker // 可为 nil
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	router.Use(middleware.RecoveryHandler(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	if deps.Metrics != nil {
		monitor := middleware.NewMonitoringMiddleware(deps.Metrics, log)
		router.Use(monitor.PanicRecovery())
		router.Use(monitor.HTTPMetrics())
	}

	// 全局请求体限制 10MB，上传接口单独收紧
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Location", "Retry-After", "X-Max-Body-Size"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{
		avatars:   deps.AvatarService,
		students:  deps.StudentService,
		faculties: deps.FacultyService,
		log:       log,
	}

	uploadLimiter := middleware.NewIPRateLimiter(deps.Config.RateLimit.RequestsPerSecond, deps.Config.RateLimit.Burst)
	rateLimit := uploadLimiter.Middleware(deps.Metrics)
	uploadLimit := middleware.BodySizeLimitFunc(middleware.UploadBodyLimit, rejectOversizedUpload)

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	registerHealthRoutes(router, deps.Health)

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	v1 := router.Group("/v1")
	{
		// ========== Avatar Routes ==========
		avatarRoutes := v1.Group("/avatars")
		{
			avatarRoutes.GET("", handler.listAvatars)
			avatarRoutes.POST("/:studentId", rateLimit, uploadLimit, handler.uploadAvatar)
			avatarRoutes.POST("/async/:studentId", rateLimit, uploadLimit, handler.uploadAvatarAsync)
			avatarRoutes.GET("/tasks/:taskId", handler.getUploadTask)
			if deps.WebSocketHub != nil {
				avatarRoutes.GET("/tasks/ws", websocket.HandleWebSocket(deps.WebSocketHub))
			}
			avatarRoutes.GET("/db/:studentId", handler.getAvatarFromDB)
			avatarRoutes.GET("/file/:studentId", handler.getAvatarFile)
		}

		// ========== Student Routes ==========
		studentRoutes := v1.Group("/students")
		{
			studentRoutes.POST("", handler.createStudent)
			studentRoutes.GET("", handler.listStudents)
			studentRoutes.GET("/:id", handler.getStudent)
			studentRoutes.PUT("/:id", handler.updateStudent)
			studentRoutes.DELETE("/:id", handler.deleteStudent)
			studentRoutes.GET("/:id/faculty", handler.getStudentFaculty)
		}

		// ========== Faculty Routes ==========
		facultyRoutes := v1.Group("/faculties")
		{
			facultyRoutes.POST("", handler.createFaculty)
			facultyRoutes.GET("", handler.listFaculties)
			facultyRoutes.GET("/:id", handler.getFaculty)
			facultyRoutes.GET("/:id/students", handler.listFacultyStudents)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		NotFound(c, "接口不存在")
	})

	return router
}

// registerHealthRoutes 注册健康检查路由
func registerHealthRoutes(router *gin.Engine, checker *health.HealthChecker) {
	if checker == nil {
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		return
	}

	router.GET("/health", func(c *gin.Context) {
		results, healthy := checker.CheckHealth()
		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	})
	router.GET("/health/live", gin.WrapF(checker.LiveHandler()))
	router.GET("/health/ready", gin.WrapF(checker.ReadyHandler()))
}
