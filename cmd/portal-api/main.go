package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Crisjan0/enrollment-portal-api/api/swagger"
	"github.com/Crisjan0/enrollment-portal-api/internal/handler"
	"github.com/Crisjan0/enrollment-portal-api/internal/middleware"
	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	"github.com/Crisjan0/enrollment-portal-api/internal/repository"
	"github.com/Crisjan0/enrollment-portal-api/internal/service"
	"github.com/Crisjan0/enrollment-portal-api/pkg/cache"
	"github.com/Crisjan0/enrollment-portal-api/pkg/config"
	"github.com/Crisjan0/enrollment-portal-api/pkg/database"
	"github.com/Crisjan0/enrollment-portal-api/pkg/export"
	"github.com/Crisjan0/enrollment-portal-api/pkg/logger"
	corsmiddleware "github.com/Crisjan0/enrollment-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/Crisjan0/enrollment-portal-api/pkg/middleware/requestid"
	"github.com/Crisjan0/enrollment-portal-api/pkg/storage"
)

// @title Enrollment Portal API
// @version 1.0.0
// @description Student enrollment portal with application intake, payments and back office administration.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.BaseDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	if redisClient != nil {
		defer cacheRepo.Close() //nolint:errcheck
	}

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)
	uploads := service.NewUploadPolicy(store, cfg.Uploads)

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "enrollment-portal-api",
		SingleSession:      true,
	})
	userSvc := service.NewUserService(userRepo, enrollmentRepo, auditRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, enrollmentRepo, validate, logr)
	applicationSvc := service.NewApplicationService(
		applicationRepo,
		courseRepo,
		uploads,
		auditRepo,
		cacheSvc,
		validate,
		logr,
		cfg.Fees,
		cfg.Uploads.MaxExtraDocuments,
	)
	paymentSvc := service.NewPaymentService(
		paymentRepo,
		applicationRepo,
		uploads,
		auditRepo,
		cacheSvc,
		validate,
		logr,
	)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, export.NewCSVExporter(), export.NewPDFExporter(), cacheSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Users:        userRepo,
		Courses:      courseRepo,
		Enrollments:  enrollmentRepo,
		Applications: applicationRepo,
		Payments:     paymentRepo,
		Cache:        cacheSvc,
		Logger:       logr,
		Config:       service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})
	auditSvc := service.NewAuditService(auditRepo, export.NewCSVExporter(), logr)

	authHandler := handler.NewAuthHandler(authSvc, userSvc)
	userHandler := handler.NewUserHandler(userSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	auditLogHandler := handler.NewAuditLogHandler(auditSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		session := auth.Group("", middleware.JWT(authSvc))
		session.POST("/logout", authHandler.Logout)
		session.POST("/change-password", authHandler.ChangePassword)
		session.GET("/me", authHandler.Profile)
	}

	users := api.Group("/users", middleware.JWT(authSvc))
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
		users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
		users.PUT("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Update)
		users.POST("/:id/promote", middleware.RequireRoles(models.RoleAdmin), userHandler.Promote)
		users.POST("/:id/reset-password", middleware.RequireRoles(models.RoleAdmin), userHandler.ResetPassword)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Delete)
	}

	courses := api.Group("/courses", middleware.JWT(authSvc))
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Get)
		courses.POST("", middleware.RequireRoles(models.RoleAdmin), courseHandler.Create)
		courses.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), courseHandler.Update)
		courses.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), courseHandler.Delete)
	}

	applications := api.Group("/applications", middleware.JWT(authSvc))
	{
		applications.POST("", applicationHandler.Submit)
		applications.GET("", applicationHandler.List)
		applications.GET("/:id", applicationHandler.Get)
		applications.POST("/:id/approve", middleware.RequireRoles(models.RoleAdmin), applicationHandler.Approve)
		applications.POST("/:id/reject", middleware.RequireRoles(models.RoleAdmin), applicationHandler.Reject)
		applications.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), applicationHandler.Delete)
	}

	payments := api.Group("/payments", middleware.JWT(authSvc))
	{
		payments.POST("", paymentHandler.Record)
		payments.GET("", paymentHandler.List)
		payments.GET("/:id", paymentHandler.Get)
		payments.PUT("/:id/status", middleware.RequireRoles(models.RoleAdmin), paymentHandler.UpdateStatus)
		payments.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), paymentHandler.Delete)
	}

	enrollments := api.Group("/enrollments", middleware.JWT(authSvc))
	{
		enrollments.POST("/select", enrollmentHandler.SelfSelect)
		enrollments.GET("", enrollmentHandler.List)
		enrollments.GET("/export",
			middleware.RequireRoles(models.RoleAdmin),
			middleware.Audit(auditRepo, "EXPORT_ROSTER", "enrollments"),
			enrollmentHandler.Export,
		)
	}

	dashboard := api.Group("/dashboard", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	dashboard.GET("/admin", dashboardHandler.Admin)

	auditLogs := api.Group("/audit-logs", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		auditLogs.GET("", auditLogHandler.List)
		auditLogs.GET("/export", middleware.Audit(auditRepo, "EXPORT_AUDIT_LOGS", "audit_logs"), auditLogHandler.Export)
		auditLogs.DELETE("/:id", auditLogHandler.Delete)
		auditLogs.DELETE("", auditLogHandler.Clear)
	}

	apiMetrics := api.Group("/metrics", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	apiMetrics.GET("/snapshot", metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
