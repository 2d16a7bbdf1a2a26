package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/MichelBusse/erp-system-schuelertreff-sub001/api/swagger"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/handler"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/middleware"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/repository"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/service"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/cache"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/config"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/database"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/logger"
	corsmiddleware "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/middleware/cors"
	reqidmiddleware "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/middleware/requestid"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/storage"
)

// @title Schuelertreff Scheduling API
// @version 1.0.0
// @description Recurring lesson scheduling and teacher availability matching
// @BasePath /api/v1
// @schemes http

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
	defer db.Close()

	metricsService := service.NewMetricsService()

	var cacheService *service.CacheService
	if cfg.Suggestions.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, suggestion caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Suggestions.CacheTTL, logr, true)
		}
	}

	store, err := storage.NewLocalStorage(cfg.Leaves.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init attachment storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Leaves.SignedURLSecret, cfg.Leaves.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	contractRepo := repository.NewContractRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	leaveRepo := repository.NewLeaveRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)

	notificationService := service.NewNotificationService(userRepo, cfg.Effects.Workers, cfg.Effects.MaxRetries, logr)
	authService := service.NewAuthService(userRepo, cfg.JWT, nil, logr)
	conflictService := service.NewConflictService(contractRepo, lessonRepo, leaveRepo, metricsService, logr)
	suggestionService := service.NewSuggestionService(userRepo, contractRepo, leaveRepo, cacheService, metricsService,
		cfg.Suggestions.HorizonWeeks, cfg.Suggestions.CacheTTL, nil, logr)
	contractService := service.NewContractService(contractRepo, userRepo, lessonRepo, cacheService, cfg.Suggestions.HorizonWeeks, nil, logr)
	teacherService := service.NewTeacherService(userRepo, notificationService, cacheService, nil, logr)
	customerService := service.NewCustomerService(userRepo, cacheService, nil, logr)
	subjectService := service.NewSubjectService(subjectRepo, nil, logr)
	lessonService := service.NewLessonService(lessonRepo, contractRepo, nil, logr)
	leaveService := service.NewLeaveService(leaveRepo, userRepo, conflictService, cacheService,
		store, signer, cfg.Leaves.MaxFileSizeBytes, nil, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationService.Start(ctx)
	defer notificationService.Stop()

	authHandler := handler.NewAuthHandler(authService)
	suggestionHandler := handler.NewSuggestionHandler(suggestionService)
	contractHandler := handler.NewContractHandler(contractService)
	teacherHandler := handler.NewTeacherHandler(teacherService, conflictService)
	customerHandler := handler.NewCustomerHandler(customerService)
	subjectHandler := handler.NewSubjectHandler(subjectService)
	lessonHandler := handler.NewLessonHandler(lessonService)
	leaveHandler := handler.NewLeaveHandler(leaveService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	// Attachment downloads authenticate through the signed token instead
	// of a JWT, so browsers can open them directly.
	api.GET("/leaves/attachment", leaveHandler.DownloadAttachment)

	auth := api.Group("", middleware.JWT(authService))
	auth.GET("/auth/me", authHandler.Me)

	admin := string(models.RoleAdmin)
	teacher := string(models.RoleTeacher)

	auth.POST("/contracts/suggest", middleware.RBAC(admin), suggestionHandler.Suggest)
	auth.GET("/contracts", contractHandler.List)
	auth.POST("/contracts", middleware.RBAC(admin), contractHandler.Create)
	auth.GET("/contracts/:id", contractHandler.Get)
	auth.PUT("/contracts/:id", middleware.RBAC(admin), contractHandler.Update)
	auth.PUT("/contracts/:id/state", middleware.RBAC(admin, teacher), contractHandler.SetState)
	auth.DELETE("/contracts/:id", middleware.RBAC(admin), contractHandler.Delete)

	auth.GET("/teachers", middleware.RBAC(admin), teacherHandler.List)
	auth.POST("/teachers", middleware.RBAC(admin), teacherHandler.Create)
	auth.GET("/teachers/:id", middleware.RBAC(admin, "SELF"), teacherHandler.Get)
	auth.PUT("/teachers/:id", middleware.RBAC(admin, "SELF"), teacherHandler.Update)
	auth.PUT("/teachers/:id/application-state", middleware.RBAC(admin), teacherHandler.SetApplicationState)
	auth.DELETE("/teachers/:id", middleware.RBAC(admin), teacherHandler.Delete)
	auth.GET("/teachers/:id/blocked-contracts", middleware.RBAC(admin, "SELF"), teacherHandler.BlockedContracts)
	auth.GET("/teachers/:id/intersecting-leaves", middleware.RBAC(admin, "SELF"), teacherHandler.IntersectingLeaves)

	auth.GET("/customers", middleware.RBAC(admin), customerHandler.List)
	auth.POST("/customers", middleware.RBAC(admin), customerHandler.Create)
	auth.GET("/customers/:id", middleware.RBAC(admin), customerHandler.Get)
	auth.PUT("/customers/:id", middleware.RBAC(admin), customerHandler.Update)
	auth.DELETE("/customers/:id", middleware.RBAC(admin), customerHandler.Delete)
	auth.POST("/schools", middleware.RBAC(admin), customerHandler.CreateSchool)

	auth.GET("/subjects", subjectHandler.List)
	auth.POST("/subjects", middleware.RBAC(admin), subjectHandler.Create)
	auth.PUT("/subjects/:id", middleware.RBAC(admin), subjectHandler.Update)
	auth.DELETE("/subjects/:id", middleware.RBAC(admin), subjectHandler.Delete)

	auth.GET("/lessons", lessonHandler.List)
	auth.PUT("/lessons/:id", lessonHandler.Update)

	auth.POST("/leaves", leaveHandler.Create)
	auth.GET("/leaves/pending", middleware.RBAC(admin), leaveHandler.ListPending)
	auth.PUT("/leaves/:id", leaveHandler.Update)
	auth.PUT("/leaves/:id/state", middleware.RBAC(admin), leaveHandler.SetState)
	auth.DELETE("/leaves/:id", leaveHandler.Delete)
	auth.POST("/leaves/:id/attachment", leaveHandler.AttachProof)
	auth.GET("/leaves/:id/attachment-url", leaveHandler.AttachmentURL)
	auth.GET("/users/:id/leaves", leaveHandler.ListForUser)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
