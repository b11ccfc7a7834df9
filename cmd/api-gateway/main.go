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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sidang-api/api/swagger"
	"github.com/noah-isme/sidang-api/internal/handler"
	"github.com/noah-isme/sidang-api/internal/middleware"
	"github.com/noah-isme/sidang-api/internal/models"
	"github.com/noah-isme/sidang-api/internal/repository"
	"github.com/noah-isme/sidang-api/internal/service"
	"github.com/noah-isme/sidang-api/pkg/cache"
	"github.com/noah-isme/sidang-api/pkg/calendar"
	"github.com/noah-isme/sidang-api/pkg/config"
	"github.com/noah-isme/sidang-api/pkg/database"
	"github.com/noah-isme/sidang-api/pkg/export"
	"github.com/noah-isme/sidang-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sidang-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sidang-api/pkg/middleware/requestid"
	"github.com/noah-isme/sidang-api/pkg/response"
)

// @title Sidang API
// @version 0.1.0
// @description Thesis-exam submission and scheduling service
// @BasePath /
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	examRepo := repository.NewExamRepository(db)
	userRepo := repository.NewUserRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	tokenRepo := repository.NewCalendarTokenRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authService := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "sidang-api",
	})
	notificationService := service.NewNotificationService(notificationRepo, logr)
	availabilityService := service.NewAvailabilityService(examRepo, validate, logr)
	roomService := service.NewRoomService(roomRepo, redisClient, cfg.Rooms.DirectoryCacheTTL, metrics, validate, logr)
	userService := service.NewUserService(userRepo, logr)
	exportService := service.NewExportService(examRepo, export.NewScheduleSheet(), logr)
	examService := service.NewExamService(examRepo, userRepo, notificationService, auditRepo, metrics, validate, logr)

	calendarClient := calendar.NewClient(cfg.Calendar.BaseURL, cfg.Calendar.CalendarID, cfg.Calendar.HTTPTimeout, logr)
	refresher := service.NewOAuthRefresher(cfg.Calendar.ClientID, cfg.Calendar.ClientSecret, cfg.Calendar.TokenURL)
	calendarService := service.NewCalendarSyncService(tokenRepo, calendarClient, refresher, examRepo, userRepo, roomRepo, cfg.Calendar.RefreshMargin, validate, logr)

	var syncer service.CalendarSyncer
	if cfg.Calendar.Enabled {
		syncer = calendarService
	}
	schedulingService := service.NewSchedulingService(
		examRepo, userRepo, roomRepo, availabilityService,
		notificationService, syncer, auditRepo, metrics, validate, logr,
	)

	completionService := service.NewCompletionService(examRepo, metrics, cfg.Sweep.Interval, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sweep.Enabled {
		completionService.Start(rootCtx)
		defer completionService.Stop()
	}
	if cfg.Calendar.Enabled {
		calendarService.Start(rootCtx)
		defer calendarService.Stop()
	}

	authHandler := handler.NewAuthHandler(authService)
	examHandler := handler.NewExamHandler(examService, schedulingService, availabilityService)
	roomHandler := handler.NewRoomHandler(roomService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	calendarHandler := handler.NewCalendarHandler(calendarService)
	userHandler := handler.NewUserHandler(userService)
	exportHandler := handler.NewExportHandler(exportService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	protected.GET("/me", userHandler.Me)
	protected.GET("/lecturers", userHandler.Lecturers)

	protected.POST("/exams", middleware.RequireRoles(models.RoleStudent), examHandler.Submit)
	protected.GET("/exams", examHandler.List)
	protected.GET("/exams/:id", examHandler.Get)
	protected.POST("/exams/:id/accept", middleware.RequireRoles(models.RoleAdmin), examHandler.Accept)
	protected.POST("/exams/:id/reject", middleware.RequireRoles(models.RoleAdmin), examHandler.Reject)
	protected.POST("/exams/:id/assign", middleware.RequireRoles(models.RoleAdmin), examHandler.Assign)

	protected.POST("/scheduling/availability", middleware.RequireRoles(models.RoleAdmin), examHandler.CheckAvailability)
	protected.POST("/scheduling/sweep", middleware.RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		promoted, err := completionService.SweepNow(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, gin.H{"promoted": promoted}, nil)
	})

	protected.GET("/rooms", roomHandler.List)
	protected.GET("/rooms/:id", roomHandler.Get)
	protected.POST("/rooms", middleware.RequireRoles(models.RoleAdmin), roomHandler.Create)
	protected.PUT("/rooms/:id", middleware.RequireRoles(models.RoleAdmin), roomHandler.Update)
	protected.DELETE("/rooms/:id", middleware.RequireRoles(models.RoleAdmin), roomHandler.Delete)

	protected.GET("/notifications", notificationHandler.Inbox)

	protected.GET("/calendar/account", middleware.RequireRoles(models.RoleAdmin), calendarHandler.Status)
	protected.PUT("/calendar/account", middleware.RequireRoles(models.RoleAdmin), calendarHandler.Link)
	protected.DELETE("/calendar/account", middleware.RequireRoles(models.RoleAdmin), calendarHandler.Unlink)

	protected.GET("/exports/schedule", middleware.RequireRoles(models.RoleAdmin), exportHandler.ScheduleSheet)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
