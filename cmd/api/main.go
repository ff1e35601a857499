package main

import (
	"context"
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

	_ "github.com/campusbook/booking-api/api/swagger"
	"github.com/campusbook/booking-api/internal/handler"
	"github.com/campusbook/booking-api/internal/middleware"
	"github.com/campusbook/booking-api/internal/models"
	"github.com/campusbook/booking-api/internal/repository"
	"github.com/campusbook/booking-api/internal/service"
	"github.com/campusbook/booking-api/pkg/cache"
	"github.com/campusbook/booking-api/pkg/config"
	"github.com/campusbook/booking-api/pkg/database"
	"github.com/campusbook/booking-api/pkg/ics"
	"github.com/campusbook/booking-api/pkg/logger"
	corsmiddleware "github.com/campusbook/booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusbook/booking-api/pkg/middleware/requestid"
	"github.com/campusbook/booking-api/pkg/storage"
)

// @title Campus Booking API
// @version 1.0.0
// @description Appointment booking between students and faculty with resource blocking
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, directory cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	calendarGen := ics.NewGenerator(cfg.Calendar.Location, cfg.Calendar.ProductID, cfg.Calendar.DefaultDescription)

	authService := service.NewAuthService(userRepo, cacheRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "campusbook",
		Audience:           []string{"campusbook-api"},
		FacultyDomains:     cfg.Registration.FacultyDomains,
		StudentDomains:     cfg.Registration.StudentDomains,
	})
	directoryService := service.NewDirectoryService(userRepo, resourceRepo, cacheRepo, cfg.Directory.CacheTTL, logr)
	appointmentService := service.NewAppointmentService(appointmentRepo, userRepo, calendarGen, validate, logr)
	resourceService := service.NewResourceService(resourceRepo, userRepo, validate, logr)
	metricsService := service.NewMetricsService()

	var exportService *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportService = service.NewExportService(appointmentRepo, userRepo, store, signer, service.ExportQueueConfig{
			Workers:         cfg.Exports.WorkerConcurrency,
			MaxRetries:      cfg.Exports.WorkerRetries,
			RetryDelay:      5 * time.Second,
			CleanupInterval: cfg.Exports.CleanupInterval,
			RetainFor:       cfg.Exports.SignedURLTTL,
		}, logr)
	}

	authHandler := handler.NewAuthHandler(authService, cfg.Session.CookieName, cfg.Session.CookieTTL, cfg.Session.CookieSecure)
	directoryHandler := handler.NewDirectoryHandler(directoryService)
	appointmentHandler := handler.NewAppointmentHandler(appointmentService, metricsService)
	resourceHandler := handler.NewResourceHandler(resourceService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// The signin/signup pages live on the SPA; the gate only answers the
	// redirect question for visitors who still hold the session cookie.
	gate := middleware.SessionGate(cfg.Session.CookieName, cfg.Session.RedirectPath)
	r.GET("/signin", gate, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"page": "signin"})
	})
	r.GET("/signup", gate, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"page": "signup"})
	})

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	api.GET("/users", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin), authHandler.Accounts)

	directory := api.Group("/directory", middleware.JWT(authService))
	{
		directory.GET("/faculty", directoryHandler.Faculty)
		directory.GET("/resources", directoryHandler.Resources)
	}

	appointments := api.Group("/appointments", middleware.JWT(authService))
	{
		appointments.POST("", middleware.RequireRoles(models.RoleStudent), appointmentHandler.Create)
		appointments.GET("", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), appointmentHandler.List)
		appointments.GET("/:id", appointmentHandler.Get)
		appointments.POST("/:id/approve", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), appointmentHandler.Approve)
		appointments.POST("/:id/reject", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), appointmentHandler.Reject)
		appointments.GET("/:id/calendar", middleware.Audit(userRepo, models.AuditActionCalendarDownload, "appointments"), appointmentHandler.Calendar)
	}

	resourceBlocks := api.Group("/resource-blocks", middleware.JWT(authService))
	{
		resourceBlocks.POST("", resourceHandler.CreateBlock)
		resourceBlocks.GET("", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), resourceHandler.ListBlocks)
	}

	if exportService != nil {
		exportHandler := handler.NewExportHandler(exportService, metricsService)
		exports := api.Group("/exports")
		{
			exports.POST("/appointments", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin), exportHandler.Queue)
			exports.GET("/appointments/:id", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin), exportHandler.Status)
			exports.GET("/download", middleware.Audit(userRepo, models.AuditActionExportDownload, "exports"), exportHandler.Download)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if exportService != nil {
		exportService.Start(ctx)
		defer exportService.Stop()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
