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

	_ "github.com/campuslib/library-api/api/swagger"
	"github.com/campuslib/library-api/internal/handler"
	"github.com/campuslib/library-api/internal/middleware"
	"github.com/campuslib/library-api/internal/models"
	"github.com/campuslib/library-api/internal/repository"
	"github.com/campuslib/library-api/internal/service"
	"github.com/campuslib/library-api/pkg/cache"
	"github.com/campuslib/library-api/pkg/config"
	"github.com/campuslib/library-api/pkg/database"
	"github.com/campuslib/library-api/pkg/logger"
	corsmiddleware "github.com/campuslib/library-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuslib/library-api/pkg/middleware/requestid"
)

// @title Campus Library API
// @version 1.0.0
// @description Library management service: catalog, loans and member profiles
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

	metrics := service.NewMetricsService()

	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, true)
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	bookRepo := repository.NewBookRepository(db)
	loanRepo := repository.NewLoanRepository(db)

	authSvc := service.NewAuthService(userRepo, profileRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "campus-library-api",
	})
	profileSvc := service.NewProfileService(profileRepo, validate, logr)
	bookSvc := service.NewBookService(bookRepo, validate, logr)
	loanSvc := service.NewLoanService(loanRepo, userRepo, validate, logr, metrics, cfg.Loans.Period)

	var dashboardSvc *service.DashboardService
	if cfg.Dashboard.Enabled {
		dashboardSvc = service.NewDashboardService(bookRepo, loanRepo, cacheSvc, logr, service.DashboardServiceConfig{
			CacheTTL: cfg.Dashboard.CacheTTL,
		})
	}

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(loanRepo, nil, nil, logr)
	}

	var sweeper *service.OverdueSweeper
	if cfg.Loans.SweepEnabled {
		sweeper = service.NewOverdueSweeper(loanRepo, dashboardSvc, metrics, logr, service.OverdueSweeperConfig{
			Interval: cfg.Loans.SweepInterval,
		})
	}

	authHandler := handler.NewAuthHandler(authSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	bookHandler := handler.NewBookHandler(bookSvc, dashboardSvc)
	loanHandler := handler.NewLoanHandler(loanSvc, exportSvc, dashboardSvc)

	var dashboardHandler *handler.DashboardHandler
	if dashboardSvc != nil {
		dashboardHandler = handler.NewDashboardHandler(dashboardSvc)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	profile := api.Group("/profile", middleware.JWT(authSvc))
	profile.GET("", profileHandler.Get)
	profile.PUT("", profileHandler.Update)

	books := api.Group("/books")
	books.GET("", middleware.OptionalJWT(authSvc), bookHandler.List)
	books.GET("/:id", middleware.OptionalJWT(authSvc), bookHandler.Get)
	books.POST("", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleLibrarian), bookHandler.Create)
	books.PUT("/:id", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleLibrarian), bookHandler.Update)
	books.DELETE("/:id", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleLibrarian), bookHandler.Delete)

	loans := api.Group("/loans", middleware.JWT(authSvc))
	loans.GET("", loanHandler.List)
	loans.GET("/my", loanHandler.My)
	loans.GET("/export", middleware.RequireRoles(models.RoleLibrarian), loanHandler.Export)
	loans.POST("", middleware.RequireRoles(models.RoleLibrarian), loanHandler.Create)
	loans.POST("/self", loanHandler.CreateSelf)
	loans.GET("/:id", loanHandler.Get)
	loans.POST("/:id/return", middleware.RequireRoles(models.RoleLibrarian), loanHandler.Return)

	if dashboardHandler != nil {
		api.GET("/dashboard", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleLibrarian), dashboardHandler.Summary)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sweeper != nil {
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
