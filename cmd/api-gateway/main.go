package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/points-rewards-api/api/swagger"
	"github.com/noah-isme/points-rewards-api/internal/handler"
	internalmiddleware "github.com/noah-isme/points-rewards-api/internal/middleware"
	"github.com/noah-isme/points-rewards-api/internal/models"
	"github.com/noah-isme/points-rewards-api/internal/repository"
	"github.com/noah-isme/points-rewards-api/internal/service"
	"github.com/noah-isme/points-rewards-api/pkg/cache"
	"github.com/noah-isme/points-rewards-api/pkg/config"
	"github.com/noah-isme/points-rewards-api/pkg/database"
	"github.com/noah-isme/points-rewards-api/pkg/logger"
	"github.com/noah-isme/points-rewards-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/points-rewards-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/points-rewards-api/pkg/middleware/requestid"
)

// @title Points Rewards API
// @version 1.0.0
// @description Multi-department points and rewards approval workflow
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, history cache and realtime events disabled", zap.Error(err))
		cfg.Notifications.EventsEnabled = false
		cfg.Workflow.HistoryCacheEnabled = false
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	requestRepo := repository.NewPointsRequestRepository(db)
	awardRepo := repository.NewPointsAwardRepository(db)

	var (
		cacheRepo *repository.CacheRepository
		events    interface {
			Publish(ctx context.Context, event models.Event) error
		}
		cacheBackend service.CacheRepository
	)
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		cacheBackend = cacheRepo
		events = repository.NewEventPublisher(redisClient, cfg.Notifications.ChannelPrefix)
	}
	cacheSvc := service.NewCacheService(cacheBackend, metricsSvc, cfg.Workflow.HistoryCacheTTL, logr, cfg.Workflow.HistoryCacheEnabled)

	dispatcher := service.NewNotificationDispatcher(mailer.NewSMTPMailer(cfg.SMTP, logr), events, cfg.Notifications, metricsSvc, logr)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	calculator := service.NewPointsCalculator(
		models.ParseGradePolicy(cfg.Workflow.GradePolicyDirectAward),
		models.ParseGradePolicy(cfg.Workflow.GradePolicyEmployeeRaised),
	)
	pointsSvc := service.NewPointsRequestService(requestRepo, awardRepo, categoryRepo, userRepo, calculator, dispatcher, validate, logr,
		service.WithPointsCache(cacheSvc),
		service.WithPointsMetrics(metricsSvc),
	)
	historySvc := service.NewHistoryService(requestRepo, awardRepo, categoryRepo, userRepo, cacheSvc, cfg.Workflow.HistoryRequireEmployee, logr)
	categorySvc := service.NewCategoryService(categoryRepo, userRepo, logr)
	importSvc := service.NewBulkImportService(userRepo, categoryRepo, pointsSvc, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	categoryHandler := handler.NewCategoryHandler(categorySvc)
	pointsHandler := handler.NewPointsRequestHandler(pointsSvc, importSvc)
	historyHandler := handler.NewHistoryHandler(historySvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc.Handler(), readinessChecks(db, cacheRepo))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))
	secured.GET("/auth/me", authHandler.Me)
	secured.GET("/me/points", pointsHandler.MyPoints)
	secured.GET("/categories", categoryHandler.List)
	secured.GET("/departments/:department/validators", categoryHandler.Validators)

	staff := internalmiddleware.RequireRoleKind(models.RoleKindValidator, models.RoleKindUpdater)
	validators := internalmiddleware.RequireRoleKind(models.RoleKindValidator)
	updaters := internalmiddleware.RequireRoleKind(models.RoleKindUpdater)

	secured.GET("/departments/:department/pending", staff, pointsHandler.Pending)
	secured.GET("/departments/:department/history", staff, historyHandler.History)

	requests := secured.Group("/points-requests")
	requests.POST("", internalmiddleware.Audit(logr, "points_request.submit"), pointsHandler.Submit)
	requests.POST("/bulk-import", updaters, internalmiddleware.Audit(logr, "points_request.bulk_import"), pointsHandler.BulkImport)
	requests.POST("/bulk-approve", validators, internalmiddleware.Audit(logr, "points_request.bulk_approve"), pointsHandler.BulkApprove)
	requests.POST("/bulk-reject", validators, internalmiddleware.Audit(logr, "points_request.bulk_reject"), pointsHandler.BulkReject)
	requests.POST("/:id/approve", validators, internalmiddleware.Audit(logr, "points_request.approve"), pointsHandler.Approve)
	requests.POST("/:id/reject", validators, internalmiddleware.Audit(logr, "points_request.reject"), pointsHandler.Reject)
	requests.PATCH("/:id", validators, internalmiddleware.Audit(logr, "points_request.update"), pointsHandler.UpdateRecord)
	requests.DELETE("/:id", validators, internalmiddleware.Audit(logr, "points_request.delete"), pointsHandler.DeleteRecord)
	requests.PATCH("/:id/utilization", staff, internalmiddleware.Audit(logr, "points_request.utilization"), pointsHandler.UpdateUtilization)

	secured.PATCH("/points-awards/:id/utilization", validators, internalmiddleware.Audit(logr, "points_award.utilization"), pointsHandler.UpdateAwardUtilization)

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

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
}

func readinessChecks(db *sqlx.DB, cacheRepo *repository.CacheRepository) map[string]handler.Pinger {
	checks := map[string]handler.Pinger{
		"postgres": handler.PingFunc(db.PingContext),
	}
	if cacheRepo != nil {
		checks["redis"] = cacheRepo
	}
	return checks
}
