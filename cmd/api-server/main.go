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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/vms-api/api/swagger"
	"github.com/noah-isme/vms-api/internal/handler"
	"github.com/noah-isme/vms-api/internal/middleware"
	"github.com/noah-isme/vms-api/internal/repository"
	"github.com/noah-isme/vms-api/internal/service"
	"github.com/noah-isme/vms-api/pkg/cache"
	"github.com/noah-isme/vms-api/pkg/config"
	"github.com/noah-isme/vms-api/pkg/database"
	"github.com/noah-isme/vms-api/pkg/jobs"
	"github.com/noah-isme/vms-api/pkg/logger"
	"github.com/noah-isme/vms-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/vms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/vms-api/pkg/middleware/requestid"
	"github.com/noah-isme/vms-api/pkg/qr"
	"github.com/noah-isme/vms-api/pkg/storage"
)

// @title VMS API
// @version 1.0.0
// @description Visitor management backend: registration, host approvals, pre-approved visits and gate operations.
// @BasePath /api
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheSvc service.Cache
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheSvc = service.NewRedisCache(redisClient, metricsSvc, logr)
		}
	}

	photoStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	notifier := service.InstrumentNotifier(mailer.New(cfg.SMTP, logr), metricsSvc)
	encoder := qr.NewEncoder(256)

	visitorRepo := repository.NewVisitorRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)

	dispatcher := service.NewAlertDispatcher(notifier, cfg.BaseURL, jobs.QueueConfig{
		Workers: 2,
		Logger:  logr,
	})

	visitorSvc := service.NewVisitorService(visitorRepo, employeeRepo, dispatcher, photoStore, cfg.Visits.ApprovalTTL, logr)
	approvalSvc := service.NewApprovalService(visitorRepo, notifier, encoder, cfg.BaseURL, logr)
	preApprovalSvc := service.NewPreApprovalService(visitorRepo, employeeRepo, notifier, encoder, cacheSvc, nil, cfg.Visits.LimitsCacheTTL, logr)
	employeeSvc := service.NewEmployeeService(employeeRepo, visitorRepo, logr)
	authSvc := service.NewAuthService(employeeRepo, cfg.JWT, logr)
	dashboardSvc := service.NewDashboardService(visitorRepo, cacheSvc, cfg.Visits.DashboardCacheTTL, logr)
	exportSvc := service.NewExportService(visitorRepo)

	visitorHandler := handler.NewVisitorHandler(visitorSvc, signer, cfg.BaseURL, cfg.Uploads.MaxFileSizeBytes)
	approvalHandler := handler.NewApprovalHandler(approvalSvc)
	preApprovalHandler := handler.NewPreApprovalHandler(preApprovalSvc)
	employeeHandler := handler.NewEmployeeHandler(employeeSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, metricsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	fileHandler := handler.NewFileHandler(signer, photoStore)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/auth/login", authHandler.Login)

		api.POST("/visitors", visitorHandler.Register)
		api.GET("/visitors", visitorHandler.List)
		api.GET("/visitors/search", visitorHandler.Search)
		api.GET("/visitors/status/:status", visitorHandler.ByStatus)
		api.GET("/visitors/:id", visitorHandler.Get)
		api.PUT("/visitors/:id", visitorHandler.Update)
		api.POST("/visitors/:id/photo", visitorHandler.UploadPhoto)
		api.GET("/visitors/:id/photo", visitorHandler.Photo)
		api.POST("/visitors/:id/checkin", visitorHandler.CheckIn)
		api.POST("/visitors/:id/checkout", visitorHandler.CheckOut)

		// Decision links arrive by email, so GET is accepted alongside POST.
		api.GET("/approvals/approve/:token", approvalHandler.Approve)
		api.POST("/approvals/approve/:token", approvalHandler.Approve)
		api.GET("/approvals/reject/:token", approvalHandler.Reject)
		api.POST("/approvals/reject/:token", approvalHandler.Reject)

		// Gate kiosks scan the pass token directly, no employee session.
		api.POST("/preapprovals/checkin/:token", preApprovalHandler.QuickCheckIn)

		api.GET("/files/:token", fileHandler.Download)

		protected := api.Group("")
		protected.Use(middleware.JWT(authSvc))
		{
			protected.DELETE("/visitors/:id", visitorHandler.Delete)

			protected.GET("/approvals/pending", approvalHandler.Pending)
			protected.POST("/approvals/sweep", approvalHandler.Sweep)

			protected.POST("/preapprovals", preApprovalHandler.Create)
			protected.GET("/preapprovals", preApprovalHandler.List)
			protected.GET("/preapprovals/limits", preApprovalHandler.Limits)
			protected.GET("/preapprovals/:id", preApprovalHandler.Get)
			protected.PUT("/preapprovals/:id", preApprovalHandler.Update)
			protected.POST("/preapprovals/:id/cancel", preApprovalHandler.Cancel)

			protected.POST("/employees", employeeHandler.Create)
			protected.GET("/employees", employeeHandler.List)
			protected.GET("/employees/email/:email", employeeHandler.GetByEmail)
			protected.GET("/employees/:id", employeeHandler.Get)
			protected.PUT("/employees/:id", employeeHandler.Update)
			protected.DELETE("/employees/:id", employeeHandler.Delete)

			protected.GET("/exports/visitors", exportHandler.VisitorLog)
			protected.GET("/dashboard/summary", dashboardHandler.Summary)
			protected.GET("/dashboard/system", dashboardHandler.System)
		}
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(rootCtx)
	defer dispatcher.Stop()

	go runExpirySweep(rootCtx, approvalSvc, cfg.Visits.SweepInterval, logr)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// runExpirySweep periodically expires lapsed pending approvals so abandoned
// requests do not linger as pending.
func runExpirySweep(ctx context.Context, approvals *service.ApprovalService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := approvals.SweepExpired(ctx); err != nil {
				logr.Sugar().Warnw("expiry sweep failed", "error", err)
			}
		}
	}
}
