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

	_ "github.com/proedge/enrollment-api/api/swagger"
	"github.com/proedge/enrollment-api/internal/gateway"
	"github.com/proedge/enrollment-api/internal/handler"
	"github.com/proedge/enrollment-api/internal/middleware"
	"github.com/proedge/enrollment-api/internal/repository"
	"github.com/proedge/enrollment-api/internal/service"
	"github.com/proedge/enrollment-api/pkg/cache"
	"github.com/proedge/enrollment-api/pkg/config"
	"github.com/proedge/enrollment-api/pkg/database"
	"github.com/proedge/enrollment-api/pkg/export"
	"github.com/proedge/enrollment-api/pkg/jobs"
	"github.com/proedge/enrollment-api/pkg/logger"
	corsmiddleware "github.com/proedge/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/proedge/enrollment-api/pkg/middleware/requestid"
	"github.com/proedge/enrollment-api/pkg/storage"
)

// @title ProEdge Enrollment API
// @version 1.0.0
// @description Enrollment, payment and invoicing service for ProEdge Learning
// @BasePath /api/v1
// @schemes http https
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Referral lookups fall back to the database without Redis.
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	invoiceStore, err := storage.NewLocalStorage(cfg.Invoices.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare invoice storage", "error", err)
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	counterRepo := repository.NewCounterRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	paymentGateway := gateway.NewRazorpayGateway(cfg.Razorpay, logr)
	signer := storage.NewSignedURLSigner(cfg.Invoices.SignedURLSecret, cfg.Invoices.SignedURLTTL)
	renderer := export.NewInvoicePDFRenderer("ProEdge Learning")

	queueCfg := jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}

	metricsSvc := service.NewMetricsService()
	identitySvc := service.NewIdentityService(userRepo, counterRepo, logr)
	referralSvc := service.NewReferralService(referralRepo, cacheRepo, validate, logr, cfg.Referrals)
	invoiceSvc := service.NewInvoiceService(invoiceRepo, counterRepo, renderer, invoiceStore, signer, logr, cfg.Invoices, queueCfg)
	notificationSvc := service.NewNotificationService(logr, queueCfg)
	admissionSvc := service.NewAdmissionService(db, userRepo, courseRepo, batchRepo, enrollmentRepo, paymentRepo,
		identitySvc, referralSvc, invoiceSvc, paymentGateway, notificationSvc, metricsSvc, validate, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	invoiceSvc.Start(ctx)
	defer invoiceSvc.Stop()
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	admissionHandler := handler.NewAdmissionHandler(admissionSvc)
	paymentHandler := handler.NewPaymentHandler(admissionSvc, invoiceSvc, paymentGateway)
	referralHandler := handler.NewReferralHandler(referralSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

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

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/enrollments/initiate", admissionHandler.Initiate)
		api.POST("/payments/verify", paymentHandler.Verify)
		api.POST("/payments/webhook", paymentHandler.Webhook)
		api.GET("/referrals/:code", referralHandler.Preview)
		api.GET("/invoices/download", paymentHandler.DownloadInvoice)

		api.POST("/auth/login", authHandler.Login)

		admin := api.Group("")
		admin.Use(middleware.JWT(authSvc), middleware.RequireAdmin())
		{
			admin.GET("/enrollments", admissionHandler.List)
			admin.GET("/payments", paymentHandler.List)
			admin.POST("/referrals", referralHandler.Create)
			admin.GET("/referrals", referralHandler.List)
			admin.DELETE("/referrals/:id", referralHandler.Delete)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
