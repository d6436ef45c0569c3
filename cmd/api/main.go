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

	_ "github.com/stfrancis-sis/enrollment-api/api/swagger"
	"github.com/stfrancis-sis/enrollment-api/internal/events"
	"github.com/stfrancis-sis/enrollment-api/internal/handler"
	"github.com/stfrancis-sis/enrollment-api/internal/middleware"
	"github.com/stfrancis-sis/enrollment-api/internal/models"
	"github.com/stfrancis-sis/enrollment-api/internal/repository"
	"github.com/stfrancis-sis/enrollment-api/internal/service"
	"github.com/stfrancis-sis/enrollment-api/pkg/cache"
	"github.com/stfrancis-sis/enrollment-api/pkg/config"
	"github.com/stfrancis-sis/enrollment-api/pkg/database"
	"github.com/stfrancis-sis/enrollment-api/pkg/export"
	"github.com/stfrancis-sis/enrollment-api/pkg/logger"
	corsmiddleware "github.com/stfrancis-sis/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/stfrancis-sis/enrollment-api/pkg/middleware/requestid"

	"go.uber.org/zap"
)

// @title Enrollment & Billing API
// @version 1.0.0
// @description School enrollment lifecycle and billing reconciliation
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard caching disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	enrollmentRepo := repository.NewEnrollmentRepository(db, cfg.Enrollment.CodeRetries)
	studentRepo := repository.NewStudentRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db, cfg.Enrollment.CodeRetries)
	paymentRepo := repository.NewPaymentRepository(db)
	receiptRepo := repository.NewReceiptRepository(db, cfg.Enrollment.CodeRetries)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Event subscribers and dispatcher.
	metricsSvc := service.NewMetricsService()
	dashboardSvc := service.NewDashboardService(enrollmentRepo, invoiceRepo, periodRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)
	auditRecorder := events.NewAuditRecorder(userRepo)

	syncSubs := []events.Subscriber{auditRecorder, metricsSvc, dashboardSvc}
	var asyncSubs []events.Subscriber
	if cfg.Notifications.Enabled {
		notifier := events.NewGuardianNotifier(studentRepo, events.NewLogMailer(logr), cfg.Notifications.FromAddress, logr)
		asyncSubs = append(asyncSubs, notifier)
	}
	dispatcher := events.NewDispatcher(syncSubs, asyncSubs, events.DispatcherConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	// Services.
	pdfExporter := export.NewPDFExporter(export.Letterhead{
		SchoolName: cfg.Receipts.SchoolName,
		Address:    cfg.Receipts.SchoolAddress,
	})
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "enrollment-api",
	})
	eligibility := service.NewEligibilityChecker(enrollmentRepo, cfg.Enrollment.RequireOpenPeriod, logr)
	feeResolver := service.NewFeeResolver(feeRepo, logr)
	billingSvc := service.NewBillingService(invoiceRepo, paymentRepo, enrollmentRepo, pdfExporter, dispatcher, validate, logr,
		cfg.Billing.DefaultDueDays, cfg.Billing.AllowOverpayment)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, periodRepo, eligibility, feeResolver, billingSvc,
		dispatcher, validate, logr)
	receiptSvc := service.NewReceiptService(receiptRepo, paymentRepo, pdfExporter, dispatcher, validate, logr)
	feeSvc := service.NewFeeService(feeRepo, userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, periodRepo, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	invoiceHandler := handler.NewInvoiceHandler(billingSvc)
	paymentHandler := handler.NewPaymentHandler(billingSvc)
	receiptHandler := handler.NewReceiptHandler(receiptSvc)
	feeHandler := handler.NewFeeHandler(feeSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Options{
		Origins: cfg.CORS.AllowedOrigins,
		Methods: cfg.CORS.AllowedMethods,
		Headers: cfg.CORS.AllowedHeaders,
		MaxAge:  cfg.CORS.MaxAge,
	}))
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

	api := r.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	staff := []models.UserRole{models.RoleAdmin, models.RoleRegistrar, models.RoleCashier}

	enrollments := protected.Group("/enrollments")
	enrollments.GET("", middleware.RequireRoles(staff...), enrollmentHandler.List)
	enrollments.GET("/:id", middleware.RequireRoles(append(staff, models.RoleGuardian)...), enrollmentHandler.Get)
	enrollments.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar, models.RoleGuardian), enrollmentHandler.Submit)
	enrollments.PUT("/:id/approve", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), enrollmentHandler.Approve)
	enrollments.PUT("/:id/reject", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), enrollmentHandler.Reject)
	enrollments.PUT("/:id/documents", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), enrollmentHandler.ReviewDocuments)
	enrollments.PUT("/:id/advance", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), enrollmentHandler.Advance)
	enrollments.POST("/bulk-approve", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), enrollmentHandler.BulkApprove)
	enrollments.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), enrollmentHandler.Delete)

	invoices := protected.Group("/invoices")
	invoices.GET("", middleware.RequireRoles(staff...), invoiceHandler.List)
	invoices.GET("/:id", middleware.RequireRoles(append(staff, models.RoleGuardian)...), invoiceHandler.Get)
	invoices.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleCashier), invoiceHandler.Issue)
	invoices.PUT("/:id/send", middleware.RequireRoles(models.RoleAdmin, models.RoleCashier), invoiceHandler.Send)
	invoices.PUT("/:id/cancel", middleware.RequireRoles(models.RoleAdmin, models.RoleCashier), invoiceHandler.Cancel)
	invoices.GET("/:id/statement", middleware.RequireRoles(append(staff, models.RoleGuardian)...), invoiceHandler.Statement)
	invoices.POST("/:id/payments", middleware.RequireRoles(models.RoleAdmin, models.RoleCashier), paymentHandler.Record)

	payments := protected.Group("/payments")
	payments.GET("", middleware.RequireRoles(staff...), paymentHandler.List)
	payments.GET("/export", middleware.RequireRoles(models.RoleAdmin, models.RoleCashier), paymentHandler.Export)
	payments.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleCashier), paymentHandler.Update)
	payments.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), paymentHandler.Delete)

	receipts := protected.Group("/receipts")
	receipts.GET("", middleware.RequireRoles(staff...), receiptHandler.List)
	receipts.GET("/:id", middleware.RequireRoles(append(staff, models.RoleGuardian)...), receiptHandler.Get)
	receipts.GET("/:id/pdf", middleware.RequireRoles(append(staff, models.RoleGuardian)...), receiptHandler.PDF)
	receipts.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleCashier), receiptHandler.Issue)

	fees := protected.Group("/fees")
	fees.GET("", middleware.RequireRoles(staff...), feeHandler.List)
	fees.GET("/:id", middleware.RequireRoles(staff...), feeHandler.Get)
	fees.POST("", middleware.RequireRoles(models.RoleAdmin), feeHandler.Create)
	fees.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), feeHandler.Update)
	fees.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), feeHandler.Deactivate)

	students := protected.Group("/students")
	students.GET("", middleware.RequireRoles(staff...), studentHandler.List)
	students.GET("/:id", middleware.RequireRoles(append(staff, models.RoleGuardian)...), studentHandler.Get)
	protected.GET("/guardians/:id", middleware.RequireRoles(append(staff, models.RoleGuardian)...), studentHandler.Guardian)
	protected.GET("/periods", middleware.RequireRoles(append(staff, models.RoleGuardian)...), studentHandler.Periods)
	protected.GET("/periods/active", middleware.RequireRoles(append(staff, models.RoleGuardian)...), studentHandler.ActivePeriod)

	if cfg.Dashboard.Enabled {
		protected.GET("/dashboard", middleware.RequireRoles(staff...), dashboardHandler.Stats)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
