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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tutoring-ledger-api/api/swagger"
	"github.com/noah-isme/tutoring-ledger-api/internal/handler"
	"github.com/noah-isme/tutoring-ledger-api/internal/middleware"
	"github.com/noah-isme/tutoring-ledger-api/internal/repository"
	"github.com/noah-isme/tutoring-ledger-api/internal/service"
	"github.com/noah-isme/tutoring-ledger-api/pkg/cache"
	"github.com/noah-isme/tutoring-ledger-api/pkg/config"
	"github.com/noah-isme/tutoring-ledger-api/pkg/database"
	"github.com/noah-isme/tutoring-ledger-api/pkg/export"
	"github.com/noah-isme/tutoring-ledger-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutoring-ledger-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutoring-ledger-api/pkg/middleware/requestid"
	"github.com/noah-isme/tutoring-ledger-api/pkg/storage"
)

// @title Tutoring Ledger API
// @version 1.0.0
// @description Lesson calendars, attendance ledgers and teacher wages for a tutoring center
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheRepo := newCacheRepository(cfg, logr)
	defer cacheRepo.Close() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	health := handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis":    cacheRepo.Ping,
	})
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.AccessTokenTTL,
		Issuer:            cfg.JWT.Issuer,
	})
	handler.RegisterRoutes(r.Group(cfg.APIPrefix), buildHandlers(cfg, db, cacheRepo, metrics, logr), auth, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

// newCacheRepository connects Redis when caching is enabled. Without it the
// repository degrades to permanent misses.
func newCacheRepository(cfg *config.Config, logr *zap.Logger) *repository.CacheRepository {
	if !cfg.Cache.Enabled {
		return repository.NewCacheRepository(nil, cfg.Cache.Prefix, logr)
	}
	client, err := cache.NewRedis(context.Background(), cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, wage aggregates will not be cached", zap.Error(err))
		return repository.NewCacheRepository(nil, cfg.Cache.Prefix, logr)
	}
	return repository.NewCacheRepository(client, cfg.Cache.Prefix, logr)
}

// newPayrollArchive returns nil when archiving is disabled or the directory
// cannot be prepared.
func newPayrollArchive(cfg config.ExportConfig, logr *zap.Logger) service.ReportArchive {
	if cfg.ArchiveDir == "" {
		return nil
	}
	archive, err := storage.NewArchive(cfg.ArchiveDir)
	if err != nil {
		logr.Warn("payroll archive disabled", zap.Error(err))
		return nil
	}
	if removed, err := archive.Prune(cfg.ArchiveTTL); err != nil {
		logr.Warn("payroll archive prune failed", zap.Error(err))
	} else if len(removed) > 0 {
		logr.Info("payroll archive pruned", zap.Int("files", len(removed)))
	}
	return archive
}

func buildHandlers(cfg *config.Config, db *sqlx.DB, cacheRepo *repository.CacheRepository, metrics *service.MetricsService, logr *zap.Logger) handler.Handlers {
	validate := validator.New()

	classRepo := repository.NewClassRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	userRepo := repository.NewUserRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	wageRepo := repository.NewWageRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.WageStatsTTL, logr, cfg.Cache.Enabled)

	scheduleSvc := service.NewScheduleService(classRepo, logr)
	attendanceSvc := service.NewAttendanceService(classRepo, attendanceRepo, userRepo, metrics, validate, logr)
	wageSvc := service.NewWageService(wageRepo, attendanceRepo, teacherRepo, cacheSvc, metrics, service.WageServiceConfig{
		UpdateRetries:  cfg.Wages.UpdateRetries,
		Currency:       cfg.Wages.Currency,
		StatsTTL:       cfg.Cache.WageStatsTTL,
		OutstandingTTL: cfg.Cache.OutstandingTTL,
	}, validate, logr)
	exportSvc := service.NewPayrollExportService(wageRepo, service.PayrollExportConfig{
		PDFTitle: cfg.Export.PDFTitle,
		Currency: cfg.Wages.Currency,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter(), newPayrollArchive(cfg.Export, logr))

	return handler.Handlers{
		Schedule:   handler.NewScheduleHandler(scheduleSvc),
		Attendance: handler.NewAttendanceHandler(attendanceSvc),
		Wages:      handler.NewWageHandler(wageSvc, exportSvc),
	}
}
