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
	"go.uber.org/zap"

	_ "github.com/kiddohub/kindergarten-admin-api/api/swagger"
	"github.com/kiddohub/kindergarten-admin-api/internal/repository"
	"github.com/kiddohub/kindergarten-admin-api/internal/router"
	"github.com/kiddohub/kindergarten-admin-api/internal/service"
	"github.com/kiddohub/kindergarten-admin-api/pkg/cache"
	"github.com/kiddohub/kindergarten-admin-api/pkg/config"
	"github.com/kiddohub/kindergarten-admin-api/pkg/database"
	"github.com/kiddohub/kindergarten-admin-api/pkg/jobs"
	"github.com/kiddohub/kindergarten-admin-api/pkg/logger"
	"github.com/kiddohub/kindergarten-admin-api/pkg/storage"
)

// @title Kindergarten Admin API
// @version 1.0.0
// @description Role-scoped administration backend for kindergarten chains:
// @description organizations, classes, teachers, children and daily
// @description selection-area activity records.
// @BasePath /api/v1
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	classRepo := repository.NewClassRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	childRepo := repository.NewChildRepository(db)
	areaRepo := repository.NewSelectionAreaRepository(db)
	recordRepo := repository.NewSelectionRecordRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()

	captchaSvc := service.NewCaptchaService(cacheRepo, logr, cfg.Captcha.Length, cfg.Captcha.TTL)
	authSvc := service.NewAuthService(userRepo, captchaSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	orgSvc := service.NewOrganizationService(orgRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, classRepo, validate, logr)
	childSvc := service.NewChildService(childRepo, classRepo, validate, logr)
	areaSvc := service.NewSelectionAreaService(areaRepo, classRepo, validate, logr)
	recordSvc := service.NewSelectionRecordService(recordRepo, childRepo, areaRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, cacheRepo, logr, cfg.Dashboard.CacheTTL, cfg.Dashboard.TrendDays)
	importSvc := service.NewImportService(teacherRepo, childRepo, orgRepo, classRepo, userRepo, logr)
	userSvc := service.NewUserService(userRepo, teacherRepo, validate, logr)
	metricsSvc := service.NewMetricsService()

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	mediaStore, err := storage.NewLocalStorage(cfg.Media.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare media storage", zap.Error(err))
	}

	apiPrefix := cfg.APIPrefix + "/v1"
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(recordRepo, exportStore, signer, service.ExportConfig{
		APIPrefix: apiPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})

	mediaSvc := service.NewMediaService(mediaStore, childSvc, childRepo, areaSvc, areaRepo, logr, cfg.Media.MaxFileSizeBytes)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportSvc.StartQueue(ctx)
	defer exportSvc.StopQueue()

	engine := router.New(router.Dependencies{
		Logger:         logr,
		Auth:           authSvc,
		Captcha:        captchaSvc,
		Organizations:  orgSvc,
		Classes:        classSvc,
		Children:       childSvc,
		Teachers:       teacherSvc,
		Areas:          areaSvc,
		Records:        recordSvc,
		Dashboard:      dashboardSvc,
		Exports:        exportSvc,
		Imports:        importSvc,
		Users:          userSvc,
		Media:          mediaSvc,
		Metrics:        metricsSvc,
		UserRepo:       userRepo,
		TeacherRepo:    teacherRepo,
		DB:             db,
		Redis:          redisClient,
		APIPrefix:      apiPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	// Expired export files are swept on a slow cadence so signed URLs
	// that already lapsed do not pin disk space.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed, err := exportSvc.Cleanup(cfg.Exports.SignedURLTTL); err != nil {
					logr.Warn("export cleanup failed", zap.Error(err))
				} else if len(removed) > 0 {
					logr.Info("expired exports removed", zap.Int("count", len(removed)))
				}
			}
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
