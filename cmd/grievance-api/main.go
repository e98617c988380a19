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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/grievance-api/api/swagger"
	"github.com/noah-isme/grievance-api/internal/handler"
	"github.com/noah-isme/grievance-api/internal/repository"
	"github.com/noah-isme/grievance-api/internal/router"
	"github.com/noah-isme/grievance-api/internal/service"
	"github.com/noah-isme/grievance-api/pkg/ai"
	"github.com/noah-isme/grievance-api/pkg/cache"
	"github.com/noah-isme/grievance-api/pkg/config"
	"github.com/noah-isme/grievance-api/pkg/database"
	"github.com/noah-isme/grievance-api/pkg/jobs"
	"github.com/noah-isme/grievance-api/pkg/kv"
	"github.com/noah-isme/grievance-api/pkg/lock"
	"github.com/noah-isme/grievance-api/pkg/logger"
	"github.com/noah-isme/grievance-api/pkg/notify"
)

// @title Grievance API
// @version 1.0.0
// @description College grievance tracker with AI routing
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close() //nolint:errcheck
	}

	store, closeStore, err := openStore(ctx, cfg, rdb)
	if err != nil {
		logr.Fatal("failed to open store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer closeStore()

	var locker lock.Locker = lock.NewLocalLocker(cfg.Locks.Wait)
	if cfg.Store.Backend == config.StoreRedis {
		locker = lock.NewRedisLocker(rdb, cfg.Redis.KeyPrefix, cfg.Locks.TTL, cfg.Locks.Wait, logr)
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	users := repository.NewUserRepository(store)
	grievances := repository.NewGrievanceRepository(store)
	departments := repository.NewDepartmentRepository(store)
	aiLogs := repository.NewAILogRepository(store)

	var cacheRepo service.CacheRepository
	if cfg.Stats.CacheEnabled {
		cacheRepo = repository.NewCacheRepository(rdb, cfg.Redis.KeyPrefix, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled)

	departmentSvc := service.NewDepartmentService(departments, locker, validate, logr)
	if cfg.Departments.SeedDefaults {
		seeded, err := departmentSvc.SeedDefaults(ctx)
		if err != nil {
			logr.Fatal("failed to seed departments", zap.Error(err))
		}
		if seeded {
			logr.Info("default departments seeded")
		}
	}

	notifier := service.NewNotificationService(newMailer(cfg, logr), newAlerter(cfg, logr), users, metricsSvc, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	})
	notifier.Start(ctx)
	defer notifier.Stop()

	gemini := ai.NewClient(cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.APIKey, cfg.AI.Timeout)
	if !gemini.Enabled() {
		logr.Warn("GEMINI_API_KEY not set, grievances will be routed by keyword rules")
	}
	classifier := service.NewClassifierService(gemini, cfg.AI.Timeout, metricsSvc, logr)

	authSvc := service.NewAuthService(users, locker, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		AnonKey:           cfg.Auth.AnonKey,
	})
	grievanceSvc := service.NewGrievanceService(grievances, departments, aiLogs, classifier, notifier, cacheSvc, locker, validate, logr, service.GrievanceServiceConfig{
		HODDepartmentScopedWrites: cfg.Auth.HODDepartmentScopedWrites,
	})
	querySvc := service.NewQueryService(grievances, aiLogs, cacheSvc, cfg.Stats.CacheTTL, logr)
	exportSvc := service.NewExportService(querySvc, logr, nil, nil, nil)
	userSvc := service.NewUserService(users, logr)

	engine := router.New(router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Metrics:        metricsSvc,
		Resolver:       authSvc,
	}, router.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Grievance:  handler.NewGrievanceHandler(grievanceSvc, querySvc),
		Department: handler.NewDepartmentHandler(departmentSvc),
		Report:     handler.NewReportHandler(querySvc, exportSvc),
		User:       handler.NewUserHandler(userSvc),
		Metrics:    handler.NewMetricsHandler(metricsSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, rdb *redis.Client) (kv.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		return kv.NewRedisStore(rdb, cfg.Redis.KeyPrefix), func() {}, nil
	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store := kv.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.StoreMemory, "":
		return kv.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func newMailer(cfg *config.Config, logr *zap.Logger) notify.Mailer {
	if cfg.SMTP.Host == "" || cfg.SMTP.Username == "" || cfg.SMTP.Password == "" {
		logr.Warn("SMTP credentials missing, emails will only be logged")
		return notify.NewLogMailer(logr)
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		FromName: cfg.SMTP.FromName,
		Timeout:  cfg.SMTP.Timeout,
	})
}

func newAlerter(cfg *config.Config, logr *zap.Logger) notify.Alerter {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == 0 {
		return notify.NopAlerter{}
	}
	alerter, err := notify.NewTelegramAlerter(cfg.Telegram.BotToken, cfg.Telegram.ChatID, "", nil)
	if err != nil {
		logr.Warn("telegram alerts disabled", zap.Error(err))
		return notify.NopAlerter{}
	}
	return alerter
}
