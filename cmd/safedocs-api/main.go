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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	_ "github.com/noah-isme/safedocs-api/api/swagger"
	"github.com/noah-isme/safedocs-api/internal/handler"
	"github.com/noah-isme/safedocs-api/internal/repository"
	"github.com/noah-isme/safedocs-api/internal/service"
	"github.com/noah-isme/safedocs-api/pkg/cache"
	"github.com/noah-isme/safedocs-api/pkg/config"
	"github.com/noah-isme/safedocs-api/pkg/database"
	"github.com/noah-isme/safedocs-api/pkg/jobs"
	"github.com/noah-isme/safedocs-api/pkg/logger"
	"github.com/noah-isme/safedocs-api/pkg/middleware/ratelimit"
	"github.com/noah-isme/safedocs-api/pkg/response"
	"github.com/noah-isme/safedocs-api/pkg/storage"
)

// @title SafeDocs API
// @version 1.0.0
// @description University document sharing with friends, notifications and auditing
// @BasePath /
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
		response.MaskInternalErrors = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) (err error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer func() { err = multierr.Append(err, db.Close()) }()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			// caching is optional; every cache call degrades to a miss
			logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
			redisClient = nil
		}
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, "safedocs")
	defer func() { err = multierr.Append(err, cacheRepo.Close()) }()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, 5*time.Minute, logr, redisClient != nil)
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}

	auditStore, closeAudit, err := newAuditStore(ctx, cfg, db, checks)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeAudit()) }()

	validate := service.NewValidator()
	userRepo := repository.NewUserRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationSvc := service.NewNotificationService(notificationRepo, logr)
	queue := jobs.NewQueue("notifications", notificationSvc.Deliver, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
		OnResult:   metrics.RecordJob,
	})
	notificationSvc.UseQueue(queue)
	queue.Start(context.WithoutCancel(ctx))
	defer queue.Stop()

	auditSvc := service.NewAuditService(auditStore, cacheSvc, cfg.Audit.StatsCacheTTL, logr)
	auditSvc.UseMetrics(metrics)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		Issuer:             cfg.JWT.Issuer,
		AllowedEmailDomain: cfg.Auth.AllowedEmailDomain,
		BcryptCost:         cfg.Auth.BcryptCost,
	})
	userSvc := service.NewUserService(userRepo, documentRepo, friendRepo, validate, logr)
	friendSvc := service.NewFriendService(friendRepo, userRepo, notificationSvc, cacheSvc, validate, logr, service.FriendConfig{
		SuggestionLimit: cfg.Friends.SuggestionLimit,
		SuggestionTTL:   cfg.Friends.SuggestionCacheTTL,
	})
	documentSvc := service.NewDocumentService(
		documentRepo,
		friendRepo,
		userRepo,
		store,
		storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL),
		notificationSvc,
		auditSvc,
		validate,
		logr,
		service.DocumentConfig{
			MaxFileSize:       cfg.Uploads.MaxFileSizeBytes,
			AllowedExtensions: cfg.Uploads.AllowedExtensions,
			PublicBaseURL:     cfg.Uploads.PublicBaseURL,
		},
	)
	presenceSvc := service.NewPresenceService(userRepo, cacheSvc, cfg.Auth.PresenceInterval, logr)

	if cfg.Seed.AdminPassword != "" {
		created, err := userSvc.EnsureSuperAdmin(ctx, service.SeedAdmin{
			Email:    cfg.Seed.AdminEmail,
			Password: cfg.Seed.AdminPassword,
			FullName: cfg.Seed.AdminName,
		})
		if err != nil {
			return fmt.Errorf("ensure super admin: %w", err)
		}
		if created {
			logr.Info("super admin created", zap.String("email", cfg.Seed.AdminEmail))
		}
	}

	var authLimiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		authLimiter = ratelimit.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	}

	router := handler.NewRouter(handler.RouterDeps{
		Config: handler.RouterConfig{
			APIPrefix:      cfg.APIPrefix,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			EnableSwagger:  cfg.Env != config.EnvProduction,
			AuthRateLimit:  authLimiter,
		},
		Logger:   logr,
		Tokens:   authSvc,
		Presence: presenceSvc,
		Observer: metrics,
		Handlers: handler.Handlers{
			Auth:          handler.NewAuthHandler(authSvc),
			Documents:     handler.NewDocumentHandler(documentSvc, cfg.Uploads.MaxFileSizeBytes),
			Friends:       handler.NewFriendHandler(friendSvc),
			Notifications: handler.NewNotificationHandler(notificationSvc),
			Audit:         handler.NewAuditHandler(auditSvc),
			Admin:         handler.NewAdminHandler(userSvc, documentSvc),
			Metrics:       handler.NewMetricsHandler(metrics, checks),
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("storage", cfg.Uploads.Driver),
			zap.String("audit_backend", cfg.Audit.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Uploads.Driver {
	case config.StorageDriverMinIO:
		store, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("init minio storage: %w", err)
		}
		return store, nil
	case config.StorageDriverLocal, "":
		store, err := storage.NewLocalStorage(cfg.Uploads.Dir)
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Uploads.Driver)
	}
}

func newAuditStore(ctx context.Context, cfg *config.Config, db *sqlx.DB, checks map[string]handler.ReadinessCheck) (service.AuditStore, func() error, error) {
	noop := func() error { return nil }
	if cfg.Audit.Backend != config.AuditBackendMongo {
		return repository.NewAuditRepository(db), noop, nil
	}

	client, err := database.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		return nil, noop, fmt.Errorf("connect mongo: %w", err)
	}
	repo := repository.NewMongoAuditRepository(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
	if err := repo.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, noop, fmt.Errorf("ensure audit indexes: %w", err)
	}
	checks["mongo"] = func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}
	return repo, disconnect(client), nil
}

func disconnect(client *mongo.Client) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return client.Disconnect(ctx)
	}
}
