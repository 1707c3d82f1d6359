package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"

	grpcctx "github.com/dtroode/carebook-server/internal/api/grpc/context"
	"github.com/dtroode/carebook-server/internal/api/grpc/router"
	grpcServer "github.com/dtroode/carebook-server/internal/api/grpc/server"
	"github.com/dtroode/carebook-server/internal/audit"
	"github.com/dtroode/carebook-server/internal/cache"
	"github.com/dtroode/carebook-server/internal/config"
	"github.com/dtroode/carebook-server/internal/identity"
	"github.com/dtroode/carebook-server/internal/logger"
	"github.com/dtroode/carebook-server/internal/model"
	"github.com/dtroode/carebook-server/internal/repository/postgres"
	"github.com/dtroode/carebook-server/internal/scheduler"
	"github.com/dtroode/carebook-server/internal/server"
	"github.com/dtroode/carebook-server/internal/service"
	storage "github.com/dtroode/carebook-server/internal/storage/minio"
	"github.com/dtroode/carebook-server/internal/telemetry"
	"github.com/dtroode/carebook-server/internal/token"
	"github.com/dtroode/carebook-server/internal/worker"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	logAppVersion()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName, buildVersion)
	if err != nil {
		logger.Fatal("failed to initialize tracing", "error", err)
	}

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}

	userRepo := postgres.NewUserRepository(db)
	var userStore model.UserStore = userRepo
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := cache.Ping(ctx, redisClient); err != nil {
			logger.Fatal("failed to connect to redis", "error", err)
		}
		userStore = cache.NewUserStore(userStore, redisClient, cfg.Redis.TTL, logger)
		logger.Info("user lookup cache enabled", "addr", cfg.Redis.Addr)
	}
	refreshTokenRepo := postgres.NewRefreshTokenRepository(db)
	auditRepo := postgres.NewAuditRepository(db.SQL())

	ctxMgr := grpcctx.NewManager()
	resolver := identity.NewResolver(userStore, ctxMgr)

	pool := worker.NewPool(cfg.Worker.PoolSize, cfg.Worker.QueueSize, logger)
	recorder := audit.NewRecorder(auditRepo, resolver, pool, logger)

	tokenManager := token.NewJWT(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	tokenService := service.NewTokenService(tokenManager, refreshTokenRepo, userStore, tokenManager.RefreshTTL(), logger)
	authService, err := service.NewAuth(userStore, userRepo, tokenService, resolver, recorder, cfg.Password.BcryptCost, logger)
	if err != nil {
		logger.Fatal("failed to initialize auth service", "error", err)
	}

	jobs := scheduler.New(logger)
	jobs.Add(scheduler.Job{
		Name:     "purge-refresh-tokens",
		Interval: cfg.Scheduler.TokenPurgeInterval,
		Run:      tokenService.PurgeExpired,
	})
	if cfg.Audit.ArchiveEnabled {
		archiver := newArchiver(ctx, cfg, auditRepo, logger)
		jobs.Add(scheduler.Job{
			Name:     "archive-audit-log",
			Interval: cfg.Audit.ArchiveInterval,
			Run:      archiver.Archive,
		})
	}
	if err := jobs.Start(ctx); err != nil {
		logger.Fatal("failed to start scheduler", "error", err)
	}

	r := router.New(router.Services{
		Auth:     authService,
		Roles:    authService,
		Identity: resolver,
		Tokens:   tokenService,
	}, ctxMgr, logger, cfg.GRPC.EnableReflection)
	grpcSrv := grpcServer.NewGRPCServer(r.Register(), r.Health(), fmt.Sprintf(":%s", cfg.GRPC.Port), logger)

	var sl model.SecurityLayer
	if cfg.GRPC.EnableHTTPS {
		sl = server.NewTLSListener(cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	serveErr := make(chan error, 1)
	go func(s model.Server) {
		logger.Info("Starting server on", "address", s.Address())
		serveErr <- s.Start(sl)
	}(grpcSrv)

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("received interruption signal, shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Error("failed to start server", "error", err)
			exitCode = 1
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := grpcSrv.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", grpcSrv.Address())
	}
	jobs.Stop()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Error("error draining worker pool", "error", err)
	}
	if err := db.Close(); err != nil {
		logger.Error("error closing database", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("error flushing traces", "error", err)
	}

	logger.Info("shutdown complete")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func newArchiver(ctx context.Context, cfg *config.Config, store model.AuditStore, logger *logger.Logger) *audit.Archiver {
	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatal("failed to create minio client", "error", err)
	}
	storageClient, err := storage.NewClient(ctx, minioClient, cfg.Storage.Bucket)
	if err != nil {
		logger.Fatal("failed to initialize storage client", "error", err)
	}

	return audit.NewArchiver(store, storageClient, cfg.Audit.Retention, cfg.Audit.BatchSize, logger)
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
