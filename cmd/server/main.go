// Package main runs the myFEvent HTTP API with websocket push and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/myfevent/backend/config"
	"github.com/myfevent/backend/internal/auth"
	"github.com/myfevent/backend/internal/departments"
	"github.com/myfevent/backend/internal/events"
	"github.com/myfevent/backend/internal/members"
	"github.com/myfevent/backend/internal/middleware"
	"github.com/myfevent/backend/internal/notifications"
	"github.com/myfevent/backend/internal/realtime"
	"github.com/myfevent/backend/internal/users"
	"github.com/myfevent/backend/internal/worker"
	"github.com/myfevent/backend/pkg/database"
	"github.com/myfevent/backend/pkg/queue"
	"github.com/myfevent/backend/pkg/redis"
	"github.com/myfevent/backend/pkg/response"
	"github.com/myfevent/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	tokens := auth.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Leeway)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, cfg.Worker.MaxRetries, logger)

	eventRepo := events.NewRepository(pool)
	userRepo := users.NewRepository(pool)
	memberRepo := members.NewRepository(pool)
	departmentRepo := departments.NewRepository(pool)
	notificationRepo := notifications.NewRepository(pool)

	// Departments
	departmentSvc := departments.NewService(departmentRepo, eventRepo, userRepo, memberRepo, logger)
	dispatcher := notifications.NewDispatcher(jobQueue, 0, logger)
	departmentSvc.SetNotifier(dispatcher)
	departmentSvc.SetPublisher(hub)
	if cfg.AWS.S3Enabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ArchiveBucket:        cfg.AWS.ArchiveBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled, department archives off", zap.Error(err))
		} else {
			departmentSvc.SetArchiver(departments.NewS3Archiver(s3Client, logger))
		}
	}
	departmentHandler := departments.NewHandler(departmentSvc, logger)
	notificationHandler := notifications.NewHandler(notificationRepo, logger)

	origins := middleware.NewOriginPolicy(cfg.Server.Origins())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(origins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(tokens))
	{
		notificationHandler.Register(api)

		eventScoped := api.Group("/events/:eventId", middleware.ResolveEventRole(memberRepo, logger))
		departmentHandler.Register(eventScoped.Group("/departments"))
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, tokens, memberRepo, origins, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.Worker.InProcess {
		processor := worker.NewNotificationProcessor(memberRepo, departmentRepo, notificationRepo, hub, jobQueue, cfg.Worker.RetryBackoff, logger)
		go processor.Run(workerCtx)
		logger.Info("notification worker started in-process")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	dispatcher.Wait()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
