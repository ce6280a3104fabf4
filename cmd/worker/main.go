// Package main runs the background job worker (certificate generation,
// notification fan-out, email delivery).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benevia/backend/config"
	"github.com/benevia/backend/internal/auth"
	"github.com/benevia/backend/internal/certificates"
	"github.com/benevia/backend/internal/emaillogs"
	"github.com/benevia/backend/internal/events"
	"github.com/benevia/backend/internal/notifications"
	"github.com/benevia/backend/internal/organizations"
	"github.com/benevia/backend/internal/registrations"
	"github.com/benevia/backend/internal/worker"
	"github.com/benevia/backend/pkg/database"
	"github.com/benevia/backend/pkg/queue"
	"github.com/benevia/backend/pkg/redis"
	"github.com/benevia/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Cfg := storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		CertificatesBucket:   cfg.AWS.CertificatesBucket,
		LogosBucket:          cfg.AWS.LogosBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
	s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)

	authRepo := auth.NewRepository(pool)
	orgRepo := organizations.NewRepository(pool)
	eventRepo := events.NewRepository(pool)
	registrationRepo := registrations.NewRepository(pool)

	certRepo := certificates.NewRepository(pool)
	type (
		registrationsRepository = registrations.Repository
		certificatesRepository  = certificates.Repository
	)
	certStore := struct {
		*registrationsRepository
		*certificatesRepository
	}{registrationRepo, certRepo}
	generator := certificates.NewGenerator(certStore, authRepo, eventRepo, orgRepo, s3Client, jobQueue, logger)

	// The worker holds no WebSocket connections; the hub only publishes pushes
	// to Redis for the API instances to deliver.
	redisPubSub := notifications.NewRedisPubSub(rdb.Client, logger)
	hub := notifications.NewHub(logger, redisPubSub, redisPubSub)
	notificationRepo := notifications.NewRepository(pool)
	dispatcher := notifications.NewDispatcher(authRepo, orgRepo, registrationRepo, notificationRepo, hub, jobQueue, logger)

	emailLogsRepo := emaillogs.NewRepository(pool)
	processor := worker.NewProcessor(generator, dispatcher, emailLogsRepo, cfg.Email, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
