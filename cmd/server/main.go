// Package main runs the attendance certification platform HTTP server.
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

	"github.com/benevia/backend/config"
	"github.com/benevia/backend/internal/attendance"
	"github.com/benevia/backend/internal/auth"
	"github.com/benevia/backend/internal/certificates"
	"github.com/benevia/backend/internal/events"
	"github.com/benevia/backend/internal/middleware"
	"github.com/benevia/backend/internal/models"
	"github.com/benevia/backend/internal/notifications"
	"github.com/benevia/backend/internal/organizations"
	"github.com/benevia/backend/internal/registrations"
	"github.com/benevia/backend/internal/verification"
	"github.com/benevia/backend/pkg/database"
	"github.com/benevia/backend/pkg/queue"
	"github.com/benevia/backend/pkg/redis"
	"github.com/benevia/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			CertificatesBucket:   cfg.AWS.CertificatesBucket,
			LogosBucket:          cfg.AWS.LogosBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Organizations
	orgRepo := organizations.NewRepository(pool)
	orgHandler := organizations.NewHandler(orgRepo, s3Client, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, orgRepo)

	// Registrations
	registrationRepo := registrations.NewRepository(pool)
	registrationHandler := registrations.NewHandler(registrationRepo, eventRepo, logger)

	// Attendance (QR scans and self-certification)
	attendanceRepo := attendance.NewRepository(pool)
	recorder := attendance.NewRecorder(registrationRepo, attendanceRepo, eventRepo, orgRepo, authRepo, jobQueue, logger)
	evaluator := attendance.NewEvaluator(registrationRepo, attendanceRepo, eventRepo, jobQueue, cfg.SelfCert, logger)
	attendanceHandler := attendance.NewHandler(recorder, evaluator, registrationRepo, logger)

	// Identity verification (external proofing provider)
	verificationClient := verification.NewClient(cfg.Verification, logger)
	sessionStore := verification.NewStore(rdb, time.Duration(cfg.Verification.SessionTTLMinutes)*time.Minute)
	verificationManager := verification.NewManager(verificationClient, sessionStore, authRepo, logger)
	verificationHandler := verification.NewHandler(verificationManager, logger)

	// Certificates
	certRepo := certificates.NewRepository(pool)
	type (
		registrationsRepository = registrations.Repository
		certificatesRepository  = certificates.Repository
	)
	certStore := struct {
		*registrationsRepository
		*certificatesRepository
	}{registrationRepo, certRepo}
	certGenerator := certificates.NewGenerator(certStore, authRepo, eventRepo, orgRepo, s3Client, jobQueue, logger)
	certHandler := certificates.NewHandler(certGenerator, certStore, eventRepo, orgRepo, certRepo, logger)

	// Notifications (in-app rows, WebSocket push, email leg via queue)
	redisPubSub := notifications.NewRedisPubSub(rdb.Client, logger)
	hub := notifications.NewHub(logger, redisPubSub, redisPubSub)
	notificationRepo := notifications.NewRepository(pool)
	dispatcher := notifications.NewDispatcher(authRepo, orgRepo, registrationRepo, notificationRepo, hub, jobQueue, logger)
	notificationHandler := notifications.NewHandler(dispatcher, notificationRepo, orgRepo, eventRepo, logger)

	jwtValidate := func(token string) (string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", err
		}
		return claims.UserID.String(), nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public certificate lookup (shared via link or QR on the artifact)
	router.GET("/certificates/:certificateId", certHandler.Get)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users
		api.GET("/users", middleware.RequireRole(string(models.RoleAdmin)), authHandler.List)
		api.GET("/me", authHandler.Me)
		api.PATCH("/me", authHandler.UpdateMe)

		// Organizations
		api.GET("/organizations", orgHandler.ListMyOrganizations)
		api.POST("/organizations", orgHandler.CreateOrganization)
		api.POST("/organizations/join", orgHandler.JoinOrganization)
		api.GET("/organizations/:id/members", orgHandler.ListMembers)
		api.POST("/organizations/:id/logo", orgHandler.UploadLogo)

		// Events
		api.GET("/events", eventHandler.List)
		api.POST("/events", eventHandler.Create)
		api.GET("/events/:id", eventHandler.GetByID)
		api.PATCH("/events/:id", events.RequireEventOrgAccess(eventRepo, orgRepo), eventHandler.Update)
		api.DELETE("/events/:id", events.RequireEventOrgAccess(eventRepo, orgRepo), eventHandler.Delete)
		api.GET("/events/:id/stats", events.RequireEventOrgAccess(eventRepo, orgRepo), eventHandler.GetStats)
		api.GET("/events/:id/registrations", events.RequireEventOrgAccess(eventRepo, orgRepo), registrationHandler.ListByEvent)

		// Registrations
		api.POST("/events/:id/register", registrationHandler.Register)
		api.GET("/registrations", registrationHandler.MyRegistrations)
		api.DELETE("/registrations/:id", registrationHandler.Cancel)

		// Attendance
		api.POST("/attendance/scan", attendanceHandler.Scan)
		api.GET("/verify/:registrationId", attendanceHandler.Verify)
		api.POST("/events/:id/self-certify", attendanceHandler.SelfCertify)

		// Identity verification
		api.POST("/verification/sessions", verificationHandler.CreateSession)
		api.GET("/verification/sessions/:id/status", verificationHandler.CheckStatus)
		api.DELETE("/verification/sessions/:id", verificationHandler.DeleteSession)

		// Certificates (manual re-issue)
		api.POST("/certificates/generate", certHandler.Generate)

		// Notifications
		api.POST("/notifications/send", notificationHandler.Send)
		api.GET("/notifications", notificationHandler.List)
		api.PATCH("/notifications/:id/read", notificationHandler.MarkRead)
	}

	// WebSocket push (token in query; browsers cannot set headers on WS)
	router.GET("/ws", notifications.ServeWS(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
