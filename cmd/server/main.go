// Package main runs the growth-conversation booking API with graceful shutdown.
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

	"github.com/groeigesprek/backend/config"
	"github.com/groeigesprek/backend/internal/auth"
	"github.com/groeigesprek/backend/internal/calendar"
	"github.com/groeigesprek/backend/internal/colleagues"
	"github.com/groeigesprek/backend/internal/dashboard"
	"github.com/groeigesprek/backend/internal/emaillogs"
	"github.com/groeigesprek/backend/internal/exports"
	"github.com/groeigesprek/backend/internal/headers"
	"github.com/groeigesprek/backend/internal/middleware"
	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/internal/notify"
	"github.com/groeigesprek/backend/internal/realtime"
	"github.com/groeigesprek/backend/internal/registrations"
	"github.com/groeigesprek/backend/internal/requests"
	"github.com/groeigesprek/backend/internal/sessions"
	"github.com/groeigesprek/backend/internal/settings"
	"github.com/groeigesprek/backend/pkg/database"
	"github.com/groeigesprek/backend/pkg/queue"
	"github.com/groeigesprek/backend/pkg/redis"
	"github.com/groeigesprek/backend/pkg/response"
	"github.com/groeigesprek/backend/pkg/storage"
	"github.com/groeigesprek/backend/pkg/utils"
)

const notifyTimeout = 30 * time.Second

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	loc, err := cfg.App.Location()
	if err != nil {
		logger.Fatal("timezone", zap.Error(err))
	}
	response.UseJSONFieldNames()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Object storage is optional; photo upload and export archives answer 503 without it.
	var photoStore colleagues.PhotoStore
	var archive exports.Archive
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			PhotosBucket:         cfg.AWS.PhotosBucket,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			photoStore = s3Client.Photos()
			archive = s3Client.Archives()
		}
	}

	settingsRepo := settings.NewRepository(pool)
	settingsReader := settings.NewReader(settingsRepo, settings.Defaults{
		CutoffHours:              models.DefaultCancellationCutoffHours,
		ConfirmationEnabled:      cfg.Email.ConfirmationEnabled,
		CancellationEnabled:      cfg.Email.CancellationEnabled,
		IndividualRequestEnabled: cfg.Email.IndividualRequestEnabled,
	}, logger)
	settingsHandler := settings.NewHandler(settingsRepo, settingsReader, logger)

	links := notify.Links{PublicURL: cfg.App.PublicURL, APIURL: cfg.App.APIURL}
	bg := notify.NewBackground(notifyTimeout, logger)
	dispatcher := notify.NewDispatcher(jobQueue, settingsReader, links, loc, logger)

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	seedAdmin(ctx, authRepo, cfg.Auth, logger)

	// Sessions
	sessionRepo := sessions.NewRepository(pool)

	// Live availability: events go through Redis so every instance's watchers see them.
	hub := realtime.NewHub(logger)
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	var publisher realtime.Publisher
	stopSubscription, err := pubsub.Subscribe(hub)
	if err != nil {
		logger.Warn("availability pub/sub disabled, broadcasting locally", zap.Error(err))
	} else {
		publisher = pubsub
		defer stopSubscription()
	}
	announcer := realtime.NewAnnouncer(sessionRepo, hub, publisher, logger)
	wsHandler := realtime.NewHandler(hub, announcer, cfg.Server.CORSAllowedOrigins, logger)

	sessionSvc := sessions.NewService(sessionRepo, dispatcher, bg, logger,
		sessions.WithLocation(loc), sessions.WithAvailability(announcer))
	sessionHandler := sessions.NewHandler(sessionSvc, links, logger)

	// Registrations
	registrationRepo := registrations.NewRepository(pool)
	registrationSvc := registrations.NewService(registrationRepo, sessionRepo, settingsReader, dispatcher, bg, logger,
		registrations.WithLocation(loc), registrations.WithAvailability(announcer))
	registrationHandler := registrations.NewHandler(registrationSvc, links, logger)

	// Colleagues and individual requests
	colleagueSvc := colleagues.NewService(colleagues.NewRepository(pool), photoStore, logger)
	colleagueHandler := colleagues.NewHandler(colleagueSvc, logger)
	requestSvc := requests.NewService(requests.NewRepository(pool), colleagueSvc, sessionRepo, registrationRepo,
		dispatcher, bg, logger, requests.WithLocation(loc))
	requestHandler := requests.NewHandler(requestSvc, logger)

	headerHandler := headers.NewHandler(headers.NewRepository(pool), logger)
	exportHandler := exports.NewHandler(registrationSvc, archive, loc, logger)
	calendarHandler := calendar.NewHandler(sessionSvc, calendar.NewBuilder(cfg.App.ICSDomain, loc), logger)
	dashboardHandler := dashboard.NewHandler(dashboard.NewRepository(pool), sessionRepo, loc, logger)
	emailLogsHandler := emaillogs.NewHandler(emaillogs.NewRepository(pool), logger)

	publicLimit := middleware.NewRateLimiter(cfg.RateLimit.PublicPerMinute, cfg.RateLimit.Burst).Limit()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public
	router.GET("/conversation-types", sessionHandler.ListTypes)
	router.GET("/sessions", sessionHandler.ListPublic)
	router.GET("/sessions/:id", sessionHandler.GetPublic)
	router.GET("/sessions/:id/qr", sessionHandler.QR)
	router.GET("/ics/:sessionId", calendarHandler.Download)
	router.POST("/registrations", publicLimit, registrationHandler.Register)
	router.GET("/registrations/cancel/:token", registrationHandler.Preview)
	router.POST("/registrations/cancel/:token", publicLimit, registrationHandler.Cancel)
	router.GET("/colleagues", colleagueHandler.ListPublic)
	router.POST("/individual-requests", publicLimit, requestHandler.Create)
	router.GET("/headers", headerHandler.List)
	router.GET("/settings", settingsHandler.Public)
	router.GET("/ws/availability", wsHandler.Availability)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", publicLimit, authHandler.Login)
	}

	// Admin (JWT required)
	admin := router.Group("/admin")
	admin.Use(middleware.JWT(jwtService), middleware.RequireAdmin(cfg.Auth.RequireAdminRole))
	{
		admin.GET("/me", authHandler.Me)
		admin.GET("/users", middleware.RequireRole(models.RoleAdmin), authHandler.List)
		admin.POST("/users", middleware.RequireRole(models.RoleAdmin), authHandler.Create)

		admin.GET("/dashboard", dashboardHandler.Summary)

		admin.GET("/sessions", sessionHandler.List)
		admin.POST("/sessions", sessionHandler.Create)
		admin.GET("/sessions/:id", sessionHandler.Get)
		admin.PUT("/sessions/:id", sessionHandler.Update)
		admin.DELETE("/sessions/:id", sessionHandler.Delete)
		admin.POST("/sessions/:id/cancel", sessionHandler.Cancel)
		admin.GET("/sessions/:id/participants", sessionHandler.Participants)
		admin.GET("/sessions/:id/participants.pdf", sessionHandler.ParticipantsPDF)

		admin.GET("/registrations", registrationHandler.List)
		admin.POST("/registrations/:id/cancel", registrationHandler.AdminCancel)
		admin.PATCH("/registrations/:id/status", registrationHandler.SetStatus)
		admin.DELETE("/registrations/:id", registrationHandler.Delete)

		admin.GET("/export", exportHandler.Export)
		admin.POST("/exports/archive", exportHandler.ArchiveExport)

		admin.GET("/colleagues", colleagueHandler.List)
		admin.POST("/colleagues", colleagueHandler.Create)
		admin.GET("/colleagues/:id", colleagueHandler.Get)
		admin.PUT("/colleagues/:id", colleagueHandler.Update)
		admin.DELETE("/colleagues/:id", colleagueHandler.Delete)
		admin.POST("/colleagues/:id/photo", colleagueHandler.UploadPhoto)

		admin.GET("/individual-requests", requestHandler.List)
		admin.PATCH("/individual-requests/:id/status", requestHandler.SetStatus)

		admin.GET("/headers", headerHandler.List)
		admin.POST("/headers", headerHandler.Create)
		admin.PUT("/headers/:id", headerHandler.Update)
		admin.DELETE("/headers/:id", headerHandler.Delete)
		admin.POST("/headers/:id/activate", headerHandler.Activate)

		admin.GET("/settings", settingsHandler.List)
		admin.PUT("/settings", settingsHandler.Upsert)

		admin.GET("/email-logs", emailLogsHandler.List)
	}

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
	if err := bg.Drain(shutdownCtx); err != nil {
		logger.Warn("pending notifications not flushed", zap.Error(err))
	}
	logger.Info("server stopped")
}

// seedAdmin creates the configured administrator on first start.
func seedAdmin(ctx context.Context, repo *auth.Repository, cfg config.AuthConfig, logger *zap.Logger) {
	if cfg.SeedEmail == "" || cfg.SeedPassword == "" {
		return
	}
	hash, err := utils.HashPassword(cfg.SeedPassword)
	if err != nil {
		logger.Error("hash seed admin password", zap.Error(err))
		return
	}
	created, err := repo.EnsureAdmin(ctx, cfg.SeedEmail, hash, cfg.SeedName)
	if err != nil {
		logger.Error("seed admin", zap.Error(err))
		return
	}
	if created {
		logger.Info("seed admin created", zap.String("email", cfg.SeedEmail))
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
