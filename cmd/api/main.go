package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-api/internal/auth"
	"github.com/noah-isme/campus-api/internal/authz"
	"github.com/noah-isme/campus-api/internal/config"
	"github.com/noah-isme/campus-api/internal/database"
	"github.com/noah-isme/campus-api/internal/handler"
	"github.com/noah-isme/campus-api/internal/middleware"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/observability"
	"github.com/noah-isme/campus-api/internal/repository"
	"github.com/noah-isme/campus-api/internal/router"
	"github.com/noah-isme/campus-api/internal/service"
	cloud "github.com/noah-isme/campus-api/pkg/cloudinary"
	"github.com/noah-isme/campus-api/pkg/filestore"
	"github.com/noah-isme/campus-api/pkg/natsbus"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	ctx := context.Background()
	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient == nil {
		logger.Warn().Msg("redis url not set, login lockout disabled")
	} else {
		defer closeRedis(redisClient, logger)
	}

	var (
		publisher service.AuditPublisher
		auditBus  handler.BreakerReporter
	)
	if cfg.NATSURL != "" {
		conn, err := natsbus.Connect(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer drainNATS(conn, logger)

		bus, err := natsbus.NewPublisher[models.ActivityLog](conn, natsbus.Options{Subject: cfg.NATSSubject}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create audit publisher")
		}
		publisher = bus
		auditBus = bus
	}

	storage, err := newStorage(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise notes storage")
	}

	observability.RegisterMetrics()
	policy := authz.MustNewPolicy()
	validate := validator.New(validator.WithRequiredStructEnabled())
	tokens := auth.NewTokenManager(cfg.JWTSecret, auth.SessionTTL, cfg.AppName)
	lockout := auth.NewLockout(redisClient, cfg.LoginMaxAttempts, cfg.LoginWindow)

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	eventRepo := repository.NewEventRepository(db)
	notesRepo := repository.NewNotesRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, userRepo, publisher, cfg.AuditRetentionDays, logger)
	authService := service.NewAuthService(userRepo, auth.NewBcryptHasher(0), tokens, lockout, policy, validate, activityService, logger)
	userService := service.NewUserService(userRepo, policy, validate, activityService, logger)
	courseService := service.NewCourseService(courseRepo, userRepo, enrollmentRepo, policy, validate, activityService, logger)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, userRepo, courseRepo, policy, validate, activityService, logger)
	announcementService := service.NewAnnouncementService(announcementRepo, courseRepo, policy, validate, activityService, logger)
	eventService := service.NewEventService(eventRepo, courseRepo, policy, validate, activityService, logger)
	notesService := service.NewNotesService(notesRepo, courseRepo, storage, policy, validate, activityService, service.NotesOptions{
		MaxBytes:          cfg.UploadMaxBytes(),
		AllowedExtensions: cfg.AllowedExtensions,
	}, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.UploadMaxBytes()) + 1024*1024,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	middleware.Register(app, middleware.Config{
		Logger:       logger,
		AllowOrigins: strings.Split(cfg.CORSAllowOrigins, ","),
		AccessLog:    cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		DB:                  db,
		Verifier:            authService,
		AuditBus:            auditBus,
		AuthHandler:         handler.NewAuthHandler(authService, logger),
		UserHandler:         handler.NewUserHandler(userService, logger),
		CourseHandler:       handler.NewCourseHandler(courseService, enrollmentService, logger),
		EnrollmentHandler:   handler.NewEnrollmentHandler(enrollmentService, logger),
		AnnouncementHandler: handler.NewAnnouncementHandler(announcementService, logger),
		EventHandler:        handler.NewEventHandler(eventService, logger),
		NotesHandler:        handler.NewNotesHandler(notesService, logger),
		ActivityHandler:     handler.NewActivityHandler(activityService, logger),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func newStorage(cfg config.Config, logger zerolog.Logger) (service.FileStorage, error) {
	if cfg.StorageDriver == "cloudinary" {
		return cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	}
	return filestore.New(cfg.UploadDir, logger)
}

func closeRedis(client *redis.Client, logger zerolog.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close redis client")
	}
}

func drainNATS(conn *nats.Conn, logger zerolog.Logger) {
	if err := conn.Drain(); err != nil {
		logger.Warn().Err(err).Msg("failed to drain nats connection")
	}
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
