package main

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-api/internal/auth"
	"github.com/noah-isme/campus-api/internal/authz"
	"github.com/noah-isme/campus-api/internal/config"
	"github.com/noah-isme/campus-api/internal/database"
	"github.com/noah-isme/campus-api/internal/repository"
	"github.com/noah-isme/campus-api/internal/service"
)

type rootFlags struct {
	databaseURL string
	logLevel    string
}

// env is the wiring shared by every subcommand.
type env struct {
	cfg      config.Config
	db       *gorm.DB
	activity service.ActivityService
	auth     service.AuthService
	logger   zerolog.Logger
}

func newRootCommand(logger zerolog.Logger) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "campusctl",
		Short:         "Operator tooling for the campus API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.databaseURL, "database-url", "", "override CAMPUS_DATABASE_URL")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug,info,warn,error)")

	open := func() (*env, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if flags.databaseURL != "" {
			cfg.DatabaseURL = flags.databaseURL
		}
		level, err := zerolog.ParseLevel(flags.logLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		log := logger.Level(level)

		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return newEnv(cfg, db, log), nil
	}

	root.AddCommand(newMigrateCommand(open))
	root.AddCommand(newAuditCommand(open))
	root.AddCommand(newUsersCommand(open))
	return root
}

func newEnv(cfg config.Config, db *gorm.DB, logger zerolog.Logger) *env {
	users := repository.NewUserRepository(db)
	activity := service.NewActivityService(repository.NewActivityLogRepository(db), users, nil, cfg.AuditRetentionDays, logger)
	authService := service.NewAuthService(
		users,
		auth.NewBcryptHasher(0),
		auth.NewTokenManager(cfg.JWTSecret, auth.SessionTTL, cfg.AppName),
		nil,
		authz.MustNewPolicy(),
		validator.New(validator.WithRequiredStructEnabled()),
		activity,
		logger,
	)
	return &env{cfg: cfg, db: db, activity: activity, auth: authService, logger: logger}
}
