package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultAllowedExtensions lists the note file extensions accepted on upload.
var DefaultAllowedExtensions = []string{".pdf", ".doc", ".docx", ".ppt", ".pptx", ".txt", ".jpg", ".jpeg", ".png"}

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	LogLevel               string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	NATSSubject            string
	JWTSecret              string
	CORSAllowOrigins       string
	UploadDir              string
	UploadMaxMB            int
	AllowedExtensions      []string
	StorageDriver          string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	AuditRetentionDays     int
	LoginMaxAttempts       int
	LoginWindow            time.Duration
	AuthRateLimitPerMinute int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// UploadMaxBytes converts the configured upload ceiling into bytes.
func (c Config) UploadMaxBytes() int64 {
	return int64(c.UploadMaxMB) * 1024 * 1024
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CAMPUS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Campus API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("nats.subject", "campus.audit")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("upload.dir", "uploads/notes")
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("upload.allowed_extensions", strings.Join(DefaultAllowedExtensions, ","))
	v.SetDefault("storage.driver", "local")
	v.SetDefault("cloudinary.folder", "campus/notes")
	v.SetDefault("audit.retention_days", 90)
	v.SetDefault("login.max_attempts", 5)
	v.SetDefault("login.window", "15m")
	v.SetDefault("rate_limit.auth_per_minute", 20)

	window, err := time.ParseDuration(v.GetString("login.window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid login window: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		LogLevel:               strings.ToLower(v.GetString("log.level")),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		NATSSubject:            v.GetString("nats.subject"),
		JWTSecret:              v.GetString("jwt.secret"),
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
		UploadDir:              v.GetString("upload.dir"),
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		AllowedExtensions:      parseExtensions(v.GetString("upload.allowed_extensions")),
		StorageDriver:          strings.ToLower(v.GetString("storage.driver")),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		AuditRetentionDays:     v.GetInt("audit.retention_days"),
		LoginMaxAttempts:       v.GetInt("login.max_attempts"),
		LoginWindow:            window,
		AuthRateLimitPerMinute: v.GetInt("rate_limit.auth_per_minute"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 10
	}

	if cfg.AuditRetentionDays <= 0 {
		cfg.AuditRetentionDays = 90
	}

	if cfg.LoginMaxAttempts <= 0 {
		cfg.LoginMaxAttempts = 5
	}

	switch cfg.StorageDriver {
	case "local", "cloudinary":
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	return cfg, nil
}

func parseExtensions(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		result = append(result, ext)
	}
	if len(result) == 0 {
		return append([]string(nil), DefaultAllowedExtensions...)
	}
	return result
}
