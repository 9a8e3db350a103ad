package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-api/internal/config"
	"github.com/noah-isme/campus-api/internal/handler"
	"github.com/noah-isme/campus-api/internal/middleware"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	DB                  *gorm.DB
	Verifier            middleware.TokenVerifier
	AuditBus            handler.BreakerReporter
	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	CourseHandler       *handler.CourseHandler
	EnrollmentHandler   *handler.EnrollmentHandler
	AnnouncementHandler *handler.AnnouncementHandler
	EventHandler        *handler.EventHandler
	NotesHandler        *handler.NotesHandler
	ActivityHandler     *handler.ActivityHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DB, deps.AuditBus))

	protected := middleware.JWTProtected(deps.Verifier)

	// register resolves an optional token so an admin creating accounts is the recorded actor.
	auth := api.Group("/auth", middleware.RateLimit("auth", cfg.AuthRateLimitPerMinute, time.Minute))
	deps.AuthHandler.Register(auth, middleware.OptionalJWT(deps.Verifier), protected)

	deps.UserHandler.Register(api.Group("/users", protected, middleware.RequireRole(models.RoleAdmin)))
	deps.CourseHandler.Register(api.Group("/courses", protected))
	deps.EnrollmentHandler.Register(api.Group("/enrollments", protected))
	deps.AnnouncementHandler.Register(api.Group("/announcements", protected))
	deps.EventHandler.Register(api.Group("/events", protected))

	notes := api.Group("/notes", protected)
	deps.NotesHandler.RegisterUpload(notes, middleware.AuthOptions{Role: middleware.AuthRoleStaff})
	deps.NotesHandler.Register(notes)

	// /me is registered before the admin gate is mounted on the same prefix.
	activity := api.Group("/activity-logs", protected)
	deps.ActivityHandler.RegisterSelf(activity)
	deps.ActivityHandler.RegisterAdmin(activity.Group("", middleware.RequireRole(models.RoleAdmin)))
}
