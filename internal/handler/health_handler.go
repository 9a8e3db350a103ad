package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-api/internal/config"
	"github.com/noah-isme/campus-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Database    string    `json:"database"`
	AuditBus    string    `json:"audit_bus,omitempty"`
}

// BreakerReporter exposes the state of a circuit breaker.
type BreakerReporter interface {
	State() string
}

// HealthCheck reports liveness and database reachability. A failing ping
// answers 503 with the same payload. bus may be nil when audit fan-out is off;
// an open breaker is reported but does not degrade the service.
func HealthCheck(cfg config.Config, db *gorm.DB, bus BreakerReporter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Database:    "up",
		}
		if bus != nil {
			payload.AuditBus = bus.State()
		}

		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(c.UserContext())
			}
			if err != nil {
				payload.Status = "degraded"
				payload.Database = "down"
				return utils.Fail(c, fiber.StatusServiceUnavailable, "service degraded", payload)
			}
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
