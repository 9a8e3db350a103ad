package models

import (
	"time"

	"gorm.io/datatypes"
)

// Entity types that may appear on an activity log entry.
const (
	EntityUser         = "user"
	EntityCourse       = "course"
	EntityEnrollment   = "enrollment"
	EntityNotes        = "notes"
	EntityEvent        = "event"
	EntityAnnouncement = "announcement"
)

// Audit actions recorded by the services.
const (
	ActionCreated         = "created"
	ActionUpdated         = "updated"
	ActionDeleted         = "deleted"
	ActionRegistered      = "registered"
	ActionLogin           = "login"
	ActionLoginFailed     = "login_failed"
	ActionPasswordChanged = "password_changed"
	ActionDownloaded      = "downloaded"
	ActionViewed          = "viewed"
	ActionPurged          = "purged"
)

// EntityTypes lists the closed set of auditable entity types.
var EntityTypes = []string{EntityUser, EntityCourse, EntityEnrollment, EntityNotes, EntityEvent, EntityAnnouncement}

// IsEntityType reports whether value belongs to the auditable entity set.
func IsEntityType(value string) bool {
	for _, candidate := range EntityTypes {
		if candidate == value {
			return true
		}
	}
	return false
}

// ActivityLog is an immutable record of who did what to which entity.
// ActorID is a weak reference: the user row may have been deleted since.
type ActivityLog struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	ActorID     uint              `gorm:"not null;index" json:"actor_id"`
	Action      string            `gorm:"size:64;not null;index" json:"action"`
	EntityType  string            `gorm:"size:32;not null;index" json:"entity_type"`
	EntityID    *uint             `gorm:"index" json:"entity_id"`
	Description string            `gorm:"type:text" json:"description"`
	IPAddress   *string           `gorm:"size:64" json:"ip_address"`
	UserAgent   *string           `gorm:"type:text" json:"user_agent"`
	Metadata    datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt   time.Time         `gorm:"index" json:"created_at"`
}

// ActivityLogWithActor is an activity log row joined with its actor at read time.
type ActivityLogWithActor struct {
	ActivityLog
	ActorUsername *string
	ActorEmail    *string
	ActorRole     *string
}
