package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/campus-api/internal/models"
)

// UnknownActor is rendered in place of actor fields when the user no longer exists.
const UnknownActor = "unknown"

// ActivityListRequest pages activity log queries.
type ActivityListRequest struct {
	Page     int
	PageSize int
}

// ActivityResponse is an audit entry enriched with its actor.
type ActivityResponse struct {
	ID            uint              `json:"id"`
	ActorID       uint              `json:"actor_id"`
	ActorUsername string            `json:"actor_username"`
	ActorEmail    string            `json:"actor_email"`
	ActorRole     string            `json:"actor_role"`
	Action        string            `json:"action"`
	EntityType    string            `json:"entity_type"`
	EntityID      *uint             `json:"entity_id"`
	Description   string            `json:"description"`
	IPAddress     *string           `json:"ip_address"`
	UserAgent     *string           `json:"user_agent"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewActivityResponse maps an enriched audit row.
func NewActivityResponse(entry models.ActivityLogWithActor) ActivityResponse {
	return ActivityResponse{
		ID:            entry.ID,
		ActorID:       entry.ActorID,
		ActorUsername: valueOrUnknown(entry.ActorUsername),
		ActorEmail:    valueOrUnknown(entry.ActorEmail),
		ActorRole:     valueOrUnknown(entry.ActorRole),
		Action:        entry.Action,
		EntityType:    entry.EntityType,
		EntityID:      entry.EntityID,
		Description:   entry.Description,
		IPAddress:     entry.IPAddress,
		UserAgent:     entry.UserAgent,
		Metadata:      entry.Metadata,
		CreatedAt:     entry.CreatedAt,
	}
}

func valueOrUnknown(value *string) string {
	if value == nil || *value == "" {
		return UnknownActor
	}
	return *value
}

// ActivityListResponse wraps a page of audit entries.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// EntityTypeCount is one bucket of the per-entity breakdown.
type EntityTypeCount struct {
	EntityType string `json:"entity_type"`
	Count      int64  `json:"count"`
}

// ActionCount is one bucket of the per-action breakdown.
type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// ActivityStatsResponse summarises the audit trail.
type ActivityStatsResponse struct {
	TotalCount        int64             `json:"total_count"`
	CountLast24h      int64             `json:"count_last_24h"`
	CountByEntityType []EntityTypeCount `json:"count_by_entity_type"`
	CountByAction     []ActionCount     `json:"count_by_action"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

// ActivityPurgeResponse reports the outcome of a retention purge.
type ActivityPurgeResponse struct {
	Days         int       `json:"days"`
	Cutoff       time.Time `json:"cutoff"`
	DeletedCount int64     `json:"deleted_count"`
}
