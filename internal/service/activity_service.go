package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/observability"
	"github.com/noah-isme/campus-api/internal/repository"
)

// DefaultRetentionDays applies when a purge is requested with zero days.
const DefaultRetentionDays = 90

// AuditEntry captures the details required to persist an audit record.
type AuditEntry struct {
	ActorID     uint
	Action      string
	EntityType  string
	EntityID    *uint
	Description string
	IPAddress   string
	UserAgent   string
	Metadata    map[string]interface{}
}

// AuditRecorder appends audit records. Append never fails the caller.
type AuditRecorder interface {
	Append(ctx context.Context, entry AuditEntry)
}

// AuditPublisher fans persisted audit records out to other systems.
type AuditPublisher interface {
	Publish(ctx context.Context, entry models.ActivityLog) error
}

// ActivityService records and queries the audit trail.
type ActivityService interface {
	AuditRecorder
	ListAll(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
	ListByUser(ctx context.Context, userID uint, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
	ListByEntityType(ctx context.Context, entityType string, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
	ListByEntity(ctx context.Context, entityType string, entityID uint, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
	ListMine(ctx context.Context, caller Caller, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
	Stats(ctx context.Context) (dto.ActivityStatsResponse, error)
	PurgeOlderThan(ctx context.Context, days int) (dto.ActivityPurgeResponse, error)
}

type activityService struct {
	repo          repository.ActivityLogRepository
	users         repository.UserRepository
	publisher     AuditPublisher
	retentionDays int
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewActivityService constructs the audit log service. publisher may be nil.
func NewActivityService(repo repository.ActivityLogRepository, users repository.UserRepository, publisher AuditPublisher, retentionDays int, logger zerolog.Logger) ActivityService {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &activityService{
		repo:          repo,
		users:         users,
		publisher:     publisher,
		retentionDays: retentionDays,
		logger:        logger.With().Str("component", "activity_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/campus-api/internal/service/activity"),
		now:           time.Now,
	}
}

// Append persists entry. Failures are logged and counted, then dropped so
// the business operation that triggered the audit is never affected.
func (s *activityService) Append(ctx context.Context, entry AuditEntry) {
	ctx, span := s.tracer.Start(ctx, "audit.append")
	defer span.End()
	span.SetAttributes(
		attribute.String("audit.action", entry.Action),
		attribute.String("audit.entity_type", entry.EntityType),
	)

	model := models.ActivityLog{
		ActorID:     entry.ActorID,
		Action:      strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType:  strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:    entry.EntityID,
		Description: strings.TrimSpace(entry.Description),
		IPAddress:   optionalString(entry.IPAddress),
		UserAgent:   optionalString(entry.UserAgent),
		Metadata:    sanitizeMetadata(entry.Metadata),
		CreatedAt:   s.now().UTC(),
	}

	if model.Action == "" || !models.IsEntityType(model.EntityType) {
		observability.AuditWrites().WithLabelValues("rejected").Inc()
		span.SetStatus(codes.Error, "invalid entry")
		s.logger.Warn().Str("action", model.Action).Str("entity_type", model.EntityType).Msg("dropping malformed audit entry")
		return
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		observability.AuditWrites().WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.logger.Error().Err(err).
			Uint("actor_id", model.ActorID).
			Str("action", model.Action).
			Str("entity_type", model.EntityType).
			Msg("failed to persist activity log")
		return
	}
	observability.AuditWrites().WithLabelValues("persisted").Inc()

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, model); err != nil {
		observability.AuditPublishes().WithLabelValues("failed").Inc()
		s.logger.Warn().Err(err).Uint("activity_id", model.ID).Msg("failed to publish activity log")
		return
	}
	observability.AuditPublishes().WithLabelValues("published").Inc()
}

func (s *activityService) ListAll(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	return s.list(ctx, repository.ActivityLogFilter{}, req)
}

func (s *activityService) ListByUser(ctx context.Context, userID uint, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ActivityListResponse{}, notFoundError("User not found!")
		}
		return dto.ActivityListResponse{}, fmt.Errorf("load user: %w", err)
	}
	return s.list(ctx, repository.ActivityLogFilter{ActorID: &userID}, req)
}

func (s *activityService) ListByEntityType(ctx context.Context, entityType string, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	normalized, err := normalizeEntityType(entityType)
	if err != nil {
		return dto.ActivityListResponse{}, err
	}
	return s.list(ctx, repository.ActivityLogFilter{EntityType: normalized}, req)
}

func (s *activityService) ListByEntity(ctx context.Context, entityType string, entityID uint, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	normalized, err := normalizeEntityType(entityType)
	if err != nil {
		return dto.ActivityListResponse{}, err
	}
	if entityID == 0 {
		return dto.ActivityListResponse{}, validationError("Entity id is required")
	}
	return s.list(ctx, repository.ActivityLogFilter{EntityType: normalized, EntityID: &entityID}, req)
}

func (s *activityService) ListMine(ctx context.Context, caller Caller, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	if caller.ID == 0 {
		return dto.ActivityListResponse{}, forbiddenError("Authentication required")
	}
	return s.list(ctx, repository.ActivityLogFilter{ActorID: &caller.ID}, req)
}

func (s *activityService) list(ctx context.Context, filter repository.ActivityLogFilter, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)
	filter.Page = page
	filter.PageSize = pageSize

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ActivityListResponse{}, fmt.Errorf("list activity logs: %w", err)
	}

	items := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewActivityResponse(entry))
	}

	return dto.ActivityListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

// Stats counts the last 24 hours relative to the moment of the call.
func (s *activityService) Stats(ctx context.Context) (dto.ActivityStatsResponse, error) {
	now := s.now().UTC()
	stats, err := s.repo.Stats(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return dto.ActivityStatsResponse{}, fmt.Errorf("activity stats: %w", err)
	}

	resp := dto.ActivityStatsResponse{
		TotalCount:        stats.Total,
		CountLast24h:      stats.Since,
		CountByEntityType: make([]dto.EntityTypeCount, 0, len(stats.ByEntityType)),
		CountByAction:     make([]dto.ActionCount, 0, len(stats.ByAction)),
		GeneratedAt:       now,
	}
	for _, bucket := range stats.ByEntityType {
		resp.CountByEntityType = append(resp.CountByEntityType, dto.EntityTypeCount{EntityType: bucket.Label, Count: bucket.Total})
	}
	for _, bucket := range stats.ByAction {
		resp.CountByAction = append(resp.CountByAction, dto.ActionCount{Action: bucket.Label, Count: bucket.Total})
	}
	return resp, nil
}

// PurgeOlderThan deletes entries older than days. Zero selects the configured
// retention; a negative value is rejected.
func (s *activityService) PurgeOlderThan(ctx context.Context, days int) (dto.ActivityPurgeResponse, error) {
	if days < 0 {
		return dto.ActivityPurgeResponse{}, validationError("Days must not be negative")
	}
	if days == 0 {
		days = s.retentionDays
	}

	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	deleted, err := s.repo.PurgeBefore(ctx, cutoff)
	if err != nil {
		return dto.ActivityPurgeResponse{}, fmt.Errorf("purge activity logs: %w", err)
	}

	s.logger.Info().Int("days", days).Int64("deleted", deleted).Msg("activity logs purged")
	return dto.ActivityPurgeResponse{Days: days, Cutoff: cutoff, DeletedCount: deleted}, nil
}

func normalizeEntityType(entityType string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(entityType))
	if !models.IsEntityType(normalized) {
		return "", validationError("Invalid entity type. Must be one of: %s", strings.Join(models.EntityTypes, ", "))
	}
	return normalized, nil
}

// sanitizeMetadata masks values whose keys look sensitive. Email addresses
// keep their first and last local character and the domain.
func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	if len(metadata) == 0 {
		return nil
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "password") || strings.Contains(lower, "token") || strings.Contains(lower, "secret") {
			sanitized[key] = "***"
			continue
		}
		if email, ok := value.(string); ok && strings.Contains(lower, "email") {
			sanitized[key] = maskEmail(email)
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func maskEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return "***"
	}
	if len(local) <= 2 {
		return local[:1] + "***@" + domain
	}
	return local[:1] + "***" + local[len(local)-1:] + "@" + domain
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// normalizePage applies the default page size of 20 and the ceiling of 100.
func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = 20
	case pageSize > 100:
		pageSize = 100
	}
	return page, pageSize
}
