package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/campus-api/internal/models"
)

// ActivityLogFilter narrows activity log queries.
type ActivityLogFilter struct {
	Page       int
	PageSize   int
	ActorID    *uint
	Action     string
	EntityType string
	EntityID   *uint
}

// ActivityCount is one bucket of a grouped count.
type ActivityCount struct {
	Label string
	Total int64
}

// ActivityStats aggregates the audit trail.
type ActivityStats struct {
	Total        int64
	Since        int64
	ByEntityType []ActivityCount
	ByAction     []ActivityCount
}

// ActivityLogRepository persists audit trail events. Rows are never updated.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLogWithActor, int64, error)
	Stats(ctx context.Context, since time.Time) (ActivityStats, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *activityLogRepository) filtered(ctx context.Context, filter ActivityLogFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.ActivityLog{})

	if filter.ActorID != nil {
		query = query.Where("activity_logs.actor_id = ?", *filter.ActorID)
	}
	if filter.Action != "" {
		query = query.Where("activity_logs.action = ?", filter.Action)
	}
	if filter.EntityType != "" {
		query = query.Where("activity_logs.entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != nil {
		query = query.Where("activity_logs.entity_id = ?", *filter.EntityID)
	}

	return query
}

// List returns entries newest first, joined with their actor. Entries whose
// actor was deleted come back with nil actor fields.
func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLogWithActor, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.filtered(ctx, filter).
		Select("activity_logs.*, users.username AS actor_username, users.email AS actor_email, users.role AS actor_role").
		Joins("LEFT JOIN users ON users.id = activity_logs.actor_id")
	query = paginate(query, filter.Page, filter.PageSize)

	var entries []models.ActivityLogWithActor
	if err := query.Order("activity_logs.created_at DESC, activity_logs.id DESC").Scan(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *activityLogRepository) Stats(ctx context.Context, since time.Time) (ActivityStats, error) {
	var stats ActivityStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.ActivityLog{}).Count(&stats.Total).Error; err != nil {
		return ActivityStats{}, err
	}
	if err := db.Model(&models.ActivityLog{}).Where("created_at >= ?", since).Count(&stats.Since).Error; err != nil {
		return ActivityStats{}, err
	}

	byEntity, err := r.groupCount(ctx, "entity_type")
	if err != nil {
		return ActivityStats{}, err
	}
	byAction, err := r.groupCount(ctx, "action")
	if err != nil {
		return ActivityStats{}, err
	}

	stats.ByEntityType = byEntity
	stats.ByAction = byAction
	return stats, nil
}

func (r *activityLogRepository) groupCount(ctx context.Context, column string) ([]ActivityCount, error) {
	rows := make([]ActivityCount, 0)
	err := r.db.WithContext(ctx).Model(&models.ActivityLog{}).
		Select(column + " AS label, COUNT(*) AS total").
		Group(column).
		Order("total DESC, label ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *activityLogRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.ActivityLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
