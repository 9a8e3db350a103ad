package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/campus-api/internal/models"
)

// AnnouncementFilter filters announcement list queries. Inactive rows are excluded.
type AnnouncementFilter struct {
	Page     int
	PageSize int
	Type     string
	CourseID *uint
}

// AnnouncementRepository exposes persistence helpers for announcements.
type AnnouncementRepository interface {
	Create(ctx context.Context, item *models.Announcement) error
	GetByID(ctx context.Context, id uint, includeInactive bool) (models.Announcement, error)
	List(ctx context.Context, filter AnnouncementFilter) ([]models.Announcement, int64, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Announcement, error)
	SoftDelete(ctx context.Context, id uint) error
}

type announcementRepository struct {
	db *gorm.DB
}

// NewAnnouncementRepository constructs the repository implementation.
func NewAnnouncementRepository(db *gorm.DB) AnnouncementRepository {
	return &announcementRepository{db: db}
}

func (r *announcementRepository) Create(ctx context.Context, item *models.Announcement) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error
}

func (r *announcementRepository) GetByID(ctx context.Context, id uint, includeInactive bool) (models.Announcement, error) {
	query := r.db.WithContext(ctx).Preload("Creator").Preload("Course").Where("id = ?", id)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var item models.Announcement
	if err := query.First(&item).Error; err != nil {
		return models.Announcement{}, err
	}
	return item, nil
}

func (r *announcementRepository) List(ctx context.Context, filter AnnouncementFilter) ([]models.Announcement, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Announcement{}).Where("is_active = ?", true)
	if filter.Type != "" {
		query = query.Where("announcement_type = ?", filter.Type)
	}
	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}

	query, total, err := countAndPage(query, filter.Page, filter.PageSize)
	if err != nil {
		return nil, 0, err
	}

	var items []models.Announcement
	err = query.
		Preload("Creator").
		Preload("Course").
		Order("created_at DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *announcementRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Announcement, error) {
	if len(updates) > 0 {
		err := r.db.WithContext(ctx).Model(&models.Announcement{}).
			Where("id = ? AND is_active = ?", id, true).
			Updates(updates).Error
		if err != nil {
			return models.Announcement{}, err
		}
	}
	return r.GetByID(ctx, id, false)
}

func (r *announcementRepository) SoftDelete(ctx context.Context, id uint) error {
	return softDelete(ctx, r.db, &models.Announcement{}, id)
}
