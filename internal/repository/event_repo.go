package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/campus-api/internal/models"
)

// EventFilter filters event listings. Inactive rows are excluded.
type EventFilter struct {
	Page     int
	PageSize int
	Type     string
	Priority string
	CourseID *uint
	From     *time.Time
}

// EventRepository persists events.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id uint, includeInactive bool) (models.Event, error)
	List(ctx context.Context, filter EventFilter) ([]models.Event, int64, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Event, error)
	SoftDelete(ctx context.Context, id uint) error
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository constructs the event repository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(event).Error
}

func (r *eventRepository) GetByID(ctx context.Context, id uint, includeInactive bool) (models.Event, error) {
	query := r.db.WithContext(ctx).Preload("Creator").Preload("Course").Where("id = ?", id)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var event models.Event
	if err := query.First(&event).Error; err != nil {
		return models.Event{}, err
	}
	return event, nil
}

func (r *eventRepository) List(ctx context.Context, filter EventFilter) ([]models.Event, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Event{}).Where("is_active = ?", true)
	if filter.Type != "" {
		query = query.Where("event_type = ?", filter.Type)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}
	if filter.From != nil {
		query = query.Where("event_date >= ?", *filter.From)
	}

	query, total, err := countAndPage(query, filter.Page, filter.PageSize)
	if err != nil {
		return nil, 0, err
	}

	var events []models.Event
	err = query.
		Preload("Creator").
		Preload("Course").
		Order("event_date ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *eventRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Event, error) {
	if len(updates) > 0 {
		err := r.db.WithContext(ctx).Model(&models.Event{}).
			Where("id = ? AND is_active = ?", id, true).
			Updates(updates).Error
		if err != nil {
			return models.Event{}, err
		}
	}
	return r.GetByID(ctx, id, false)
}

func (r *eventRepository) SoftDelete(ctx context.Context, id uint) error {
	return softDelete(ctx, r.db, &models.Event{}, id)
}
