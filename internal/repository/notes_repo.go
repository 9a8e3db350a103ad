package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/campus-api/internal/models"
)

// NotesFilter filters notes listings. Inactive rows are excluded.
type NotesFilter struct {
	Page       int
	PageSize   int
	CourseID   *uint
	UploadedBy *uint
	Tag        string
	Search     string
}

// NotesRepository persists course notes metadata.
type NotesRepository interface {
	Create(ctx context.Context, notes *models.Notes) error
	GetByID(ctx context.Context, id uint, includeInactive bool) (models.Notes, error)
	List(ctx context.Context, filter NotesFilter) ([]models.Notes, int64, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Notes, error)
	SoftDelete(ctx context.Context, id uint) error
	IncrementDownloads(ctx context.Context, id uint) error
}

type notesRepository struct {
	db *gorm.DB
}

// NewNotesRepository constructs the notes repository.
func NewNotesRepository(db *gorm.DB) NotesRepository {
	return &notesRepository{db: db}
}

func (r *notesRepository) Create(ctx context.Context, notes *models.Notes) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(notes).Error
}

func (r *notesRepository) GetByID(ctx context.Context, id uint, includeInactive bool) (models.Notes, error) {
	query := r.db.WithContext(ctx).Preload("Uploader").Preload("Course").Where("id = ?", id)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var notes models.Notes
	if err := query.First(&notes).Error; err != nil {
		return models.Notes{}, err
	}
	return notes, nil
}

func (r *notesRepository) List(ctx context.Context, filter NotesFilter) ([]models.Notes, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Notes{}).Where("is_active = ?", true)
	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}
	if filter.UploadedBy != nil {
		query = query.Where("uploaded_by = ?", *filter.UploadedBy)
	}
	if tag := strings.ToLower(strings.TrimSpace(filter.Tag)); tag != "" {
		query = query.Where("tags LIKE ?", "%|"+tag+"|%")
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	query, total, err := countAndPage(query, filter.Page, filter.PageSize)
	if err != nil {
		return nil, 0, err
	}

	var items []models.Notes
	err = query.
		Preload("Uploader").
		Preload("Course").
		Order("created_at DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *notesRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Notes, error) {
	if len(updates) > 0 {
		err := r.db.WithContext(ctx).Model(&models.Notes{}).
			Where("id = ? AND is_active = ?", id, true).
			Updates(updates).Error
		if err != nil {
			return models.Notes{}, err
		}
	}
	return r.GetByID(ctx, id, false)
}

func (r *notesRepository) SoftDelete(ctx context.Context, id uint) error {
	return softDelete(ctx, r.db, &models.Notes{}, id)
}

// IncrementDownloads bumps the counter in a single statement. Concurrent
// downloads are not otherwise coordinated.
func (r *notesRepository) IncrementDownloads(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.Notes{}).
		Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
