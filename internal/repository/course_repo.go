package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/campus-api/internal/models"
)

// CourseFilter narrows course listings. Inactive courses are always excluded.
type CourseFilter struct {
	Page      int
	PageSize  int
	Semester  int
	FacultyID *uint
	Search    string
}

// CourseRepository persists courses.
type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id uint, includeInactive bool) (models.Course, error)
	GetByCode(ctx context.Context, code string, includeInactive bool) (models.Course, error)
	CodeExists(ctx context.Context, code string, excludeID uint) (bool, error)
	List(ctx context.Context, filter CourseFilter) ([]models.Course, int64, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Course, error)
	SoftDelete(ctx context.Context, id uint) error
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs the course repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(course).Error
}

func (r *courseRepository) GetByID(ctx context.Context, id uint, includeInactive bool) (models.Course, error) {
	query := r.db.WithContext(ctx).Preload("Faculty").Where("id = ?", id)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var course models.Course
	if err := query.First(&course).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) GetByCode(ctx context.Context, code string, includeInactive bool) (models.Course, error) {
	query := r.db.WithContext(ctx).Preload("Faculty").Where("code = ?", strings.ToUpper(strings.TrimSpace(code)))
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var course models.Course
	if err := query.First(&course).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

// CodeExists checks every course, active or not, since the unique index does too.
func (r *courseRepository) CodeExists(ctx context.Context, code string, excludeID uint) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Course{}).Where("code = ?", strings.ToUpper(strings.TrimSpace(code)))
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *courseRepository) List(ctx context.Context, filter CourseFilter) ([]models.Course, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Course{}).Where("is_active = ?", true)
	if filter.Semester > 0 {
		query = query.Where("semester = ?", filter.Semester)
	}
	if filter.FacultyID != nil {
		query = query.Where("faculty_id = ?", *filter.FacultyID)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(code) LIKE ?", like, like)
	}

	query, total, err := countAndPage(query, filter.Page, filter.PageSize)
	if err != nil {
		return nil, 0, err
	}

	var courses []models.Course
	if err := query.Preload("Faculty").Order("code ASC").Find(&courses).Error; err != nil {
		return nil, 0, err
	}
	return courses, total, nil
}

func (r *courseRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Course, error) {
	if len(updates) > 0 {
		err := r.db.WithContext(ctx).Model(&models.Course{}).
			Where("id = ? AND is_active = ?", id, true).
			Updates(updates).Error
		if err != nil {
			return models.Course{}, err
		}
	}
	return r.GetByID(ctx, id, false)
}

func (r *courseRepository) SoftDelete(ctx context.Context, id uint) error {
	return softDelete(ctx, r.db, &models.Course{}, id)
}

func softDelete(ctx context.Context, db *gorm.DB, model interface{}, id uint) error {
	result := db.WithContext(ctx).Model(model).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
