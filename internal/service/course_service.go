package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-api/internal/authz"
	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/repository"
)

const (
	msgCourseNotFound   = "Course not found!"
	msgCourseCodeExists = "Course code already exists!"
)

// CourseService manages the course lifecycle.
type CourseService interface {
	Create(ctx context.Context, caller Caller, req dto.CourseCreateRequest) (dto.CourseResponse, error)
	Get(ctx context.Context, caller Caller, id uint) (dto.CourseResponse, error)
	List(ctx context.Context, caller Caller, req dto.CourseListRequest) (dto.CourseListResponse, error)
	ListMine(ctx context.Context, caller Caller, req dto.CourseListRequest) (dto.CourseListResponse, error)
	Update(ctx context.Context, caller Caller, id uint, req dto.CourseUpdateRequest) (dto.CourseResponse, error)
	Delete(ctx context.Context, caller Caller, id uint) error
}

type courseService struct {
	repo        repository.CourseRepository
	users       repository.UserRepository
	enrollments repository.EnrollmentRepository
	policy      authz.Authorizer
	validator   *validator.Validate
	activity    AuditRecorder
	logger      zerolog.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(repo repository.CourseRepository, users repository.UserRepository, enrollments repository.EnrollmentRepository, policy authz.Authorizer, validate *validator.Validate, activity AuditRecorder, logger zerolog.Logger) CourseService {
	return &courseService{
		repo:        repo,
		users:       users,
		enrollments: enrollments,
		policy:      policy,
		validator:   validate,
		activity:    activity,
		logger:      logger.With().Str("component", "course_service").Logger(),
	}
}

func (s *courseService) Create(ctx context.Context, caller Caller, req dto.CourseCreateRequest) (dto.CourseResponse, error) {
	req.Code = normalizeCourseCode(req.Code)
	req.Title = sanitizePlain(req.Title)
	req.Description = sanitizePlain(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return dto.CourseResponse{}, err
	}
	if err := authorize(s.policy, caller, 0, authz.ResourceCourse, authz.ActionCreate); err != nil {
		return dto.CourseResponse{}, err
	}

	exists, err := s.repo.CodeExists(ctx, req.Code, 0)
	if err != nil {
		return dto.CourseResponse{}, fmt.Errorf("check course code: %w", err)
	}
	if exists {
		return dto.CourseResponse{}, conflictError(msgCourseCodeExists)
	}

	course := models.Course{
		Title:       req.Title,
		Description: req.Description,
		Code:        req.Code,
		Credit:      req.Credit,
		Semester:    req.Semester,
		IsActive:    true,
	}

	switch {
	case caller.IsFaculty():
		course.FacultyID = uintPtr(caller.ID)
	case req.FacultyID != nil:
		if err := s.ensureFaculty(ctx, *req.FacultyID); err != nil {
			return dto.CourseResponse{}, err
		}
		course.FacultyID = req.FacultyID
	}

	if err := s.repo.Create(ctx, &course); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.CourseResponse{}, conflictError(msgCourseCodeExists)
		}
		return dto.CourseResponse{}, fmt.Errorf("create course: %w", err)
	}

	s.activity.Append(ctx, caller.entry(models.ActionCreated, models.EntityCourse, uintPtr(course.ID),
		fmt.Sprintf("Created course %s - %s", course.Code, course.Title)))

	return s.respond(ctx, course)
}

func (s *courseService) Get(ctx context.Context, caller Caller, id uint) (dto.CourseResponse, error) {
	course, err := s.load(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	if err := authorize(s.policy, caller, course.OwnerID(), authz.ResourceCourse, authz.ActionRead); err != nil {
		return dto.CourseResponse{}, err
	}
	return dto.NewCourseResponse(course), nil
}

func (s *courseService) List(ctx context.Context, caller Caller, req dto.CourseListRequest) (dto.CourseListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CourseListResponse{}, err
	}
	if err := authorize(s.policy, caller, 0, authz.ResourceCourse, authz.ActionRead); err != nil {
		return dto.CourseListResponse{}, err
	}

	filter := repository.CourseFilter{Semester: req.Semester, Search: strings.TrimSpace(req.Search)}
	if req.FacultyID > 0 {
		filter.FacultyID = uintPtr(req.FacultyID)
	}
	return s.list(ctx, filter, req.Page, req.PageSize)
}

// ListMine returns the courses a faculty member owns, or the active courses a
// student is enrolled in. Admins own no courses and are rejected.
func (s *courseService) ListMine(ctx context.Context, caller Caller, req dto.CourseListRequest) (dto.CourseListResponse, error) {
	if err := authorize(s.policy, caller, 0, authz.ResourceCourse, authz.ActionRead); err != nil {
		return dto.CourseListResponse{}, err
	}

	if strings.EqualFold(caller.Role, models.RoleStudent) {
		page, pageSize := normalizePage(req.Page, req.PageSize)
		enrollments, total, err := s.enrollments.List(ctx, repository.EnrollmentFilter{
			Page:              page,
			PageSize:          pageSize,
			StudentID:         uintPtr(caller.ID),
			ActiveCoursesOnly: true,
		})
		if err != nil {
			return dto.CourseListResponse{}, fmt.Errorf("list enrolled courses: %w", err)
		}
		items := make([]dto.CourseResponse, 0, len(enrollments))
		for _, enrollment := range enrollments {
			items = append(items, dto.NewCourseResponse(enrollment.Course))
		}
		return dto.CourseListResponse{Items: items, Pagination: dto.NewPaginationMeta(page, pageSize, total)}, nil
	}

	if !caller.IsFaculty() {
		return dto.CourseListResponse{}, validationError("Only faculty and students have their own courses")
	}
	return s.list(ctx, repository.CourseFilter{Semester: req.Semester, FacultyID: uintPtr(caller.ID)}, req.Page, req.PageSize)
}

func (s *courseService) list(ctx context.Context, filter repository.CourseFilter, page, pageSize int) (dto.CourseListResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	filter.Page = page
	filter.PageSize = pageSize

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.CourseListResponse{}, fmt.Errorf("list courses: %w", err)
	}

	items := make([]dto.CourseResponse, 0, len(courses))
	for _, course := range courses {
		items = append(items, dto.NewCourseResponse(course))
	}
	return dto.CourseListResponse{Items: items, Pagination: dto.NewPaginationMeta(page, pageSize, total)}, nil
}

func (s *courseService) Update(ctx context.Context, caller Caller, id uint, req dto.CourseUpdateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CourseResponse{}, err
	}

	course, err := s.load(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	if err := authorize(s.policy, caller, course.OwnerID(), authz.ResourceCourse, authz.ActionUpdate); err != nil {
		return dto.CourseResponse{}, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title, err := sanitizeRequired(*req.Title, sanitizePlain, "Title")
		if err != nil {
			return dto.CourseResponse{}, err
		}
		updates["title"] = title
	}
	if req.Description != nil {
		description, err := sanitizeRequired(*req.Description, sanitizePlain, "Description")
		if err != nil {
			return dto.CourseResponse{}, err
		}
		updates["description"] = description
	}
	if req.Credit != nil {
		updates["credit"] = *req.Credit
	}
	if req.Semester != nil {
		updates["semester"] = *req.Semester
	}
	if req.Code != nil {
		code := normalizeCourseCode(*req.Code)
		if code == "" {
			return dto.CourseResponse{}, validationError("Course code must not be empty")
		}
		if code != course.Code {
			exists, err := s.repo.CodeExists(ctx, code, course.ID)
			if err != nil {
				return dto.CourseResponse{}, fmt.Errorf("check course code: %w", err)
			}
			if exists {
				return dto.CourseResponse{}, conflictError(msgCourseCodeExists)
			}
			updates["code"] = code
		}
	}
	if req.FacultyID != nil && (course.FacultyID == nil || *req.FacultyID != *course.FacultyID) {
		if !caller.IsAdmin() {
			return dto.CourseResponse{}, forbiddenError("Only administrators can reassign a course")
		}
		if err := s.ensureFaculty(ctx, *req.FacultyID); err != nil {
			return dto.CourseResponse{}, err
		}
		updates["faculty_id"] = *req.FacultyID
	}

	if len(updates) == 0 {
		return dto.NewCourseResponse(course), nil
	}

	updated, err := s.repo.Update(ctx, course.ID, updates)
	if err != nil {
		return dto.CourseResponse{}, translateStoreError(err, "update course", msgCourseNotFound, msgCourseCodeExists)
	}

	entry := caller.entry(models.ActionUpdated, models.EntityCourse, uintPtr(updated.ID),
		fmt.Sprintf("Updated course %s - %s", updated.Code, updated.Title))
	entry.Metadata = map[string]interface{}{"fields": changedFields(updates)}
	s.activity.Append(ctx, entry)

	return dto.NewCourseResponse(updated), nil
}

func (s *courseService) Delete(ctx context.Context, caller Caller, id uint) error {
	course, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(s.policy, caller, course.OwnerID(), authz.ResourceCourse, authz.ActionDelete); err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, course.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError(msgCourseNotFound)
		}
		return fmt.Errorf("delete course: %w", err)
	}

	s.activity.Append(ctx, caller.entry(models.ActionDeleted, models.EntityCourse, uintPtr(course.ID),
		fmt.Sprintf("Deleted course %s - %s", course.Code, course.Title)))
	return nil
}

func (s *courseService) load(ctx context.Context, id uint) (models.Course, error) {
	course, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, notFoundError(msgCourseNotFound)
		}
		return models.Course{}, fmt.Errorf("load course: %w", err)
	}
	return course, nil
}

func (s *courseService) respond(ctx context.Context, course models.Course) (dto.CourseResponse, error) {
	loaded, err := s.repo.GetByID(ctx, course.ID, true)
	if err != nil {
		s.logger.Warn().Err(err).Uint("course_id", course.ID).Msg("failed to reload course")
		return dto.NewCourseResponse(course), nil
	}
	return dto.NewCourseResponse(loaded), nil
}

func (s *courseService) ensureFaculty(ctx context.Context, userID uint) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("Faculty not found!")
		}
		return fmt.Errorf("load faculty: %w", err)
	}
	if !user.IsFaculty() {
		return validationError("Assigned user is not a faculty member!")
	}
	return nil
}

func normalizeCourseCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
