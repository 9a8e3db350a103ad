package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-api/internal/authz"
	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/repository"
)

const (
	msgStudentNotFound    = "Student not found!"
	msgAlreadyEnrolled    = "Student is already enrolled in this course!"
	msgEnrollmentNotFound = "Enrollment not found!"
)

// EnrollmentService links students to courses.
type EnrollmentService interface {
	Enroll(ctx context.Context, caller Caller, req dto.EnrollmentCreateRequest) (dto.EnrollmentResponse, error)
	List(ctx context.Context, caller Caller, req dto.EnrollmentListRequest) (dto.EnrollmentListResponse, error)
	ListByCourse(ctx context.Context, caller Caller, courseID uint, req dto.EnrollmentListRequest) (dto.EnrollmentListResponse, error)
	ListMine(ctx context.Context, caller Caller, req dto.EnrollmentListRequest) (dto.EnrollmentListResponse, error)
	Remove(ctx context.Context, caller Caller, id uint) error
}

type enrollmentService struct {
	repo      repository.EnrollmentRepository
	users     repository.UserRepository
	courses   repository.CourseRepository
	policy    authz.Authorizer
	validator *validator.Validate
	activity  AuditRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repo repository.EnrollmentRepository, users repository.UserRepository, courses repository.CourseRepository, policy authz.Authorizer, validate *validator.Validate, activity AuditRecorder, logger zerolog.Logger) EnrollmentService {
	return &enrollmentService{
		repo:      repo,
		users:     users,
		courses:   courses,
		policy:    policy,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "enrollment_service").Logger(),
		now:       time.Now,
	}
}

func (s *enrollmentService) Enroll(ctx context.Context, caller Caller, req dto.EnrollmentCreateRequest) (dto.EnrollmentResponse, error) {
	req.StudentEmail = strings.ToLower(strings.TrimSpace(req.StudentEmail))
	req.CourseCode = normalizeCourseCode(req.CourseCode)
	if err := s.validator.Struct(req); err != nil {
		return dto.EnrollmentResponse{}, err
	}
	if err := authorize(s.policy, caller, 0, authz.ResourceEnrollment, authz.ActionCreate); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	student, err := s.users.GetByEmail(ctx, req.StudentEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentResponse{}, notFoundError(msgStudentNotFound)
		}
		return dto.EnrollmentResponse{}, fmt.Errorf("load student: %w", err)
	}
	if !student.IsStudent() {
		return dto.EnrollmentResponse{}, validationError("User %s is not a student!", student.Email)
	}

	course, err := s.courses.GetByCode(ctx, req.CourseCode, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentResponse{}, notFoundError(msgCourseNotFound)
		}
		return dto.EnrollmentResponse{}, fmt.Errorf("load course: %w", err)
	}

	exists, err := s.repo.Exists(ctx, student.ID, course.ID)
	if err != nil {
		return dto.EnrollmentResponse{}, fmt.Errorf("check enrollment: %w", err)
	}
	if exists {
		return dto.EnrollmentResponse{}, conflictError(msgAlreadyEnrolled)
	}

	enrollment := models.Enrollment{
		StudentID:  student.ID,
		CourseID:   course.ID,
		EnrolledAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, &enrollment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.EnrollmentResponse{}, conflictError(msgAlreadyEnrolled)
		}
		return dto.EnrollmentResponse{}, fmt.Errorf("create enrollment: %w", err)
	}

	s.activity.Append(ctx, caller.entry(models.ActionCreated, models.EntityEnrollment, uintPtr(enrollment.ID),
		fmt.Sprintf("Enrolled %s in %s", student.Email, course.Code)))

	enrollment.Student = student
	enrollment.Course = course
	return dto.NewEnrollmentResponse(enrollment), nil
}

// List returns every enrollment. The read itself is audited.
func (s *enrollmentService) List(ctx context.Context, caller Caller, req dto.EnrollmentListRequest) (dto.EnrollmentListResponse, error) {
	if err := authorize(s.policy, caller, 0, authz.ResourceEnrollment, authz.ActionList); err != nil {
		return dto.EnrollmentListResponse{}, err
	}

	resp, err := s.list(ctx, repository.EnrollmentFilter{}, req)
	if err != nil {
		return dto.EnrollmentListResponse{}, err
	}

	s.activity.Append(ctx, caller.entry(models.ActionViewed, models.EntityEnrollment, nil, "Viewed all enrollments"))
	return resp, nil
}

func (s *enrollmentService) ListByCourse(ctx context.Context, caller Caller, courseID uint, req dto.EnrollmentListRequest) (dto.EnrollmentListResponse, error) {
	if _, err := s.courses.GetByID(ctx, courseID, false); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentListResponse{}, notFoundError(msgCourseNotFound)
		}
		return dto.EnrollmentListResponse{}, fmt.Errorf("load course: %w", err)
	}
	if err := authorize(s.policy, caller, 0, authz.ResourceEnrollment, authz.ActionRead); err != nil {
		return dto.EnrollmentListResponse{}, err
	}
	return s.list(ctx, repository.EnrollmentFilter{CourseID: uintPtr(courseID)}, req)
}

func (s *enrollmentService) ListMine(ctx context.Context, caller Caller, req dto.EnrollmentListRequest) (dto.EnrollmentListResponse, error) {
	if err := authorize(s.policy, caller, caller.ID, authz.ResourceEnrollment, authz.ActionRead); err != nil {
		return dto.EnrollmentListResponse{}, err
	}
	return s.list(ctx, repository.EnrollmentFilter{StudentID: uintPtr(caller.ID)}, req)
}

func (s *enrollmentService) list(ctx context.Context, filter repository.EnrollmentFilter, req dto.EnrollmentListRequest) (dto.EnrollmentListResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)
	filter.Page = page
	filter.PageSize = pageSize

	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.EnrollmentListResponse{}, fmt.Errorf("list enrollments: %w", err)
	}

	items := make([]dto.EnrollmentResponse, 0, len(enrollments))
	for _, enrollment := range enrollments {
		items = append(items, dto.NewEnrollmentResponse(enrollment))
	}
	return dto.EnrollmentListResponse{Items: items, Pagination: dto.NewPaginationMeta(page, pageSize, total)}, nil
}

func (s *enrollmentService) Remove(ctx context.Context, caller Caller, id uint) error {
	enrollment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError(msgEnrollmentNotFound)
		}
		return fmt.Errorf("load enrollment: %w", err)
	}
	if err := authorize(s.policy, caller, 0, authz.ResourceEnrollment, authz.ActionDelete); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, enrollment.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError(msgEnrollmentNotFound)
		}
		return fmt.Errorf("delete enrollment: %w", err)
	}

	s.activity.Append(ctx, caller.entry(models.ActionDeleted, models.EntityEnrollment, uintPtr(enrollment.ID),
		fmt.Sprintf("Removed %s from %s", enrollment.Student.Email, enrollment.Course.Code)))
	return nil
}
