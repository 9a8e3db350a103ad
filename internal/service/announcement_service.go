package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-api/internal/authz"
	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/repository"
)

const msgAnnouncementNotFound = "Announcement not found!"

// AnnouncementService publishes global and course announcements.
type AnnouncementService interface {
	Create(ctx context.Context, caller Caller, req dto.AnnouncementCreateRequest) (dto.AnnouncementResponse, error)
	Get(ctx context.Context, caller Caller, id uint) (dto.AnnouncementResponse, error)
	List(ctx context.Context, caller Caller, req dto.AnnouncementListRequest) (dto.AnnouncementListResponse, error)
	Update(ctx context.Context, caller Caller, id uint, req dto.AnnouncementUpdateRequest) (dto.AnnouncementResponse, error)
	Delete(ctx context.Context, caller Caller, id uint) error
}

type announcementService struct {
	repo      repository.AnnouncementRepository
	courses   repository.CourseRepository
	policy    authz.Authorizer
	validator *validator.Validate
	activity  AuditRecorder
	logger    zerolog.Logger
}

// NewAnnouncementService constructs the announcement service.
func NewAnnouncementService(repo repository.AnnouncementRepository, courses repository.CourseRepository, policy authz.Authorizer, validate *validator.Validate, activity AuditRecorder, logger zerolog.Logger) AnnouncementService {
	return &announcementService{
		repo:      repo,
		courses:   courses,
		policy:    policy,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "announcement_service").Logger(),
	}
}

func (s *announcementService) Create(ctx context.Context, caller Caller, req dto.AnnouncementCreateRequest) (dto.AnnouncementResponse, error) {
	req.Title = sanitizePlain(req.Title)
	req.Content = sanitizeRich(req.Content)
	if req.AnnouncementType == "" {
		req.AnnouncementType = models.AnnouncementGeneral
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.AnnouncementResponse{}, err
	}
	if err := authorize(s.policy, caller, 0, authz.ResourceAnnouncement, authz.ActionCreate); err != nil {
		return dto.AnnouncementResponse{}, err
	}
	if err := ensureActiveCourse(ctx, s.courses, req.CourseID); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	item := models.Announcement{
		Title:            req.Title,
		Content:          req.Content,
		AnnouncementType: req.AnnouncementType,
		CreatedBy:        caller.ID,
		CourseID:         req.CourseID,
		IsActive:         true,
	}
	if err := s.repo.Create(ctx, &item); err != nil {
		return dto.AnnouncementResponse{}, fmt.Errorf("create announcement: %w", err)
	}

	s.activity.Append(ctx, caller.entry(models.ActionCreated, models.EntityAnnouncement, uintPtr(item.ID),
		fmt.Sprintf("Published announcement %q", item.Title)))

	loaded, err := s.repo.GetByID(ctx, item.ID, true)
	if err != nil {
		s.logger.Warn().Err(err).Uint("announcement_id", item.ID).Msg("failed to reload announcement")
		return dto.NewAnnouncementResponse(item), nil
	}
	return dto.NewAnnouncementResponse(loaded), nil
}

func (s *announcementService) Get(ctx context.Context, caller Caller, id uint) (dto.AnnouncementResponse, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return dto.AnnouncementResponse{}, err
	}
	if err := authorize(s.policy, caller, item.CreatedBy, authz.ResourceAnnouncement, authz.ActionRead); err != nil {
		return dto.AnnouncementResponse{}, err
	}
	return dto.NewAnnouncementResponse(item), nil
}

func (s *announcementService) List(ctx context.Context, caller Caller, req dto.AnnouncementListRequest) (dto.AnnouncementListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AnnouncementListResponse{}, err
	}
	if err := authorize(s.policy, caller, 0, authz.ResourceAnnouncement, authz.ActionRead); err != nil {
		return dto.AnnouncementListResponse{}, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	filter := repository.AnnouncementFilter{Page: page, PageSize: pageSize, Type: req.Type}
	if req.CourseID > 0 {
		filter.CourseID = uintPtr(req.CourseID)
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AnnouncementListResponse{}, fmt.Errorf("list announcements: %w", err)
	}

	resp := make([]dto.AnnouncementResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, dto.NewAnnouncementResponse(item))
	}
	return dto.AnnouncementListResponse{Items: resp, Pagination: dto.NewPaginationMeta(page, pageSize, total)}, nil
}

func (s *announcementService) Update(ctx context.Context, caller Caller, id uint, req dto.AnnouncementUpdateRequest) (dto.AnnouncementResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	item, err := s.load(ctx, id)
	if err != nil {
		return dto.AnnouncementResponse{}, err
	}
	if err := authorize(s.policy, caller, item.CreatedBy, authz.ResourceAnnouncement, authz.ActionUpdate); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title, err := sanitizeRequired(*req.Title, sanitizePlain, "Title")
		if err != nil {
			return dto.AnnouncementResponse{}, err
		}
		updates["title"] = title
	}
	if req.Content != nil {
		content, err := sanitizeRequired(*req.Content, sanitizeRich, "Announcement content")
		if err != nil {
			return dto.AnnouncementResponse{}, err
		}
		updates["content"] = content
	}
	if req.AnnouncementType != nil {
		updates["announcement_type"] = *req.AnnouncementType
	}
	if req.CourseID != nil {
		if err := ensureActiveCourse(ctx, s.courses, req.CourseID); err != nil {
			return dto.AnnouncementResponse{}, err
		}
		updates["course_id"] = *req.CourseID
	}

	if len(updates) == 0 {
		return dto.NewAnnouncementResponse(item), nil
	}

	updated, err := s.repo.Update(ctx, item.ID, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnnouncementResponse{}, notFoundError(msgAnnouncementNotFound)
		}
		return dto.AnnouncementResponse{}, fmt.Errorf("update announcement: %w", err)
	}

	entry := caller.entry(models.ActionUpdated, models.EntityAnnouncement, uintPtr(updated.ID),
		fmt.Sprintf("Updated announcement %q", updated.Title))
	entry.Metadata = map[string]interface{}{"fields": changedFields(updates)}
	s.activity.Append(ctx, entry)

	return dto.NewAnnouncementResponse(updated), nil
}

func (s *announcementService) Delete(ctx context.Context, caller Caller, id uint) error {
	item, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(s.policy, caller, item.CreatedBy, authz.ResourceAnnouncement, authz.ActionDelete); err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, item.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError(msgAnnouncementNotFound)
		}
		return fmt.Errorf("delete announcement: %w", err)
	}

	s.activity.Append(ctx, caller.entry(models.ActionDeleted, models.EntityAnnouncement, uintPtr(item.ID),
		fmt.Sprintf("Deleted announcement %q", item.Title)))
	return nil
}

func (s *announcementService) load(ctx context.Context, id uint) (models.Announcement, error) {
	item, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Announcement{}, notFoundError(msgAnnouncementNotFound)
		}
		return models.Announcement{}, fmt.Errorf("load announcement: %w", err)
	}
	return item, nil
}

// ensureActiveCourse checks an optional course reference.
func ensureActiveCourse(ctx context.Context, courses repository.CourseRepository, courseID *uint) error {
	if courseID == nil {
		return nil
	}
	if _, err := courses.GetByID(ctx, *courseID, false); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError(msgCourseNotFound)
		}
		return fmt.Errorf("load course: %w", err)
	}
	return nil
}
