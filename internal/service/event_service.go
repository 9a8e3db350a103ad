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
	msgEventNotFound = "Event not found!"
	msgEventInPast   = "Event date cannot be in the past!"
)

// EventService schedules campus events.
type EventService interface {
	Create(ctx context.Context, caller Caller, req dto.EventCreateRequest) (dto.EventResponse, error)
	Get(ctx context.Context, caller Caller, id uint) (dto.EventResponse, error)
	List(ctx context.Context, caller Caller, req dto.EventListRequest) (dto.EventListResponse, error)
	Update(ctx context.Context, caller Caller, id uint, req dto.EventUpdateRequest) (dto.EventResponse, error)
	Delete(ctx context.Context, caller Caller, id uint) error
}

type eventService struct {
	repo      repository.EventRepository
	courses   repository.CourseRepository
	policy    authz.Authorizer
	validator *validator.Validate
	activity  AuditRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

// NewEventService constructs the event service.
func NewEventService(repo repository.EventRepository, courses repository.CourseRepository, policy authz.Authorizer, validate *validator.Validate, activity AuditRecorder, logger zerolog.Logger) EventService {
	return &eventService{
		repo:      repo,
		courses:   courses,
		policy:    policy,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "event_service").Logger(),
		now:       time.Now,
	}
}

func (s *eventService) Create(ctx context.Context, caller Caller, req dto.EventCreateRequest) (dto.EventResponse, error) {
	req.Title = sanitizePlain(req.Title)
	req.Description = sanitizeRich(req.Description)
	req.Location = sanitizePlain(req.Location)
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.EventResponse{}, err
	}
	if req.EventDate.Before(s.now()) {
		return dto.EventResponse{}, validationError(msgEventInPast)
	}
	if err := authorize(s.policy, caller, 0, authz.ResourceEvent, authz.ActionCreate); err != nil {
		return dto.EventResponse{}, err
	}
	if err := ensureActiveCourse(ctx, s.courses, req.CourseID); err != nil {
		return dto.EventResponse{}, err
	}

	event := models.Event{
		Title:       req.Title,
		Description: req.Description,
		EventType:   req.EventType,
		EventDate:   req.EventDate.UTC(),
		Location:    req.Location,
		Priority:    req.Priority,
		CreatedBy:   caller.ID,
		CourseID:    req.CourseID,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, &event); err != nil {
		return dto.EventResponse{}, fmt.Errorf("create event: %w", err)
	}

	s.activity.Append(ctx, caller.entry(models.ActionCreated, models.EntityEvent, uintPtr(event.ID),
		fmt.Sprintf("Scheduled event %q on %s", event.Title, event.EventDate.Format(time.RFC3339))))

	loaded, err := s.repo.GetByID(ctx, event.ID, true)
	if err != nil {
		s.logger.Warn().Err(err).Uint("event_id", event.ID).Msg("failed to reload event")
		return dto.NewEventResponse(event), nil
	}
	return dto.NewEventResponse(loaded), nil
}

func (s *eventService) Get(ctx context.Context, caller Caller, id uint) (dto.EventResponse, error) {
	event, err := s.load(ctx, id)
	if err != nil {
		return dto.EventResponse{}, err
	}
	if err := authorize(s.policy, caller, event.CreatedBy, authz.ResourceEvent, authz.ActionRead); err != nil {
		return dto.EventResponse{}, err
	}
	return dto.NewEventResponse(event), nil
}

func (s *eventService) List(ctx context.Context, caller Caller, req dto.EventListRequest) (dto.EventListResponse, error) {
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.Priority = strings.ToLower(strings.TrimSpace(req.Priority))
	if err := s.validator.Struct(req); err != nil {
		return dto.EventListResponse{}, err
	}
	if err := authorize(s.policy, caller, 0, authz.ResourceEvent, authz.ActionRead); err != nil {
		return dto.EventListResponse{}, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	filter := repository.EventFilter{Page: page, PageSize: pageSize, Type: req.Type, Priority: req.Priority}
	if req.CourseID > 0 {
		filter.CourseID = uintPtr(req.CourseID)
	}
	if req.Upcoming {
		from := s.now().UTC()
		filter.From = &from
	}

	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.EventListResponse{}, fmt.Errorf("list events: %w", err)
	}

	items := make([]dto.EventResponse, 0, len(events))
	for _, event := range events {
		items = append(items, dto.NewEventResponse(event))
	}
	return dto.EventListResponse{Items: items, Pagination: dto.NewPaginationMeta(page, pageSize, total)}, nil
}

func (s *eventService) Update(ctx context.Context, caller Caller, id uint, req dto.EventUpdateRequest) (dto.EventResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.EventResponse{}, err
	}

	event, err := s.load(ctx, id)
	if err != nil {
		return dto.EventResponse{}, err
	}
	if err := authorize(s.policy, caller, event.CreatedBy, authz.ResourceEvent, authz.ActionUpdate); err != nil {
		return dto.EventResponse{}, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title, err := sanitizeRequired(*req.Title, sanitizePlain, "Title")
		if err != nil {
			return dto.EventResponse{}, err
		}
		updates["title"] = title
	}
	if req.Description != nil {
		description, err := sanitizeRequired(*req.Description, sanitizeRich, "Description")
		if err != nil {
			return dto.EventResponse{}, err
		}
		updates["description"] = description
	}
	if req.EventType != nil {
		updates["event_type"] = *req.EventType
	}
	if req.EventDate != nil {
		if req.EventDate.Before(s.now()) {
			return dto.EventResponse{}, validationError(msgEventInPast)
		}
		updates["event_date"] = req.EventDate.UTC()
	}
	if req.Location != nil {
		updates["location"] = sanitizePlain(*req.Location)
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.CourseID != nil {
		if err := ensureActiveCourse(ctx, s.courses, req.CourseID); err != nil {
			return dto.EventResponse{}, err
		}
		updates["course_id"] = *req.CourseID
	}

	if len(updates) == 0 {
		return dto.NewEventResponse(event), nil
	}

	updated, err := s.repo.Update(ctx, event.ID, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EventResponse{}, notFoundError(msgEventNotFound)
		}
		return dto.EventResponse{}, fmt.Errorf("update event: %w", err)
	}

	entry := caller.entry(models.ActionUpdated, models.EntityEvent, uintPtr(updated.ID),
		fmt.Sprintf("Updated event %q", updated.Title))
	entry.Metadata = map[string]interface{}{"fields": changedFields(updates)}
	s.activity.Append(ctx, entry)

	return dto.NewEventResponse(updated), nil
}

func (s *eventService) Delete(ctx context.Context, caller Caller, id uint) error {
	event, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(s.policy, caller, event.CreatedBy, authz.ResourceEvent, authz.ActionDelete); err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, event.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError(msgEventNotFound)
		}
		return fmt.Errorf("delete event: %w", err)
	}

	s.activity.Append(ctx, caller.entry(models.ActionDeleted, models.EntityEvent, uintPtr(event.ID),
		fmt.Sprintf("Cancelled event %q", event.Title)))
	return nil
}

func (s *eventService) load(ctx context.Context, id uint) (models.Event, error) {
	event, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Event{}, notFoundError(msgEventNotFound)
		}
		return models.Event{}, fmt.Errorf("load event: %w", err)
	}
	return event, nil
}
