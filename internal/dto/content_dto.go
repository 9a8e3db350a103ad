package dto

import (
	"time"

	"github.com/noah-isme/campus-api/internal/models"
)

// AnnouncementCreateRequest publishes an announcement, globally when CourseID is absent.
type AnnouncementCreateRequest struct {
	Title            string `json:"title" validate:"required,max=255"`
	Content          string `json:"content" validate:"required"`
	AnnouncementType string `json:"announcement_type" validate:"omitempty,oneof=general academic exam assignment event urgent"`
	CourseID         *uint  `json:"course_id" validate:"omitempty,gt=0"`
}

// AnnouncementUpdateRequest partially updates an announcement.
type AnnouncementUpdateRequest struct {
	Title            *string `json:"title" validate:"omitempty,min=1,max=255"`
	Content          *string `json:"content" validate:"omitempty,min=1"`
	AnnouncementType *string `json:"announcement_type" validate:"omitempty,oneof=general academic exam assignment event urgent"`
	CourseID         *uint   `json:"course_id" validate:"omitempty,gt=0"`
}

// AnnouncementListRequest filters announcement listings.
type AnnouncementListRequest struct {
	Page     int
	PageSize int
	Type     string `validate:"omitempty,oneof=general academic exam assignment event urgent"`
	CourseID uint
}

// AnnouncementResponse is an announcement enriched with creator and course.
type AnnouncementResponse struct {
	ID               uint      `json:"id"`
	Title            string    `json:"title"`
	Content          string    `json:"content"`
	AnnouncementType string    `json:"announcement_type"`
	CreatedBy        uint      `json:"created_by"`
	CreatorUsername  string    `json:"creator_username,omitempty"`
	CourseID         *uint     `json:"course_id"`
	CourseCode       string    `json:"course_code,omitempty"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewAnnouncementResponse maps an announcement model.
func NewAnnouncementResponse(item models.Announcement) AnnouncementResponse {
	resp := AnnouncementResponse{
		ID:               item.ID,
		Title:            item.Title,
		Content:          item.Content,
		AnnouncementType: item.AnnouncementType,
		CreatedBy:        item.CreatedBy,
		CourseID:         item.CourseID,
		IsActive:         item.IsActive,
		CreatedAt:        item.CreatedAt,
		UpdatedAt:        item.UpdatedAt,
	}
	if item.Creator != nil {
		resp.CreatorUsername = item.Creator.Username
	}
	if item.Course != nil {
		resp.CourseCode = item.Course.Code
	}
	return resp
}

// AnnouncementListResponse wraps a page of announcements.
type AnnouncementListResponse struct {
	Items      []AnnouncementResponse `json:"items"`
	Pagination PaginationMeta         `json:"pagination"`
}

// EventCreateRequest schedules an event.
type EventCreateRequest struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description" validate:"required"`
	EventType   string    `json:"event_type" validate:"required,oneof=academic exam holiday workshop seminar sports cultural meeting other"`
	EventDate   time.Time `json:"event_date" validate:"required"`
	Location    string    `json:"location" validate:"omitempty,max=255"`
	Priority    string    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	CourseID    *uint     `json:"course_id" validate:"omitempty,gt=0"`
}

// EventUpdateRequest partially updates an event.
type EventUpdateRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string    `json:"description" validate:"omitempty,min=1"`
	EventType   *string    `json:"event_type" validate:"omitempty,oneof=academic exam holiday workshop seminar sports cultural meeting other"`
	EventDate   *time.Time `json:"event_date"`
	Location    *string    `json:"location" validate:"omitempty,max=255"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	CourseID    *uint      `json:"course_id" validate:"omitempty,gt=0"`
}

// EventListRequest filters event listings.
type EventListRequest struct {
	Page     int
	PageSize int
	Type     string `validate:"omitempty,oneof=academic exam holiday workshop seminar sports cultural meeting other"`
	Priority string `validate:"omitempty,oneof=low medium high urgent"`
	CourseID uint
	Upcoming bool
}

// EventResponse is an event enriched with creator and course.
type EventResponse struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	EventType       string    `json:"event_type"`
	EventDate       time.Time `json:"event_date"`
	Location        string    `json:"location"`
	Priority        string    `json:"priority"`
	CreatedBy       uint      `json:"created_by"`
	CreatorUsername string    `json:"creator_username,omitempty"`
	CourseID        *uint     `json:"course_id"`
	CourseCode      string    `json:"course_code,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewEventResponse maps an event model.
func NewEventResponse(event models.Event) EventResponse {
	resp := EventResponse{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		EventType:   event.EventType,
		EventDate:   event.EventDate,
		Location:    event.Location,
		Priority:    event.Priority,
		CreatedBy:   event.CreatedBy,
		CourseID:    event.CourseID,
		IsActive:    event.IsActive,
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
	if event.Creator != nil {
		resp.CreatorUsername = event.Creator.Username
	}
	if event.Course != nil {
		resp.CourseCode = event.Course.Code
	}
	return resp
}

// EventListResponse wraps a page of events.
type EventListResponse struct {
	Items      []EventResponse `json:"items"`
	Pagination PaginationMeta  `json:"pagination"`
}
