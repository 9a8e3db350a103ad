package dto

import (
	"time"

	"github.com/noah-isme/campus-api/internal/models"
)

// NotesUploadRequest carries the form fields that accompany a notes file.
type NotesUploadRequest struct {
	Title       string   `form:"title" validate:"required,max=255"`
	Description string   `form:"description" validate:"omitempty,max=2000"`
	CourseID    uint     `form:"course_id" validate:"required,gt=0"`
	Tags        []string `form:"tags" validate:"omitempty,max=20,dive,max=40"`
}

// NotesUpdateRequest partially updates notes metadata. The file itself is immutable.
type NotesUpdateRequest struct {
	Title       *string   `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string   `json:"description" validate:"omitempty,max=2000"`
	Tags        *[]string `json:"tags" validate:"omitempty,max=20,dive,max=40"`
}

// NotesListRequest filters notes listings.
type NotesListRequest struct {
	Page     int
	PageSize int
	CourseID uint
	Tag      string
	Search   string
}

// NotesResponse is notes metadata enriched with uploader and course.
type NotesResponse struct {
	ID               uint      `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	FileName         string    `json:"file_name"`
	FileType         string    `json:"file_type"`
	FileSize         int64     `json:"file_size"`
	UploadedBy       uint      `json:"uploaded_by"`
	UploaderUsername string    `json:"uploader_username,omitempty"`
	CourseID         uint      `json:"course_id"`
	CourseCode       string    `json:"course_code,omitempty"`
	DownloadCount    int64     `json:"download_count"`
	Tags             []string  `json:"tags"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewNotesResponse maps a notes model. The storage path is not exposed.
func NewNotesResponse(notes models.Notes) NotesResponse {
	tags := notes.Tags
	if tags == nil {
		tags = []string{}
	}
	resp := NotesResponse{
		ID:            notes.ID,
		Title:         notes.Title,
		Description:   notes.Description,
		FileName:      notes.FileName,
		FileType:      notes.FileType,
		FileSize:      notes.FileSize,
		UploadedBy:    notes.UploadedBy,
		CourseID:      notes.CourseID,
		DownloadCount: notes.DownloadCount,
		Tags:          tags,
		IsActive:      notes.IsActive,
		CreatedAt:     notes.CreatedAt,
		UpdatedAt:     notes.UpdatedAt,
	}
	if notes.Uploader != nil {
		resp.UploaderUsername = notes.Uploader.Username
	}
	if notes.Course != nil {
		resp.CourseCode = notes.Course.Code
	}
	return resp
}

// NotesListResponse wraps a page of notes.
type NotesListResponse struct {
	Items      []NotesResponse `json:"items"`
	Pagination PaginationMeta  `json:"pagination"`
}

// NotesDownload locates a stored notes file.
type NotesDownload struct {
	Location      string `json:"location"`
	FileName      string `json:"file_name"`
	FileType      string `json:"file_type"`
	DownloadCount int64  `json:"download_count"`
	Remote        bool   `json:"remote"`
}
