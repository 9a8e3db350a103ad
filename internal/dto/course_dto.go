package dto

import (
	"time"

	"github.com/noah-isme/campus-api/internal/models"
)

// CourseCreateRequest creates a course. FacultyID is honoured for admins only.
type CourseCreateRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
	Code        string `json:"code" validate:"required,max=32"`
	Credit      int    `json:"credit" validate:"required,min=1,max=10"`
	Semester    int    `json:"semester" validate:"required,min=1,max=8"`
	FacultyID   *uint  `json:"faculty_id" validate:"omitempty,gt=0"`
}

// CourseUpdateRequest partially updates a course.
type CourseUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,min=1"`
	Code        *string `json:"code" validate:"omitempty,min=1,max=32"`
	Credit      *int    `json:"credit" validate:"omitempty,min=1,max=10"`
	Semester    *int    `json:"semester" validate:"omitempty,min=1,max=8"`
	FacultyID   *uint   `json:"faculty_id" validate:"omitempty,gt=0"`
}

// CourseListRequest filters course listings.
type CourseListRequest struct {
	Page      int
	PageSize  int
	Semester  int `validate:"omitempty,min=1,max=8"`
	FacultyID uint
	Search    string
}

// CourseResponse is a course enriched with its faculty owner.
type CourseResponse struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Code            string    `json:"code"`
	Credit          int       `json:"credit"`
	Semester        int       `json:"semester"`
	FacultyID       *uint     `json:"faculty_id"`
	FacultyUsername string    `json:"faculty_username,omitempty"`
	FacultyEmail    string    `json:"faculty_email,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewCourseResponse maps a course model.
func NewCourseResponse(course models.Course) CourseResponse {
	resp := CourseResponse{
		ID:          course.ID,
		Title:       course.Title,
		Description: course.Description,
		Code:        course.Code,
		Credit:      course.Credit,
		Semester:    course.Semester,
		FacultyID:   course.FacultyID,
		IsActive:    course.IsActive,
		CreatedAt:   course.CreatedAt,
		UpdatedAt:   course.UpdatedAt,
	}
	if course.Faculty != nil {
		resp.FacultyUsername = course.Faculty.Username
		resp.FacultyEmail = course.Faculty.Email
	}
	return resp
}

// CourseListResponse wraps a page of courses.
type CourseListResponse struct {
	Items      []CourseResponse `json:"items"`
	Pagination PaginationMeta   `json:"pagination"`
}
