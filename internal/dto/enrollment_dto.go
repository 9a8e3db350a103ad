package dto

import (
	"time"

	"github.com/noah-isme/campus-api/internal/models"
)

// EnrollmentCreateRequest enrolls a student, both sides addressed by natural key.
type EnrollmentCreateRequest struct {
	StudentEmail string `json:"student_email" validate:"required,email"`
	CourseCode   string `json:"course_code" validate:"required,max=32"`
}

// EnrollmentListRequest pages enrollment listings.
type EnrollmentListRequest struct {
	Page     int
	PageSize int
}

// EnrollmentResponse is an enrollment enriched with student and course display fields.
type EnrollmentResponse struct {
	ID              uint      `json:"id"`
	StudentID       uint      `json:"student_id"`
	StudentUsername string    `json:"student_username"`
	StudentEmail    string    `json:"student_email"`
	CourseID        uint      `json:"course_id"`
	CourseCode      string    `json:"course_code"`
	CourseTitle     string    `json:"course_title"`
	EnrolledAt      time.Time `json:"enrolled_at"`
}

// NewEnrollmentResponse maps an enrollment model with preloaded associations.
func NewEnrollmentResponse(enrollment models.Enrollment) EnrollmentResponse {
	return EnrollmentResponse{
		ID:              enrollment.ID,
		StudentID:       enrollment.StudentID,
		StudentUsername: enrollment.Student.Username,
		StudentEmail:    enrollment.Student.Email,
		CourseID:        enrollment.CourseID,
		CourseCode:      enrollment.Course.Code,
		CourseTitle:     enrollment.Course.Title,
		EnrolledAt:      enrollment.EnrolledAt,
	}
}

// EnrollmentListResponse wraps a page of enrollments.
type EnrollmentListResponse struct {
	Items      []EnrollmentResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}
