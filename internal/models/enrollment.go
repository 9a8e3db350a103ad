package models

import "time"

// Enrollment links a student to a course. It is hard-deleted on removal.
type Enrollment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StudentID  uint      `gorm:"not null;uniqueIndex:idx_enrollment_student_course" json:"student_id"`
	CourseID   uint      `gorm:"not null;uniqueIndex:idx_enrollment_student_course;index" json:"course_id"`
	EnrolledAt time.Time `gorm:"not null" json:"enrolled_at"`
	Student    User      `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"student"`
	Course     Course    `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course"`
}
