package models

import "time"

// Course is an academic course owned by a faculty member.
type Course struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Code        string    `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Credit      int       `gorm:"not null" json:"credit"`
	Semester    int       `gorm:"not null;index" json:"semester"`
	FacultyID   *uint     `gorm:"index" json:"faculty_id"`
	IsActive    bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Faculty     *User     `gorm:"foreignKey:FacultyID;constraint:OnDelete:SET NULL" json:"faculty,omitempty"`
}

// OwnerID returns the faculty owner or zero when unassigned.
func (c Course) OwnerID() uint {
	if c.FacultyID == nil {
		return 0
	}
	return *c.FacultyID
}
