package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Announcement types.
const (
	AnnouncementGeneral    = "general"
	AnnouncementAcademic   = "academic"
	AnnouncementExam       = "exam"
	AnnouncementAssignment = "assignment"
	AnnouncementEvent      = "event"
	AnnouncementUrgent     = "urgent"
)

// Event priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Announcement is a message broadcast globally or to a single course.
type Announcement struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Title            string    `gorm:"size:255;not null" json:"title"`
	Content          string    `gorm:"type:text;not null" json:"content"`
	AnnouncementType string    `gorm:"size:32;not null;index" json:"announcement_type"`
	CreatedBy        uint      `gorm:"not null;index" json:"created_by"`
	CourseID         *uint     `gorm:"index" json:"course_id"`
	IsActive         bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Creator          *User     `gorm:"foreignKey:CreatedBy;constraint:OnDelete:CASCADE" json:"creator,omitempty"`
	Course           *Course   `gorm:"foreignKey:CourseID;constraint:OnDelete:SET NULL" json:"course,omitempty"`
}

// Event is a dated campus happening, optionally scoped to a course.
type Event struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	EventType   string    `gorm:"size:32;not null;index" json:"event_type"`
	EventDate   time.Time `gorm:"not null;index" json:"event_date"`
	Location    string    `gorm:"size:255" json:"location"`
	Priority    string    `gorm:"size:16;not null;default:medium" json:"priority"`
	CreatedBy   uint      `gorm:"not null;index" json:"created_by"`
	CourseID    *uint     `gorm:"index" json:"course_id"`
	IsActive    bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Creator     *User     `gorm:"foreignKey:CreatedBy;constraint:OnDelete:CASCADE" json:"creator,omitempty"`
	Course      *Course   `gorm:"foreignKey:CourseID;constraint:OnDelete:SET NULL" json:"course,omitempty"`
}

// Notes is a course document uploaded by faculty.
type Notes struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Description   string    `gorm:"type:text" json:"description"`
	FileName      string    `gorm:"size:255;not null" json:"file_name"`
	FilePath      string    `gorm:"size:512;not null" json:"file_path"`
	FileType      string    `gorm:"size:128;not null" json:"file_type"`
	FileSize      int64     `gorm:"not null" json:"file_size"`
	UploadedBy    uint      `gorm:"not null;index" json:"uploaded_by"`
	CourseID      uint      `gorm:"not null;index" json:"course_id"`
	DownloadCount int64     `gorm:"not null;default:0" json:"download_count"`
	TagsRaw       string    `gorm:"column:tags;type:text" json:"-"`
	IsActive      bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Tags          []string  `gorm:"-" json:"tags"`
	Uploader      *User     `gorm:"foreignKey:UploadedBy;constraint:OnDelete:CASCADE" json:"uploader,omitempty"`
	Course        *Course   `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}

// TableName keeps the plural table name stable for the already plural struct name.
func (Notes) TableName() string {
	return "notes"
}

// BeforeSave normalises tag data before persisting. A nil tag slice leaves
// the stored value untouched.
func (n *Notes) BeforeSave(tx *gorm.DB) error {
	if n.Tags != nil {
		n.TagsRaw = EncodeTags(n.Tags)
	}
	return nil
}

// AfterFind hydrates tag list after retrieval.
func (n *Notes) AfterFind(tx *gorm.DB) error {
	n.Tags = decodeTags(n.TagsRaw)
	return nil
}

// EncodeTags stores tags as a pipe delimited, lower-cased string so that
// LIKE '%|tag|%' lookups match whole tags only.
func EncodeTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	cleaned := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(strings.ToLower(tag))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}
	if len(cleaned) == 0 {
		return ""
	}
	return "|" + strings.Join(cleaned, "|") + "|"
}

func decodeTags(raw string) []string {
	raw = strings.Trim(raw, "|")
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, "|")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		tags = append(tags, trimmed)
	}
	return tags
}
