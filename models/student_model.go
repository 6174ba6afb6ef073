package models

import (
	"time"

	"github.com/google/uuid"
)

type Student struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null;index" json:"business_id"`
	FullName   string    `gorm:"size:255;not null" json:"full_name"`
	IsActive   bool      `gorm:"not null" json:"is_active"`

	Enrollments []Enrollment `gorm:"foreignkey:StudentID" json:"enrollments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Enrollment binds a student to a course. Templates attached to a course only
// bill its enrolled students.
type Enrollment struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null;index" json:"business_id"`
	StudentID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uniq_enrollment,priority:1" json:"student_id"`
	CourseID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uniq_enrollment,priority:2" json:"course_id"`

	CreatedAt time.Time `json:"created_at"`
}
