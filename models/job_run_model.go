package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JobKind string

const (
	JobFeeGeneration JobKind = "FEE_GENERATION"
	JobOverdueSweep  JobKind = "OVERDUE_SWEEP"
)

// JobFailure is one item a batch job could not process.
type JobFailure struct {
	StudentID  *uuid.UUID `json:"student_id,omitempty"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
	FeeID      *uuid.UUID `json:"fee_id,omitempty"`
	Error      string     `json:"error"`
}

// JobRun records the outcome of one batch pass over one business.
type JobRun struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null;index" json:"business_id"`
	Kind       JobKind   `gorm:"size:30;not null;index" json:"kind"`
	TargetAt   time.Time `gorm:"not null" json:"target_at"`
	StartedAt  time.Time `gorm:"not null" json:"started_at"`
	FinishedAt time.Time `gorm:"not null" json:"finished_at"`
	Succeeded  int       `gorm:"not null;default:0" json:"succeeded"`
	Skipped    int       `gorm:"not null;default:0" json:"skipped"`
	Failed     int       `gorm:"not null;default:0" json:"failed"`
	Error      *string   `gorm:"type:text" json:"error,omitempty"`

	Failures datatypes.JSONSlice[JobFailure] `gorm:"type:jsonb" json:"failures"`
}
