package models

import (
	"time"

	"github.com/anjiri1684/fee_ledger/money"
	"github.com/google/uuid"
)

type FeeCategory string

const (
	CategoryTuition      FeeCategory = "TUITION"
	CategoryRegistration FeeCategory = "REGISTRATION"
	CategoryTransport    FeeCategory = "TRANSPORT"
	CategoryMaterials    FeeCategory = "MATERIALS"
	CategoryOther        FeeCategory = "OTHER"
)

type Recurrence string

const (
	RecurrenceOneTime   Recurrence = "ONE_TIME"
	RecurrenceMonthly   Recurrence = "MONTHLY"
	RecurrenceQuarterly Recurrence = "QUARTERLY"
	RecurrenceYearly    Recurrence = "YEARLY"
)

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceOneTime, RecurrenceMonthly, RecurrenceQuarterly, RecurrenceYearly:
		return true
	}
	return false
}

// FeeTemplate is a recurring charge definition. Generated fees copy what they
// need from it, so later edits never reach fees that already exist.
type FeeTemplate struct {
	ID         uuid.UUID    `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID uuid.UUID    `gorm:"type:uuid;not null;index" json:"business_id"`
	Name       string       `gorm:"size:255;not null" json:"name"`
	Category   FeeCategory  `gorm:"size:30;not null;default:'OTHER'" json:"category"`
	Amount     money.Money  `gorm:"type:numeric(14,2);not null" json:"amount"`
	Recurrence Recurrence   `gorm:"size:20;not null" json:"recurrence"`
	DayDue     *int         `gorm:"type:smallint" json:"day_due,omitempty"`
	LateFee    *money.Money `gorm:"type:numeric(14,2)" json:"late_fee,omitempty"`
	CourseID   *uuid.UUID   `gorm:"type:uuid;index" json:"course_id,omitempty"`
	IsActive   bool         `gorm:"not null" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
