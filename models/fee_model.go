package models

import (
	"time"

	"github.com/anjiri1684/fee_ledger/money"
	"github.com/google/uuid"
)

type FeeStatus string

const (
	FeeStatusPending FeeStatus = "PENDING"
	FeeStatusPartial FeeStatus = "PARTIAL"
	FeeStatusPaid    FeeStatus = "PAID"
	FeeStatusOverdue FeeStatus = "OVERDUE"
	FeeStatusVoid    FeeStatus = "VOID"
)

// Fee is a single payable charge owed by a student. Template fees carry the
// period they were generated for; manual fees have neither.
type Fee struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:uniq_fee_period,priority:1" json:"business_id"`
	StudentID  uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:uniq_fee_period,priority:2" json:"student_id"`
	TemplateID *uuid.UUID `gorm:"type:uuid;uniqueIndex:uniq_fee_period,priority:3" json:"template_id,omitempty"`
	PeriodKey  *string    `gorm:"size:10;uniqueIndex:uniq_fee_period,priority:4" json:"period_key,omitempty"`

	Title    string      `gorm:"size:255;not null" json:"title"`
	Category FeeCategory `gorm:"size:30;not null;default:'OTHER'" json:"category"`

	Amount          money.Money  `gorm:"type:numeric(14,2);not null" json:"amount"`
	OriginalAmount  money.Money  `gorm:"type:numeric(14,2);not null" json:"original_amount"`
	DiscountApplied money.Money  `gorm:"type:numeric(14,2);not null;default:0" json:"discount_applied"`
	LateFee         *money.Money `gorm:"type:numeric(14,2)" json:"late_fee,omitempty"`
	LateFeeApplied  money.Money  `gorm:"type:numeric(14,2);not null;default:0" json:"late_fee_applied"`

	DueDate  time.Time  `gorm:"type:date;not null;index" json:"due_date"`
	Status   FeeStatus  `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	CourseID *uuid.UUID `gorm:"type:uuid" json:"course_id,omitempty"`
	PaidAt   *time.Time `json:"paid_at,omitempty"`
	Version  int        `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (f Fee) IsManual() bool { return f.TemplateID == nil }

// Remaining is what is still owed given the amount paid so far.
func (f Fee) Remaining(paid money.Money) money.Money {
	return f.Amount.SubClamped(paid)
}
