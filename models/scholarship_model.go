package models

import (
	"time"

	"github.com/anjiri1684/fee_ledger/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DiscountKind string

const (
	DiscountPercentage  DiscountKind = "PERCENTAGE"
	DiscountFixedAmount DiscountKind = "FIXED_AMOUNT"
)

// Discount is either a percentage of the base amount or a fixed amount off it.
type Discount struct {
	Kind  DiscountKind    `gorm:"column:discount_kind;size:20;not null" json:"kind"`
	Value decimal.Decimal `gorm:"column:discount_value;type:numeric(14,4);not null" json:"value"`
}

func Percentage(p decimal.Decimal) Discount {
	return Discount{Kind: DiscountPercentage, Value: p}
}

func FixedAmount(a money.Money) Discount {
	return Discount{Kind: DiscountFixedAmount, Value: a.Decimal()}
}

// Of returns the discount this variant grants on base.
func (d Discount) Of(base money.Money) money.Money {
	switch d.Kind {
	case DiscountPercentage:
		return base.Percent(d.Value)
	case DiscountFixedAmount:
		return money.New(d.Value)
	}
	return money.Zero
}

type Scholarship struct {
	ID         uuid.UUID    `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID uuid.UUID    `gorm:"type:uuid;not null;index" json:"business_id"`
	StudentID  uuid.UUID    `gorm:"type:uuid;not null;index" json:"student_id"`
	Name       string       `gorm:"size:255;not null" json:"name"`
	Discount   Discount     `gorm:"embedded" json:"discount"`
	Category   *FeeCategory `gorm:"size:30" json:"category,omitempty"`
	IsActive   bool         `gorm:"not null" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppliesTo reports whether the scholarship discounts fees of the category.
func (s Scholarship) AppliesTo(category FeeCategory) bool {
	return s.IsActive && (s.Category == nil || *s.Category == category)
}
