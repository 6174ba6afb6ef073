package models

import (
	"time"

	"github.com/anjiri1684/fee_ledger/money"
	"github.com/google/uuid"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodCard     PaymentMethod = "CARD"
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer:
		return true
	}
	return false
}

// Payment is an append-only ledger entry against a fee.
type Payment struct {
	ID            uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID    uuid.UUID     `gorm:"type:uuid;not null;index" json:"business_id"`
	FeeID         uuid.UUID     `gorm:"type:uuid;not null;index" json:"fee_id"`
	Amount        money.Money   `gorm:"type:numeric(14,2);not null" json:"amount"`
	Method        PaymentMethod `gorm:"size:20;not null" json:"method"`
	PaidAt        time.Time     `gorm:"not null" json:"paid_at"`
	ReceiptNumber string        `gorm:"size:32;not null;unique" json:"receipt_number"`

	TeacherID         *uuid.UUID   `gorm:"type:uuid" json:"teacher_id,omitempty"`
	TeacherCommission *money.Money `gorm:"type:numeric(14,2)" json:"teacher_commission,omitempty"`
	ReserveAmount     *money.Money `gorm:"type:numeric(14,2)" json:"reserve_amount,omitempty"`
	SchoolAmount      *money.Money `gorm:"type:numeric(14,2)" json:"school_amount,omitempty"`
	TransactionID     *uuid.UUID   `gorm:"type:uuid" json:"transaction_id,omitempty"`

	Fee Fee `gorm:"foreignkey:FeeID;constraint:OnDelete:RESTRICT" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
