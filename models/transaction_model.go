package models

import (
	"time"

	"github.com/anjiri1684/fee_ledger/money"
	"github.com/google/uuid"
)

type TransactionType string

// TransactionIncome is the only entry type the ledger books.
const TransactionIncome TransactionType = "INCOME"

// Transaction is the accounting book entry mirroring a payment.
type Transaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"business_id"`
	Type        TransactionType `gorm:"size:20;not null" json:"type"`
	Amount      money.Money     `gorm:"type:numeric(14,2);not null" json:"amount"`
	PaymentID   *uuid.UUID      `gorm:"type:uuid;unique" json:"payment_id,omitempty"`
	Reference   string          `gorm:"size:32;not null;unique" json:"reference"`
	Description string          `gorm:"type:text" json:"description"`
	OccurredAt  time.Time       `gorm:"not null" json:"occurred_at"`

	CreatedAt time.Time `json:"created_at"`
}
