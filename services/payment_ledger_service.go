package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/money"
	"github.com/anjiri1684/fee_ledger/store"
	"github.com/anjiri1684/fee_ledger/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds how often a payment write is retried on conflict.
const DefaultMaxAttempts = 3

// DeriveStatus is the status a fee should have given its current status,
// amount and the sum of its payments.
func DeriveStatus(current models.FeeStatus, amount, paid money.Money) models.FeeStatus {
	switch {
	case current == models.FeeStatusVoid:
		return current
	case paid.GreaterThanOrEqual(amount):
		return models.FeeStatusPaid
	case current == models.FeeStatusPaid, current == models.FeeStatusOverdue:
		return current
	case paid.IsPositive():
		return models.FeeStatusPartial
	}
	return current
}

// Attribution splits a payment between the teacher, a reserve and the
// school. All parts are optional.
type Attribution struct {
	TeacherID         *uuid.UUID
	TeacherCommission *money.Money
	ReserveAmount     *money.Money
	SchoolAmount      *money.Money
}

func (a *Attribution) validate(amount money.Money) error {
	if a == nil {
		return nil
	}
	total := money.Zero
	parts := []struct {
		field string
		value *money.Money
	}{
		{"teacher_commission", a.TeacherCommission},
		{"reserve_amount", a.ReserveAmount},
		{"school_amount", a.SchoolAmount},
	}
	for _, part := range parts {
		if part.value == nil {
			continue
		}
		if part.value.IsNegative() {
			return invalid(part.field, "must not be negative")
		}
		total = total.Add(*part.value)
	}
	if total.GreaterThan(amount) {
		return invalid("attribution", "exceeds the payment amount")
	}
	return nil
}

type LedgerOptions struct {
	MaxAttempts        int
	RecordTransactions bool
}

// FeeBalance is the ledger view of one fee.
type FeeBalance struct {
	FeeID     uuid.UUID        `json:"fee_id"`
	Status    models.FeeStatus `json:"status"`
	Amount    money.Money      `json:"amount"`
	Paid      money.Money      `json:"paid"`
	Remaining money.Money      `json:"remaining"`
	Credit    money.Money      `json:"credit"`
}

// PaymentLedger appends payments and keeps the fee status in line with them.
type PaymentLedger struct {
	Deps
	refs               *utils.ReferenceGenerator
	maxAttempts        int
	recordTransactions bool
}

func NewPaymentLedger(deps Deps, refs *utils.ReferenceGenerator, opts LedgerOptions) *PaymentLedger {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &PaymentLedger{
		Deps:               deps.withDefaults(),
		refs:               refs,
		maxAttempts:        opts.MaxAttempts,
		recordTransactions: opts.RecordTransactions,
	}
}

// RecordPayment stores a payment against a fee and recomputes the fee status
// from the full payment history, all in one transaction. Conflicting writers
// cause a bounded number of retries before ErrConcurrencyConflict.
func (l *PaymentLedger) RecordPayment(ctx context.Context, businessID, feeID uuid.UUID, amount money.Money, method models.PaymentMethod, attr *Attribution) (*models.Payment, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !method.Valid() {
		return nil, invalid("method", "must be one of CASH, CARD, TRANSFER")
	}
	if err := attr.validate(amount); err != nil {
		return nil, err
	}

	log := l.Logger.With(zap.Stringer("business_id", businessID), zap.Stringer("fee_id", feeID))

	var (
		payment *models.Payment
		prev    models.FeeStatus
		next    models.FeeStatus
	)
	for attempt := 1; ; attempt++ {
		var err error
		payment, prev, next, err = l.recordOnce(ctx, businessID, feeID, amount, method, attr)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		if attempt >= l.maxAttempts {
			log.Warn("payment conflict retries exhausted", zap.Int("attempts", attempt))
			return nil, ErrConcurrencyConflict
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Debug("retrying payment after conflict", zap.Int("attempt", attempt))
	}

	log.Info("payment recorded",
		zap.Stringer("payment_id", payment.ID),
		zap.String("amount", payment.Amount.String()),
		zap.String("status", string(next)))

	l.invalidateStats(ctx, businessID)
	fid := feeID
	l.publish(Event{Type: EventPaymentRecorded, BusinessID: businessID, FeeID: &fid, Payload: payment})
	if prev != next {
		l.publish(Event{Type: EventFeeStatusChange, BusinessID: businessID, FeeID: &fid, Payload: map[string]models.FeeStatus{
			"from": prev,
			"to":   next,
		}})
	}
	return payment, nil
}

func (l *PaymentLedger) recordOnce(ctx context.Context, businessID, feeID uuid.UUID, amount money.Money, method models.PaymentMethod, attr *Attribution) (*models.Payment, models.FeeStatus, models.FeeStatus, error) {
	var (
		payment *models.Payment
		prev    models.FeeStatus
		next    models.FeeStatus
	)
	err := l.Store.WithinTx(ctx, func(tx store.Store) error {
		fee, err := tx.GetFeeForUpdate(ctx, businessID, feeID)
		if err != nil {
			return notFound("fee", err)
		}
		if fee.Status == models.FeeStatusVoid {
			return invalid("fee", "is void")
		}
		prev = fee.Status

		now := l.Now()
		p := &models.Payment{
			BusinessID:    businessID,
			FeeID:         feeID,
			Amount:        amount,
			Method:        method,
			PaidAt:        now,
			ReceiptNumber: l.refs.Receipt(),
		}
		if attr != nil {
			p.TeacherID = attr.TeacherID
			p.TeacherCommission = copyMoney(attr.TeacherCommission)
			p.ReserveAmount = copyMoney(attr.ReserveAmount)
			p.SchoolAmount = copyMoney(attr.SchoolAmount)
		}

		if l.recordTransactions {
			paymentID := uuid.New()
			p.ID = paymentID
			txn := &models.Transaction{
				BusinessID:  businessID,
				Type:        models.TransactionIncome,
				Amount:      amount,
				PaymentID:   &paymentID,
				Reference:   l.refs.Transaction(),
				Description: fmt.Sprintf("Payment %s for %s", p.ReceiptNumber, fee.Title),
				OccurredAt:  now,
			}
			if err := tx.CreateTransaction(ctx, txn); err != nil {
				return fmt.Errorf("create transaction: %w", err)
			}
			p.TransactionID = &txn.ID
		}

		if err := tx.CreatePayment(ctx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		paid, err := tx.SumPayments(ctx, businessID, feeID)
		if err != nil {
			return err
		}
		next = DeriveStatus(fee.Status, fee.Amount, paid)
		paidAt := fee.PaidAt
		if next == models.FeeStatusPaid && paidAt == nil {
			paidAt = &now
		}
		if next != fee.Status || paidAt != fee.PaidAt {
			if err := tx.UpdateFeeStatus(ctx, fee, next, paidAt); err != nil {
				return err
			}
		}
		payment = p
		return nil
	})
	return payment, prev, next, err
}

func (l *PaymentLedger) ListPayments(ctx context.Context, businessID, feeID uuid.UUID) ([]models.Payment, error) {
	if _, err := l.Store.GetFee(ctx, businessID, feeID); err != nil {
		return nil, notFound("fee", err)
	}
	return l.Store.ListPayments(ctx, businessID, []uuid.UUID{feeID})
}

// ListTransactions returns the income entries the ledger booked for a
// business, oldest first.
func (l *PaymentLedger) ListTransactions(ctx context.Context, businessID uuid.UUID) ([]models.Transaction, error) {
	return l.Store.ListTransactions(ctx, businessID)
}

func (l *PaymentLedger) FeeBalance(ctx context.Context, businessID, feeID uuid.UUID) (*FeeBalance, error) {
	fee, err := l.Store.GetFee(ctx, businessID, feeID)
	if err != nil {
		return nil, notFound("fee", err)
	}
	paid, err := l.Store.SumPayments(ctx, businessID, feeID)
	if err != nil {
		return nil, err
	}
	return &FeeBalance{
		FeeID:     fee.ID,
		Status:    fee.Status,
		Amount:    fee.Amount,
		Paid:      paid,
		Remaining: fee.Remaining(paid),
		Credit:    paid.SubClamped(fee.Amount),
	}, nil
}
