package models

import (
	"context"
	"strings"
	"time"

	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/metrics"
	"github.com/messdesk/mess_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var paymentMaxAmount = decimal.NewFromInt(100000)

// Payment rows are append-only.
type Payment struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	BillId               int             `gorm:"index;not null" json:"bill_id"`
	Amount               decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	PaymentDate          time.Time       `gorm:"type:date;not null" json:"payment_date"`
	PaymentMethod        string          `gorm:"size:50;not null" json:"payment_method"`
	TransactionReference string          `gorm:"size:100" json:"transaction_reference"`
	RecordedAt           time.Time       `gorm:"not null" json:"recorded_at"`
	RecordedBy           int             `gorm:"not null" json:"recorded_by"`
	Remarks              string          `gorm:"size:500" json:"remarks"`
}

type NewPayment struct {
	Amount               decimal.Decimal `json:"amount"`
	PaymentDate          string          `json:"payment_date"`
	PaymentMethod        string          `json:"payment_method" binding:"required,max=50"`
	TransactionReference string          `json:"transaction_reference" binding:"max=100"`
	Remarks              string          `json:"remarks" binding:"max=500"`
}

type PaymentResult struct {
	Payment   *Payment        `json:"payment"`
	Bill      *Bill           `json:"bill"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Balance   decimal.Decimal `json:"balance"`
}

func (input *NewPayment) validate() (time.Time, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return time.Time{}, err
	}
	if !input.Amount.IsPositive() {
		return time.Time{}, ErrInvalidAmount
	}
	if input.Amount.LessThan(decimal.RequireFromString("0.01")) || input.Amount.GreaterThan(paymentMaxAmount) {
		return time.Time{}, utils.NewValidationError("amount", "must be between 0.01 and 100000")
	}
	if strings.TrimSpace(input.PaymentDate) == "" {
		return utils.Today(), nil
	}
	date, err := utils.ParseDate(input.PaymentDate)
	if err != nil {
		return time.Time{}, utils.NewValidationError("payment_date", err.Error())
	}
	return date, nil
}

// RecordPayment appends a payment to an Approved bill and marks it Paid
// once cumulative payments reach the bill total.
func RecordPayment(ctx context.Context, billId int, input *NewPayment) (*PaymentResult, error) {
	paymentDate, err := input.validate()
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	actor := utils.ActorFromContext(ctx)
	result := PaymentResult{}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bill, err := lockBill(tx, billId)
		if err != nil {
			return err
		}
		switch bill.Status {
		case BillStatusApproved:
		case BillStatusPaid:
			return ErrBillAlreadyPaid
		default:
			return ErrBillNotPayable
		}

		payment := Payment{
			BillId:               bill.ID,
			Amount:               input.Amount.Round(2),
			PaymentDate:          paymentDate,
			PaymentMethod:        strings.TrimSpace(input.PaymentMethod),
			TransactionReference: strings.TrimSpace(input.TransactionReference),
			RecordedAt:           time.Now().UTC(),
			RecordedBy:           actor,
			Remarks:              strings.TrimSpace(input.Remarks),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		totals, err := sumPaymentsByBill(tx, []int{bill.ID})
		if err != nil {
			return err
		}
		totalPaid := totals[bill.ID]

		if err := recordBillEvent(ctx, tx, BillEventPaymentRecorded, bill, map[string]interface{}{
			"payment_id": payment.ID,
			"amount":     payment.Amount.StringFixed(2),
			"method":     payment.PaymentMethod,
			"total_paid": totalPaid.StringFixed(2),
		}); err != nil {
			return err
		}

		if err := settleIfCovered(ctx, tx, bill, totalPaid); err != nil {
			return err
		}

		result.Payment = &payment
		result.Bill = bill
		result.TotalPaid = totalPaid
		result.Balance = bill.TotalAmount.Sub(totalPaid)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PaymentsRecorded.Inc()
	metrics.PaymentAmount.Add(result.Payment.Amount.InexactFloat64())
	return &result, nil
}

// settleIfCovered marks an Approved bill Paid once totalPaid reaches its
// total. Other statuses are left as they are.
func settleIfCovered(ctx context.Context, tx *gorm.DB, bill *Bill, totalPaid decimal.Decimal) error {
	if bill.Status != BillStatusApproved || totalPaid.LessThan(bill.TotalAmount) {
		return nil
	}
	if err := transitionBill(tx, bill, BillStatusPaid, nil); err != nil {
		return err
	}
	return recordBillEvent(ctx, tx, BillEventPaid, bill, map[string]interface{}{
		"total_paid": totalPaid.StringFixed(2),
	})
}

// GetBillPayments lists payments for a bill in date order.
func GetBillPayments(ctx context.Context, billId int) ([]*Payment, error) {
	db := config.GetDB()
	if err := utils.ValidateResourceId[Bill](ctx, db, billId); err != nil {
		return nil, err
	}
	var payments []*Payment
	err := db.WithContext(ctx).
		Where("bill_id = ?", billId).
		Order("payment_date, id").
		Find(&payments).Error
	return payments, err
}

type billPaidTotal struct {
	BillId    int
	TotalPaid decimal.Decimal
}

// sumPaymentsByBill returns the paid total for every id; ids without
// payments map to zero.
func sumPaymentsByBill(db *gorm.DB, billIds []int) (map[int]decimal.Decimal, error) {
	totals := make(map[int]decimal.Decimal, len(billIds))
	for _, id := range billIds {
		totals[id] = decimal.Zero
	}
	if len(billIds) == 0 {
		return totals, nil
	}
	var rows []billPaidTotal
	if err := db.Model(&Payment{}).
		Select("bill_id, COALESCE(SUM(amount), 0) AS total_paid").
		Where("bill_id IN ?", billIds).
		Group("bill_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		totals[r.BillId] = r.TotalPaid
	}
	return totals, nil
}
