package models

import (
	"context"
	"errors"
	"time"

	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bill is unique per (user_id, month, year).
type Bill struct {
	ID             int             `gorm:"primary_key" json:"id"`
	UserId         int             `gorm:"uniqueIndex:uq_bill_user_period;not null" json:"user_id"`
	Month          int             `gorm:"uniqueIndex:uq_bill_user_period;index:idx_bill_period,priority:2;not null" json:"month"`
	Year           int             `gorm:"uniqueIndex:uq_bill_user_period;index:idx_bill_period,priority:1;not null" json:"year"`
	FoodAmount     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"food_amount"`
	WaterTeaAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"water_tea_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_amount"`
	Status         BillStatus      `gorm:"size:20;index;not null" json:"status"`
	GeneratedAt    *time.Time      `json:"generated_at"`
	GeneratedBy    int             `gorm:"not null;default:0" json:"generated_by"`
	ApprovedAt     *time.Time      `json:"approved_at"`
	ApprovedBy     int             `gorm:"not null;default:0" json:"approved_by"`
	Remarks        string          `gorm:"size:500" json:"remarks"`
	Details        []BillDetail    `gorm:"foreignKey:BillId;constraint:OnDelete:CASCADE" json:"details,omitempty"`
	Payments       []Payment       `gorm:"foreignKey:BillId;constraint:OnDelete:CASCADE" json:"payments,omitempty"`
	User           *User           `gorm:"foreignKey:UserId" json:"user,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BillDetail is a snapshot line copied from an attendance item.
type BillDetail struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BillId      int             `gorm:"index;not null" json:"bill_id"`
	MenuId      int             `gorm:"index;not null" json:"menu_id"`
	Date        time.Time       `gorm:"type:date;not null" json:"date"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	IsMandatory bool            `gorm:"not null" json:"is_mandatory"`
	Description string          `gorm:"size:500" json:"description"`
}

// BillSummary is a bill with its payment position.
type BillSummary struct {
	*Bill
	UserFullName string          `json:"user_full_name"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	Balance      decimal.Decimal `json:"balance"`
}

type BillFilter struct {
	Month  int
	Year   int
	UserId int
	Status *BillStatus
}

// balance may go negative on overpayment
func newBillSummary(bill *Bill, totalPaid decimal.Decimal) *BillSummary {
	s := &BillSummary{
		Bill:      bill,
		TotalPaid: totalPaid,
		Balance:   bill.TotalAmount.Sub(totalPaid),
	}
	if bill.User != nil {
		s.UserFullName = bill.User.FullName
		bill.User.PrepareGive()
	}
	return s
}

func summarizeBills(db *gorm.DB, bills []*Bill) ([]*BillSummary, error) {
	ids := make([]int, 0, len(bills))
	for _, b := range bills {
		ids = append(ids, b.ID)
	}
	paid, err := sumPaymentsByBill(db, ids)
	if err != nil {
		return nil, err
	}
	result := make([]*BillSummary, 0, len(bills))
	for _, b := range bills {
		total, ok := paid[b.ID]
		if !ok {
			total = decimal.Zero
		}
		result = append(result, newBillSummary(b, total))
	}
	return result, nil
}

// ListBills returns bills ordered by student name.
func ListBills(ctx context.Context, f BillFilter) ([]*BillSummary, error) {
	db := config.GetDB().WithContext(ctx)
	q := db.Model(&Bill{}).
		Preload("User").
		Joins("JOIN users ON users.id = bills.user_id")
	if f.Month > 0 {
		q = q.Where("bills.month = ?", f.Month)
	}
	if f.Year > 0 {
		q = q.Where("bills.year = ?", f.Year)
	}
	if f.UserId > 0 {
		q = q.Where("bills.user_id = ?", f.UserId)
	}
	if f.Status != nil {
		q = q.Where("bills.status = ?", *f.Status)
	}
	var bills []*Bill
	if err := q.Order("users.full_name, bills.id").Find(&bills).Error; err != nil {
		return nil, err
	}
	return summarizeBills(db, bills)
}

// ListBillsForApproval lists Generated bills for a period.
func ListBillsForApproval(ctx context.Context, month int, year int) ([]*BillSummary, error) {
	status := BillStatusGenerated
	return ListBills(ctx, BillFilter{Month: month, Year: year, Status: &status})
}

// ListPayableBills lists Approved bills awaiting payment.
func ListPayableBills(ctx context.Context) ([]*BillSummary, error) {
	status := BillStatusApproved
	return ListBills(ctx, BillFilter{Status: &status})
}

// GetBill loads a bill with details, payments and its student.
func GetBill(ctx context.Context, id int) (*BillSummary, error) {
	db := config.GetDB().WithContext(ctx)
	var bill Bill
	err := db.
		Preload("User").
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("date, id") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("payment_date, id") }).
		First(&bill, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	totalPaid := decimal.Zero
	for _, p := range bill.Payments {
		totalPaid = totalPaid.Add(p.Amount)
	}
	return newBillSummary(&bill, totalPaid), nil
}

// GetUserBills lists a student's bills, newest period first.
func GetUserBills(ctx context.Context, userId int) ([]*BillSummary, error) {
	db := config.GetDB().WithContext(ctx)
	var bills []*Bill
	if err := db.Where("user_id = ?", userId).
		Order("year DESC, month DESC").
		Find(&bills).Error; err != nil {
		return nil, err
	}
	return summarizeBills(db, bills)
}

// GetMonthlyBill returns the student's bill for a period with details and payments.
func GetMonthlyBill(ctx context.Context, userId int, month int, year int) (*BillSummary, error) {
	if err := utils.ValidateMonthYear(month, year); err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)
	var ids []int
	if err := db.Model(&Bill{}).
		Where("user_id = ? AND month = ? AND year = ?", userId, month, year).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return GetBill(ctx, ids[0])
}
