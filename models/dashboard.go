package models

import (
	"context"
	"errors"

	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AdminDashboard struct {
	TotalUsers      int64           `json:"total_users"`
	TotalStudents   int64           `json:"total_students"`
	ActiveMenuItems int64           `json:"active_menu_items"`
	PendingBills    int64           `json:"pending_bills"`
	UnpaidBills     int64           `json:"unpaid_bills"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	MonthlyRevenue  decimal.Decimal `json:"monthly_revenue"`
}

type StudentDashboard struct {
	ActiveGroups       int64           `json:"active_groups"`
	DaysPresentMonth   int64           `json:"days_present_this_month"`
	CurrentMonthBill   *BillSummary    `json:"current_month_bill"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	UnpaidBills        int64           `json:"unpaid_bills"`
}

type decimalTotal struct {
	Total decimal.Decimal
}

func sumDecimal(q *gorm.DB, expr string) (decimal.Decimal, error) {
	var row decimalTotal
	if err := q.Select("COALESCE(SUM(" + expr + "), 0) AS total").Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

// GetAdminDashboard: total revenue is the sum of Paid bill totals; monthly
// revenue is payments dated in the current month.
func GetAdminDashboard(ctx context.Context) (*AdminDashboard, error) {
	db := config.GetDB().WithContext(ctx)
	var d AdminDashboard
	var err error

	if err = db.Model(&User{}).Count(&d.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err = db.Model(&User{}).Where("role = ?", UserRoleStudent).Count(&d.TotalStudents).Error; err != nil {
		return nil, err
	}
	if err = db.Model(&Menu{}).Where("is_active = ?", true).Count(&d.ActiveMenuItems).Error; err != nil {
		return nil, err
	}
	if err = db.Model(&Bill{}).Where("status IN ?", []BillStatus{BillStatusPending, BillStatusGenerated}).Count(&d.PendingBills).Error; err != nil {
		return nil, err
	}
	if err = db.Model(&Bill{}).Where("status <> ?", BillStatusPaid).Count(&d.UnpaidBills).Error; err != nil {
		return nil, err
	}
	if d.TotalRevenue, err = sumDecimal(db.Model(&Bill{}).Where("status = ?", BillStatusPaid), "total_amount"); err != nil {
		return nil, err
	}
	today := utils.Today()
	from, to := utils.MonthRange(today.Year(), int(today.Month()))
	if d.MonthlyRevenue, err = sumDecimal(db.Model(&Payment{}).Where("payment_date >= ? AND payment_date < ?", from, to), "amount"); err != nil {
		return nil, err
	}
	return &d, nil
}

func GetStudentDashboard(ctx context.Context, userId int) (*StudentDashboard, error) {
	db := config.GetDB().WithContext(ctx)
	var d StudentDashboard
	var err error

	if err = db.Model(&UserMessGroup{}).Where("user_id = ? AND is_active = ?", userId, true).Count(&d.ActiveGroups).Error; err != nil {
		return nil, err
	}
	today := utils.Today()
	from, to := utils.MonthRange(today.Year(), int(today.Month()))
	if err = db.Model(&Attendance{}).
		Where("user_id = ? AND is_present = ? AND date >= ? AND date < ?", userId, true, from, to).
		Count(&d.DaysPresentMonth).Error; err != nil {
		return nil, err
	}

	bills, err := GetUserBills(ctx, userId)
	if err != nil {
		return nil, err
	}
	d.OutstandingBalance = decimal.Zero
	for _, b := range bills {
		if b.Status != BillStatusPaid {
			d.UnpaidBills++
			if b.Balance.IsPositive() {
				d.OutstandingBalance = d.OutstandingBalance.Add(b.Balance)
			}
		}
	}

	current, err := GetMonthlyBill(ctx, userId, int(today.Month()), today.Year())
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	d.CurrentMonthBill = current
	return &d, nil
}
