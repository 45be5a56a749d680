package models

import (
	"context"
	"errors"
	"time"

	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/utils"
	"github.com/shopspring/decimal"
)

type AttendanceSheetRow struct {
	UserId          int    `json:"user_id"`
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Marked          bool   `json:"marked"`
	IsPresent       bool   `json:"is_present"`
	SelectedMenuIds []int  `json:"selected_menu_ids"`
	MessGroupIds    []int  `json:"mess_group_ids"`
	Remarks         string `json:"remarks"`
}

type AttendanceSheet struct {
	Date     time.Time             `json:"date"`
	Students []*AttendanceSheetRow `json:"students"`
	Menus    *EffectiveMenus       `json:"menus"`
}

// GetAttendanceSheet builds the marking sheet for date: every active student
// with whatever is already recorded, plus the menus selectable that day.
func GetAttendanceSheet(ctx context.Context, date time.Time) (*AttendanceSheet, error) {
	date = utils.DateOnly(date)
	db := config.GetDB().WithContext(ctx)

	var students []User
	if err := db.Where("role = ? AND is_active = ?", UserRoleStudent, true).
		Order("full_name").
		Find(&students).Error; err != nil {
		return nil, err
	}

	var attendances []Attendance
	if err := db.Preload("Items").Where("date = ?", date).Find(&attendances).Error; err != nil {
		return nil, err
	}
	byUser := make(map[int]*Attendance, len(attendances))
	for i := range attendances {
		byUser[attendances[i].UserId] = &attendances[i]
	}

	var memberships []UserMessGroup
	if err := db.Where("is_active = ?", true).Find(&memberships).Error; err != nil {
		return nil, err
	}
	groupsByUser := make(map[int][]int)
	for _, m := range memberships {
		groupsByUser[m.UserId] = append(groupsByUser[m.UserId], m.MessGroupId)
	}

	menus, err := GetEffectiveMenus(ctx, date)
	if err != nil {
		return nil, err
	}

	sheet := AttendanceSheet{Date: date, Menus: menus, Students: make([]*AttendanceSheetRow, 0, len(students))}
	for _, s := range students {
		row := AttendanceSheetRow{
			UserId:          s.ID,
			FullName:        s.FullName,
			Email:           s.Email,
			SelectedMenuIds: []int{},
			MessGroupIds:    groupsByUser[s.ID],
		}
		if a, ok := byUser[s.ID]; ok {
			row.Marked = true
			row.IsPresent = a.IsPresent
			row.Remarks = a.Remarks
			for _, item := range a.Items {
				row.SelectedMenuIds = append(row.SelectedMenuIds, item.MenuId)
			}
		}
		sheet.Students = append(sheet.Students, &row)
	}
	return &sheet, nil
}

type AttendanceReportRow struct {
	AttendanceId int             `json:"attendance_id"`
	UserId       int             `json:"user_id"`
	FullName     string          `json:"full_name"`
	Date         time.Time       `json:"date"`
	IsPresent    bool            `json:"is_present"`
	ItemCount    int             `json:"item_count"`
	Amount       decimal.Decimal `json:"amount"`
}

type AttendanceReport struct {
	From        time.Time              `json:"from"`
	To          time.Time              `json:"to"`
	Rows        []*AttendanceReportRow `json:"rows"`
	PresentDays int                    `json:"present_days"`
	TotalAmount decimal.Decimal        `json:"total_amount"`
}

// GetAttendanceReport covers from..to inclusive, newest first. Zero dates
// default to the last 30 days.
func GetAttendanceReport(ctx context.Context, from time.Time, to time.Time) (*AttendanceReport, error) {
	if to.IsZero() {
		to = utils.Today()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	from, to = utils.DateOnly(from), utils.DateOnly(to)
	if from.After(to) {
		return nil, utils.NewValidationError("from", "must not be after to")
	}

	db := config.GetDB().WithContext(ctx)
	var attendances []Attendance
	if err := db.Preload("Items").
		Where("date >= ? AND date < ?", from, to.AddDate(0, 0, 1)).
		Order("date DESC, user_id").
		Find(&attendances).Error; err != nil {
		return nil, err
	}

	userIds := make([]int, 0, len(attendances))
	for _, a := range attendances {
		userIds = append(userIds, a.UserId)
	}
	names := make(map[int]string)
	if len(userIds) > 0 {
		var users []User
		if err := db.Select("id, full_name").Where("id IN ?", utils.UniqueSlice(userIds)).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			names[u.ID] = u.FullName
		}
	}

	report := AttendanceReport{From: from, To: to, Rows: make([]*AttendanceReportRow, 0, len(attendances)), TotalAmount: decimal.Zero}
	for _, a := range attendances {
		row := AttendanceReportRow{
			AttendanceId: a.ID,
			UserId:       a.UserId,
			FullName:     names[a.UserId],
			Date:         a.Date,
			IsPresent:    a.IsPresent,
			ItemCount:    len(a.Items),
			Amount:       decimal.Zero,
		}
		for _, item := range a.Items {
			row.Amount = row.Amount.Add(item.PriceAtSelection.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		if a.IsPresent {
			report.PresentDays++
			report.TotalAmount = report.TotalAmount.Add(row.Amount)
		}
		report.Rows = append(report.Rows, &row)
	}
	return &report, nil
}

type DailyBill struct {
	Date           time.Time       `json:"date"`
	Marked         bool            `json:"marked"`
	IsPresent      bool            `json:"is_present"`
	FoodTaken      bool            `json:"food_taken"`
	Items          []ChargeLine    `json:"items"`
	FoodAmount     decimal.Decimal `json:"food_amount"`
	WaterTeaAmount decimal.Decimal `json:"water_tea_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// GetDailyBill shows what a student's attendance on date will contribute to
// the monthly bill.
func GetDailyBill(ctx context.Context, userId int, date time.Time) (*DailyBill, error) {
	date = utils.DateOnly(date)
	result := DailyBill{Date: date, Items: []ChargeLine{}, FoodAmount: decimal.Zero, WaterTeaAmount: decimal.Zero, TotalAmount: decimal.Zero}

	attendance, err := GetAttendance(ctx, userId, date)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return &result, nil
	}
	if err != nil {
		return nil, err
	}
	result.Marked = true
	result.IsPresent = attendance.IsPresent
	if !attendance.IsPresent {
		return &result, nil
	}

	lines, err := loadChargeLines(config.GetDB().WithContext(ctx), chargeLineFilter{
		From:   date,
		To:     date.AddDate(0, 0, 1),
		UserId: userId,
	})
	if err != nil {
		return nil, err
	}
	comp := ComputeBill(lines)
	if len(lines) > 0 {
		result.Items = lines
	}
	result.FoodAmount = comp.FoodAmount
	result.WaterTeaAmount = comp.WaterTeaAmount
	result.TotalAmount = comp.TotalAmount
	result.FoodTaken = comp.FoodAmount.IsPositive()
	return &result, nil
}
