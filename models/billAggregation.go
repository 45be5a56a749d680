package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/messdesk/mess_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ChargeLine is one selected item on a present attendance day.
type ChargeLine struct {
	UserId           int             `json:"user_id"`
	Date             time.Time       `json:"date"`
	MenuId           int             `json:"menu_id"`
	ItemName         string          `json:"item_name"`
	GroupName        string          `json:"group_name"`
	IsMandatory      bool            `json:"is_mandatory"`
	PriceAtSelection decimal.Decimal `json:"price_at_selection"`
	Quantity         int             `json:"quantity"`
}

func (l ChargeLine) Amount() decimal.Decimal {
	return l.PriceAtSelection.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// BillComputation holds the totals and detail lines for one bill.
// TotalAmount always equals FoodAmount + WaterTeaAmount and the sum of
// Details amounts.
type BillComputation struct {
	FoodAmount     decimal.Decimal `json:"food_amount"`
	WaterTeaAmount decimal.Decimal `json:"water_tea_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Details        []BillDetail    `json:"details"`
}

func (c BillComputation) IsEmpty() bool {
	return c.FoodAmount.IsZero() && c.WaterTeaAmount.IsZero()
}

// ComputeBill folds charge lines into a bill. Mandatory group items go to
// the water/tea bucket, everything else to food.
func ComputeBill(lines []ChargeLine) BillComputation {
	result := BillComputation{
		FoodAmount:     decimal.Zero,
		WaterTeaAmount: decimal.Zero,
		Details:        make([]BillDetail, 0, len(lines)),
	}
	for _, line := range lines {
		amount := line.Amount()
		if line.IsMandatory {
			result.WaterTeaAmount = result.WaterTeaAmount.Add(amount)
		} else {
			result.FoodAmount = result.FoodAmount.Add(amount)
		}
		result.Details = append(result.Details, BillDetail{
			MenuId:      line.MenuId,
			Date:        utils.DateOnly(line.Date),
			Quantity:    line.Quantity,
			UnitPrice:   line.PriceAtSelection,
			Amount:      amount,
			IsMandatory: line.IsMandatory,
			Description: describeLine(line),
		})
	}
	result.TotalAmount = result.FoodAmount.Add(result.WaterTeaAmount)
	return result
}

func describeLine(line ChargeLine) string {
	if line.GroupName == "" {
		return line.ItemName
	}
	return fmt.Sprintf("%s (%s)", line.ItemName, line.GroupName)
}

// groupLinesByUser keeps line order within a user and returns user ids ascending.
func groupLinesByUser(lines []ChargeLine) ([]int, map[int][]ChargeLine) {
	byUser := make(map[int][]ChargeLine)
	for _, l := range lines {
		byUser[l.UserId] = append(byUser[l.UserId], l)
	}
	userIds := make([]int, 0, len(byUser))
	for id := range byUser {
		userIds = append(userIds, id)
	}
	sort.Ints(userIds)
	return userIds, byUser
}

type chargeLineFilter struct {
	From         time.Time
	To           time.Time
	UserId       int
	StudentsOnly bool
}

// loadChargeLines reads selected items on present days in [From, To).
// Inner joins drop items whose menu or group no longer resolves.
func loadChargeLines(db *gorm.DB, f chargeLineFilter) ([]ChargeLine, error) {
	q := db.Table("attendance_menu_items").
		Select("attendances.user_id, attendances.date, attendance_menu_items.menu_id, menus.item_name, "+
			"mess_groups.name AS group_name, mess_groups.is_mandatory, "+
			"attendance_menu_items.price_at_selection, attendance_menu_items.quantity").
		Joins("JOIN attendances ON attendances.id = attendance_menu_items.attendance_id").
		Joins("JOIN menus ON menus.id = attendance_menu_items.menu_id").
		Joins("JOIN mess_groups ON mess_groups.id = menus.mess_group_id").
		Where("attendances.is_present = ? AND attendances.date >= ? AND attendances.date < ?", true, f.From, f.To)
	if f.UserId > 0 {
		q = q.Where("attendances.user_id = ?", f.UserId)
	}
	if f.StudentsOnly {
		q = q.Joins("JOIN users ON users.id = attendances.user_id").Where("users.role = ?", UserRoleStudent)
	}
	var lines []ChargeLine
	err := q.Order("attendances.user_id, attendances.date, attendance_menu_items.id").Scan(&lines).Error
	return lines, err
}
