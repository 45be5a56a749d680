package models

import (
	"context"
	"fmt"
	"time"

	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/metrics"
	"github.com/messdesk/mess_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Attendance is unique per (user_id, date).
type Attendance struct {
	ID        int                  `gorm:"primary_key" json:"id"`
	UserId    int                  `gorm:"uniqueIndex:uq_attendance_user_date;not null" json:"user_id"`
	Date      time.Time            `gorm:"type:date;uniqueIndex:uq_attendance_user_date;index;not null" json:"date"`
	IsPresent bool                 `gorm:"not null" json:"is_present"`
	MarkedAt  time.Time            `gorm:"not null" json:"marked_at"`
	MarkedBy  int                  `gorm:"not null" json:"marked_by"`
	Remarks   string               `gorm:"size:500" json:"remarks"`
	Items     []AttendanceMenuItem `gorm:"foreignKey:AttendanceId;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

// AttendanceMenuItem freezes the menu price at the moment of selection.
type AttendanceMenuItem struct {
	ID               int             `gorm:"primary_key" json:"id"`
	AttendanceId     int             `gorm:"index;not null" json:"attendance_id"`
	MenuId           int             `gorm:"index;not null" json:"menu_id"`
	PriceAtSelection decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price_at_selection"`
	Quantity         int             `gorm:"not null;default:1" json:"quantity"`
	SelectedAt       time.Time       `gorm:"not null" json:"selected_at"`
	Menu             *Menu           `gorm:"foreignKey:MenuId;constraint:OnDelete:RESTRICT" json:"menu,omitempty"`
}

type AttendanceUpdate struct {
	UserId          int    `json:"user_id" binding:"required"`
	IsPresent       bool   `json:"is_present"`
	SelectedMenuIds []int  `json:"selected_menu_ids"`
	Remarks         string `json:"remarks" binding:"max=500"`
}

type MarkAttendanceInput struct {
	Date    string             `json:"date" binding:"required"`
	Updates []AttendanceUpdate `json:"updates" binding:"required,min=1,dive"`
}

type MarkAttendanceResult struct {
	Date          time.Time `json:"date"`
	Processed     int       `json:"processed"`
	ItemsSelected int       `json:"items_selected"`
	Message       string    `json:"message"`
}

// MarkAttendance upserts one attendance row per update for date and replaces
// its selected items. The whole batch commits or none of it does.
func MarkAttendance(ctx context.Context, date time.Time, updates []AttendanceUpdate) (*MarkAttendanceResult, error) {
	date = utils.DateOnly(date)
	if len(updates) == 0 {
		return nil, utils.NewValidationError("updates", "at least one update is required")
	}
	userIds := make([]int, 0, len(updates))
	var menuIds []int
	for i, u := range updates {
		if err := utils.ValidateStruct(&updates[i]); err != nil {
			return nil, err
		}
		userIds = append(userIds, u.UserId)
		menuIds = append(menuIds, u.SelectedMenuIds...)
	}

	db := config.GetDB()
	logger := config.GetLogger()
	actor := utils.ActorFromContext(ctx)
	now := time.Now().UTC()
	result := MarkAttendanceResult{Date: date}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := utils.ValidateResourcesId[User](ctx, tx, userIds); err != nil {
			return fmt.Errorf("user: %w", err)
		}

		menus, err := loadMenusById(tx, utils.UniqueSlice(menuIds))
		if err != nil {
			return err
		}

		for _, u := range updates {
			row := Attendance{
				UserId:    u.UserId,
				Date:      date,
				IsPresent: u.IsPresent,
				MarkedAt:  now,
				MarkedBy:  actor,
				Remarks:   u.Remarks,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
				DoUpdates: clause.AssignmentColumns([]string{"is_present", "marked_at", "marked_by", "remarks", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return err
			}
			// the upsert does not report the id of an updated row on every driver
			if err := tx.Where("user_id = ? AND date = ?", u.UserId, date).Take(&row).Error; err != nil {
				return err
			}

			if err := tx.Where("attendance_id = ?", row.ID).Delete(&AttendanceMenuItem{}).Error; err != nil {
				return err
			}
			result.Processed++

			if !u.IsPresent || len(u.SelectedMenuIds) == 0 {
				continue
			}
			items := make([]AttendanceMenuItem, 0, len(u.SelectedMenuIds))
			for _, menuId := range utils.UniqueSlice(u.SelectedMenuIds) {
				menu, ok := menus[menuId]
				if !ok {
					// unresolvable menus are skipped
					continue
				}
				if config.StrictMenuEffectiveDate() && !menu.EffectiveOn(date) {
					return fmt.Errorf("%w: %s (menu %d) on %s", ErrMenuNotEffective, menu.ItemName, menu.ID, date.Format(utils.DateLayout))
				}
				items = append(items, AttendanceMenuItem{
					AttendanceId:     row.ID,
					MenuId:           menu.ID,
					PriceAtSelection: menu.Price,
					Quantity:         1,
					SelectedAt:       now,
				})
			}
			if len(items) == 0 {
				continue
			}
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
			result.ItemsSelected += len(items)
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "AttendanceModel", "MarkAttendance", "batch rolled back", map[string]interface{}{
			"date":    date.Format(utils.DateLayout),
			"updates": len(updates),
		}, err)
		return nil, err
	}

	metrics.AttendanceMarked.Add(float64(result.Processed))
	result.Message = fmt.Sprintf("Attendance saved for %d students on %s.", result.Processed, date.Format(utils.DateLayout))
	return &result, nil
}

func loadMenusById(tx *gorm.DB, ids []int) (map[int]*Menu, error) {
	menus := make(map[int]*Menu, len(ids))
	if len(ids) == 0 {
		return menus, nil
	}
	var rows []*Menu
	if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, m := range rows {
		menus[m.ID] = m
	}
	return menus, nil
}

// GetAttendance returns a user's attendance for date with its items, or
// ErrorRecordNotFound.
func GetAttendance(ctx context.Context, userId int, date time.Time) (*Attendance, error) {
	db := config.GetDB()
	var rows []Attendance
	err := db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Menu").
		Where("user_id = ? AND date = ?", userId, utils.DateOnly(date)).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return &rows[0], nil
}
