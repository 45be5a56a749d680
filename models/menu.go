package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const effectiveMenuCachePrefix = "Menus:Effective:"

var (
	menuMinPrice = decimal.RequireFromString("0.01")
	menuMaxPrice = decimal.NewFromInt(10000)
)

// Menu is a priced item. Prices are never rewritten once attendance has
// referenced the row; UpdateMenu creates a replacement row instead.
type Menu struct {
	ID            int             `gorm:"primary_key" json:"id"`
	MessGroupId   int             `gorm:"index:idx_menu_effective,priority:2;not null" json:"mess_group_id"`
	ItemName      string          `gorm:"size:200;not null" json:"item_name"`
	Category      MenuCategory    `gorm:"size:20;not null" json:"category"`
	Price         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	EffectiveDate time.Time       `gorm:"type:date;index:idx_menu_effective,priority:1;not null" json:"effective_date"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedBy     int             `gorm:"default:0" json:"created_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	MessGroup     *MessGroup      `gorm:"foreignKey:MessGroupId;constraint:OnDelete:RESTRICT" json:"mess_group,omitempty"`
}

type NewMenu struct {
	MessGroupId   int             `json:"mess_group_id" binding:"required"`
	ItemName      string          `json:"item_name" binding:"required,max=200"`
	Category      MenuCategory    `json:"category" binding:"required,oneof=Food WaterTea"`
	Price         decimal.Decimal `json:"price"`
	EffectiveDate string          `json:"effective_date" binding:"required"`
	IsActive      *bool           `json:"is_active"`
}

// MenuView is a menu row flattened with its group.
type MenuView struct {
	ID            int             `json:"id"`
	MessGroupId   int             `json:"mess_group_id"`
	GroupName     string          `json:"group_name"`
	IsMandatory   bool            `json:"is_mandatory"`
	ItemName      string          `json:"item_name"`
	Category      MenuCategory    `json:"category"`
	Price         decimal.Decimal `json:"price"`
	EffectiveDate time.Time       `json:"effective_date"`
}

type EffectiveMenus struct {
	Date      time.Time   `json:"date"`
	Mandatory []*MenuView `json:"mandatory"`
	Optional  []*MenuView `json:"optional"`
}

func (m *Menu) Active() bool {
	return m.IsActive == nil || *m.IsActive
}

// EffectiveOn reports whether the menu may be selected for date.
func (m *Menu) EffectiveOn(date time.Time) bool {
	return m.Active() && !utils.DateOnly(m.EffectiveDate).After(utils.DateOnly(date))
}

func (input *NewMenu) validate(ctx context.Context, db *gorm.DB) (time.Time, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return time.Time{}, err
	}
	if input.Price.LessThan(menuMinPrice) || input.Price.GreaterThan(menuMaxPrice) {
		return time.Time{}, utils.NewValidationError("price", "must be between 0.01 and 10000")
	}
	effective, err := utils.ParseDate(input.EffectiveDate)
	if err != nil {
		return time.Time{}, utils.NewValidationError("effective_date", err.Error())
	}
	if err := utils.ValidateResourceId[MessGroup](ctx, db, input.MessGroupId); err != nil {
		return time.Time{}, err
	}
	return effective, nil
}

func CreateMenu(ctx context.Context, input *NewMenu) (*Menu, error) {
	db := config.GetDB()
	effective, err := input.validate(ctx, db)
	if err != nil {
		return nil, err
	}
	menu := Menu{
		MessGroupId:   input.MessGroupId,
		ItemName:      strings.TrimSpace(input.ItemName),
		Category:      input.Category,
		Price:         input.Price.Round(2),
		EffectiveDate: effective,
		IsActive:      utils.NewTrue(),
		CreatedBy:     utils.ActorFromContext(ctx),
	}
	if input.IsActive != nil {
		menu.IsActive = input.IsActive
	}
	if err := db.WithContext(ctx).Create(&menu).Error; err != nil {
		return nil, err
	}
	invalidateMenuCache(ctx)
	return &menu, nil
}

// UpdateMenu edits a menu. When the price changes on a row that attendance
// already references, a new row carries the new price and the old row is
// deactivated; the returned menu is the row now in effect.
func UpdateMenu(ctx context.Context, id int, input *NewMenu) (*Menu, error) {
	db := config.GetDB()
	effective, err := input.validate(ctx, db)
	if err != nil {
		return nil, err
	}

	var result Menu
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Menu
		if err := tx.First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		newPrice := input.Price.Round(2)
		isActive := existing.Active()
		if input.IsActive != nil {
			isActive = *input.IsActive
		}

		if !newPrice.Equal(existing.Price) {
			referenced, err := utils.ResourceCountWhere[AttendanceMenuItem](ctx, tx, "menu_id = ?", id)
			if err != nil {
				return err
			}
			if referenced > 0 {
				if err := tx.Model(&Menu{}).Where("id = ?", id).Update("is_active", false).Error; err != nil {
					return err
				}
				result = Menu{
					MessGroupId:   input.MessGroupId,
					ItemName:      strings.TrimSpace(input.ItemName),
					Category:      input.Category,
					Price:         newPrice,
					EffectiveDate: effective,
					IsActive:      &isActive,
					CreatedBy:     utils.ActorFromContext(ctx),
				}
				return tx.Create(&result).Error
			}
		}

		if err := tx.Model(&Menu{}).Where("id = ?", id).Updates(map[string]interface{}{
			"mess_group_id":  input.MessGroupId,
			"item_name":      strings.TrimSpace(input.ItemName),
			"category":       input.Category,
			"price":          newPrice,
			"effective_date": effective,
			"is_active":      isActive,
		}).Error; err != nil {
			return err
		}
		return tx.First(&result, id).Error
	})
	if err != nil {
		return nil, err
	}
	invalidateMenuCache(ctx)
	return &result, nil
}

// DeactivateMenu is the delete operation; rows stay for historical bills.
func DeactivateMenu(ctx context.Context, id int) error {
	db := config.GetDB()
	res := db.WithContext(ctx).Model(&Menu{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	invalidateMenuCache(ctx)
	return nil
}

func ListMenus(ctx context.Context, activeOnly bool) ([]*Menu, error) {
	db := config.GetDB()
	var menus []*Menu
	q := db.WithContext(ctx).Preload("MessGroup")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("effective_date DESC, item_name").Find(&menus).Error; err != nil {
		return nil, err
	}
	return menus, nil
}

// GetEffectiveMenus lists the menus selectable on date, split by whether
// their group is mandatory. Results are cached in redis per date.
func GetEffectiveMenus(ctx context.Context, date time.Time) (*EffectiveMenus, error) {
	date = utils.DateOnly(date)
	cacheKey := effectiveMenuCachePrefix + date.Format(utils.DateLayout)

	cached, err := utils.RetrieveRedis[EffectiveMenus](ctx, cacheKey)
	if err != nil {
		config.LogError(config.GetLogger(), "MenuModel", "GetEffectiveMenus", "redis read", cacheKey, err)
	} else if cached != nil {
		return cached, nil
	}

	views, err := loadEffectiveMenus(config.GetDB().WithContext(ctx), date)
	if err != nil {
		return nil, err
	}
	result := EffectiveMenus{Date: date, Mandatory: []*MenuView{}, Optional: []*MenuView{}}
	for _, v := range views {
		if v.IsMandatory {
			result.Mandatory = append(result.Mandatory, v)
		} else {
			result.Optional = append(result.Optional, v)
		}
	}

	if err := utils.StoreRedis(ctx, cacheKey, result); err != nil {
		config.LogError(config.GetLogger(), "MenuModel", "GetEffectiveMenus", "redis write", cacheKey, err)
	}
	return &result, nil
}

func loadEffectiveMenus(db *gorm.DB, date time.Time) ([]*MenuView, error) {
	var views []*MenuView
	err := db.Table("menus").
		Select("menus.id, menus.mess_group_id, mess_groups.name AS group_name, mess_groups.is_mandatory, "+
			"menus.item_name, menus.category, menus.price, menus.effective_date").
		Joins("JOIN mess_groups ON mess_groups.id = menus.mess_group_id").
		Where("menus.is_active = ? AND mess_groups.is_active = ? AND menus.effective_date <= ?", true, true, date).
		Order("mess_groups.is_mandatory DESC, menus.category, menus.item_name").
		Scan(&views).Error
	return views, err
}

func invalidateMenuCache(ctx context.Context) {
	if err := config.RemoveRedisKeysByPattern(ctx, effectiveMenuCachePrefix+"*"); err != nil {
		config.LogError(config.GetLogger(), "MenuModel", "invalidateMenuCache", "redis delete", nil, err)
	}
}
