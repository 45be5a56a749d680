package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/utils"
	"gorm.io/gorm"
)

type MessGroup struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:500" json:"description"`
	IsMandatory bool      `gorm:"not null;default:false" json:"is_mandatory"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UserMessGroup rows are never deleted on re-selection; they are deactivated.
type UserMessGroup struct {
	ID          int        `gorm:"primary_key" json:"id"`
	UserId      int        `gorm:"index:idx_user_mess_group;not null" json:"user_id"`
	MessGroupId int        `gorm:"index:idx_user_mess_group;not null" json:"mess_group_id"`
	JoinedAt    time.Time  `gorm:"not null" json:"joined_at"`
	IsActive    *bool      `gorm:"not null;default:true" json:"is_active"`
	MessGroup   *MessGroup `gorm:"foreignKey:MessGroupId" json:"mess_group,omitempty"`
}

type NewMessGroup struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
	IsMandatory *bool  `json:"is_mandatory"`
	IsActive    *bool  `json:"is_active"`
}

type SelectMessGroupsInput struct {
	MessGroupIds []int `json:"mess_group_ids"`
}

func (g *MessGroup) Active() bool {
	return g.IsActive == nil || *g.IsActive
}

func CreateMessGroup(ctx context.Context, input *NewMessGroup) (*MessGroup, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	db := config.GetDB()
	name := strings.TrimSpace(input.Name)
	if err := utils.ValidateUnique[MessGroup](ctx, db, "name", name, 0); err != nil {
		return nil, ErrDuplicateName
	}
	group := MessGroup{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		IsMandatory: utils.DereferencePtr(input.IsMandatory),
		IsActive:    utils.NewTrue(),
	}
	if input.IsActive != nil {
		group.IsActive = input.IsActive
	}
	if err := db.WithContext(ctx).Create(&group).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	invalidateMenuCache(ctx)
	return &group, nil
}

// UpdateMessGroup renames or toggles a group. Mandatory status is fixed once
// the group has been billed.
func UpdateMessGroup(ctx context.Context, id int, input *NewMessGroup) (*MessGroup, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	db := config.GetDB()
	name := strings.TrimSpace(input.Name)
	if err := utils.ValidateUnique[MessGroup](ctx, db, "name", name, id); err != nil {
		return nil, ErrDuplicateName
	}

	var group MessGroup
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&group, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		updates := map[string]interface{}{
			"name":        name,
			"description": strings.TrimSpace(input.Description),
		}
		if input.IsActive != nil {
			updates["is_active"] = *input.IsActive
		}
		if input.IsMandatory != nil && *input.IsMandatory != group.IsMandatory {
			billed, err := groupHasBilledItems(tx, id)
			if err != nil {
				return err
			}
			if billed {
				return utils.NewValidationError("is_mandatory", "cannot change after the group has been billed")
			}
			updates["is_mandatory"] = *input.IsMandatory
		}
		if err := tx.Model(&MessGroup{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return ErrDuplicateName
			}
			return err
		}
		return tx.First(&group, id).Error
	})
	if err != nil {
		return nil, err
	}
	invalidateMenuCache(ctx)
	return &group, nil
}

func groupHasBilledItems(tx *gorm.DB, groupId int) (bool, error) {
	var count int64
	err := tx.Model(&BillDetail{}).
		Joins("JOIN menus ON menus.id = bill_details.menu_id").
		Where("menus.mess_group_id = ?", groupId).
		Count(&count).Error
	return count > 0, err
}

func ListMessGroups(ctx context.Context, activeOnly bool) ([]*MessGroup, error) {
	db := config.GetDB()
	var groups []*MessGroup
	q := db.WithContext(ctx).Model(&MessGroup{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("is_mandatory DESC, name").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func GetUserMessGroups(ctx context.Context, userId int) ([]*UserMessGroup, error) {
	db := config.GetDB()
	var memberships []*UserMessGroup
	err := db.WithContext(ctx).
		Preload("MessGroup").
		Where("user_id = ? AND is_active = ?", userId, true).
		Order("mess_group_id").
		Find(&memberships).Error
	return memberships, err
}

// SelectMessGroups replaces the user's active memberships with groupIds.
// Previous memberships are deactivated, not deleted. Active mandatory groups
// stay selected whether or not they are listed.
func SelectMessGroups(ctx context.Context, userId int, groupIds []int) ([]*UserMessGroup, error) {
	db := config.GetDB()
	groupIds = utils.UniqueSlice(groupIds)

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := utils.ValidateResourceId[User](ctx, tx, userId); err != nil {
			return err
		}
		var groups []MessGroup
		if len(groupIds) > 0 {
			if err := tx.Where("id IN ?", groupIds).Find(&groups).Error; err != nil {
				return err
			}
			if len(groups) != len(groupIds) {
				return utils.ErrorRecordNotFound
			}
			for _, g := range groups {
				if !g.Active() {
					return utils.NewValidationError("mess_group_ids", "group "+g.Name+" is not active")
				}
			}
		}
		var mandatory []MessGroup
		if err := tx.Where("is_mandatory = ? AND is_active = ?", true, true).Find(&mandatory).Error; err != nil {
			return err
		}
		selected := make([]int, 0, len(groups)+len(mandatory))
		for _, g := range groups {
			selected = append(selected, g.ID)
		}
		for _, g := range mandatory {
			selected = append(selected, g.ID)
		}
		selected = utils.UniqueSlice(selected)

		if err := tx.Model(&UserMessGroup{}).
			Where("user_id = ? AND is_active = ?", userId, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return activateMemberships(tx, userId, selected)
	})
	if err != nil {
		return nil, err
	}
	return GetUserMessGroups(ctx, userId)
}

// activateMemberships reactivates existing rows or creates new ones.
func activateMemberships(tx *gorm.DB, userId int, groupIds []int) error {
	now := time.Now().UTC()
	for _, groupId := range groupIds {
		var existing UserMessGroup
		err := tx.Where("user_id = ? AND mess_group_id = ?", userId, groupId).
			Order("id").
			First(&existing).Error
		if err == nil {
			if err := tx.Model(&UserMessGroup{}).Where("id = ?", existing.ID).
				Update("is_active", true).Error; err != nil {
				return err
			}
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		membership := UserMessGroup{
			UserId:      userId,
			MessGroupId: groupId,
			JoinedAt:    now,
			IsActive:    utils.NewTrue(),
		}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}
	}
	return nil
}

func enrollMandatoryGroups(tx *gorm.DB, userId int) error {
	var ids []int
	if err := tx.Model(&MessGroup{}).
		Where("is_mandatory = ? AND is_active = ?", true, true).
		Pluck("id", &ids).Error; err != nil {
		return err
	}
	return activateMemberships(tx, userId, ids)
}
