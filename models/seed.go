package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DefaultMandatoryGroupName = "Water & Tea"
	DefaultOptionalGroupName  = "Food"
)

type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
	// DemoStudents creates studentN@gmail.com accounts and a starter menu.
	DemoStudents int
}

type SeedResult struct {
	GroupsCreated   int  `json:"groups_created"`
	AdminCreated    bool `json:"admin_created"`
	StudentsCreated int  `json:"students_created"`
	MenusCreated    int  `json:"menus_created"`
}

type seedMenu struct {
	Group    string
	Name     string
	Category MenuCategory
	Price    int64
}

var defaultSeedMenus = []seedMenu{
	{DefaultMandatoryGroupName, "Morning Tea", MenuCategoryWaterTea, 10},
	{DefaultMandatoryGroupName, "Evening Tea", MenuCategoryWaterTea, 10},
	{DefaultMandatoryGroupName, "Drinking Water", MenuCategoryWaterTea, 5},
	{DefaultOptionalGroupName, "Breakfast", MenuCategoryFood, 50},
	{DefaultOptionalGroupName, "Lunch", MenuCategoryFood, 80},
	{DefaultOptionalGroupName, "Dinner", MenuCategoryFood, 70},
	{DefaultOptionalGroupName, "Snacks", MenuCategoryFood, 30},
}

// SeedOptionsFromEnv reads ADMIN_EMAIL, ADMIN_PASSWORD, ADMIN_NAME and
// SEED_DEMO_STUDENTS.
func SeedOptionsFromEnv() SeedOptions {
	demo, _ := strconv.Atoi(strings.TrimSpace(os.Getenv("SEED_DEMO_STUDENTS")))
	return SeedOptions{
		AdminEmail:    strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		AdminName:     strings.TrimSpace(os.Getenv("ADMIN_NAME")),
		DemoStudents:  demo,
	}
}

// Seed is idempotent: existing groups, users and menus are left untouched.
func Seed(ctx context.Context, opts SeedOptions) (*SeedResult, error) {
	db := config.GetDB()
	result := SeedResult{}

	groups := map[string]*MessGroup{}
	for _, g := range []MessGroup{
		{Name: DefaultMandatoryGroupName, Description: "Drinking water and tea, billed to every resident", IsMandatory: true},
		{Name: DefaultOptionalGroupName, Description: "Meals for residents who opt in"},
	} {
		group := g
		var existing MessGroup
		err := db.WithContext(ctx).Where("name = ?", group.Name).First(&existing).Error
		if err == nil {
			groups[group.Name] = &existing
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		group.IsActive = utils.NewTrue()
		if err := db.WithContext(ctx).Create(&group).Error; err != nil {
			return nil, err
		}
		groups[group.Name] = &group
		result.GroupsCreated++
	}

	if opts.AdminEmail != "" {
		created, err := ensureUser(ctx, opts.AdminName, opts.AdminEmail, opts.AdminPassword, UserRoleAdmin)
		if err != nil {
			return nil, fmt.Errorf("admin: %w", err)
		}
		result.AdminCreated = created
	}

	if opts.DemoStudents <= 0 {
		return &result, nil
	}

	for i := 1; i <= opts.DemoStudents; i++ {
		email := fmt.Sprintf("student%d@gmail.com", i)
		created, err := ensureUser(ctx, fmt.Sprintf("Student %d", i), email, "Student@123", UserRoleStudent)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", email, err)
		}
		if !created {
			continue
		}
		result.StudentsCreated++
		// even numbered students also take meals
		if i%2 == 0 {
			var user User
			if err := db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
				return nil, err
			}
			if err := activateMemberships(db.WithContext(ctx), user.ID, []int{groups[DefaultOptionalGroupName].ID}); err != nil {
				return nil, err
			}
		}
	}

	effective := utils.Today().AddDate(0, 0, -7)
	for _, m := range defaultSeedMenus {
		group := groups[m.Group]
		var count int64
		if err := db.WithContext(ctx).Model(&Menu{}).
			Where("mess_group_id = ? AND item_name = ?", group.ID, m.Name).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			continue
		}
		menu := Menu{
			MessGroupId:   group.ID,
			ItemName:      m.Name,
			Category:      m.Category,
			Price:         decimal.NewFromInt(m.Price),
			EffectiveDate: effective,
			IsActive:      utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&menu).Error; err != nil {
			return nil, err
		}
		result.MenusCreated++
	}
	invalidateMenuCache(ctx)
	return &result, nil
}

// ensureUser creates the account when the email is free. Existing accounts
// are not modified.
func ensureUser(ctx context.Context, name, email, password string, role UserRole) (bool, error) {
	db := config.GetDB()
	email = utils.NormalizeEmail(email)
	count, err := utils.ResourceCountWhere[User](ctx, db, "email = ?", email)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	_, err = createUser(ctx, name, email, "", password, role)
	if err != nil {
		return false, err
	}
	return true, nil
}
