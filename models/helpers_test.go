package models_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/models"
	"github.com/messdesk/mess_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const testPassword = "Passw0rd"

// setupTestDB points the global handle at a private in-memory sqlite
// database and returns a context acting as user 1.
func setupTestDB(t *testing.T) (context.Context, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)
	db, err := config.OpenDatabase(config.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	prev := config.GetDB()
	config.SetDB(db)
	t.Setenv("STRICT_MENU_EFFECTIVE_DATE", "true")
	t.Cleanup(func() {
		config.SetDB(prev)
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return utils.SetUserIdInContext(context.Background(), 1), db
}

type fixture struct {
	ctx       context.Context
	db        *gorm.DB
	admin     *models.User
	mandatory *models.MessGroup
	optional  *models.MessGroup
	water     *models.Menu
	tea       *models.Menu
	lunch     *models.Menu
	dinner    *models.Menu
}

// newFixture creates an admin, a mandatory and an optional group, and four
// menus effective from 2024-12-01.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, db := setupTestDB(t)
	f := &fixture{ctx: ctx, db: db}
	f.admin = mustCreateUser(t, ctx, "Admin", "mess.admin@gmail.com", models.UserRoleAdmin)
	f.mandatory = mustCreateGroup(t, ctx, "Water & Tea", true)
	f.optional = mustCreateGroup(t, ctx, "Meals", false)
	f.water = mustCreateMenu(t, ctx, f.mandatory.ID, "Water", models.MenuCategoryWaterTea, "10", "2024-12-01")
	f.tea = mustCreateMenu(t, ctx, f.mandatory.ID, "Tea", models.MenuCategoryWaterTea, "15", "2024-12-01")
	f.lunch = mustCreateMenu(t, ctx, f.optional.ID, "Lunch", models.MenuCategoryFood, "120", "2024-12-01")
	f.dinner = mustCreateMenu(t, ctx, f.optional.ID, "Dinner", models.MenuCategoryFood, "150.50", "2024-12-01")
	return f
}

func mustCreateUser(t *testing.T, ctx context.Context, name, email string, role models.UserRole) *models.User {
	t.Helper()
	u, err := models.CreateUser(ctx, &models.NewUser{
		FullName: name,
		Email:    email,
		Password: testPassword,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func mustCreateGroup(t *testing.T, ctx context.Context, name string, mandatory bool) *models.MessGroup {
	t.Helper()
	g, err := models.CreateMessGroup(ctx, &models.NewMessGroup{Name: name, IsMandatory: &mandatory})
	if err != nil {
		t.Fatalf("create group %s: %v", name, err)
	}
	return g
}

func mustCreateMenu(t *testing.T, ctx context.Context, groupId int, item string, cat models.MenuCategory, price, effective string) *models.Menu {
	t.Helper()
	m, err := models.CreateMenu(ctx, &models.NewMenu{
		MessGroupId:   groupId,
		ItemName:      item,
		Category:      cat,
		Price:         decimal.RequireFromString(price),
		EffectiveDate: effective,
	})
	if err != nil {
		t.Fatalf("create menu %s: %v", item, err)
	}
	return m
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := utils.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return d
}

func mustMark(t *testing.T, ctx context.Context, date string, updates ...models.AttendanceUpdate) *models.MarkAttendanceResult {
	t.Helper()
	res, err := models.MarkAttendance(ctx, mustDate(t, date), updates)
	if err != nil {
		t.Fatalf("mark attendance %s: %v", date, err)
	}
	return res
}

func present(userId int, menuIds ...int) models.AttendanceUpdate {
	return models.AttendanceUpdate{UserId: userId, IsPresent: true, SelectedMenuIds: menuIds}
}

func absent(userId int) models.AttendanceUpdate {
	return models.AttendanceUpdate{UserId: userId}
}

func assertDecimal(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s = %s, want %s", what, got.String(), want)
	}
}
