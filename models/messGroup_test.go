package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/messdesk/mess_backend/models"
	"github.com/messdesk/mess_backend/utils"
	"github.com/shopspring/decimal"
)

func TestSelectMessGroupsKeepsMandatory(t *testing.T) {
	f := newFixture(t)
	alice := mustCreateUser(t, f.ctx, "Alice", "alice@gmail.com", models.UserRoleStudent)

	got, err := models.SelectMessGroups(f.ctx, alice.ID, []int{f.optional.ID, f.optional.ID})
	if err != nil {
		t.Fatalf("SelectMessGroups: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected mandatory and optional memberships, got %d", len(got))
	}

	got, err = models.SelectMessGroups(f.ctx, alice.ID, nil)
	if err != nil {
		t.Fatalf("SelectMessGroups: %v", err)
	}
	if len(got) != 1 || got[0].MessGroupId != f.mandatory.ID {
		t.Fatalf("mandatory group must stay selected, got %+v", got)
	}

	if _, err := models.SelectMessGroups(f.ctx, alice.ID, []int{f.optional.ID}); err != nil {
		t.Fatalf("SelectMessGroups: %v", err)
	}
	var rows int64
	f.db.Model(&models.UserMessGroup{}).Where("user_id = ?", alice.ID).Count(&rows)
	if rows != 2 {
		t.Fatalf("re-selection should reactivate rows instead of adding, got %d rows", rows)
	}
}

func TestSelectMessGroupsRejectsUnknownAndInactive(t *testing.T) {
	f := newFixture(t)
	alice := mustCreateUser(t, f.ctx, "Alice", "alice@gmail.com", models.UserRoleStudent)

	if _, err := models.SelectMessGroups(f.ctx, alice.ID, []int{9999}); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("unknown group: got %v", err)
	}

	closed := false
	snacks, err := models.CreateMessGroup(f.ctx, &models.NewMessGroup{Name: "Snacks", IsActive: &closed})
	if err != nil {
		t.Fatalf("CreateMessGroup: %v", err)
	}
	if _, err := models.SelectMessGroups(f.ctx, alice.ID, []int{snacks.ID}); !utils.IsValidationError(err) {
		t.Fatalf("inactive group: got %v", err)
	}

	got, err := models.GetUserMessGroups(f.ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetUserMessGroups: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("failed selection must not change memberships, got %d", len(got))
	}
}

func TestCreateMessGroupDuplicateName(t *testing.T) {
	f := newFixture(t)
	if _, err := models.CreateMessGroup(f.ctx, &models.NewMessGroup{Name: "Meals"}); !errors.Is(err, models.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
	groups, err := models.ListMessGroups(f.ctx, true)
	if err != nil {
		t.Fatalf("ListMessGroups: %v", err)
	}
	if len(groups) != 2 || !groups[0].IsMandatory {
		t.Fatalf("mandatory groups should be listed first, got %+v", groups)
	}
}

func TestCreateMenuValidation(t *testing.T) {
	f := newFixture(t)
	cases := []models.NewMenu{
		{MessGroupId: f.optional.ID, ItemName: "Free", Category: models.MenuCategoryFood, Price: decimal.Zero, EffectiveDate: "2025-01-01"},
		{MessGroupId: f.optional.ID, ItemName: "Gold", Category: models.MenuCategoryFood, Price: decimal.NewFromInt(10001), EffectiveDate: "2025-01-01"},
		{MessGroupId: f.optional.ID, ItemName: "Soup", Category: models.MenuCategoryFood, Price: decimal.NewFromInt(40), EffectiveDate: "01/02/2025"},
		{MessGroupId: f.optional.ID, ItemName: "Soup", Category: "Dessert", Price: decimal.NewFromInt(40), EffectiveDate: "2025-01-01"},
	}
	for i := range cases {
		if _, err := models.CreateMenu(f.ctx, &cases[i]); !utils.IsValidationError(err) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	_, err := models.CreateMenu(f.ctx, &models.NewMenu{
		MessGroupId: 9999, ItemName: "Soup", Category: models.MenuCategoryFood,
		Price: decimal.NewFromInt(40), EffectiveDate: "2025-01-01",
	})
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("unknown group: got %v", err)
	}
}

func TestUpdateMenuPriceChangeCreatesNewRowOnceReferenced(t *testing.T) {
	f := newFixture(t)
	alice := mustCreateUser(t, f.ctx, "Alice", "alice@gmail.com", models.UserRoleStudent)

	// not referenced yet: edited in place
	edited, err := models.UpdateMenu(f.ctx, f.dinner.ID, &models.NewMenu{
		MessGroupId: f.optional.ID, ItemName: "Dinner", Category: models.MenuCategoryFood,
		Price: decimal.NewFromInt(160), EffectiveDate: "2024-12-01",
	})
	if err != nil {
		t.Fatalf("UpdateMenu: %v", err)
	}
	if edited.ID != f.dinner.ID {
		t.Fatalf("unreferenced menu should be edited in place")
	}
	assertDecimal(t, "dinner price", edited.Price, "160")

	mustMark(t, f.ctx, "2025-01-10", present(alice.ID, f.lunch.ID))
	replacement, err := models.UpdateMenu(f.ctx, f.lunch.ID, &models.NewMenu{
		MessGroupId: f.optional.ID, ItemName: "Lunch", Category: models.MenuCategoryFood,
		Price: decimal.NewFromInt(130), EffectiveDate: "2025-01-11",
	})
	if err != nil {
		t.Fatalf("UpdateMenu: %v", err)
	}
	if replacement.ID == f.lunch.ID {
		t.Fatalf("referenced menu must not be repriced in place")
	}
	assertDecimal(t, "replacement price", replacement.Price, "130")

	var old models.Menu
	if err := f.db.First(&old, f.lunch.ID).Error; err != nil {
		t.Fatalf("reload old menu: %v", err)
	}
	if old.Active() {
		t.Fatalf("old menu should be deactivated")
	}
	assertDecimal(t, "old price", old.Price, "120")

	att, err := models.GetAttendance(f.ctx, alice.ID, mustDate(t, "2025-01-10"))
	if err != nil {
		t.Fatalf("GetAttendance: %v", err)
	}
	assertDecimal(t, "price at selection", att.Items[0].PriceAtSelection, "120")

	// the old row can no longer be selected; the new one can from its date
	if _, err := models.MarkAttendance(f.ctx, mustDate(t, "2025-01-11"), []models.AttendanceUpdate{present(alice.ID, f.lunch.ID)}); !errors.Is(err, models.ErrMenuNotEffective) {
		t.Fatalf("inactive menu: got %v", err)
	}
	mustMark(t, f.ctx, "2025-01-11", present(alice.ID, replacement.ID))

	res, err := models.GenerateMonthlyBills(f.ctx, 1, 2025)
	if err != nil {
		t.Fatalf("GenerateMonthlyBills: %v", err)
	}
	assertDecimal(t, "total", res.TotalAmount, "250")
}

func TestDeactivateMenuAndEffectiveMenus(t *testing.T) {
	f := newFixture(t)
	mustCreateMenu(t, f.ctx, f.optional.ID, "Biryani", models.MenuCategoryFood, "200", "2025-02-01")

	menus, err := models.GetEffectiveMenus(f.ctx, mustDate(t, "2025-01-15"))
	if err != nil {
		t.Fatalf("GetEffectiveMenus: %v", err)
	}
	if len(menus.Mandatory) != 2 || len(menus.Optional) != 2 {
		t.Fatalf("unexpected split %d/%d", len(menus.Mandatory), len(menus.Optional))
	}

	menus, err = models.GetEffectiveMenus(f.ctx, mustDate(t, "2025-02-01"))
	if err != nil {
		t.Fatalf("GetEffectiveMenus: %v", err)
	}
	if len(menus.Optional) != 3 {
		t.Fatalf("expected future menu to become effective, got %d", len(menus.Optional))
	}

	if err := models.DeactivateMenu(f.ctx, f.lunch.ID); err != nil {
		t.Fatalf("DeactivateMenu: %v", err)
	}
	if err := models.DeactivateMenu(f.ctx, 9999); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("unknown menu: got %v", err)
	}
	menus, err = models.GetEffectiveMenus(f.ctx, mustDate(t, "2025-02-01"))
	if err != nil {
		t.Fatalf("GetEffectiveMenus: %v", err)
	}
	if len(menus.Optional) != 2 {
		t.Fatalf("deactivated menu still effective")
	}

	active, err := models.ListMenus(f.ctx, true)
	if err != nil {
		t.Fatalf("ListMenus: %v", err)
	}
	if len(active) != 4 {
		t.Fatalf("expected 4 active menus, got %d", len(active))
	}

	before, err := models.GetEffectiveMenus(f.ctx, time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetEffectiveMenus: %v", err)
	}
	if len(before.Mandatory)+len(before.Optional) != 0 {
		t.Fatalf("no menu is effective before 2024-12-01")
	}
}
