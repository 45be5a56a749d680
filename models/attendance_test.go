package models_test

import (
	"errors"
	"testing"

	"github.com/messdesk/mess_backend/models"
	"github.com/messdesk/mess_backend/utils"
)

func TestMarkAttendanceSnapshotsPrices(t *testing.T) {
	f := newFixture(t)
	alice := mustCreateUser(t, f.ctx, "Alice", "alice@gmail.com", models.UserRoleStudent)
	bob := mustCreateUser(t, f.ctx, "Bob", "bob@gmail.com", models.UserRoleStudent)

	res := mustMark(t, f.ctx, "2025-01-10",
		present(alice.ID, f.water.ID, f.water.ID, f.lunch.ID, 9999),
		absent(bob.ID),
	)
	if res.Processed != 2 || res.ItemsSelected != 2 {
		t.Fatalf("processed %d items %d, want 2 and 2", res.Processed, res.ItemsSelected)
	}
	if res.Message != "Attendance saved for 2 students on 2025-01-10." {
		t.Fatalf("message = %q", res.Message)
	}

	att, err := models.GetAttendance(f.ctx, alice.ID, mustDate(t, "2025-01-10"))
	if err != nil {
		t.Fatalf("GetAttendance: %v", err)
	}
	if !att.IsPresent || len(att.Items) != 2 {
		t.Fatalf("unexpected attendance %+v", att)
	}
	if att.MarkedBy != 1 {
		t.Fatalf("marked_by = %d, want acting user", att.MarkedBy)
	}
	assertDecimal(t, "water snapshot", att.Items[0].PriceAtSelection, "10")
	assertDecimal(t, "lunch snapshot", att.Items[1].PriceAtSelection, "120")

	bobAtt, err := models.GetAttendance(f.ctx, bob.ID, mustDate(t, "2025-01-10"))
	if err != nil {
		t.Fatalf("GetAttendance: %v", err)
	}
	if bobAtt.IsPresent || len(bobAtt.Items) != 0 {
		t.Fatalf("absent student must have no items, got %+v", bobAtt)
	}
}

func TestMarkAttendanceUpsertReplacesItems(t *testing.T) {
	f := newFixture(t)
	alice := mustCreateUser(t, f.ctx, "Alice", "alice@gmail.com", models.UserRoleStudent)

	mustMark(t, f.ctx, "2025-01-10", present(alice.ID, f.water.ID, f.lunch.ID))
	mustMark(t, f.ctx, "2025-01-10", present(alice.ID, f.dinner.ID))

	var rows int64
	f.db.Model(&models.Attendance{}).Where("user_id = ?", alice.ID).Count(&rows)
	if rows != 1 {
		t.Fatalf("expected a single attendance row, got %d", rows)
	}
	att, err := models.GetAttendance(f.ctx, alice.ID, mustDate(t, "2025-01-10"))
	if err != nil {
		t.Fatalf("GetAttendance: %v", err)
	}
	if len(att.Items) != 1 || att.Items[0].MenuId != f.dinner.ID {
		t.Fatalf("items were not replaced: %+v", att.Items)
	}

	mustMark(t, f.ctx, "2025-01-10", models.AttendanceUpdate{UserId: alice.ID, SelectedMenuIds: []int{f.lunch.ID}, Remarks: "home"})
	att, err = models.GetAttendance(f.ctx, alice.ID, mustDate(t, "2025-01-10"))
	if err != nil {
		t.Fatalf("GetAttendance: %v", err)
	}
	if att.IsPresent || len(att.Items) != 0 || att.Remarks != "home" {
		t.Fatalf("absent mark should clear items, got %+v", att)
	}
}

func TestMarkAttendanceRollsBackWholeBatch(t *testing.T) {
	f := newFixture(t)
	alice := mustCreateUser(t, f.ctx, "Alice", "alice@gmail.com", models.UserRoleStudent)
	bob := mustCreateUser(t, f.ctx, "Bob", "bob@gmail.com", models.UserRoleStudent)
	future := mustCreateMenu(t, f.ctx, f.optional.ID, "Biryani", models.MenuCategoryFood, "200", "2025-03-01")

	_, err := models.MarkAttendance(f.ctx, mustDate(t, "2025-01-10"), []models.AttendanceUpdate{
		present(alice.ID, f.lunch.ID),
		present(bob.ID, future.ID),
	})
	if !errors.Is(err, models.ErrMenuNotEffective) {
		t.Fatalf("expected ErrMenuNotEffective, got %v", err)
	}
	if _, err := models.GetAttendance(f.ctx, alice.ID, mustDate(t, "2025-01-10")); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("first update should have been rolled back, got %v", err)
	}

	_, err = models.MarkAttendance(f.ctx, mustDate(t, "2025-01-10"), []models.AttendanceUpdate{
		present(alice.ID, f.lunch.ID),
		present(9999),
	})
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}

	if _, err := models.MarkAttendance(f.ctx, mustDate(t, "2025-01-10"), nil); !utils.IsValidationError(err) {
		t.Fatalf("empty batch: got %v", err)
	}
}

func TestMarkAttendanceLenientEffectiveDate(t *testing.T) {
	f := newFixture(t)
	t.Setenv("STRICT_MENU_EFFECTIVE_DATE", "false")
	alice := mustCreateUser(t, f.ctx, "Alice", "alice@gmail.com", models.UserRoleStudent)
	future := mustCreateMenu(t, f.ctx, f.optional.ID, "Biryani", models.MenuCategoryFood, "200", "2025-03-01")

	res := mustMark(t, f.ctx, "2025-01-10", present(alice.ID, future.ID))
	if res.ItemsSelected != 1 {
		t.Fatalf("expected the future menu to be accepted, got %d items", res.ItemsSelected)
	}
}

func TestAttendanceSheetAndReport(t *testing.T) {
	f := newFixture(t)
	alice := mustCreateUser(t, f.ctx, "Alice", "alice@gmail.com", models.UserRoleStudent)
	bob := mustCreateUser(t, f.ctx, "Bob", "bob@gmail.com", models.UserRoleStudent)
	mustMark(t, f.ctx, "2025-01-10", present(alice.ID, f.water.ID, f.tea.ID, f.lunch.ID), present(bob.ID, f.water.ID, f.dinner.ID))
	mustMark(t, f.ctx, "2025-01-11", present(alice.ID, f.water.ID, f.dinner.ID), absent(bob.ID))

	sheet, err := models.GetAttendanceSheet(f.ctx, mustDate(t, "2025-01-10"))
	if err != nil {
		t.Fatalf("GetAttendanceSheet: %v", err)
	}
	if len(sheet.Students) != 2 {
		t.Fatalf("expected 2 students on the sheet, got %d", len(sheet.Students))
	}
	if sheet.Students[0].FullName != "Alice" || !sheet.Students[0].Marked || len(sheet.Students[0].SelectedMenuIds) != 3 {
		t.Fatalf("unexpected first row %+v", sheet.Students[0])
	}
	if len(sheet.Menus.Mandatory) != 2 || len(sheet.Menus.Optional) != 2 {
		t.Fatalf("unexpected menus on sheet")
	}

	unmarked, err := models.GetAttendanceSheet(f.ctx, mustDate(t, "2025-01-12"))
	if err != nil {
		t.Fatalf("GetAttendanceSheet: %v", err)
	}
	for _, row := range unmarked.Students {
		if row.Marked {
			t.Fatalf("row %d should be unmarked", row.UserId)
		}
	}

	report, err := models.GetAttendanceReport(f.ctx, mustDate(t, "2025-01-10"), mustDate(t, "2025-01-11"))
	if err != nil {
		t.Fatalf("GetAttendanceReport: %v", err)
	}
	if len(report.Rows) != 4 || report.PresentDays != 3 {
		t.Fatalf("rows %d present %d, want 4 and 3", len(report.Rows), report.PresentDays)
	}
	assertDecimal(t, "report total", report.TotalAmount, "466")
	if !report.Rows[0].Date.Equal(mustDate(t, "2025-01-11")) {
		t.Fatalf("report should be newest first, got %v", report.Rows[0].Date)
	}

	if _, err := models.GetAttendanceReport(f.ctx, mustDate(t, "2025-01-11"), mustDate(t, "2025-01-10")); !utils.IsValidationError(err) {
		t.Fatalf("inverted range: got %v", err)
	}
}

func TestDailyBill(t *testing.T) {
	f := newFixture(t)
	alice := mustCreateUser(t, f.ctx, "Alice", "alice@gmail.com", models.UserRoleStudent)
	mustMark(t, f.ctx, "2025-01-10", present(alice.ID, f.water.ID, f.tea.ID, f.lunch.ID))

	daily, err := models.GetDailyBill(f.ctx, alice.ID, mustDate(t, "2025-01-10"))
	if err != nil {
		t.Fatalf("GetDailyBill: %v", err)
	}
	if !daily.Marked || !daily.IsPresent || !daily.FoodTaken || len(daily.Items) != 3 {
		t.Fatalf("unexpected daily bill %+v", daily)
	}
	assertDecimal(t, "water/tea", daily.WaterTeaAmount, "25")
	assertDecimal(t, "food", daily.FoodAmount, "120")
	assertDecimal(t, "total", daily.TotalAmount, "145")

	empty, err := models.GetDailyBill(f.ctx, alice.ID, mustDate(t, "2025-01-11"))
	if err != nil {
		t.Fatalf("GetDailyBill: %v", err)
	}
	if empty.Marked || !empty.TotalAmount.IsZero() {
		t.Fatalf("unmarked day should be empty, got %+v", empty)
	}
}
