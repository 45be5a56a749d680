package models_test

import (
	"testing"

	"github.com/messdesk/mess_backend/models"
	"github.com/shopspring/decimal"
)

func TestDashboards(t *testing.T) {
	f := newBillingFixture(t)
	if _, err := models.GenerateMonthlyBills(f.ctx, 1, 2025); err != nil {
		t.Fatalf("GenerateMonthlyBills: %v", err)
	}

	admin, err := models.GetAdminDashboard(f.ctx)
	if err != nil {
		t.Fatalf("GetAdminDashboard: %v", err)
	}
	if admin.TotalUsers != 3 || admin.TotalStudents != 2 || admin.ActiveMenuItems != 4 {
		t.Fatalf("unexpected counts %+v", admin)
	}
	if admin.PendingBills != 2 || admin.UnpaidBills != 2 {
		t.Fatalf("unexpected bill counts %+v", admin)
	}
	assertDecimal(t, "revenue before payment", admin.TotalRevenue, "0")

	bob := f.monthlyBill(t, f.bob.ID)
	if _, err := models.ApproveBill(f.ctx, bob.ID); err != nil {
		t.Fatalf("ApproveBill: %v", err)
	}
	if _, err := models.RecordPayment(f.ctx, bob.ID, &models.NewPayment{Amount: decimal.RequireFromString("160.50"), PaymentMethod: "Bank Transfer"}); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	admin, err = models.GetAdminDashboard(f.ctx)
	if err != nil {
		t.Fatalf("GetAdminDashboard: %v", err)
	}
	if admin.PendingBills != 1 || admin.UnpaidBills != 1 {
		t.Fatalf("unexpected bill counts after payment %+v", admin)
	}
	assertDecimal(t, "total revenue", admin.TotalRevenue, "160.50")
	// the payment is dated today
	assertDecimal(t, "monthly revenue", admin.MonthlyRevenue, "160.50")

	student, err := models.GetStudentDashboard(f.ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("GetStudentDashboard: %v", err)
	}
	if student.ActiveGroups != 1 || student.UnpaidBills != 1 {
		t.Fatalf("unexpected student dashboard %+v", student)
	}
	assertDecimal(t, "outstanding", student.OutstandingBalance, "305.50")
	if student.CurrentMonthBill != nil {
		t.Fatalf("no bill exists for the current month")
	}

	paid, err := models.GetStudentDashboard(f.ctx, f.bob.ID)
	if err != nil {
		t.Fatalf("GetStudentDashboard: %v", err)
	}
	if paid.UnpaidBills != 0 || !paid.OutstandingBalance.IsZero() {
		t.Fatalf("paid student should owe nothing, got %+v", paid)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx, _ := setupTestDB(t)
	opts := models.SeedOptions{AdminEmail: "warden@gmail.com", AdminPassword: "Adm1nPass", AdminName: "Warden", DemoStudents: 2}

	first, err := models.Seed(ctx, opts)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if first.GroupsCreated != 2 || !first.AdminCreated || first.StudentsCreated != 2 || first.MenusCreated != 7 {
		t.Fatalf("unexpected first seed %+v", first)
	}

	second, err := models.Seed(ctx, opts)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if second.GroupsCreated != 0 || second.AdminCreated || second.StudentsCreated != 0 || second.MenusCreated != 0 {
		t.Fatalf("second seed should create nothing, got %+v", second)
	}

	groups, err := models.GetUserMessGroups(ctx, 3)
	if err != nil {
		t.Fatalf("GetUserMessGroups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("even numbered demo students also take meals, got %d groups", len(groups))
	}
}
