package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func line(userId int, day int, menuId int, mandatory bool, price string) ChargeLine {
	return ChargeLine{
		UserId:           userId,
		Date:             time.Date(2025, time.January, day, 0, 0, 0, 0, time.UTC),
		MenuId:           menuId,
		ItemName:         "item",
		GroupName:        "group",
		IsMandatory:      mandatory,
		PriceAtSelection: decimal.RequireFromString(price),
		Quantity:         1,
	}
}

func TestComputeBillSplitsByGroup(t *testing.T) {
	comp := ComputeBill([]ChargeLine{
		line(1, 1, 1, true, "10"),
		line(1, 1, 3, false, "120"),
		line(1, 2, 2, true, "15"),
		line(1, 2, 4, false, "150.50"),
	})
	if !comp.WaterTeaAmount.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("water/tea = %s", comp.WaterTeaAmount)
	}
	if !comp.FoodAmount.Equal(decimal.RequireFromString("270.50")) {
		t.Fatalf("food = %s", comp.FoodAmount)
	}
	if !comp.TotalAmount.Equal(comp.FoodAmount.Add(comp.WaterTeaAmount)) {
		t.Fatalf("total %s is not food + water/tea", comp.TotalAmount)
	}
	sum := decimal.Zero
	for _, d := range comp.Details {
		sum = sum.Add(d.Amount)
	}
	if !sum.Equal(comp.TotalAmount) || len(comp.Details) != 4 {
		t.Fatalf("details do not add up: %s over %d lines", sum, len(comp.Details))
	}
	if comp.Details[0].Description != "item (group)" {
		t.Fatalf("description = %q", comp.Details[0].Description)
	}
}

func TestComputeBillQuantityAndEmpty(t *testing.T) {
	l := line(1, 3, 1, false, "12.25")
	l.Quantity = 2
	comp := ComputeBill([]ChargeLine{l})
	if !comp.FoodAmount.Equal(decimal.RequireFromString("24.50")) {
		t.Fatalf("food = %s", comp.FoodAmount)
	}

	empty := ComputeBill(nil)
	if !empty.IsEmpty() || !empty.TotalAmount.IsZero() || len(empty.Details) != 0 {
		t.Fatalf("empty input should produce an empty bill, got %+v", empty)
	}
}

func TestGroupLinesByUser(t *testing.T) {
	ids, byUser := groupLinesByUser([]ChargeLine{
		line(7, 1, 1, true, "10"),
		line(3, 1, 1, true, "10"),
		line(7, 2, 3, false, "50"),
	})
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 7 {
		t.Fatalf("user ids = %v", ids)
	}
	if len(byUser[7]) != 2 || byUser[7][1].MenuId != 3 {
		t.Fatalf("lines for user 7 out of order: %+v", byUser[7])
	}
}

func TestCanTransitionTo(t *testing.T) {
	allowed := map[BillStatus][]BillStatus{
		BillStatusPending:   {BillStatusGenerated, BillStatusDisputed},
		BillStatusGenerated: {BillStatusApproved, BillStatusDisputed},
		BillStatusApproved:  {BillStatusPaid, BillStatusDisputed},
		BillStatusPaid:      {BillStatusDisputed},
		BillStatusDisputed:  {},
	}
	all := []BillStatus{BillStatusPending, BillStatusGenerated, BillStatusApproved, BillStatusPaid, BillStatusDisputed}
	for from, targets := range allowed {
		ok := map[BillStatus]bool{}
		for _, to := range targets {
			ok[to] = true
		}
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != ok[to] {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, ok[to])
			}
		}
	}
}

func TestGenerationMessage(t *testing.T) {
	cases := []struct {
		in   GenerateBillsResult
		want string
	}{
		{
			GenerateBillsResult{Month: 1, Year: 2025, Created: 2, Updated: 1, TotalAmount: decimal.RequireFromString("466.5")},
			"Bills generated for January 2025. Created: 2. Updated: 1. Total Amount: Rs 466.50",
		},
		{
			GenerateBillsResult{Month: 2, Year: 2025},
			"No attendance records found for February 2025.",
		},
		{
			GenerateBillsResult{Month: 2, Year: 2025, Locked: 3},
			"All 3 bills for February 2025 are already paid.",
		},
		{
			GenerateBillsResult{Month: 12, Year: 2024, Updated: 1, Locked: 1, TotalAmount: decimal.NewFromInt(10)},
			"Bills generated for December 2024. Created: 0. Updated: 1. Total Amount: Rs 10.00. Skipped 1 paid bills",
		},
		{
			GenerateBillsResult{Month: 1, Year: 2025, Updated: 2, Settled: 1, TotalAmount: decimal.NewFromInt(145)},
			"Bills generated for January 2025. Created: 0. Updated: 2. Total Amount: Rs 145.00. Marked 1 covered bills as paid",
		},
	}
	for _, c := range cases {
		if got := generationMessage(c.in); got != c.want {
			t.Errorf("generationMessage(%+v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsConflict(t *testing.T) {
	for _, err := range []error{ErrDuplicateEmail, ErrInvalidTransition, ErrBillAlreadyPaid, ErrConcurrentUpdate} {
		if !IsConflict(err) {
			t.Errorf("%v should be a conflict", err)
		}
	}
	if IsConflict(ErrInvalidAmount) || IsConflict(nil) {
		t.Errorf("ErrInvalidAmount and nil are not conflicts")
	}
}
