package reports

import (
	"context"
	"fmt"
	"io"

	"github.com/messdesk/mess_backend/models"
	"github.com/messdesk/mess_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const XlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var billExportHeaders = []string{
	"Student", "Email", "Status", "Water & Tea", "Food", "Total", "Paid", "Balance",
}

func BillExportFilename(month int, year int) string {
	return fmt.Sprintf("bills-%04d-%02d.xlsx", year, month)
}

// WriteMonthlyBillsXlsx writes one row per bill for the period followed by a
// totals row.
func WriteMonthlyBillsXlsx(ctx context.Context, month int, year int, w io.Writer) error {
	if err := utils.ValidateMonthYear(month, year); err != nil {
		return err
	}
	bills, err := models.ListBills(ctx, models.BillFilter{Month: month, Year: year})
	if err != nil {
		return err
	}
	f, err := buildBillWorkbook(month, year, bills)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func buildBillWorkbook(month int, year int, bills []*models.BillSummary) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := fmt.Sprintf("Bills %04d-%02d", year, month)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, h := range billExportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}

	waterTea, food, total, paid, balance := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	row := 2
	for _, b := range bills {
		email := ""
		if b.User != nil {
			email = b.User.Email
		}
		values := []interface{}{
			b.UserFullName,
			email,
			string(b.Status),
			b.WaterTeaAmount.InexactFloat64(),
			b.FoodAmount.InexactFloat64(),
			b.TotalAmount.InexactFloat64(),
			b.TotalPaid.InexactFloat64(),
			b.Balance.InexactFloat64(),
		}
		if err := setRow(f, sheet, row, values); err != nil {
			return nil, err
		}
		waterTea = waterTea.Add(b.WaterTeaAmount)
		food = food.Add(b.FoodAmount)
		total = total.Add(b.TotalAmount)
		paid = paid.Add(b.TotalPaid)
		balance = balance.Add(b.Balance)
		row++
	}

	if err := setRow(f, sheet, row, []interface{}{
		"Total", "", "",
		waterTea.InexactFloat64(), food.InexactFloat64(), total.InexactFloat64(),
		paid.InexactFloat64(), balance.InexactFloat64(),
	}); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(sheet, "A", "B", 28)
	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
