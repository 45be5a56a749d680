package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/messdesk/mess_backend/models"
	"github.com/messdesk/mess_backend/models/reports"
	"github.com/messdesk/mess_backend/utils"
)

func generateBillsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.GenerateBillsInput
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.GenerateMonthlyBills(c.Request.Context(), input.Month, input.Year)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func listBillsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		month, year, ok := monthYear(c, false)
		if !ok {
			return
		}
		filter := models.BillFilter{Month: month, Year: year}
		if raw := c.Query("status"); raw != "" {
			status := models.BillStatus(raw)
			if !status.IsValid() {
				respondError(c, utils.NewValidationError("status", "unknown bill status"))
				return
			}
			filter.Status = &status
		}
		bills, err := models.ListBills(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bills)
	}
}

func exportBillsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		month, year, ok := monthYear(c, false)
		if !ok {
			return
		}
		var buf bytes.Buffer
		if err := reports.WriteMonthlyBillsXlsx(c.Request.Context(), month, year, &buf); err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+reports.BillExportFilename(month, year)+`"`)
		c.Data(http.StatusOK, reports.XlsxContentType, buf.Bytes())
	}
}

func pendingApprovalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		month, year, ok := monthYear(c, false)
		if !ok {
			return
		}
		bills, err := models.ListBillsForApproval(c.Request.Context(), month, year)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bills)
	}
}

func getBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		bill, err := models.GetBill(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bill)
	}
}

func approveBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		bill, err := models.ApproveBill(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bill)
	}
}

func disputeBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		var input models.DisputeInput
		if !bindJSON(c, &input) {
			return
		}
		bill, err := models.DisputeBill(c.Request.Context(), id, &input, currentUserId(c), isAdmin(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bill)
	}
}

func recordPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		var input models.NewPayment
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.RecordPayment(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func payableBillsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bills, err := models.ListPayableBills(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bills)
	}
}

func myBillsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bills, err := models.GetUserBills(c.Request.Context(), currentUserId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bills)
	}
}

func myMonthlyBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		month, year, ok := monthYear(c, true)
		if !ok {
			return
		}
		bill, err := models.GetMonthlyBill(c.Request.Context(), currentUserId(c), month, year)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bill)
	}
}

func adminDashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		dash, err := models.GetAdminDashboard(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dash)
	}
}

func studentDashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		dash, err := models.GetStudentDashboard(c.Request.Context(), currentUserId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dash)
	}
}

func listBillEventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.OutboxPublishStatus
		if raw := c.Query("status"); raw != "" {
			s := models.OutboxPublishStatus(raw)
			status = &s
		}
		billId, _ := strconv.Atoi(c.Query("bill_id"))
		limit, _ := strconv.Atoi(c.Query("limit"))
		events, err := models.ListBillEvents(c.Request.Context(), billId, status, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

func replayBillEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		event, err := models.ReplayBillEvent(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}
