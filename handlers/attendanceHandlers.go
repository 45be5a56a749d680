package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/messdesk/mess_backend/models"
	"github.com/messdesk/mess_backend/utils"
)

func attendanceSheetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := queryDate(c, "date", utils.Today())
		if !ok {
			return
		}
		sheet, err := models.GetAttendanceSheet(c.Request.Context(), date)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sheet)
	}
}

func markAttendanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.MarkAttendanceInput
		if !bindJSON(c, &input) {
			return
		}
		date, err := utils.ParseDate(input.Date)
		if err != nil {
			respondError(c, utils.NewValidationError("date", err.Error()))
			return
		}
		result, err := models.MarkAttendance(c.Request.Context(), date, input.Updates)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func attendanceReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, ok := queryDate(c, "from", time.Time{})
		if !ok {
			return
		}
		to, ok := queryDate(c, "to", time.Time{})
		if !ok {
			return
		}
		report, err := models.GetAttendanceReport(c.Request.Context(), from, to)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func myDailyBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := queryDate(c, "date", utils.Today())
		if !ok {
			return
		}
		bill, err := models.GetDailyBill(c.Request.Context(), currentUserId(c), date)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bill)
	}
}
