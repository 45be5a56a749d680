package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/messdesk/mess_backend/models"
	"github.com/messdesk/mess_backend/utils"
)

// respondError maps domain errors onto HTTP status codes. Anything it does not
// recognise is logged through c.Error and reported as a 500.
func respondError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &ve), utils.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": utils.ProcessValidationErrors(err),
		})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInactiveAccount), errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case models.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrMenuNotEffective),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrCannotDeleteSelf):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// bindJSON binds the body and writes a 400 on failure.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "invalid request",
			"fields": utils.ProcessValidationErrors(err),
		})
		return false
	}
	return true
}

func paramId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// queryDate reads a YYYY-MM-DD query parameter, falling back to def when absent.
func queryDate(c *gin.Context, name string, def time.Time) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	d, err := utils.ParseDate(raw)
	if err != nil {
		respondError(c, utils.NewValidationError(name, err.Error()))
		return time.Time{}, false
	}
	return d, true
}

// monthYear reads month and year from query or path parameters, defaulting
// to the current month.
func monthYear(c *gin.Context, fromPath bool) (int, int, bool) {
	get := c.Query
	if fromPath {
		get = c.Param
	}
	now := time.Now().UTC()
	month, year := int(now.Month()), now.Year()
	if raw := get("month"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, utils.NewValidationError("month", "must be a number"))
			return 0, 0, false
		}
		month = v
	}
	if raw := get("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, utils.NewValidationError("year", "must be a number"))
			return 0, 0, false
		}
		year = v
	}
	if err := utils.ValidateMonthYear(month, year); err != nil {
		respondError(c, err)
		return 0, 0, false
	}
	return month, year, true
}

func currentUserId(c *gin.Context) int {
	return utils.ActorFromContext(c.Request.Context())
}

func isAdmin(c *gin.Context) bool {
	role, _ := utils.GetRoleFromContext(c.Request.Context())
	return role == string(models.UserRoleAdmin)
}
