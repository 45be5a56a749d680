package handlers

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/messdesk/mess_backend/middlewares"
	"github.com/messdesk/mess_backend/models"
	"github.com/messdesk/mess_backend/utils"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func secureCookies() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

func registerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.RegisterInput
		if !bindJSON(c, &input) {
			return
		}
		user, err := models.Register(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !bindJSON(c, &req) {
			return
		}
		info, err := models.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		maxAge := int(time.Until(info.ExpiresAt).Seconds())
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie("token", info.Token, maxAge, "/", "", secureCookies(), true)
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := middlewares.CtxValue(c.Request.Context()); claims != nil {
			expiresAt := time.Unix(claims.ExpiresAt, 0)
			if err := models.Logout(c.Request.Context(), claims.Id, expiresAt); err != nil {
				respondError(c, err)
				return
			}
		}
		c.SetCookie("token", "", -1, "/", "", secureCookies(), true)
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := models.GetUser(c.Request.Context(), currentUserId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func updateProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.UpdateProfileInput
		if !bindJSON(c, &input) {
			return
		}
		user, err := models.UpdateProfile(c.Request.Context(), currentUserId(c), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func changePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.ChangePasswordInput
		if !bindJSON(c, &input) {
			return
		}
		if err := models.ChangePassword(c.Request.Context(), currentUserId(c), &input); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "password changed"})
	}
}

func listUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var role *models.UserRole
		if raw := c.Query("role"); raw != "" {
			r, err := models.ParseUserRole(raw)
			if err != nil {
				respondError(c, utils.NewValidationError("role", err.Error()))
				return
			}
			role = &r
		}
		users, err := models.ListUsers(c.Request.Context(), role)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if !bindJSON(c, &input) {
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func toggleUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		if id == currentUserId(c) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "you cannot deactivate your own account"})
			return
		}
		user, err := models.ToggleUserStatus(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func deleteUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		if err := models.DeleteUser(c.Request.Context(), currentUserId(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
	}
}
