package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/models"
	"github.com/messdesk/mess_backend/utils"
)

type authString string

const tokenCookie = "token"

func bearerToken(c *gin.Context) string {
	if auth := c.Request.Header.Get("Authorization"); auth != "" {
		const bearer = "Bearer "
		if len(auth) > len(bearer) && strings.EqualFold(auth[:len(bearer)], bearer) {
			return strings.TrimSpace(auth[len(bearer):])
		}
		return ""
	}
	if token := c.Request.Header.Get("token"); token != "" {
		return token
	}
	if cookie, err := c.Cookie(tokenCookie); err == nil {
		return cookie
	}
	return ""
}

// AuthMiddleware attaches the caller's claims when a token is present.
// Requests without a token pass through; RequireAuth decides whether that is allowed.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := utils.JwtClaims(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		revoked, err := models.IsTokenRevoked(c.Request.Context(), claims.Id)
		if err != nil {
			config.LogError(config.GetLogger(), "AuthMiddleware", "IsTokenRevoked", "lookup deny list", claims.Id, err)
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has been revoked"})
			return
		}

		ctx := context.WithValue(c.Request.Context(), authString("auth"), claims)
		ctx = utils.SetTokenInContext(ctx, token)
		ctx = utils.SetTokenIdInContext(ctx, claims.Id)
		ctx = utils.SetUserIdInContext(ctx, claims.ID)
		ctx = utils.SetUsernameInContext(ctx, claims.Subject)
		ctx = utils.SetRoleInContext(ctx, claims.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func CtxValue(ctx context.Context) *utils.JwtCustomClaim {
	raw, _ := ctx.Value(authString("auth")).(*utils.JwtCustomClaim)
	return raw
}

// RequireAuth rejects anonymous callers and accounts that were deactivated
// after their token was issued.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CtxValue(c.Request.Context())
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		user, err := models.GetUser(c.Request.Context(), claims.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !user.Active() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": models.ErrInactiveAccount.Error()})
			return
		}
		ctx := utils.SetUserNameInContext(c.Request.Context(), user.FullName)
		ctx = utils.SetRoleInContext(ctx, string(user.Role))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, _ := utils.GetRoleFromContext(c.Request.Context())
		if current != string(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
