package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/models"
	"github.com/ukuvago/angelmatch/internal/services"
)

const (
	ctxUserID    = "userID"
	ctxUserEmail = "userEmail"
	ctxUserRole  = "userRole"
)

// abort writes err in the API error shape and stops the chain.
func abort(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	c.AbortWithStatusJSON(apperr.HTTPStatus(code), gin.H{"error": apperr.Message(err), "code": code})
}

func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// AuthMiddleware validates JWT tokens
func AuthMiddleware(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			abort(c, apperr.New(apperr.CodeUnauthorized, "Authorization header required"))
			return
		}
		token, ok := bearerToken(c)
		if !ok {
			abort(c, apperr.New(apperr.CodeUnauthorized, "Invalid authorization format"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abort(c, apperr.New(apperr.CodeUnauthorized, "Invalid or expired token"))
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserEmail, claims.Email)
		c.Set(ctxUserRole, claims.Role)
		c.Next()
	}
}

// OptionalAuthMiddleware sets the user when a valid token is present and never rejects.
func OptionalAuthMiddleware(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := authService.ValidateToken(token); err == nil {
				c.Set(ctxUserID, claims.UserID)
				c.Set(ctxUserEmail, claims.Email)
				c.Set(ctxUserRole, claims.Role)
			}
		}
		c.Next()
	}
}

// RequireRole ensures the user has one of roles
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRole(c)
		if !ok {
			abort(c, apperr.New(apperr.CodeUnauthorized, "Authentication required"))
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		abort(c, apperr.New(apperr.CodeForbidden, "Insufficient permissions"))
	}
}

func RequireInvestor() gin.HandlerFunc {
	return RequireRole(models.RoleInvestor)
}

func RequireDeveloper() gin.HandlerFunc {
	return RequireRole(models.RoleDeveloper)
}

func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ctxUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// GetUserRole extracts user role from context
func GetUserRole(c *gin.Context) (models.UserRole, bool) {
	v, exists := c.Get(ctxUserRole)
	if !exists {
		return "", false
	}
	role, ok := v.(models.UserRole)
	return role, ok
}

// GetActor bundles the caller for service calls.
func GetActor(c *gin.Context) services.Actor {
	id, _ := GetUserID(c)
	role, _ := GetUserRole(c)
	return services.Actor{ID: id, Role: role, IP: c.ClientIP()}
}
