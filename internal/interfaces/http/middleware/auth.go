package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stylize.backend/internal/domain/entities"
	"stylize.backend/pkg/jwt"
)

const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
	// OwnerIDKey is the gin context key for the authenticated owner id
	OwnerIDKey = "ownerId"
	// AuthMethodKey is the gin context key for the scheme that signed in
	AuthMethodKey = "authMethod"
	// RoleKey is the gin context key for the principal's role
	RoleKey = "role"
)

// AuthMiddleware rejects requests without a valid bearer token and puts
// the token's owner id, auth method and role into the gin context
func AuthMiddleware(jwtService *jwt.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Authorization header is required",
			})
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid authorization format. Use: Bearer <token>",
			})
			return
		}

		claims, err := jwtService.ValidateToken(strings.TrimPrefix(authHeader, BearerPrefix))
		if err != nil {
			msg := "Invalid token"
			if err == jwt.ErrExpiredToken {
				msg = "Token has expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msg})
			return
		}

		c.Set(OwnerIDKey, claims.OwnerID)
		c.Set(AuthMethodKey, claims.AuthMethod)
		c.Set(RoleKey, claims.Role)

		c.Next()
	}
}

// RequireAdmin aborts unless AuthMiddleware stored the admin role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleKey) != entities.UserRoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message": "admin role required",
			})
			return
		}
		c.Next()
	}
}

// GetOwnerID gets the authenticated owner id from context
func GetOwnerID(c *gin.Context) (string, bool) {
	ownerID := c.GetString(OwnerIDKey)
	return ownerID, ownerID != ""
}
