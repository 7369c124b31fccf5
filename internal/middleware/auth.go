package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iutils "prizedraw/internal/utils"
	"prizedraw/pkg/utils"
)

const (
	// AuthorizationHeader authentication header name
	AuthorizationHeader = "Authorization"
	// BearerPrefix bearer token prefix
	BearerPrefix = "Bearer "
	// UserIDKey context key for the authenticated user ID
	UserIDKey = "user_id"
	// UsernameKey context key for the authenticated username
	UsernameKey = "username"
	// UserRoleKey context key for the authenticated role
	UserRoleKey = "user_role"
)

// Auth validates the bearer token and stores the caller's identity on the
// gin context.
func Auth(jwtManager *iutils.JWTManager) gin.HandlerFunc {
	return authWith(jwtManager, "")
}

// RequireRole validates the token and additionally demands a role, used for
// the admin surface.
func RequireRole(jwtManager *iutils.JWTManager, role string) gin.HandlerFunc {
	return authWith(jwtManager, role)
}

func authWith(jwtManager *iutils.JWTManager, requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := extractClaims(c, jwtManager)
		if !ok {
			return
		}
		if requiredRole != "" && claims.Role != requiredRole {
			utils.Error(c, utils.CodeForbidden, "insufficient permissions")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Set(UserRoleKey, claims.Role)
		c.Next()
	}
}

func extractClaims(c *gin.Context, jwtManager *iutils.JWTManager) (*iutils.JWTClaims, bool) {
	header := c.GetHeader(AuthorizationHeader)
	if header == "" {
		utils.Error(c, utils.CodeUnauthorized, "missing authorization header")
		return nil, false
	}
	if !strings.HasPrefix(header, BearerPrefix) {
		utils.Error(c, utils.CodeUnauthorized, "invalid authorization header format")
		return nil, false
	}
	token := strings.TrimPrefix(header, BearerPrefix)
	if token == "" {
		utils.Error(c, utils.CodeUnauthorized, "missing token")
		return nil, false
	}

	claims, err := jwtManager.ValidateToken(token)
	if err != nil {
		utils.Error(c, utils.CodeUnauthorized, "invalid token")
		return nil, false
	}
	return claims, true
}

// GetUserID returns the authenticated user ID from the context.
func GetUserID(c *gin.Context) (uint64, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// GetUsername returns the authenticated username from the context.
func GetUsername(c *gin.Context) (string, bool) {
	v, exists := c.Get(UsernameKey)
	if !exists {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}
