// README: Auth middleware (Firebase bearer tokens; X-User-ID header when auth is not configured).
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wayfarer/internal/infra"
)

const (
	callerUIDKey  = "caller_uid"
	callerRoleKey = "caller_role"

	// UserIDHeader carries the caller uid when no verifier is configured (local and single-user deployments).
	UserIDHeader = "X-User-ID"
)

// Auth authenticates the caller. With a nil verifier the uid is taken from UserIDHeader, unverified.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	if verifier == nil {
		return func(c *gin.Context) {
			if uid := strings.TrimSpace(c.GetHeader(UserIDHeader)); uid != "" {
				c.Set(callerUIDKey, uid)
			}
			c.Next()
		}
	}
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil || token == nil || token.UID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(callerUIDKey, token.UID)
		if role, ok := token.Claims["role"].(string); ok {
			c.Set(callerRoleKey, role)
		}
		c.Next()
	}
}

// CallerUID returns the authenticated uid, or "" when none was supplied.
func CallerUID(c *gin.Context) string {
	return c.GetString(callerUIDKey)
}

// CallerRole returns the "role" custom claim, if any.
func CallerRole(c *gin.Context) string {
	return c.GetString(callerRoleKey)
}
