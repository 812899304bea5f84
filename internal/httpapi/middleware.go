package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// securityHeaders sets standard security response headers, grounded on
// the teacher's pkg/api/middleware.go securityHeaders middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Next()
	}
}

// userContext reads the caller's identity off X-User-ID (and an optional
// X-Is-Admin flag) and stores it on the gin context. A real auth system
// (sessions, JWTs, invite codes) is explicitly out of scope (spec §1
// Non-goals): this project's HTTP surface is "a caller that creates tasks
// and reads their status", so it trusts whatever identity the caller
// asserts rather than verifying one itself.
func userContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-User-ID header"})
			return
		}
		c.Set("user_id", userID)
		c.Set("is_admin", c.GetHeader("X-Is-Admin") == "true")
		c.Next()
	}
}

func callerUserID(c *gin.Context) int64 {
	return c.MustGet("user_id").(int64)
}

func callerIsAdmin(c *gin.Context) bool {
	return c.GetBool("is_admin")
}
