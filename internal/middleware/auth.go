package middleware

import (
	"net/http"
	"strings"

	"securetalk/config"
	"securetalk/internal/auth"

	"github.com/gin-gonic/gin"
)

// SessionToucher records activity on the session a token is bound to.
type SessionToucher interface {
	Touch(sessionID string) error
}

// AuthRequired validates the JWT and sets user_id, email, roles and
// session_id in context. When a toucher is given, every authenticated
// request bumps the session's activity clock.
func AuthRequired(cfg *config.JWTConfig, toucher SessionToucher) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("roles", claims.Roles)
		c.Set("session_id", claims.SessionID)
		if toucher != nil && claims.SessionID != "" {
			// best effort; an idle-expired session just stops being touched
			_ = toucher.Touch(claims.SessionID)
		}
		c.Next()
	}
}

// RequireRole checks that the authenticated user holds one of the allowed roles.
func RequireRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, exists := c.Get("roles")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		held := strings.Split(roles.(string), ",")
		for _, a := range allowed {
			for _, h := range held {
				if strings.TrimSpace(h) == a {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// GetUserID returns the authenticated user ID from context (must be used after AuthRequired).
func GetUserID(c *gin.Context) uint {
	v, _ := c.Get("user_id")
	if v == nil {
		return 0
	}
	return v.(uint)
}

// GetSessionID returns the session bound to the access token, if any.
func GetSessionID(c *gin.Context) string {
	v, _ := c.Get("session_id")
	if v == nil {
		return ""
	}
	return v.(string)
}
