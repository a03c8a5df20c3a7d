package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"speech-backend/internal/shared/auth"
	"speech-backend/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	userSubKey   = "userSub"
	userEmailKey = "userEmail"
)

// Auth verifies the bearer token and stores the caller's identity in context.
func Auth(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		if verifier == nil {
			respond.Error(c, http.StatusServiceUnavailable, "auth_unavailable", "token verification not configured", nil)
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(userIDKey, claims.Identity())
		if claims.Sub != "" {
			c.Set(userSubKey, claims.Sub)
		}
		if claims.Email != "" {
			c.Set(userEmailKey, claims.Email)
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// UserIDFromContext fetches the identity set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userIDKey)
}

// UserSubFromContext fetches the token subject set by the auth middleware.
func UserSubFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userSubKey)
}

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userEmailKey)
}
