package middlewares

import (
	"net/http"
	"strings"
	"time"

	"handoff-gateway/internal/api/interfaces"
	"handoff-gateway/internal/api/models"
	"handoff-gateway/internal/session"

	"github.com/gin-gonic/gin"
)

const sessionClaimsKey = "session_claims"

// LoadSession reads the caller's session claims, if any, into the context.
// It never rejects a request: handlers decide what a missing session means.
func LoadSession(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := services.SessionReader().Read(c.Request)
		if claims != nil {
			c.Set(sessionClaimsKey, claims)
			c.Set("user_id", claims.UserID)
			if claims.Impersonating {
				c.Set("impersonating", true)
			}
		}
		c.Next()
	}
}

// GetSessionClaims returns the claims loaded by LoadSession, or nil
func GetSessionClaims(c *gin.Context) *session.Claims {
	value, exists := c.Get(sessionClaimsKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*session.Claims)
	return claims
}

// CallbackAuthRequired protects the session-establishment callback with the
// configured bearer token. The callback returns HttpOnly cookie values, so it
// is closed when no token is configured.
func CallbackAuthRequired(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := services.AuthService().ValidateCallbackToken(extractToken(c)); err != nil {
			GetLogger(c, services.GetLogger()).SecurityEvent("callback_auth_failed", "", err.Error())
			c.JSON(http.StatusUnauthorized, models.BaseResponse{
				Success: false,
				Error: &models.ErrorInfo{
					Code:    models.ErrCodeInvalidToken,
					Message: "Invalid or missing callback token",
				},
				Timestamp: time.Now().Unix(),
				RequestID: c.GetString("request_id"),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractToken extracts the bearer token from the Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}
