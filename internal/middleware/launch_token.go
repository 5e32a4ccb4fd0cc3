package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/apexam/assess-backend/internal/response"
	"github.com/apexam/assess-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// ContextKeyLaunchClaims is the Gin context key for validated launch claims.
const ContextKeyLaunchClaims = "launch_claims"

// RequireLaunchToken validates the player launch token on callback routes.
// The player sends the token it was handed at launch, either as a Bearer
// header or as a ?token= query param (some player embeds cannot set headers).
func RequireLaunchToken(launchService *service.LaunchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := launchService.ValidateToken(tokenStr)
		if err != nil {
			code := response.ErrTokenInvalid
			if errors.Is(err, service.ErrTokenExpired) {
				code = response.ErrTokenExpired
			}
			response.AbortFail(c, http.StatusUnauthorized, code)
			return
		}

		c.Set(ContextKeyLaunchClaims, claims)
		c.Next()
	}
}

// GetLaunchClaims retrieves validated launch claims from the Gin context.
func GetLaunchClaims(c *gin.Context) *service.LaunchClaims {
	val, exists := c.Get(ContextKeyLaunchClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.LaunchClaims)
	if !ok {
		return nil
	}
	return claims
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}
