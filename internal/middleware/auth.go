package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/syy-ex/hair-makeover/internal/models"
	"github.com/syy-ex/hair-makeover/internal/utils"
	"github.com/syy-ex/hair-makeover/pkg/logger"
	"go.uber.org/zap"
)

const (
	userKey  = "user"
	tokenKey = "sessionToken"
)

// SessionResolver maps a session token to its user, or nil when the token
// is unknown or expired.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*models.User, error)
}

// AuthMiddleware rejects requests without a valid session.
func AuthMiddleware(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !resolve(c, resolver) {
			return
		}
		if CurrentUser(c) == nil {
			utils.AbortWithError(c, http.StatusUnauthorized, "Please log in first")
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid session is present and lets
// anonymous requests through.
func OptionalAuth(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !resolve(c, resolver) {
			return
		}
		c.Next()
	}
}

func resolve(c *gin.Context, resolver SessionResolver) bool {
	token := utils.ExtractToken(c)
	if token == "" {
		return true
	}
	c.Set(tokenKey, token)

	user, err := resolver.ResolveSession(c.Request.Context(), token)
	if err != nil {
		logger.Log.Error("Failed to resolve session", zap.Error(err))
		utils.AbortWithError(c, http.StatusInternalServerError, "Failed to check session")
		return false
	}
	if user != nil {
		c.Set(userKey, user)
	}
	return true
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// SessionToken returns the raw token of the current request, if any.
func SessionToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
