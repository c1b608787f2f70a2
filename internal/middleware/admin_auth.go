package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/syy-ex/hair-makeover/internal/models"
	"github.com/syy-ex/hair-makeover/internal/utils"
	"github.com/syy-ex/hair-makeover/pkg/logger"
	"go.uber.org/zap"
)

// AdminChecker decides admin privilege from the configured allow-list.
type AdminChecker interface {
	AdminConfigured() bool
	IsAdmin(user *models.User) bool
}

// AdminAuthMiddleware validates that the user has admin privileges. It must
// run after AuthMiddleware.
func AdminAuthMiddleware(checker AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			utils.AbortWithError(c, http.StatusUnauthorized, "Please log in first")
			return
		}
		if !checker.AdminConfigured() {
			utils.AbortWithError(c, http.StatusInternalServerError, "Admin emails are not configured")
			return
		}
		if !checker.IsAdmin(user) {
			logger.Log.Warn("Unauthorized admin access attempt",
				zap.String("user_id", user.ID),
				zap.String("path", c.Request.URL.Path),
			)
			utils.AbortWithError(c, http.StatusForbidden, "Forbidden: Admins only")
			return
		}
		c.Next()
	}
}
