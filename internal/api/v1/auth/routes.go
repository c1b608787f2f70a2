package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/syy-ex/hair-makeover/internal/middleware"
)

func RegisterRoutes(router *gin.RouterGroup, h *Handler) {
	auth := router.Group("/auth")
	auth.POST("/request-code", h.RequestCode)
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/logout", middleware.OptionalAuth(h.auth), h.Logout)
	auth.GET("/me", middleware.OptionalAuth(h.auth), h.Me)
}
