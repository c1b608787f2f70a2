package recharge

import "github.com/gin-gonic/gin"

// RegisterRoutes expects admin to be behind AuthMiddleware and
// AdminAuthMiddleware.
func RegisterRoutes(admin *gin.RouterGroup, h *Handler) {
	admin.GET("/recharge", h.ListOrders)
	admin.POST("/recharge", h.ReviewOrder)
}
