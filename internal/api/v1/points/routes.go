package points

import "github.com/gin-gonic/gin"

// RegisterRoutes expects r to be behind AuthMiddleware.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	points := r.Group("/points")
	points.GET("", h.GetBalance)
	points.GET("/ledger", h.GetLedger)
}
