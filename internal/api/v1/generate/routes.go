package generate

import "github.com/gin-gonic/gin"

// RegisterRoutes expects r to be behind AuthMiddleware.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("/generate", h.Generate)
}
