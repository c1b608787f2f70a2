package recharge

import "github.com/gin-gonic/gin"

func RegisterRoutes(public, authorized *gin.RouterGroup, h *Handler) {
	// Gateway callback, authenticated by its signature.
	public.POST("/recharge/notify", h.Notify)
	public.GET("/recharge/notify", h.Notify)

	recharge := authorized.Group("/recharge")
	recharge.POST("", h.CreateRecharge)
	recharge.GET("", h.ListRecharges)
	recharge.GET("/:id", h.GetRecharge)
}
