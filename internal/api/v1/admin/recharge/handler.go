package recharge

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	rechargeapi "github.com/syy-ex/hair-makeover/internal/api/v1/recharge"
	"github.com/syy-ex/hair-makeover/internal/middleware"
	"github.com/syy-ex/hair-makeover/internal/models"
	"github.com/syy-ex/hair-makeover/internal/services"
	"github.com/syy-ex/hair-makeover/internal/utils"
	"github.com/syy-ex/hair-makeover/pkg/logger"
	"go.uber.org/zap"
)

type Handler struct {
	recharge *services.RechargeService
}

func NewHandler(recharge *services.RechargeService) *Handler {
	return &Handler{recharge: recharge}
}

// ListOrders 管理员查看充值订单，status 不合法时忽略筛选
func (h *Handler) ListOrders(c *gin.Context) {
	var filter *models.OrderStatus
	if status, ok := models.ParseOrderStatus(c.Query("status")); ok {
		filter = &status
	}

	ctx := c.Request.Context()
	orders, err := h.recharge.ListOrders(ctx, filter)
	if err != nil {
		logger.Log.Error("Failed to list recharge orders", zap.Error(err))
		utils.AbortWithError(c, http.StatusInternalServerError, "Failed to list recharge orders")
		return
	}
	emails, err := h.recharge.OwnerEmails(ctx, orders)
	if err != nil {
		logger.Log.Error("Failed to load order owners", zap.Error(err))
		utils.AbortWithError(c, http.StatusInternalServerError, "Failed to list recharge orders")
		return
	}

	resp := AdminOrderListResponse{Orders: make([]AdminOrderResponse, 0, len(orders))}
	for i := range orders {
		o := &orders[i]
		email, ok := emails[o.UserID]
		if !ok {
			email = UnknownUserEmail
		}
		resp.Orders = append(resp.Orders, AdminOrderResponse{
			OrderResponse:   rechargeapi.ToOrderResponse(o),
			UserID:          o.UserID,
			UserEmail:       email,
			Provider:        string(o.Provider),
			ProviderTradeNo: o.ProviderTradeNo,
		})
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", resp))
}

// ReviewOrder 管理员审核订单：approve 入账，reject 拒绝
func (h *Handler) ReviewOrder(c *gin.Context) {
	var req ReviewRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	decision, err := services.ParseDecision(req.Action)
	if err != nil {
		utils.AbortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.recharge.Settle(c.Request.Context(), strings.TrimSpace(req.OrderID), decision, strings.TrimSpace(req.Note))
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			utils.AbortWithError(c, http.StatusNotFound, "Order owner no longer exists")
			return
		}
		logger.Log.Error("Failed to settle recharge order", zap.String("order_id", req.OrderID), zap.Error(err))
		utils.AbortWithError(c, http.StatusInternalServerError, "Failed to settle recharge order")
		return
	}
	if order == nil {
		utils.AbortWithError(c, http.StatusNotFound, services.ErrOrderNotFound.Error())
		return
	}

	admin := middleware.CurrentUser(c)
	logger.Log.Info("Recharge order reviewed",
		zap.String("order_id", order.ID),
		zap.String("admin_id", admin.ID),
		zap.String("action", req.Action),
		zap.String("status", string(order.Status)),
	)
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", rechargeapi.OrderEnvelope{
		Order: rechargeapi.ToOrderResponse(order),
	}))
}
