package recharge

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/syy-ex/hair-makeover/internal/middleware"
	"github.com/syy-ex/hair-makeover/internal/models"
	"github.com/syy-ex/hair-makeover/internal/payment"
	"github.com/syy-ex/hair-makeover/internal/services"
	"github.com/syy-ex/hair-makeover/internal/utils"
	"github.com/syy-ex/hair-makeover/pkg/logger"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const maxNotifyBody = 64 << 10

type Handler struct {
	recharge *services.RechargeService
	notify   *services.NotifyService
}

func NewHandler(recharge *services.RechargeService, notify *services.NotifyService) *Handler {
	return &Handler{recharge: recharge, notify: notify}
}

// CreateRecharge 创建充值订单。带 channel 时同时向支付网关下单并返回支付链接，
// 否则订单等待管理员人工审核。
func (h *Handler) CreateRecharge(c *gin.Context) {
	var req CreateRechargeRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if !services.IsAllowedRechargeAmount(req.Amount) {
		utils.AbortWithError(c, http.StatusBadRequest, "Invalid recharge amount")
		return
	}

	var channel models.PaymentChannel
	if req.Channel != "" {
		parsed, ok := models.ParsePaymentChannel(req.Channel)
		if !ok {
			utils.AbortWithError(c, http.StatusBadRequest, services.ErrInvalidChannel.Error())
			return
		}
		if !h.recharge.HostedPaymentReady() {
			utils.AbortWithError(c, http.StatusInternalServerError, services.ErrGatewayConfig.Error())
			return
		}
		channel = parsed
	}

	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	order, err := h.recharge.CreateOrder(ctx, user.ID, req.Amount, services.CreateOrderOptions{Channel: channel})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount), errors.Is(err, services.ErrInvalidChannel):
			utils.AbortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			utils.AbortWithError(c, http.StatusUnauthorized, "Please log in first")
		default:
			logger.Log.Error("Failed to create recharge order", zap.Error(err))
			utils.AbortWithError(c, http.StatusInternalServerError, "Failed to create recharge order")
		}
		return
	}

	if channel != "" {
		order, err = h.recharge.StartHostedPayment(ctx, order, services.HostedPaymentRequest{
			Channel:   channel,
			ReturnURL: req.ReturnURL,
			ClientIP:  c.ClientIP(),
		})
		if err != nil {
			logger.Log.Error("Failed to start hosted payment", zap.Error(err))
			var gwErr *payment.GatewayError
			if errors.As(err, &gwErr) {
				utils.AbortWithError(c, http.StatusInternalServerError, "Payment gateway rejected the order")
				return
			}
			utils.AbortWithError(c, http.StatusInternalServerError, "Failed to create payment")
			return
		}
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", OrderEnvelope{Order: ToOrderResponse(order)}))
}

// ListRecharges 查询当前用户的充值订单
func (h *Handler) ListRecharges(c *gin.Context) {
	user := middleware.CurrentUser(c)
	orders, err := h.recharge.ListUserOrders(c.Request.Context(), user.ID)
	if err != nil {
		logger.Log.Error("Failed to list recharge orders", zap.Error(err))
		utils.AbortWithError(c, http.StatusInternalServerError, "Failed to list recharge orders")
		return
	}
	resp := OrderListResponse{Orders: make([]OrderResponse, 0, len(orders))}
	for i := range orders {
		resp.Orders = append(resp.Orders, ToOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", resp))
}

// GetRecharge 查询单个订单，只能查看自己的订单
func (h *Handler) GetRecharge(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		utils.AbortWithError(c, http.StatusBadRequest, "Order id is required")
		return
	}

	order, err := h.recharge.GetOrder(c.Request.Context(), id)
	if err != nil {
		logger.Log.Error("Failed to load recharge order", zap.Error(err))
		utils.AbortWithError(c, http.StatusInternalServerError, "Failed to load recharge order")
		return
	}
	user := middleware.CurrentUser(c)
	if order == nil || order.UserID != user.ID {
		utils.AbortWithError(c, http.StatusNotFound, services.ErrOrderNotFound.Error())
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", OrderEnvelope{Order: ToOrderResponse(order)}))
}

// Notify 支付网关异步回调，响应纯文本 success 或 fail
func (h *Handler) Notify(c *gin.Context) {
	params, err := collectParams(c)
	if err != nil {
		logger.Log.Warn("Unreadable payment notification", zap.Error(err))
		utils.PlainText(c, http.StatusBadRequest, services.NotifyFail)
		return
	}
	out := h.notify.Handle(c.Request.Context(), params)
	utils.PlainText(c, out.Status, out.Body)
}

// collectParams merges query parameters with a form or JSON body. Body
// values win over query values of the same name.
func collectParams(c *gin.Context) (payment.Params, error) {
	params := payment.Params{}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	if c.Request.Method != http.MethodPost || c.Request.Body == nil {
		return params, nil
	}

	if strings.Contains(c.ContentType(), "json") {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotifyBody))
		if err != nil {
			return nil, err
		}
		if len(body) == 0 {
			return params, nil
		}
		if !gjson.ValidBytes(body) {
			return nil, errors.New("invalid json body")
		}
		gjson.ParseBytes(body).ForEach(func(key, value gjson.Result) bool {
			params[key.String()] = value.String()
			return true
		})
		return params, nil
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxNotifyBody)
	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params, nil
}
