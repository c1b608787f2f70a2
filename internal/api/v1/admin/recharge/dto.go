package recharge

import (
	rechargeapi "github.com/syy-ex/hair-makeover/internal/api/v1/recharge"
)

// UnknownUserEmail is shown for orders whose owner no longer exists.
const UnknownUserEmail = "unknown"

type ReviewRequest struct {
	OrderID string `json:"orderId" binding:"required"`
	Action  string `json:"action" binding:"required,oneof=approve reject"`
	Note    string `json:"note"`
}

type AdminOrderResponse struct {
	rechargeapi.OrderResponse
	UserID          string `json:"userId"`
	UserEmail       string `json:"userEmail"`
	Provider        string `json:"provider,omitempty"`
	ProviderTradeNo string `json:"providerTradeNo,omitempty"`
}

type AdminOrderListResponse struct {
	Orders []AdminOrderResponse `json:"orders"`
}
