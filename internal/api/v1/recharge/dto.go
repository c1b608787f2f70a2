package recharge

import (
	"time"

	"github.com/syy-ex/hair-makeover/internal/models"
)

type CreateRechargeRequest struct {
	Amount    int64  `json:"amount" binding:"required"`
	Channel   string `json:"channel" binding:"omitempty,oneof=alipay wechat"`
	ReturnURL string `json:"returnUrl" binding:"omitempty,url"`
}

type OrderResponse struct {
	ID         string     `json:"id"`
	Amount     int64      `json:"amount"`
	Points     int64      `json:"points"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
	Note       string     `json:"note,omitempty"`
	Channel    string     `json:"channel,omitempty"`
	PayURL     string     `json:"payUrl,omitempty"`
	QRCodeURL  string     `json:"qrCodeUrl,omitempty"`
}

type OrderEnvelope struct {
	Order OrderResponse `json:"order"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
}

func ToOrderResponse(o *models.RechargeOrder) OrderResponse {
	return OrderResponse{
		ID:         o.ID,
		Amount:     o.Amount,
		Points:     o.Points,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt,
		ReviewedAt: o.ReviewedAt,
		Note:       o.Note,
		Channel:    string(o.Channel),
		PayURL:     o.PayURL,
		QRCodeURL:  o.QRCodeURL,
	}
}
