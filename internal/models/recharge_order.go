package models

import "time"

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusApproved OrderStatus = "approved"
	OrderStatusRejected OrderStatus = "rejected"
)

// ParseOrderStatus returns the status named by s, or false if s is not one.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusApproved, OrderStatusRejected:
		return OrderStatus(s), true
	}
	return "", false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusApproved || s == OrderStatusRejected
}

type PaymentProvider string

const ProviderEpay PaymentProvider = "epay"

type PaymentChannel string

const (
	ChannelWechat PaymentChannel = "wechat"
	ChannelAlipay PaymentChannel = "alipay"
)

func ParsePaymentChannel(s string) (PaymentChannel, bool) {
	switch PaymentChannel(s) {
	case ChannelWechat, ChannelAlipay:
		return PaymentChannel(s), true
	}
	return "", false
}

// ExchangeRate is the number of points credited per currency unit.
const ExchangeRate = 10

// RechargeOrder is one monetary top-up moving from pending to a terminal state.
type RechargeOrder struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Amount          int64           `json:"amount"`
	Points          int64           `json:"points"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	ReviewedAt      *time.Time      `json:"reviewedAt,omitempty"`
	Note            string          `json:"note,omitempty"`
	Provider        PaymentProvider `json:"provider,omitempty"`
	Channel         PaymentChannel  `json:"channel,omitempty"`
	ProviderTradeNo string          `json:"providerTradeNo,omitempty"`
	PayURL          string          `json:"payUrl,omitempty"`
	QRCodeURL       string          `json:"qrCodeUrl,omitempty"`
}

// Clone returns a copy that shares no pointers with o.
func (o *RechargeOrder) Clone() *RechargeOrder {
	c := *o
	if o.ReviewedAt != nil {
		t := *o.ReviewedAt
		c.ReviewedAt = &t
	}
	return &c
}
