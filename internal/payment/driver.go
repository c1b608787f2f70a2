package payment

import (
	"context"
	"fmt"

	"github.com/syy-ex/hair-makeover/internal/models"
)

// Driver is the interface that all hosted-payment drivers must implement.
type Driver interface {
	// Name identifies the provider recorded on settled orders.
	Name() models.PaymentProvider

	// MerchantID is the configured merchant id, compared against inbound
	// notifications.
	MerchantID() string

	// CreateOrder registers a hosted order with the provider and returns
	// where the payer should be sent.
	CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error)

	// VerifySignature reports whether params carry a valid provider signature.
	VerifySignature(params Params) bool
}

type CreateOrderInput struct {
	Amount     int64
	OutTradeNo string
	Name       string
	NotifyURL  string
	ReturnURL  string
	Channel    models.PaymentChannel
	ClientIP   string
}

// CreateOrderResult holds only what the caller needs to redirect the payer.
// Any field may be empty depending on provider version.
type CreateOrderResult struct {
	TradeNo   string
	PayURL    string
	QRCodeURL string
}

// GatewayError is returned when a provider call fails or answers with
// something other than success.
type GatewayError struct {
	Provider models.PaymentProvider
	Op       string
	Message  string
	Err      error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Provider, e.Op)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
