package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/syy-ex/hair-makeover/internal/models"
	"github.com/syy-ex/hair-makeover/internal/payment"
	"github.com/syy-ex/hair-makeover/pkg/logger"
	"go.uber.org/zap"
)

// Plain-text acknowledgements the gateway expects.
const (
	NotifySuccess = "success"
	NotifyFail    = "fail"
)

var ErrAmountMismatch = errors.New("paid amount does not match order")

var amountTolerance = decimal.New(1, -4)

// NotifyOutcome is the HTTP answer for one gateway notification. Reason is
// for logs only and is never sent to the gateway.
type NotifyOutcome struct {
	Status  int
	Body    string
	Reason  string
	OrderID string
}

func (o NotifyOutcome) OK() bool {
	return o.Status == http.StatusOK
}

// NotifyService verifies gateway callbacks and settles the orders they name.
type NotifyService struct {
	driver   payment.Driver
	recharge *RechargeService
}

func NewNotifyService(driver payment.Driver, recharge *RechargeService) *NotifyService {
	return &NotifyService{driver: driver, recharge: recharge}
}

// Handle 处理支付回调。Replaying a notification for an already approved
// order answers success again without crediting twice.
func (s *NotifyService) Handle(ctx context.Context, params payment.Params) NotifyOutcome {
	out := s.handle(ctx, params)
	rechargeNotifications.WithLabelValues(notifyLabel(out)).Inc()

	fields := []zap.Field{
		zap.Int("status", out.Status),
		zap.String("order_id", out.OrderID),
		zap.String("reason", out.Reason),
	}
	if out.OK() {
		logger.Log.Info("Payment notification accepted", fields...)
	} else {
		logger.Log.Warn("Payment notification rejected", fields...)
	}
	return out
}

func (s *NotifyService) handle(ctx context.Context, params payment.Params) NotifyOutcome {
	if s.driver == nil {
		return fail(http.StatusInternalServerError, "", "gateway not configured")
	}
	if !params.MerchantMatches(s.driver.MerchantID()) {
		return fail(http.StatusUnauthorized, "", "merchant id mismatch")
	}
	if !s.driver.VerifySignature(params) {
		return fail(http.StatusUnauthorized, "", "invalid signature")
	}

	orderID, ok := params.OrderID()
	if !ok {
		return fail(http.StatusBadRequest, "", "missing order id")
	}
	order, err := s.recharge.GetOrder(ctx, orderID)
	if err != nil {
		return fail(http.StatusInternalServerError, orderID, err.Error())
	}
	if order == nil {
		return fail(http.StatusNotFound, orderID, ErrOrderNotFound.Error())
	}

	paid, ok := params.Amount()
	if !ok || paid.Sub(decimal.NewFromInt(order.Amount)).Abs().GreaterThan(amountTolerance) {
		return fail(http.StatusConflict, orderID, ErrAmountMismatch.Error())
	}
	if !params.IsPaid() {
		return fail(http.StatusConflict, orderID, "not paid")
	}

	session := PaymentSession{Provider: s.driver.Name()}
	if channel, ok := params.Channel(); ok {
		session.Channel = channel
	}
	if tradeNo, ok := params.TradeNo(); ok {
		session.ProviderTradeNo = tradeNo
	}
	if _, err := s.recharge.AttachPaymentSession(ctx, orderID, session); err != nil {
		logger.Log.Warn("Failed to record payment session", zap.String("order_id", orderID), zap.Error(err))
	}

	payType := params["type"]
	if payType == "" {
		payType = "unknown"
	}
	settled, err := s.recharge.Settle(ctx, orderID, DecisionApprove, "auto_"+string(s.driver.Name())+":"+payType)
	if err != nil {
		return fail(http.StatusInternalServerError, orderID, err.Error())
	}
	if settled == nil {
		return fail(http.StatusNotFound, orderID, ErrOrderNotFound.Error())
	}
	// A paid notification for an order already rejected by review must not
	// be acknowledged as a settlement.
	if settled.Status != models.OrderStatusApproved {
		return fail(http.StatusConflict, orderID, "order already "+string(settled.Status))
	}
	return NotifyOutcome{Status: http.StatusOK, Body: NotifySuccess, Reason: string(settled.Status), OrderID: orderID}
}

func fail(status int, orderID, reason string) NotifyOutcome {
	return NotifyOutcome{Status: status, Body: NotifyFail, Reason: reason, OrderID: orderID}
}

func notifyLabel(o NotifyOutcome) string {
	switch o.Status {
	case http.StatusOK:
		return "success"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	default:
		return "error"
	}
}
