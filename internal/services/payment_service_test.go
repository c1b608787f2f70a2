package services

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syy-ex/hair-makeover/config"
	"github.com/syy-ex/hair-makeover/internal/models"
	"github.com/syy-ex/hair-makeover/internal/payment"
	"github.com/syy-ex/hair-makeover/internal/payment/epay"
)

const notifyKey = "notify-secret"

type notifyFixture struct {
	ledger   *LedgerService
	recharge *RechargeService
	notify   *NotifyService
	user     *models.User
	order    *models.RechargeOrder
}

func newNotifyFixture(t *testing.T) *notifyFixture {
	t.Helper()
	driver, err := epay.New(config.EpayConfig{
		BaseURL: "https://pay.example.com",
		PID:     "1001",
		MD5Key:  notifyKey,
	}, http.DefaultClient)
	require.NoError(t, err)

	store, ledger, recharge := newRechargeFixture(t, driver)
	user := seedUser(t, store, "payer@example.com", 0)
	order, err := recharge.CreateOrder(context.Background(), user.ID, 5, CreateOrderOptions{})
	require.NoError(t, err)

	return &notifyFixture{
		ledger:   ledger,
		recharge: recharge,
		notify:   NewNotifyService(driver, recharge),
		user:     user,
		order:    order,
	}
}

func signedNotification(orderID, money string, extra map[string]string) payment.Params {
	p := payment.Params{
		"pid":          "1001",
		"trade_no":     "2024060112345",
		"out_trade_no": orderID,
		"type":         "wxpay",
		"name":         "Hair makeover 50 points",
		"money":        money,
		"trade_status": "TRADE_SUCCESS",
	}
	for k, v := range extra {
		p[k] = v
	}
	p["sign"] = epay.Sign(p, notifyKey, epay.SignStylePlain)
	p["sign_type"] = "MD5"
	return p
}

func (f *notifyFixture) balance(t *testing.T) int64 {
	b, err := f.ledger.Balance(context.Background(), f.user.ID)
	require.NoError(t, err)
	return b
}

func (f *notifyFixture) status(t *testing.T) models.OrderStatus {
	o, err := f.recharge.GetOrder(context.Background(), f.order.ID)
	require.NoError(t, err)
	return o.Status
}

func TestNotifyApprovesOrderOnce(t *testing.T) {
	ctx := context.Background()
	f := newNotifyFixture(t)
	params := signedNotification(f.order.ID, "5.00", nil)

	out := f.notify.Handle(ctx, params)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, NotifySuccess, out.Body)
	assert.Equal(t, int64(50), f.balance(t))

	order, err := f.recharge.GetOrder(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusApproved, order.Status)
	assert.Equal(t, "auto_epay:wxpay", order.Note)
	assert.Equal(t, models.ChannelWechat, order.Channel)
	assert.Equal(t, "2024060112345", order.ProviderTradeNo)
	assert.Equal(t, models.ProviderEpay, order.Provider)

	replay := f.notify.Handle(ctx, params)
	assert.Equal(t, http.StatusOK, replay.Status)
	assert.Equal(t, NotifySuccess, replay.Body)
	assert.Equal(t, int64(50), f.balance(t))
}

func TestNotifyConcurrentReplaysCreditOnce(t *testing.T) {
	ctx := context.Background()
	f := newNotifyFixture(t)
	params := signedNotification(f.order.ID, "5", nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, http.StatusOK, f.notify.Handle(ctx, params).Status)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), f.balance(t))
}

func TestNotifyAcceptsKeyStyleSignature(t *testing.T) {
	f := newNotifyFixture(t)
	params := signedNotification(f.order.ID, "5", nil)
	params["sign"] = epay.Sign(params, notifyKey, epay.SignStyleKey)

	out := f.notify.Handle(context.Background(), params)
	assert.Equal(t, http.StatusOK, out.Status)
}

func TestNotifyRejections(t *testing.T) {
	tests := []struct {
		name      string
		prepare   func(t *testing.T, f *notifyFixture)
		params    func(orderID string) payment.Params
		status    int
		wantOrder models.OrderStatus
	}{
		{
			name: "tampered amount",
			params: func(id string) payment.Params {
				p := signedNotification(id, "5", nil)
				p["money"] = "50"
				return p
			},
			status: http.StatusUnauthorized,
		},
		{
			name:   "signed but wrong amount",
			params: func(id string) payment.Params { return signedNotification(id, "5.01", nil) },
			status: http.StatusConflict,
		},
		{
			name: "missing signature",
			params: func(id string) payment.Params {
				p := signedNotification(id, "5", nil)
				delete(p, "sign")
				return p
			},
			status: http.StatusUnauthorized,
		},
		{
			name:   "merchant mismatch",
			params: func(id string) payment.Params { return signedNotification(id, "5", map[string]string{"pid": "2002"}) },
			status: http.StatusUnauthorized,
		},
		{
			name: "missing order id",
			params: func(id string) payment.Params {
				return signedNotification("", "5", nil)
			},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown order",
			params: func(id string) payment.Params { return signedNotification("does-not-exist", "5", nil) },
			status: http.StatusNotFound,
		},
		{
			name: "missing amount",
			params: func(id string) payment.Params {
				return signedNotification(id, "", nil)
			},
			status: http.StatusConflict,
		},
		{
			name: "not paid",
			params: func(id string) payment.Params {
				return signedNotification(id, "5", map[string]string{"trade_status": "WAIT_BUYER_PAY"})
			},
			status: http.StatusConflict,
		},
		{
			name: "order rejected by review",
			prepare: func(t *testing.T, f *notifyFixture) {
				_, err := f.recharge.Settle(context.Background(), f.order.ID, DecisionReject, "no transfer seen")
				require.NoError(t, err)
			},
			params:    func(id string) payment.Params { return signedNotification(id, "5", nil) },
			status:    http.StatusConflict,
			wantOrder: models.OrderStatusRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newNotifyFixture(t)
			if tt.prepare != nil {
				tt.prepare(t, f)
			}
			wantOrder := tt.wantOrder
			if wantOrder == "" {
				wantOrder = models.OrderStatusPending
			}

			out := f.notify.Handle(context.Background(), tt.params(f.order.ID))
			assert.Equal(t, tt.status, out.Status)
			assert.Equal(t, NotifyFail, out.Body)
			assert.Equal(t, wantOrder, f.status(t))
			assert.Equal(t, int64(0), f.balance(t))
		})
	}
}

func TestNotifyAmountWithinTolerance(t *testing.T) {
	f := newNotifyFixture(t)
	out := f.notify.Handle(context.Background(), signedNotification(f.order.ID, "5.00005", nil))
	assert.Equal(t, http.StatusOK, out.Status)
}

func TestNotifyWithoutDriver(t *testing.T) {
	_, _, recharge := newRechargeFixture(t, nil)
	out := NewNotifyService(nil, recharge).Handle(context.Background(), payment.Params{})
	assert.Equal(t, http.StatusInternalServerError, out.Status)
	assert.Equal(t, NotifyFail, out.Body)
}
