package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syy-ex/hair-makeover/internal/database"
	"github.com/syy-ex/hair-makeover/internal/models"
	"github.com/syy-ex/hair-makeover/internal/payment"
)

type stubDriver struct {
	mu      sync.Mutex
	inputs  []payment.CreateOrderInput
	result  *payment.CreateOrderResult
	err     error
	pid     string
	validFn func(payment.Params) bool
}

func (d *stubDriver) Name() models.PaymentProvider { return models.ProviderEpay }
func (d *stubDriver) MerchantID() string           { return d.pid }

func (d *stubDriver) CreateOrder(_ context.Context, in payment.CreateOrderInput) (*payment.CreateOrderResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inputs = append(d.inputs, in)
	if d.err != nil {
		return nil, d.err
	}
	return d.result, nil
}

func (d *stubDriver) VerifySignature(p payment.Params) bool {
	if d.validFn == nil {
		return true
	}
	return d.validFn(p)
}

func newRechargeFixture(t *testing.T, driver payment.Driver) (database.Store, *LedgerService, *RechargeService) {
	t.Helper()
	store := newTestStore(t)
	ledger := NewLedgerService(store, "secret")
	svc := NewRechargeService(store, ledger, driver, "https://hair.example.com/")
	svc.now = newFakeClock().Now
	return store, ledger, svc
}

func TestRechargeApproveAndRejectScenario(t *testing.T) {
	ctx := context.Background()
	store, ledger, svc := newRechargeFixture(t, nil)
	user := seedUser(t, store, "a@example.com", 0)

	order, err := svc.CreateOrder(ctx, user.ID, 5, CreateOrderOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(50), order.Points)
	assert.Equal(t, models.OrderStatusPending, order.Status)

	approved, err := svc.Settle(ctx, order.ID, DecisionApprove, "paid in cash")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusApproved, approved.Status)
	assert.NotNil(t, approved.ReviewedAt)
	assert.Equal(t, "paid in cash", approved.Note)

	balance, err := ledger.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	entries, err := ledger.Entries(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(50), entries[0].Delta)
	assert.Equal(t, "recharge_order_"+order.ID, entries[0].Reason)

	second, err := svc.CreateOrder(ctx, user.ID, 10, CreateOrderOptions{})
	require.NoError(t, err)
	rejected, err := svc.Settle(ctx, second.ID, DecisionReject, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRejected, rejected.Status)

	balance, err = ledger.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}

func TestRechargeCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	store, _, svc := newRechargeFixture(t, nil)
	user := seedUser(t, store, "a@example.com", 0)

	for _, amount := range []int64{0, 2, 100, -5} {
		_, err := svc.CreateOrder(ctx, user.ID, amount, CreateOrderOptions{})
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %d", amount)
	}
	_, err := svc.CreateOrder(ctx, user.ID, 5, CreateOrderOptions{Channel: "paypal"})
	assert.ErrorIs(t, err, ErrInvalidChannel)
	_, err = svc.CreateOrder(ctx, "missing", 5, CreateOrderOptions{})
	assert.ErrorIs(t, err, ErrUserNotFound)

	snap, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.RechargeOrders)
}

func TestRechargeSettleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, ledger, svc := newRechargeFixture(t, nil)
	user := seedUser(t, store, "a@example.com", 0)
	order, err := svc.CreateOrder(ctx, user.ID, 10, CreateOrderOptions{})
	require.NoError(t, err)

	first, err := svc.Settle(ctx, order.ID, DecisionApprove, "first")
	require.NoError(t, err)
	second, err := svc.Settle(ctx, order.ID, DecisionApprove, "second")
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, "first", second.Note)
	assert.True(t, first.ReviewedAt.Equal(*second.ReviewedAt))

	third, err := svc.Settle(ctx, order.ID, DecisionReject, "too late")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusApproved, third.Status)
	assert.Equal(t, "first", third.Note)

	balance, err := ledger.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestRechargeConcurrentSettleCreditsOnce(t *testing.T) {
	ctx := context.Background()
	store, ledger, svc := newRechargeFixture(t, nil)
	user := seedUser(t, store, "a@example.com", 0)
	order, err := svc.CreateOrder(ctx, user.ID, 50, CreateOrderOptions{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		decision := DecisionApprove
		if i%3 == 0 {
			decision = DecisionReject
		}
		go func() {
			defer wg.Done()
			got, err := svc.Settle(ctx, order.ID, decision, "")
			assert.NoError(t, err)
			assert.True(t, got.Status.Terminal())
		}()
	}
	wg.Wait()

	final, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	balance, err := ledger.Balance(ctx, user.ID)
	require.NoError(t, err)
	if final.Status == models.OrderStatusApproved {
		assert.Equal(t, int64(500), balance)
	} else {
		assert.Equal(t, int64(0), balance)
	}
	assert.Equal(t, balance, ledgerSum(t, store, user.ID))
}

func TestRechargeSettleUnknownOrderAndAction(t *testing.T) {
	ctx := context.Background()
	_, _, svc := newRechargeFixture(t, nil)

	got, err := svc.Settle(ctx, "nope", DecisionApprove, "")
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = svc.Settle(ctx, "nope", Decision("refund"), "")
	assert.ErrorIs(t, err, ErrInvalidAction)

	got, err = svc.GetOrder(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestRechargeSettleWithVanishedUserKeepsOrderPending(t *testing.T) {
	ctx := context.Background()
	store, _, svc := newRechargeFixture(t, nil)
	user := seedUser(t, store, "a@example.com", 0)
	order, err := svc.CreateOrder(ctx, user.ID, 5, CreateOrderOptions{})
	require.NoError(t, err)

	require.NoError(t, store.Mutate(ctx, func(snap *database.Snapshot) error {
		snap.Users = snap.Users[:0]
		return nil
	}))

	_, err = svc.Settle(ctx, order.ID, DecisionApprove, "")
	assert.ErrorIs(t, err, ErrUserNotFound)

	got, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
}

func TestRechargeListOrders(t *testing.T) {
	ctx := context.Background()
	store, _, svc := newRechargeFixture(t, nil)
	user := seedUser(t, store, "a@example.com", 0)
	other := seedUser(t, store, "b@example.com", 0)

	older, err := svc.CreateOrder(ctx, user.ID, 1, CreateOrderOptions{})
	require.NoError(t, err)
	newer, err := svc.CreateOrder(ctx, user.ID, 5, CreateOrderOptions{})
	require.NoError(t, err)
	_, err = svc.Settle(ctx, older.ID, DecisionApprove, "")
	require.NoError(t, err)
	_, err = svc.Settle(ctx, newer.ID, DecisionReject, "")
	require.NoError(t, err)

	pending := models.OrderStatusPending
	list, err := svc.ListOrders(ctx, &pending)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = svc.ListOrders(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	approved := models.OrderStatusApproved
	list, err = svc.ListOrders(ctx, &approved)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, older.ID, list[0].ID)

	_, err = svc.CreateOrder(ctx, other.ID, 10, CreateOrderOptions{})
	require.NoError(t, err)
	mine, err := svc.ListUserOrders(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestRechargeAttachPaymentSessionMerges(t *testing.T) {
	ctx := context.Background()
	store, _, svc := newRechargeFixture(t, nil)
	user := seedUser(t, store, "a@example.com", 0)
	order, err := svc.CreateOrder(ctx, user.ID, 5, CreateOrderOptions{})
	require.NoError(t, err)

	got, err := svc.AttachPaymentSession(ctx, order.ID, PaymentSession{
		Provider:  models.ProviderEpay,
		Channel:   models.ChannelWechat,
		PayURL:    "https://pay/1",
		QRCodeURL: "weixin://1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay/1", got.PayURL)

	got, err = svc.AttachPaymentSession(ctx, order.ID, PaymentSession{ProviderTradeNo: "T1"})
	require.NoError(t, err)
	assert.Equal(t, "T1", got.ProviderTradeNo)
	assert.Equal(t, "https://pay/1", got.PayURL)
	assert.Equal(t, "weixin://1", got.QRCodeURL)
	assert.Equal(t, models.ChannelWechat, got.Channel)

	missing, err := svc.AttachPaymentSession(ctx, "nope", PaymentSession{PayURL: "x"})
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRechargeStartHostedPayment(t *testing.T) {
	ctx := context.Background()
	driver := &stubDriver{result: &payment.CreateOrderResult{TradeNo: "T9", PayURL: "https://pay/9"}}
	store, _, svc := newRechargeFixture(t, driver)
	user := seedUser(t, store, "a@example.com", 0)
	order, err := svc.CreateOrder(ctx, user.ID, 10, CreateOrderOptions{})
	require.NoError(t, err)

	got, err := svc.StartHostedPayment(ctx, order, HostedPaymentRequest{Channel: models.ChannelAlipay, ClientIP: "1.2.3.4"})
	require.NoError(t, err)
	assert.Equal(t, "T9", got.ProviderTradeNo)
	assert.Equal(t, "https://pay/9", got.PayURL)
	assert.Equal(t, models.ProviderEpay, got.Provider)
	assert.Equal(t, models.ChannelAlipay, got.Channel)

	require.Len(t, driver.inputs, 1)
	in := driver.inputs[0]
	assert.Equal(t, order.ID, in.OutTradeNo)
	assert.Equal(t, int64(10), in.Amount)
	assert.Equal(t, "https://hair.example.com/api/v1/recharge/notify", in.NotifyURL)
	assert.Equal(t, "1.2.3.4", in.ClientIP)
}

func TestRechargeStartHostedPaymentErrors(t *testing.T) {
	ctx := context.Background()
	store, _, svc := newRechargeFixture(t, nil)
	user := seedUser(t, store, "a@example.com", 0)
	order, err := svc.CreateOrder(ctx, user.ID, 10, CreateOrderOptions{})
	require.NoError(t, err)

	_, err = svc.StartHostedPayment(ctx, order, HostedPaymentRequest{Channel: models.ChannelWechat})
	assert.ErrorIs(t, err, ErrGatewayConfig)

	noBase := NewRechargeService(store, NewLedgerService(store, ""), &stubDriver{}, "")
	_, err = noBase.StartHostedPayment(ctx, order, HostedPaymentRequest{Channel: models.ChannelWechat})
	assert.ErrorIs(t, err, ErrGatewayConfig)

	gwErr := &payment.GatewayError{Provider: models.ProviderEpay, Op: "create order", Message: "disabled"}
	failing := NewRechargeService(store, NewLedgerService(store, ""), &stubDriver{err: gwErr}, "https://hair.example.com")
	_, err = failing.StartHostedPayment(ctx, order, HostedPaymentRequest{Channel: models.ChannelWechat})
	var target *payment.GatewayError
	assert.True(t, errors.As(err, &target))

	got, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PayURL)
}
