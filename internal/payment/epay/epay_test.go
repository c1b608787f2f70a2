package epay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syy-ex/hair-makeover/config"
	"github.com/syy-ex/hair-makeover/internal/models"
	"github.com/syy-ex/hair-makeover/internal/payment"
)

const testKey = "merchant-secret"

func newTestDriver(t *testing.T, baseURL, style string) *EpayDriver {
	d, err := New(config.EpayConfig{
		BaseURL:   baseURL,
		PID:       "1001",
		MD5Key:    testKey,
		SignStyle: style,
	}, http.DefaultClient)
	require.NoError(t, err)
	return d
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(config.EpayConfig{BaseURL: "https://pay.example.com", PID: "1001"}, nil)
	assert.ErrorIs(t, err, ErrMissingConfig)

	d, err := New(config.EpayConfig{BaseURL: "https://pay.example.com/", PID: "1001", MD5Key: "k", APIPath: "mapi.php"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/mapi.php", d.endpoint)
	assert.Equal(t, "1001", d.MerchantID())
	assert.Equal(t, models.ProviderEpay, d.Name())
}

func TestCanonicalize(t *testing.T) {
	params := map[string]string{
		"pid":       "1001",
		"money":     "5",
		"name":      "",
		"sign":      "abc",
		"sign_type": "MD5",
		"act":       "pay",
	}
	assert.Equal(t, "act=pay&money=5&pid=1001", Canonicalize(params))
}

func TestSignStyles(t *testing.T) {
	params := map[string]string{"a": "1", "b": "2"}
	// md5("a=1&b=2k") and md5("a=1&b=2&key=k")
	plain := Sign(params, "k", SignStylePlain)
	keyed := Sign(params, "k", SignStyleKey)
	assert.Len(t, plain, 32)
	assert.Len(t, keyed, 32)
	assert.NotEqual(t, plain, keyed)
	assert.Equal(t, plain, Sign(map[string]string{"b": "2", "a": "1", "sign": "x"}, "k", SignStylePlain))
}

func TestVerifySignature(t *testing.T) {
	d := newTestDriver(t, "https://pay.example.com", SignStylePlain)
	base := payment.Params{
		"pid":          "1001",
		"out_trade_no": "o1",
		"money":        "5",
		"trade_status": "TRADE_SUCCESS",
		"type":         "wxpay",
	}

	withSign := func(sign string) payment.Params {
		p := payment.Params{"sign": sign, "sign_type": "MD5"}
		for k, v := range base {
			p[k] = v
		}
		return p
	}

	plain := Sign(base, testKey, SignStylePlain)
	keyed := Sign(base, testKey, SignStyleKey)

	assert.True(t, d.VerifySignature(withSign(plain)))
	assert.True(t, d.VerifySignature(withSign(keyed)))
	assert.True(t, d.VerifySignature(withSign(strings.ToUpper(plain))))
	assert.False(t, d.VerifySignature(withSign("")))
	assert.False(t, d.VerifySignature(base))

	tampered := withSign(plain)
	tampered["money"] = "50"
	assert.False(t, d.VerifySignature(tampered))
}

func TestCreateOrder(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api.php", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":1,"trade_no":"T100","payurl":"https://pay.example.com/p/T100","qrcode":"weixin://wxpay/T100"}`))
	}))
	defer srv.Close()

	d := newTestDriver(t, srv.URL, SignStyleKey)
	res, err := d.CreateOrder(context.Background(), payment.CreateOrderInput{
		Amount:     5,
		OutTradeNo: "o1",
		Name:       "Points 50",
		NotifyURL:  "https://hair.example.com/api/v1/recharge/notify",
		Channel:    models.ChannelWechat,
	})
	require.NoError(t, err)
	assert.Equal(t, &payment.CreateOrderResult{
		TradeNo:   "T100",
		PayURL:    "https://pay.example.com/p/T100",
		QRCodeURL: "weixin://wxpay/T100",
	}, res)

	assert.Equal(t, "pay", got.Get("act"))
	assert.Equal(t, "wxpay", got.Get("type"))
	assert.Equal(t, "5", got.Get("money"))
	assert.Equal(t, "MD5", got.Get("sign_type"))
	assert.False(t, got.Has("return_url"))

	signed := map[string]string{}
	for k := range got {
		signed[k] = got.Get(k)
	}
	assert.Equal(t, Sign(signed, testKey, SignStyleKey), got.Get("sign"))
}

func TestCreateOrderAlipayAliases(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "alipay", r.PostForm.Get("type"))
		w.Write([]byte(`{"status":"1","tradeNo":"T2","pay_url":"https://p/2","qrcode_url":"https://q/2"}`))
	}))
	defer srv.Close()

	d := newTestDriver(t, srv.URL, SignStylePlain)
	res, err := d.CreateOrder(context.Background(), payment.CreateOrderInput{Amount: 10, OutTradeNo: "o2", Channel: models.ChannelAlipay})
	require.NoError(t, err)
	assert.Equal(t, "T2", res.TradeNo)
	assert.Equal(t, "https://p/2", res.PayURL)
	assert.Equal(t, "https://q/2", res.QRCodeURL)
}

func TestCreateOrderFailures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		wantMsg string
	}{
		{name: "provider rejects", body: `{"code":-1,"msg":"merchant disabled"}`, status: http.StatusOK, wantMsg: "merchant disabled"},
		{name: "not json", body: `<html>502</html>`, status: http.StatusBadGateway, wantMsg: "invalid response"},
		{name: "no code", body: `{"payurl":"x"}`, status: http.StatusOK, wantMsg: "create order failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			d := newTestDriver(t, srv.URL, SignStylePlain)
			_, err := d.CreateOrder(context.Background(), payment.CreateOrderInput{Amount: 1, OutTradeNo: "o"})

			var gwErr *payment.GatewayError
			require.True(t, errors.As(err, &gwErr))
			assert.Contains(t, gwErr.Error(), tt.wantMsg)
		})
	}
}

func TestCreateOrderTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	d := newTestDriver(t, addr, SignStylePlain)
	_, err := d.CreateOrder(context.Background(), payment.CreateOrderInput{Amount: 1, OutTradeNo: "o"})
	var gwErr *payment.GatewayError
	assert.True(t, errors.As(err, &gwErr))
}
