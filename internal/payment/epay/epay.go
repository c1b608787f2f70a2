package epay

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/syy-ex/hair-makeover/config"
	"github.com/syy-ex/hair-makeover/internal/models"
	"github.com/syy-ex/hair-makeover/internal/payment"
	"github.com/syy-ex/hair-makeover/internal/utils"
	"github.com/tidwall/gjson"
)

const (
	SignStylePlain = "plain"
	SignStyleKey   = "key"

	defaultAPIPath = "/api.php"
	defaultAct     = "pay"
)

var ErrMissingConfig = errors.New("epay config missing: base url, pid and md5 key are required")

// EpayDriver talks to an epay-compatible hosted payment gateway.
type EpayDriver struct {
	endpoint   string
	pid        string
	key        string
	act        string
	wechatType string
	alipayType string
	signStyle  string
	client     *http.Client
}

var _ payment.Driver = (*EpayDriver)(nil)

// New builds a driver from cfg. A nil client gets a logging client with a
// 15 second timeout.
func New(cfg config.EpayConfig, client *http.Client) (*EpayDriver, error) {
	if cfg.BaseURL == "" || cfg.PID == "" || cfg.MD5Key == "" {
		return nil, ErrMissingConfig
	}
	if client == nil {
		client = utils.NewHTTPClient(15 * time.Second)
	}

	d := &EpayDriver{
		pid:        cfg.PID,
		key:        cfg.MD5Key,
		act:        orDefault(cfg.Act, defaultAct),
		wechatType: orDefault(cfg.WechatType, "wxpay"),
		alipayType: orDefault(cfg.AlipayType, "alipay"),
		signStyle:  SignStylePlain,
		client:     client,
	}
	if cfg.SignStyle == SignStyleKey {
		d.signStyle = SignStyleKey
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	apiPath := orDefault(cfg.APIPath, defaultAPIPath)
	if strings.HasPrefix(apiPath, "/") {
		d.endpoint = baseURL + apiPath
	} else {
		d.endpoint = baseURL + "/" + apiPath
	}
	return d, nil
}

func (d *EpayDriver) Name() models.PaymentProvider {
	return models.ProviderEpay
}

func (d *EpayDriver) MerchantID() string {
	return d.pid
}

func (d *EpayDriver) CreateOrder(ctx context.Context, in payment.CreateOrderInput) (*payment.CreateOrderResult, error) {
	payType := d.wechatType
	if in.Channel == models.ChannelAlipay {
		payType = d.alipayType
	}

	params := map[string]string{
		"act":          d.act,
		"pid":          d.pid,
		"type":         payType,
		"out_trade_no": in.OutTradeNo,
		"notify_url":   in.NotifyURL,
		"return_url":   in.ReturnURL,
		"name":         in.Name,
		"money":        decimal.NewFromInt(in.Amount).String(),
		"clientip":     in.ClientIP,
	}
	params["sign"] = Sign(params, d.key, d.signStyle)
	params["sign_type"] = "MD5"

	form := url.Values{}
	for k, v := range params {
		if v != "" {
			form.Set(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, d.gatewayError("build request", "", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, d.gatewayError("create order", "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, d.gatewayError("read response", "", err)
	}
	return parseCreateOrderResponse(body, d)
}

func parseCreateOrderResponse(body []byte, d *EpayDriver) (*payment.CreateOrderResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, d.gatewayError("create order", "invalid response", nil)
	}
	data := gjson.ParseBytes(body)
	if !data.IsObject() {
		return nil, d.gatewayError("create order", "invalid response", nil)
	}

	code := data.Get("code")
	if !code.Exists() {
		code = data.Get("status")
	}
	if code.Float() != 1 {
		msg := "create order failed"
		if m := data.Get("msg"); m.Type == gjson.String && m.Str != "" {
			msg = m.Str
		}
		return nil, d.gatewayError("create order", msg, nil)
	}

	return &payment.CreateOrderResult{
		TradeNo:   firstString(data, "trade_no", "tradeNo"),
		PayURL:    firstString(data, "pay_url", "payurl", "url"),
		QRCodeURL: firstString(data, "qrcode", "qrcode_url", "qrCode"),
	}, nil
}

// VerifySignature accepts a signature made in either style, case-insensitive.
func (d *EpayDriver) VerifySignature(params payment.Params) bool {
	signature := strings.ToLower(params["sign"])
	if signature == "" {
		return false
	}
	return signature == Sign(params, d.key, SignStylePlain) ||
		signature == Sign(params, d.key, SignStyleKey)
}

func (d *EpayDriver) gatewayError(op, msg string, err error) error {
	return &payment.GatewayError{Provider: models.ProviderEpay, Op: op, Message: msg, Err: err}
}

// Canonicalize joins the non-empty params as sorted k=v pairs, leaving out
// sign and sign_type.
func Canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" || k == "sign" || k == "sign_type" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for _, k := range keys {
		if builder.Len() > 0 {
			builder.WriteString("&")
		}
		builder.WriteString(k)
		builder.WriteString("=")
		builder.WriteString(params[k])
	}
	return builder.String()
}

// Sign returns the lower-hex MD5 signature of params. The plain style appends
// the key directly; the key style appends it as "&key=<key>".
func Sign(params map[string]string, key, style string) string {
	base := Canonicalize(params)
	if style == SignStyleKey {
		base = fmt.Sprintf("%s&key=%s", base, key)
	} else {
		base += key
	}
	hash := md5.Sum([]byte(base))
	return hex.EncodeToString(hash[:])
}

func firstString(data gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := data.Get(k); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
