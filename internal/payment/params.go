package payment

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/syy-ex/hair-makeover/internal/models"
)

// Params is a flat view of an inbound provider notification. Providers are
// inconsistent about field names, so each accessor tries known aliases in
// priority order.
type Params map[string]string

// First returns the first non-empty value among keys.
func (p Params) First(keys ...string) (string, bool) {
	for _, k := range keys {
		if v := p[k]; v != "" {
			return v, true
		}
	}
	return "", false
}

func (p Params) OrderID() (string, bool) {
	return p.First("out_trade_no", "outTradeNo", "orderId")
}

func (p Params) TradeNo() (string, bool) {
	return p.First("trade_no", "tradeNo")
}

// Amount parses the paid amount. Unparseable values count as absent.
func (p Params) Amount() (decimal.Decimal, bool) {
	raw, ok := p.First("money", "amount", "total_fee")
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

var paidTokens = map[string]struct{}{
	"1":             {},
	"success":       {},
	"paid":          {},
	"trade_success": {},
}

// IsPaid reports whether the status field names a successful payment.
func (p Params) IsPaid() bool {
	status, _ := p.First("status", "trade_status")
	_, ok := paidTokens[strings.ToLower(status)]
	return ok
}

// Channel maps the provider's payment type to a channel.
func (p Params) Channel() (models.PaymentChannel, bool) {
	switch p["type"] {
	case "alipay":
		return models.ChannelAlipay, true
	case "wxpay", "wechat":
		return models.ChannelWechat, true
	}
	return "", false
}

// MerchantMatches is true when the payload names no merchant or names want.
func (p Params) MerchantMatches(want string) bool {
	got := p["pid"]
	return want == "" || got == "" || got == want
}
