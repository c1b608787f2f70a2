package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseOrderStatus(t *testing.T) {
	for _, s := range []string{"pending", "approved", "rejected"} {
		got, ok := ParseOrderStatus(s)
		assert.True(t, ok, s)
		assert.Equal(t, OrderStatus(s), got)
	}
	_, ok := ParseOrderStatus("paid")
	assert.False(t, ok)

	assert.False(t, OrderStatusPending.Terminal())
	assert.True(t, OrderStatusApproved.Terminal())
	assert.True(t, OrderStatusRejected.Terminal())
}

func TestParsePaymentChannel(t *testing.T) {
	c, ok := ParsePaymentChannel("wechat")
	assert.True(t, ok)
	assert.Equal(t, ChannelWechat, c)

	_, ok = ParsePaymentChannel("wxpay")
	assert.False(t, ok)
}

func TestRechargeOrderClone(t *testing.T) {
	now := time.Now()
	o := &RechargeOrder{ID: "o1", ReviewedAt: &now}
	c := o.Clone()
	*c.ReviewedAt = now.Add(time.Hour)
	c.Note = "changed"

	assert.Equal(t, now, *o.ReviewedAt)
	assert.Empty(t, o.Note)
}

func TestNormalizeEmailAndSessionExpiry(t *testing.T) {
	assert.Equal(t, "a@example.com", NormalizeEmail("  A@Example.COM "))

	now := time.Now()
	assert.True(t, (&Session{ExpiresAt: now}).Expired(now))
	assert.False(t, (&Session{ExpiresAt: now.Add(time.Second)}).Expired(now))
}
