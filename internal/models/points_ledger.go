package models

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Ledger reason tags.
const (
	ReasonGenerate       = "generate"
	ReasonGenerateRefund = "generate_refund"
	reasonRechargePrefix = "recharge_order_"
)

// RechargeReason is the ledger reason recorded when an order is approved.
func RechargeReason(orderID string) string {
	return reasonRechargePrefix + orderID
}

// PointsLedgerEntry is an immutable record of one balance change.
type PointsLedgerEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Delta        int64     `json:"delta"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"createdAt"`
	BalanceAfter int64     `json:"balanceAfter"`
	Hash         string    `json:"hash,omitempty"`
}

// GenerateHash generates a tamper-evident hash for the entry
func (e *PointsLedgerEntry) GenerateHash(secret string) string {
	data := fmt.Sprintf("%s|%s|%d|%d|%d|%s",
		e.ID, e.UserID, e.CreatedAt.UnixNano(), e.Delta, e.BalanceAfter, e.Reason)

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHash reports whether the stored hash matches the entry's fields.
// Entries written without a secret carry no hash and always verify.
func (e *PointsLedgerEntry) VerifyHash(secret string) bool {
	if e.Hash == "" {
		return true
	}
	return hmac.Equal([]byte(e.Hash), []byte(e.GenerateHash(secret)))
}
