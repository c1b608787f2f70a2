package points

import (
	"time"

	"github.com/syy-ex/hair-makeover/internal/models"
)

type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

type LedgerEntryResponse struct {
	ID           string    `json:"id"`
	Delta        int64     `json:"delta"`
	Reason       string    `json:"reason"`
	BalanceAfter int64     `json:"balanceAfter"`
	CreatedAt    time.Time `json:"createdAt"`
}

type LedgerResponse struct {
	Entries []LedgerEntryResponse `json:"entries"`
}

func toLedgerResponse(entries []models.PointsLedgerEntry) LedgerResponse {
	out := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, LedgerEntryResponse{
			ID:           e.ID,
			Delta:        e.Delta,
			Reason:       e.Reason,
			BalanceAfter: e.BalanceAfter,
			CreatedAt:    e.CreatedAt,
		})
	}
	return LedgerResponse{Entries: out}
}
