package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/syy-ex/hair-makeover/internal/database"
	"github.com/syy-ex/hair-makeover/internal/models"
)

// 错误定义
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidAmount = errors.New("invalid amount")
)

// DebitResult reports whether a debit went through and the balance after it.
// A refused debit carries the unchanged balance.
type DebitResult struct {
	OK      bool  `json:"ok"`
	Balance int64 `json:"balance"`
}

// LedgerService keeps User.PointsBalance and the points ledger in step.
// Every balance change is one store mutation that updates both.
type LedgerService struct {
	store  database.Store
	secret string
	now    func() time.Time
}

// NewLedgerService creates a ledger. When secret is non-empty each entry is
// sealed with an HMAC so Verify can detect edits.
func NewLedgerService(store database.Store, secret string) *LedgerService {
	return &LedgerService{store: store, secret: secret, now: time.Now}
}

// Credit 增加积分并记录流水
func (s *LedgerService) Credit(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	entry, err := database.Mutate(ctx, s.store, func(snap *database.Snapshot) (*models.PointsLedgerEntry, error) {
		return s.apply(snap, userID, amount, reason)
	})
	if err != nil {
		return 0, err
	}
	observeLedgerEntry(entry.Delta)
	return entry.BalanceAfter, nil
}

// Debit 扣减积分，余额不足时不做任何修改
func (s *LedgerService) Debit(ctx context.Context, userID string, amount int64, reason string) (DebitResult, error) {
	if amount <= 0 {
		return DebitResult{}, ErrInvalidAmount
	}
	res, err := database.Mutate(ctx, s.store, func(snap *database.Snapshot) (DebitResult, error) {
		user := snap.FindUser(userID)
		if user == nil {
			return DebitResult{}, ErrUserNotFound
		}
		if user.PointsBalance < amount {
			return DebitResult{OK: false, Balance: user.PointsBalance}, nil
		}
		entry, err := s.apply(snap, userID, -amount, reason)
		if err != nil {
			return DebitResult{}, err
		}
		return DebitResult{OK: true, Balance: entry.BalanceAfter}, nil
	})
	if err != nil {
		return DebitResult{}, err
	}
	if res.OK {
		observeLedgerEntry(-amount)
	}
	return res, nil
}

// apply changes the balance and appends the matching entry. It must run
// inside a store mutation.
func (s *LedgerService) apply(snap *database.Snapshot, userID string, delta int64, reason string) (*models.PointsLedgerEntry, error) {
	user := snap.FindUser(userID)
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.PointsBalance+delta < 0 {
		return nil, fmt.Errorf("balance of user %s would become negative", userID)
	}

	user.PointsBalance += delta
	entry := &models.PointsLedgerEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		Delta:        delta,
		Reason:       reason,
		CreatedAt:    s.now().UTC(),
		BalanceAfter: user.PointsBalance,
	}
	if s.secret != "" {
		entry.Hash = entry.GenerateHash(s.secret)
	}
	snap.PointsLedger = append(snap.PointsLedger, entry)
	return entry, nil
}

func (s *LedgerService) Balance(ctx context.Context, userID string) (int64, error) {
	snap, err := s.store.Read(ctx)
	if err != nil {
		return 0, err
	}
	user := snap.FindUser(userID)
	if user == nil {
		return 0, ErrUserNotFound
	}
	return user.PointsBalance, nil
}

// Entries returns the user's ledger, newest first.
func (s *LedgerService) Entries(ctx context.Context, userID string) ([]models.PointsLedgerEntry, error) {
	snap, err := s.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]models.PointsLedgerEntry, 0)
	for _, e := range snap.PointsLedger {
		if e.UserID == userID {
			entries = append(entries, *e)
		}
	}
	// Ledger is appended in time order; reverse keeps ties stable.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// LedgerMismatch describes one user whose balance disagrees with the ledger.
type LedgerMismatch struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Balance    int64  `json:"balance"`
	LedgerSum  int64  `json:"ledgerSum"`
	Negative   bool   `json:"negative"`
	Difference int64  `json:"difference"`
}

type LedgerReport struct {
	Users          int              `json:"users"`
	Entries        int              `json:"entries"`
	Mismatches     []LedgerMismatch `json:"mismatches"`
	TamperedHashes []string         `json:"tamperedHashes"`
	OrphanEntries  []string         `json:"orphanEntries"`
}

func (r LedgerReport) OK() bool {
	return len(r.Mismatches) == 0 && len(r.TamperedHashes) == 0 && len(r.OrphanEntries) == 0
}

// Verify recomputes every balance from the ledger and checks entry hashes.
func (s *LedgerService) Verify(ctx context.Context) (LedgerReport, error) {
	snap, err := s.store.Read(ctx)
	if err != nil {
		return LedgerReport{}, err
	}

	report := LedgerReport{Users: len(snap.Users), Entries: len(snap.PointsLedger)}
	sums := make(map[string]int64, len(snap.Users))
	for _, e := range snap.PointsLedger {
		sums[e.UserID] += e.Delta
		if s.secret != "" && !e.VerifyHash(s.secret) {
			report.TamperedHashes = append(report.TamperedHashes, e.ID)
		}
		if snap.FindUser(e.UserID) == nil {
			report.OrphanEntries = append(report.OrphanEntries, e.ID)
		}
	}

	for _, u := range snap.Users {
		sum := sums[u.ID]
		if sum != u.PointsBalance || u.PointsBalance < 0 {
			report.Mismatches = append(report.Mismatches, LedgerMismatch{
				UserID:     u.ID,
				Email:      u.Email,
				Balance:    u.PointsBalance,
				LedgerSum:  sum,
				Negative:   u.PointsBalance < 0,
				Difference: u.PointsBalance - sum,
			})
		}
	}
	sort.Slice(report.Mismatches, func(i, j int) bool {
		return report.Mismatches[i].UserID < report.Mismatches[j].UserID
	})
	return report, nil
}
