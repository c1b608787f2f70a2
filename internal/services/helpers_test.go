package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/syy-ex/hair-makeover/internal/database"
	"github.com/syy-ex/hair-makeover/internal/models"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()
	store, err := database.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

// seedUser inserts a user whose balance is backed by a matching ledger entry.
func seedUser(t *testing.T, store database.Store, email string, balance int64) *models.User {
	t.Helper()
	user := &models.User{
		ID:        uuid.NewString(),
		Email:     models.NormalizeEmail(email),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Mutate(context.Background(), func(snap *database.Snapshot) error {
		snap.Users = append(snap.Users, user)
		return nil
	}))
	if balance > 0 {
		_, err := NewLedgerService(store, "").Credit(context.Background(), user.ID, balance, "seed")
		require.NoError(t, err)
	}
	return user
}

// fakeClock hands out strictly increasing times.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func ledgerSum(t *testing.T, store database.Store, userID string) int64 {
	t.Helper()
	snap, err := store.Read(context.Background())
	require.NoError(t, err)
	var sum int64
	for _, e := range snap.PointsLedger {
		if e.UserID == userID {
			sum += e.Delta
		}
	}
	return sum
}
