package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syy-ex/hair-makeover/config"
	"github.com/syy-ex/hair-makeover/internal/models"
)

type fakeGenerator struct {
	output []string
	err    error
	block  bool
	got    GenerateRequest
}

func (g *fakeGenerator) Generate(ctx context.Context, req GenerateRequest) ([]string, error) {
	g.got = req
	if g.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return g.output, g.err
}

const testImage = "data:image/png;base64,iVBORw0KGgo="

func TestGenerateChargesOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	user := seedUser(t, store, "a@example.com", 12)
	ledger := NewLedgerService(store, "")
	gen := &fakeGenerator{output: []string{"https://img/1.png"}}
	svc := NewGenerationService(ledger, gen)

	out, err := svc.Generate(ctx, user.ID, GenerateRequest{UserImage: testImage, HairstyleImage: testImage})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img/1.png"}, out)
	assert.Equal(t, defaultHairPrompt, gen.got.Prompt)

	balance, err := ledger.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), balance)
}

func TestGenerateRefundsOnFailure(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
		want error
	}{
		{name: "provider error", gen: &fakeGenerator{err: errors.New("upstream 500")}},
		{name: "empty output", gen: &fakeGenerator{}, want: ErrNoOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newTestStore(t)
			user := seedUser(t, store, "a@example.com", 5)
			ledger := NewLedgerService(store, "")
			svc := NewGenerationService(ledger, tt.gen)

			_, err := svc.Generate(ctx, user.ID, GenerateRequest{UserImage: testImage, HairstyleImage: testImage, Prompt: "bob cut"})
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}

			balance, err := ledger.Balance(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(5), balance)

			entries, err := ledger.Entries(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, entries, 3)
			assert.Equal(t, models.ReasonGenerateRefund, entries[0].Reason)
			assert.Equal(t, models.ReasonGenerate, entries[1].Reason)
		})
	}
}

func TestGenerateRefundsOnCancel(t *testing.T) {
	store := newTestStore(t)
	user := seedUser(t, store, "a@example.com", 5)
	ledger := NewLedgerService(store, "")
	svc := NewGenerationService(ledger, &fakeGenerator{block: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		_, err := svc.Generate(ctx, user.ID, GenerateRequest{UserImage: testImage, HairstyleImage: testImage})
		done <- err
	}()

	require.Eventually(t, func() bool {
		b, _ := ledger.Balance(context.Background(), user.ID)
		return b == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	balance, err := ledger.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)
}

func TestGenerateInsufficientPoints(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	user := seedUser(t, store, "a@example.com", 3)
	gen := &fakeGenerator{output: []string{"x"}}
	svc := NewGenerationService(NewLedgerService(store, ""), gen)

	_, err := svc.Generate(ctx, user.ID, GenerateRequest{UserImage: testImage, HairstyleImage: testImage})
	assert.ErrorIs(t, err, ErrInsufficientPoints)
	assert.Empty(t, gen.got.UserImage)

	_, err = svc.Generate(ctx, user.ID, GenerateRequest{UserImage: testImage})
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestGenerateUnconfiguredGeneratorChargesNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	user := seedUser(t, store, "a@example.com", 12)
	ledger := NewLedgerService(store, "")
	svc := NewGenerationService(ledger, NewNanoClient(config.NanoConfig{}, nil))

	_, err := svc.Generate(ctx, user.ID, GenerateRequest{UserImage: testImage, HairstyleImage: testImage})
	assert.ErrorIs(t, err, ErrGeneratorConfig)

	entries, err := ledger.Entries(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the seed credit")
	balance, err := ledger.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), balance)
}
