package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/storage"
)

func TestNotifiedTokenStore(t *testing.T) {
	store := NewNotifiedTokenStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ok, err := store.Exists(ctx, "Tok")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Insert(ctx, &domain.NotifiedToken{TokenAddress: "Tok", NotifiedAt: base.Add(time.Minute)}))
	require.NoError(t, store.Insert(ctx, &domain.NotifiedToken{TokenAddress: "Tok", NotifiedAt: base}))

	ok, err = store.Exists(ctx, "Tok")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.GetByToken(ctx, "Tok")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, base, got[0].NotifiedAt)

	assert.ErrorIs(t, store.Insert(ctx, &domain.NotifiedToken{}), storage.ErrInvalidInput)
}

func TestTradeReceiptStore_ExistsMatchesModeAndSide(t *testing.T) {
	store := NewTradeReceiptStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &domain.TradeReceipt{
		TokenAddress: "Tok",
		Amount:       0.2,
		Mode:         domain.TradeModeSimulate,
		Side:         domain.TradeSideBuy,
		ExecutedAt:   time.Now(),
	}))

	ok, err := store.Exists(ctx, "Tok", domain.TradeModeSimulate, domain.TradeSideBuy)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, "Tok", domain.TradeModeReal, domain.TradeSideBuy)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Exists(ctx, "Tok", domain.TradeModeSimulate, domain.TradeSideSell)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.GetByToken(ctx, "Tok")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSignalStore(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.Insert(ctx, &domain.SignalRecord{
			SignalID:     id,
			TokenAddress: "Tok",
			EventTime:    int64(100 - i*10),
		}))
	}
	require.NoError(t, store.Insert(ctx, &domain.SignalRecord{SignalID: "z", TokenAddress: "Other", EventTime: 500}))

	assert.ErrorIs(t, store.Insert(ctx, &domain.SignalRecord{SignalID: "a"}), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Insert(ctx, &domain.SignalRecord{}), storage.ErrInvalidInput)

	got, err := store.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(90), got.EventTime)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	byToken, err := store.GetByToken(ctx, "Tok")
	require.NoError(t, err)
	require.Len(t, byToken, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{byToken[0].SignalID, byToken[1].SignalID, byToken[2].SignalID})

	ranged, err := store.GetByTimeRange(ctx, 85, 500)
	require.NoError(t, err)
	assert.Len(t, ranged, 3)
}

func TestSignalStore_ConcurrentInsert(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Insert(ctx, &domain.SignalRecord{SignalID: "same"})
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch err {
		case nil:
			ok++
		case storage.ErrDuplicateKey:
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 9, dup)
}
