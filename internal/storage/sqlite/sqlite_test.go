package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/storage"
	"wallet-signal/internal/storage/migrations"
	"wallet-signal/internal/storage/sqlite"
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "nested", "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.RunSQLiteMigrations(ctx, db))
	// Idempotent.
	require.NoError(t, migrations.RunSQLiteMigrations(ctx, db))
	return db
}

func TestNotifiedTokenStore(t *testing.T) {
	store := sqlite.NewNotifiedTokenStore(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ok, err := store.Exists(ctx, "Tok")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Insert(ctx, &domain.NotifiedToken{TokenAddress: "Tok", NotifiedAt: base.Add(time.Minute)}))
	require.NoError(t, store.Insert(ctx, &domain.NotifiedToken{TokenAddress: "Tok", NotifiedAt: base}))
	require.NoError(t, store.Insert(ctx, &domain.NotifiedToken{TokenAddress: "Other", NotifiedAt: base}))

	ok, err = store.Exists(ctx, "Tok")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.GetByToken(ctx, "Tok")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, base, got[0].NotifiedAt)
	assert.Equal(t, base.Add(time.Minute), got[1].NotifiedAt)

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
}

func TestTradeReceiptStore(t *testing.T) {
	store := sqlite.NewTradeReceiptStore(setupTestDB(t))
	ctx := context.Background()
	executed := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, &domain.TradeReceipt{
		TokenAddress: "Tok",
		Amount:       0.2,
		Mode:         domain.TradeModeReal,
		Side:         domain.TradeSideBuy,
		ExecutedAt:   executed,
	}))

	ok, err := store.Exists(ctx, "Tok", domain.TradeModeReal, domain.TradeSideBuy)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, "Tok", domain.TradeModeSimulate, domain.TradeSideBuy)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.GetByToken(ctx, "Tok")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.TradeModeReal, got[0].Mode)
	assert.Equal(t, domain.TradeSideBuy, got[0].Side)
	assert.InDelta(t, 0.2, got[0].Amount, 1e-12)
	assert.Equal(t, executed, got[0].ExecutedAt)
}

func TestSignalStore(t *testing.T) {
	store := sqlite.NewSignalStore(setupTestDB(t))
	ctx := context.Background()
	rec := func(id, token string, eventTime int64, pass bool) *domain.SignalRecord {
		return &domain.SignalRecord{
			SignalID:     id,
			TokenAddress: token,
			TokenSymbol:  "TK",
			Wallet:       "W1",
			Account:      "A1",
			Position:     "open",
			Strategy:     "momentum",
			Tag:          "momentum",
			Pass:         pass,
			Heat:         7,
			PriceUSD:     0.0012,
			MarketCap:    120000,
			AllWallets:   5,
			FullWallets:  3,
			HoldWallets:  1,
			CloseWallets: 1,
			EventTime:    eventTime,
			ScoredAt:     eventTime * 1000,
		}
	}

	require.NoError(t, store.Insert(ctx, rec("s2", "Tok", 200, false)))
	require.NoError(t, store.Insert(ctx, rec("s1", "Tok", 100, true)))
	require.NoError(t, store.Insert(ctx, rec("s3", "Other", 300, true)))
	assert.ErrorIs(t, store.Insert(ctx, rec("s1", "Tok", 100, true)), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Insert(ctx, &domain.SignalRecord{}), storage.ErrInvalidInput)

	got, err := store.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, rec("s1", "Tok", 100, true), got)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	byToken, err := store.GetByToken(ctx, "Tok")
	require.NoError(t, err)
	require.Len(t, byToken, 2)
	assert.Equal(t, "s1", byToken[0].SignalID)
	assert.False(t, byToken[1].Pass)

	byTime, err := store.GetByTimeRange(ctx, 100, 200)
	require.NoError(t, err)
	require.Len(t, byTime, 2)
	assert.Equal(t, "s2", byTime[1].SignalID)
}
