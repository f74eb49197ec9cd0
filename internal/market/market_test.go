package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-signal/internal/gmgn"
)

type fakeTokenSource struct {
	info *gmgn.TokenInfo
	err  error
}

func (f *fakeTokenSource) TokenInfo(ctx context.Context, tokenAddress string) (*gmgn.TokenInfo, error) {
	return f.info, f.err
}

func TestFetcher_SnapshotRecomputesMarketCap(t *testing.T) {
	src := &fakeTokenSource{info: &gmgn.TokenInfo{
		Address:          "Tok",
		TotalSupply:      1_000_000_000,
		HolderCount:      420,
		Top10HolderRate:  0.22,
		Launchpad:        "pump",
		LaunchpadStatus:  1,
		NetInVolume1m:    1500,
		NetInVolume5m:    7000,
		RenouncedMint:    true,
		RenouncedFreeze:  true,
		BurnRatio:        1,
		BurnStatus:       "burn",
		DexscrUpdateLink: true,
	}}

	snap, err := NewFetcher(src).Snapshot(context.Background(), "Tok", 0.00004)
	require.NoError(t, err)

	assert.InDelta(t, 40_000, snap.MarketCap, 1e-6)
	assert.Equal(t, 420, snap.HolderCount)
	assert.InDelta(t, 1500, snap.NetInflow1m, 1e-9)
	assert.True(t, snap.HasSocials)
	assert.False(t, snap.HasDexAd)
	assert.True(t, snap.Safe())
	assert.False(t, snap.OnLaunchpad())
}

func TestFetcher_SnapshotError(t *testing.T) {
	src := &fakeTokenSource{err: errors.New("boom")}

	_, err := NewFetcher(src).Snapshot(context.Background(), "Tok", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Tok")
}

type fakeGasSource struct {
	mu     sync.Mutex
	prices []float64
	errs   []error
	calls  int
}

func (f *fakeGasSource) GasPrice(ctx context.Context) (*gmgn.GasPrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.prices) {
		i = len(f.prices) - 1
	}
	return &gmgn.GasPrice{NativeUSD: f.prices[i]}, nil
}

func TestGasCache_KeepsLastGoodValue(t *testing.T) {
	src := &fakeGasSource{
		prices: []float64{150, 0, 0},
		errs:   []error{nil, errors.New("timeout")},
	}
	g := NewGasCache(src, GasOptions{})
	ctx := context.Background()

	assert.Zero(t, g.SOLPrice())
	assert.Zero(t, g.CostSOL(100))
	assert.True(t, g.UpdatedAt().IsZero())

	require.NoError(t, g.Refresh(ctx))
	assert.InDelta(t, 150, g.SOLPrice(), 1e-9)
	assert.InDelta(t, 2, g.CostSOL(300), 1e-9)

	assert.Error(t, g.Refresh(ctx))
	assert.InDelta(t, 150, g.SOLPrice(), 1e-9)

	// Zero price is rejected as well.
	assert.Error(t, g.Refresh(ctx))
	assert.InDelta(t, 150, g.SOLPrice(), 1e-9)
}

func TestGasCache_RunRefreshesPeriodically(t *testing.T) {
	src := &fakeGasSource{prices: []float64{100, 120, 140}}
	g := NewGasCache(src, GasOptions{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	assert.Eventually(t, func() bool { return g.SOLPrice() == 140 }, time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
