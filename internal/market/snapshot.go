// Package market fetches per-event token metadata and keeps the SOL/USD
// price used to convert trade costs.
package market

import (
	"context"
	"fmt"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/gmgn"
)

// TokenSource returns upstream token metadata.
type TokenSource interface {
	TokenInfo(ctx context.Context, tokenAddress string) (*gmgn.TokenInfo, error)
}

// Fetcher builds MarketSnapshot values.
type Fetcher struct {
	source TokenSource
}

// NewFetcher creates a snapshot fetcher.
func NewFetcher(source TokenSource) *Fetcher {
	return &Fetcher{source: source}
}

// Snapshot fetches metadata for tokenAddress. Market cap is derived from
// priceUSD, the price carried by the triggering event, rather than taken
// from upstream.
func (f *Fetcher) Snapshot(ctx context.Context, tokenAddress string, priceUSD float64) (*domain.MarketSnapshot, error) {
	info, err := f.source.TokenInfo(ctx, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("token info %s: %w", tokenAddress, err)
	}
	return FromTokenInfo(info, priceUSD), nil
}

// FromTokenInfo maps upstream metadata into a snapshot priced at priceUSD.
func FromTokenInfo(info *gmgn.TokenInfo, priceUSD float64) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		TokenAddress:       info.Address,
		PriceUSD:           priceUSD,
		TotalSupply:        info.TotalSupply,
		MarketCap:          priceUSD * info.TotalSupply,
		HolderCount:        info.HolderCount,
		Top10HolderRate:    info.Top10HolderRate,
		CreatedAt:          info.CreationTimestamp,
		OpenedAt:           info.OpenTimestamp,
		Launchpad:          info.Launchpad,
		LaunchpadStatus:    info.LaunchpadStatus,
		PoolInitialReserve: info.PoolInitialReserve,
		NetInflow1m:        info.NetInVolume1m,
		NetInflow5m:        info.NetInVolume5m,
		NetInflow1h:        info.NetInVolume1h,
		RenouncedMint:      info.RenouncedMint,
		RenouncedFreeze:    info.RenouncedFreeze,
		BurnRatio:          info.BurnRatio,
		BurnStatus:         info.BurnStatus,
		HasDexAd:           info.DexscrAd,
		HasSocials:         info.DexscrUpdateLink,
		CTO:                info.CTOFlag,
	}
}
