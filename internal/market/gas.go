package market

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wallet-signal/internal/gmgn"
	"wallet-signal/internal/observability"
)

// DefaultGasRefresh is the SOL price refresh period.
const DefaultGasRefresh = 20 * time.Second

// GasSource returns the upstream gas-price payload.
type GasSource interface {
	GasPrice(ctx context.Context) (*gmgn.GasPrice, error)
}

// GasOptions configures GasCache.
type GasOptions struct {
	Interval time.Duration
	Logger   *zerolog.Logger
}

// GasCache keeps the last known SOL/USD price. A failed refresh keeps the
// previous value.
type GasCache struct {
	source   GasSource
	interval time.Duration
	price    atomic.Uint64 // math.Float64bits
	updated  atomic.Int64  // unix seconds
	logger   zerolog.Logger
}

// NewGasCache creates a cache with no price yet.
func NewGasCache(source GasSource, opts GasOptions) *GasCache {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultGasRefresh
	}
	return &GasCache{
		source:   source,
		interval: interval,
		logger:   logger.With().Str("component", "gas").Logger(),
	}
}

// SOLPrice returns the last known SOL/USD price, 0 if never fetched.
func (g *GasCache) SOLPrice() float64 {
	return math.Float64frombits(g.price.Load())
}

// UpdatedAt returns when the price last changed, zero time if never.
func (g *GasCache) UpdatedAt() time.Time {
	ts := g.updated.Load()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

// CostSOL converts a USD amount to SOL, 0 while the price is unknown.
func (g *GasCache) CostSOL(costUSD float64) float64 {
	p := g.SOLPrice()
	if p <= 0 {
		return 0
	}
	return costUSD / p
}

// Refresh fetches the price once.
func (g *GasCache) Refresh(ctx context.Context) error {
	gas, err := g.source.GasPrice(ctx)
	if err != nil {
		return fmt.Errorf("gas price: %w", err)
	}
	if gas.NativeUSD <= 0 {
		return fmt.Errorf("gas price: non-positive SOL price %v", gas.NativeUSD)
	}
	g.price.Store(math.Float64bits(gas.NativeUSD))
	g.updated.Store(time.Now().Unix())
	observability.SetSOLPrice(gas.NativeUSD)
	return nil
}

// Run refreshes immediately and then every interval until ctx is done.
func (g *GasCache) Run(ctx context.Context) error {
	g.refreshLogged(ctx)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.refreshLogged(ctx)
		}
	}
}

func (g *GasCache) refreshLogged(ctx context.Context) {
	if err := g.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		g.logger.Warn().Err(err).Float64("sol_usd", g.SOLPrice()).Msg("gas_refresh_failed")
		return
	}
	g.logger.Debug().Float64("sol_usd", g.SOLPrice()).Msg("gas_refreshed")
}
