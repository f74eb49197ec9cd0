package scoring

import "wallet-signal/internal/domain"

// MomentumStrategy passes broad holder conviction or a sharp price run in
// the mid market cap band.
type MomentumStrategy struct {
	MinHolders       int
	BandLow          float64
	BandHigh         float64
	MinPriceIncrease float64
}

// NewMomentumStrategy returns the momentum strategy with its standard limits.
func NewMomentumStrategy() *MomentumStrategy {
	return &MomentumStrategy{
		MinHolders:       4,
		BandLow:          30_000,
		BandHigh:         300_000,
		MinPriceIncrease: 1.8,
	}
}

// Name returns the strategy name.
func (s *MomentumStrategy) Name() string {
	return "momentum"
}

// Evaluate tags "holders" or "price" depending on which branch matched.
func (s *MomentumStrategy) Evaluate(in Input) domain.ScoreResult {
	c, snap := in.Context, in.Snapshot
	res := domain.ScoreResult{Strategy: s.Name()}

	switch {
	case c.Holding() >= s.MinHolders && c.CloseWallets == 0:
		res.Pass, res.Tag = true, "holders"
	case snap.MarketCap >= s.BandLow && snap.MarketCap <= s.BandHigh &&
		c.PriceIncrease() >= s.MinPriceIncrease:
		res.Pass, res.Tag = true, "price"
	}
	return res
}
