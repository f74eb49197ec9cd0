package scoring

import "wallet-signal/internal/domain"

// LargeCapStrategy only passes the first or second followed wallet into an
// already large, fully safe token.
type LargeCapStrategy struct {
	MinMarketCap     float64
	MinPriceIncrease float64 // applied to the second signal only
}

// NewLargeCapStrategy returns the large-cap strategy with its standard limits.
func NewLargeCapStrategy() *LargeCapStrategy {
	return &LargeCapStrategy{
		MinMarketCap:     1_000_000,
		MinPriceIncrease: 1.2,
	}
}

// Name returns the strategy name.
func (s *LargeCapStrategy) Name() string {
	return "large_cap"
}

// Evaluate tags "early-1" or "early-2".
func (s *LargeCapStrategy) Evaluate(in Input) domain.ScoreResult {
	c, snap := in.Context, in.Snapshot
	res := domain.ScoreResult{Strategy: s.Name()}

	if snap.MarketCap < s.MinMarketCap || !snap.Safe() {
		return res
	}
	switch c.AllWallets {
	case 1:
		res.Pass, res.Tag = true, "early-1"
	case 2:
		if c.PriceIncrease() >= s.MinPriceIncrease {
			res.Pass, res.Tag = true, "early-2"
		}
	}
	return res
}
