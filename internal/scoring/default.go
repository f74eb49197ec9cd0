package scoring

import "wallet-signal/internal/domain"

// DefaultStrategy applies the configured wallet count, market cap band,
// DexScreener flags, token age and launchpad checks.
type DefaultStrategy struct {
	Thresholds Thresholds
}

// Name returns the strategy name.
func (s *DefaultStrategy) Name() string {
	return "default"
}

// Evaluate passes when every configured check holds.
func (s *DefaultStrategy) Evaluate(in Input) domain.ScoreResult {
	t := s.Thresholds
	c, snap := in.Context, in.Snapshot
	res := domain.ScoreResult{Strategy: s.Name()}

	if c.AllWallets < t.MinBuyWallets {
		return res
	}
	if snap.MarketCap < t.MinMarketCap {
		return res
	}
	if t.MaxMarketCap > 0 && snap.MarketCap > t.MaxMarketCap {
		return res
	}
	if t.RequireSocials && !snap.HasSocials {
		return res
	}
	if t.RequireAds && !snap.HasDexAd {
		return res
	}
	if t.MaxCreateMinutes > 0 && snap.CreatedAt > 0 &&
		snap.AgeMinutes(in.Event.Timestamp) > float64(t.MaxCreateMinutes) {
		return res
	}
	if t.RejectLaunchpad && snap.OnLaunchpad() {
		return res
	}

	res.Pass = true
	return res
}
