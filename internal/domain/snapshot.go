package domain

// MarketSnapshot is the token metadata needed to score one event.
// MarketCap is recomputed locally as PriceUSD * TotalSupply.
type MarketSnapshot struct {
	TokenAddress string
	PriceUSD     float64 // price carried by the triggering event
	TotalSupply  float64
	MarketCap    float64

	HolderCount     int
	Top10HolderRate float64 // fraction, 0.35 = 35%

	CreatedAt int64 // Unix seconds, 0 if unknown
	OpenedAt  int64 // Unix seconds, 0 if unknown

	Launchpad          string
	LaunchpadStatus    int // 1 once the token left its bonding curve
	PoolInitialReserve float64

	NetInflow1m float64 // USD
	NetInflow5m float64
	NetInflow1h float64

	RenouncedMint   bool
	RenouncedFreeze bool
	BurnRatio       float64
	BurnStatus      string

	HasDexAd   bool // paid DexScreener ad
	HasSocials bool // DexScreener profile updated with links
	CTO        bool // community takeover
}

// BurnStatusBurned is the upstream burn_status value for burned liquidity.
const BurnStatusBurned = "burn"

// Safe reports the full safety predicate: mint and freeze authority renounced,
// a positive burn ratio and confirmed burn status.
func (s *MarketSnapshot) Safe() bool {
	return s.RenouncedMint &&
		s.RenouncedFreeze &&
		s.BurnRatio > 0 &&
		s.BurnStatus == BurnStatusBurned
}

// OnLaunchpad reports whether the token is still on its launchpad curve.
func (s *MarketSnapshot) OnLaunchpad() bool {
	return s.Launchpad != "" && s.LaunchpadStatus == 0
}

// AgeMinutes returns minutes between creation and asOf, 0 if creation is unknown.
func (s *MarketSnapshot) AgeMinutes(asOf int64) float64 {
	if s.CreatedAt <= 0 {
		return 0
	}
	return float64(asOf-s.CreatedAt) / 60
}
