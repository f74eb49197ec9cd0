package domain

// TokenContext holds wallet counters derived from the merged trade history
// of a token. Recomputed per scored event, never cached.
//
// Invariant: AllWallets == FullWallets + HoldWallets + CloseWallets.
type TokenContext struct {
	TokenAddress string
	AsOf         int64 // Unix seconds; trades after this are ignored

	AllWallets   int // distinct wallets that traded the token
	FullWallets  int // balance >= cumulative bought
	HoldWallets  int // partially exited
	CloseWallets int // balance ~ 0

	Buys10m   int // wallets buying in (3, 10] minutes before AsOf
	Closes10m int // wallets closing in (3, 10] minutes before AsOf
	Buys3m    int // wallets buying in the last 3 minutes
	Closes3m  int // wallets closing in the last 3 minutes

	TotalTrades int
	TotalBuy    int
	TotalSell   int

	FirstTradeTime int64 // Unix seconds of the earliest counted trade, AsOf if none

	// RecentBuyPrices holds the newest buy prices, newest first (at most 2).
	RecentBuyPrices []float64
}

// PriceIncrease returns newest/previous buy price, or 0 with fewer than two buys.
func (c *TokenContext) PriceIncrease() float64 {
	if len(c.RecentBuyPrices) < 2 || c.RecentBuyPrices[1] <= 0 {
		return 0
	}
	return c.RecentBuyPrices[0] / c.RecentBuyPrices[1]
}

// Holding returns wallets that still hold some position.
func (c *TokenContext) Holding() int {
	return c.FullWallets + c.HoldWallets
}

// RecentBuys returns distinct buying wallets over the last 10 minutes.
func (c *TokenContext) RecentBuys() int {
	return c.Buys10m + c.Buys3m
}
