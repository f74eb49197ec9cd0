package domain

// TradeRecord is one historical trade of a followed wallet on a token,
// as reported by the upstream trade history API. Read-only.
type TradeRecord struct {
	Maker               string    // wallet that traded
	Event               EventKind // buy | sell
	Balance             float64   // current on-chain token balance of Maker
	HistoryBoughtAmount float64   // cumulative bought amount
	HistorySoldAmount   float64   // cumulative sold amount
	PriceUSD            float64   // execution price
	Timestamp           int64     // Unix seconds
	OpenOrClose         bool
}
