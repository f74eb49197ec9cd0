package domain

// SignalRecord is the persisted outcome of scoring one activity event.
// Corresponds to signal_events table in ClickHouse.
type SignalRecord struct {
	SignalID     string // PRIMARY KEY, deterministic hash
	TokenAddress string
	TokenSymbol  string
	Wallet       string
	Account      string
	Position     string // open | increase
	Strategy     string
	Tag          string
	Pass         bool
	Heat         int
	PriceUSD     float64
	MarketCap    float64
	AllWallets   int
	FullWallets  int
	HoldWallets  int
	CloseWallets int
	EventTime    int64 // Unix seconds
	ScoredAt     int64 // Unix milliseconds
}
