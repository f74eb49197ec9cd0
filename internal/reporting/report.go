package reporting

import "time"

// Report summarizes recorded signals over one event-time range.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	RangeStart  int64     `json:"range_start"` // Unix seconds, inclusive
	RangeEnd    int64     `json:"range_end"`   // Unix seconds, inclusive

	Summary Summary `json:"summary"`

	// Strategies is sorted by strategy name.
	Strategies []StrategyRow `json:"strategies"`

	// Heat has one bucket per heat value 1..10.
	Heat []HeatBucket `json:"heat"`

	// Tokens is sorted by passed DESC, signals DESC, token ASC and truncated.
	Tokens []TokenRow `json:"tokens"`
}

// Summary contains totals over the range.
type Summary struct {
	Signals  int     `json:"signals"`
	Passed   int     `json:"passed"`
	PassRate float64 `json:"pass_rate"`
	Tokens   int     `json:"tokens"`
	Wallets  int     `json:"wallets"`
	Accounts int     `json:"accounts"`
}

// StrategyRow is the verdict breakdown of one strategy.
type StrategyRow struct {
	Strategy        string  `json:"strategy"`
	Signals         int     `json:"signals"`
	Passed          int     `json:"passed"`
	PassRate        float64 `json:"pass_rate"`
	MeanHeat        float64 `json:"mean_heat"`
	MedianMarketCap float64 `json:"median_market_cap"`
}

// HeatBucket counts signals with one heat value.
type HeatBucket struct {
	Heat    int `json:"heat"`
	Signals int `json:"signals"`
	Passed  int `json:"passed"`
}

// TokenRow is the activity of one token.
type TokenRow struct {
	Token     string `json:"token"`
	Symbol    string `json:"symbol"`
	Signals   int    `json:"signals"`
	Passed    int    `json:"passed"`
	Wallets   int    `json:"wallets"`
	MaxHeat   int    `json:"max_heat"`
	FirstSeen int64  `json:"first_seen"`
	LastSeen  int64  `json:"last_seen"`
}
