package api

import "wallet-signal/internal/domain"

// SignalResponse is the JSON form of a recorded signal.
type SignalResponse struct {
	SignalID     string  `json:"signal_id"`
	TokenAddress string  `json:"token_address"`
	TokenSymbol  string  `json:"token_symbol"`
	Wallet       string  `json:"wallet"`
	Account      string  `json:"account"`
	Position     string  `json:"position"`
	Strategy     string  `json:"strategy"`
	Tag          string  `json:"tag,omitempty"`
	Pass         bool    `json:"pass"`
	Heat         int     `json:"heat"`
	PriceUSD     float64 `json:"price_usd"`
	MarketCap    float64 `json:"market_cap"`
	AllWallets   int     `json:"all_wallets"`
	FullWallets  int     `json:"full_wallets"`
	HoldWallets  int     `json:"hold_wallets"`
	CloseWallets int     `json:"close_wallets"`
	EventTime    int64   `json:"event_time"`
	ScoredAt     int64   `json:"scored_at"`
}

func toSignalResponse(r *domain.SignalRecord) SignalResponse {
	return SignalResponse{
		SignalID:     r.SignalID,
		TokenAddress: r.TokenAddress,
		TokenSymbol:  r.TokenSymbol,
		Wallet:       r.Wallet,
		Account:      r.Account,
		Position:     r.Position,
		Strategy:     r.Strategy,
		Tag:          r.Tag,
		Pass:         r.Pass,
		Heat:         r.Heat,
		PriceUSD:     r.PriceUSD,
		MarketCap:    r.MarketCap,
		AllWallets:   r.AllWallets,
		FullWallets:  r.FullWallets,
		HoldWallets:  r.HoldWallets,
		CloseWallets: r.CloseWallets,
		EventTime:    r.EventTime,
		ScoredAt:     r.ScoredAt,
	}
}
