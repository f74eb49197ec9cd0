package domain

import "time"

// NotifiedToken records that a notification for a token was delivered.
// Corresponds to token_notify table.
type NotifiedToken struct {
	TokenAddress string
	NotifiedAt   time.Time
}

// TradeMode selects how signals are traded.
type TradeMode int

const (
	TradeModeOff      TradeMode = -1
	TradeModeReal     TradeMode = 0
	TradeModeSimulate TradeMode = 1
)

// String returns the string representation of TradeMode.
func (m TradeMode) String() string {
	switch m {
	case TradeModeReal:
		return "real"
	case TradeModeSimulate:
		return "simulate"
	default:
		return "off"
	}
}

// TradeSide is the direction of an executed trade.
type TradeSide int

const (
	TradeSideBuy  TradeSide = 0
	TradeSideSell TradeSide = 1
)

// TradeReceipt records a trade placed with the execution service.
// Corresponds to send_trade table.
type TradeReceipt struct {
	TokenAddress string
	Amount       float64 // SOL
	Mode         TradeMode
	Side         TradeSide
	ExecutedAt   time.Time
}
