package domain

import (
	"strings"
	"time"
)

// EventKind is the trade direction reported by the activity feed.
type EventKind string

const (
	EventBuy  EventKind = "buy"
	EventSell EventKind = "sell"
)

// String returns the string representation of EventKind.
func (k EventKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a known value.
func (k EventKind) IsValid() bool {
	return k == EventBuy || k == EventSell
}

// PositionChange classifies an activity event against the wallet's position.
type PositionChange int

const (
	PositionUnknown  PositionChange = iota
	PositionOpen                    // buy that opens a position
	PositionIncrease                // buy that adds to a position
	PositionDecrease                // sell that trims a position
	PositionClose                   // sell that fully exits
)

// ClassifyPosition maps the event kind and open/close flag to a PositionChange.
func ClassifyPosition(kind EventKind, openOrClose bool) PositionChange {
	switch {
	case kind == EventBuy && openOrClose:
		return PositionOpen
	case kind == EventBuy:
		return PositionIncrease
	case kind == EventSell && openOrClose:
		return PositionClose
	case kind == EventSell:
		return PositionDecrease
	default:
		return PositionUnknown
	}
}

// String returns the string representation of PositionChange.
func (p PositionChange) String() string {
	switch p {
	case PositionOpen:
		return "open"
	case PositionIncrease:
		return "increase"
	case PositionDecrease:
		return "decrease"
	case PositionClose:
		return "close"
	default:
		return "unknown"
	}
}

// Label is the display label used in notifications.
func (p PositionChange) Label() string {
	switch p {
	case PositionOpen:
		return "🟢 Open"
	case PositionIncrease:
		return "🟢 Increase"
	case PositionDecrease:
		return "🔴 Decrease"
	case PositionClose:
		return "🔴 Close"
	default:
		return "Unknown"
	}
}

// Notifiable reports whether events of this kind may become notifications.
// Exits (close and decrease) never do.
func (p PositionChange) Notifiable() bool {
	return p == PositionOpen || p == PositionIncrease
}

// RawActivityEvent is one followed-wallet trade delivered by the activity feed.
// Transient: produced per frame, never persisted.
type RawActivityEvent struct {
	Kind         EventKind
	Account      string // tracked account whose stream delivered the event
	Wallet       string // followed wallet that traded
	TokenAddress string
	TokenSymbol  string
	TokenName    string
	PriceUSD     float64
	CostUSD      float64
	PriceChange  float64 // fraction, 0.25 = +25%
	Timestamp    int64   // Unix seconds
	OpenOrClose  bool
}

// Position classifies the event.
func (e *RawActivityEvent) Position() PositionChange {
	return ClassifyPosition(e.Kind, e.OpenOrClose)
}

// Time returns the event timestamp as time.Time.
func (e *RawActivityEvent) Time() time.Time {
	return time.Unix(e.Timestamp, 0)
}

// Wrapped SOL and USDC mints.
const (
	wrappedSOLPrefix = "So11111111"
	usdcMint         = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// IsStableToken reports whether the address is SOL or a stable coin.
// Activity on these is quote-side noise and is never scored.
func IsStableToken(address string) bool {
	return strings.Contains(address, wrappedSOLPrefix) || address == usdcMint
}
