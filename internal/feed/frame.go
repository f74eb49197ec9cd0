package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"wallet-signal/internal/domain"
)

// FrameKind classifies an inbound stream frame.
type FrameKind int

const (
	FrameOther FrameKind = iota // acks, errors, anything without activity data
	FramePong
	FrameData
)

// String returns the string representation of FrameKind.
func (k FrameKind) String() string {
	switch k {
	case FramePong:
		return "pong"
	case FrameData:
		return "data"
	default:
		return "other"
	}
}

// ErrMalformedFrame is returned for frames that are not JSON objects.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one inbound message from an upstream stream.
// Raw is kept verbatim so the relay can forward it unchanged.
type Frame struct {
	Account string
	Kind    FrameKind
	Raw     []byte
	Events  []domain.RawActivityEvent
}

type frameWire struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type activityWire struct {
	EventType     string          `json:"event_type"`
	WalletAddress string          `json:"wallet_address"`
	TokenAddress  string          `json:"token_address"`
	PriceUSD      json.RawMessage `json:"price_usd"`
	CostUSD       json.RawMessage `json:"cost_usd"`
	PriceChange   json.RawMessage `json:"price_change"`
	Timestamp     json.RawMessage `json:"timestamp"`
	IsOpenOrClose json.RawMessage `json:"is_open_or_close"`

	Token *struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
		Name    string `json:"name"`
	} `json:"token"`
}

// DecodeFrame classifies raw and decodes any activity events it carries.
// Individual malformed events are skipped; the count of skipped events is
// returned alongside the frame.
func DecodeFrame(account string, raw []byte) (Frame, int, error) {
	frame := Frame{Account: account, Kind: FrameOther, Raw: raw}

	var w frameWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return frame, 0, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if w.Type == "pong" {
		frame.Kind = FramePong
		return frame, 0, nil
	}

	data := bytes.TrimSpace(w.Data)
	if len(data) == 0 || data[0] != '[' {
		return frame, 0, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return frame, 0, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(items) == 0 {
		return frame, 0, nil
	}

	frame.Kind = FrameData
	skipped := 0
	for _, item := range items {
		ev, err := decodeActivity(account, item)
		if err != nil {
			skipped++
			continue
		}
		frame.Events = append(frame.Events, ev)
	}
	return frame, skipped, nil
}

func decodeActivity(account string, raw json.RawMessage) (domain.RawActivityEvent, error) {
	var w activityWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.RawActivityEvent{}, err
	}

	ev := domain.RawActivityEvent{
		Kind:         domain.EventKind(strings.ToLower(w.EventType)),
		Account:      account,
		Wallet:       w.WalletAddress,
		TokenAddress: w.TokenAddress,
		PriceUSD:     number(w.PriceUSD),
		CostUSD:      number(w.CostUSD),
		PriceChange:  number(w.PriceChange),
		Timestamp:    int64(number(w.Timestamp)),
		OpenOrClose:  number(w.IsOpenOrClose) != 0,
	}
	if w.Token != nil {
		if w.Token.Address != "" {
			ev.TokenAddress = w.Token.Address
		}
		ev.TokenSymbol = w.Token.Symbol
		ev.TokenName = w.Token.Name
	}

	switch {
	case !ev.Kind.IsValid():
		return ev, fmt.Errorf("unknown event type %q", w.EventType)
	case ev.TokenAddress == "":
		return ev, errors.New("missing token address")
	case ev.Timestamp <= 0:
		return ev, errors.New("missing timestamp")
	}
	return ev, nil
}

// number decodes a JSON number, numeric string or boolean, 0 otherwise.
func number(raw json.RawMessage) float64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	switch s {
	case "", "null":
		return 0
	case "true":
		return 1
	case "false":
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
