package gmgn

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// The upstream encodes numbers inconsistently: as JSON numbers, numeric
// strings, empty strings or null, and booleans as 0/1. The flex types below
// decode all of these and fall back to the zero value.

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	*f = 0
	s := unquote(b)
	switch s {
	case "", "null", "None", "false":
		return nil
	case "true":
		*f = 1
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	*f = flexFloat(v)
	return nil
}

type flexInt int64

func (i *flexInt) UnmarshalJSON(b []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(b); err != nil {
		return err
	}
	*i = flexInt(f)
	return nil
}

type flexBool bool

func (v *flexBool) UnmarshalJSON(b []byte) error {
	s := strings.ToLower(unquote(b))
	switch s {
	case "true":
		*v = true
		return nil
	case "", "null", "none", "false":
		*v = false
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	*v = flexBool(err == nil && f != 0)
	return nil
}

type flexString string

func (v *flexString) UnmarshalJSON(b []byte) error {
	s := unquote(b)
	if s == "null" {
		s = ""
	}
	*v = flexString(s)
	return nil
}

func unquote(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return string(b)
}

// GasPrice holds the gas-price endpoint fields this service uses.
type GasPrice struct {
	NativeUSD float64 // SOL/USD price (reported as eth_usd_price)
}

type gasPriceWire struct {
	NativeUSD flexFloat `json:"eth_usd_price"`
}

// TokenInfo is token metadata from the quotation API.
type TokenInfo struct {
	Address            string
	Symbol             string
	Name               string
	TotalSupply        float64
	CreationTimestamp  int64
	OpenTimestamp      int64
	HolderCount        int
	Top10HolderRate    float64 // fraction
	PoolInitialReserve float64
	Launchpad          string
	LaunchpadStatus    int
	NetInVolume1m      float64
	NetInVolume5m      float64
	NetInVolume1h      float64
	RenouncedMint      bool
	RenouncedFreeze    bool
	BurnRatio          float64
	BurnStatus         string
	DexscrAd           bool
	DexscrUpdateLink   bool
	CTOFlag            bool
}

type tokenInfoWire struct {
	Token struct {
		Address           flexString `json:"address"`
		Symbol            flexString `json:"symbol"`
		Name              flexString `json:"name"`
		TotalSupply       flexFloat  `json:"total_supply"`
		CreationTimestamp flexInt    `json:"creation_timestamp"`
		OpenTimestamp     flexInt    `json:"open_timestamp"`
		HolderCount       flexInt    `json:"holder_count"`
		Top10HolderRate   flexFloat  `json:"top_10_holder_rate"`
		PoolInfo          *struct {
			InitialQuoteReserve flexFloat `json:"initial_quote_reserve"`
		} `json:"pool_info"`
		Launchpad              flexString `json:"launchpad"`
		LaunchpadStatus        flexInt    `json:"launchpad_status"`
		NetInVolume1m          flexFloat  `json:"net_in_volume_1m"`
		NetInVolume5m          flexFloat  `json:"net_in_volume_5m"`
		NetInVolume1h          flexFloat  `json:"net_in_volume_1h"`
		RenouncedMint          flexBool   `json:"renounced_mint"`
		RenouncedFreezeAccount flexBool   `json:"renounced_freeze_account"`
		BurnRatio              flexFloat  `json:"burn_ratio"`
		BurnStatus             flexString `json:"burn_status"`
		DexscrAd               flexBool   `json:"dexscr_ad"`
		DexscrUpdateLink       flexBool   `json:"dexscr_update_link"`
		CTOFlag                flexBool   `json:"cto_flag"`
	} `json:"token"`
}

func (w *tokenInfoWire) toTokenInfo() *TokenInfo {
	t := w.Token
	info := &TokenInfo{
		Address:           string(t.Address),
		Symbol:            string(t.Symbol),
		Name:              string(t.Name),
		TotalSupply:       float64(t.TotalSupply),
		CreationTimestamp: int64(t.CreationTimestamp),
		OpenTimestamp:     int64(t.OpenTimestamp),
		HolderCount:       int(t.HolderCount),
		Top10HolderRate:   float64(t.Top10HolderRate),
		Launchpad:         string(t.Launchpad),
		LaunchpadStatus:   int(t.LaunchpadStatus),
		NetInVolume1m:     float64(t.NetInVolume1m),
		NetInVolume5m:     float64(t.NetInVolume5m),
		NetInVolume1h:     float64(t.NetInVolume1h),
		RenouncedMint:     bool(t.RenouncedMint),
		RenouncedFreeze:   bool(t.RenouncedFreezeAccount),
		BurnRatio:         float64(t.BurnRatio),
		BurnStatus:        string(t.BurnStatus),
		DexscrAd:          bool(t.DexscrAd),
		DexscrUpdateLink:  bool(t.DexscrUpdateLink),
		CTOFlag:           bool(t.CTOFlag),
	}
	if t.PoolInfo != nil {
		info.PoolInitialReserve = float64(t.PoolInfo.InitialQuoteReserve)
	}
	return info
}

type tradeWire struct {
	Maker               flexString `json:"maker"`
	Event               flexString `json:"event"`
	Balance             flexFloat  `json:"balance"`
	HistoryBoughtAmount flexFloat  `json:"history_bought_amount"`
	HistorySoldAmount   flexFloat  `json:"history_sold_amount"`
	PriceUSD            flexFloat  `json:"price_usd"`
	Timestamp           flexInt    `json:"timestamp"`
	IsOpenOrClose       flexBool   `json:"is_open_or_close"`
}

type tradeHistoryWire struct {
	History []tradeWire `json:"history"`
	Next    flexString  `json:"next"`
}

type followingWire struct {
	Followings []struct {
		Address string `json:"address"`
	} `json:"followings"`
}
