package aggregate

import (
	"sort"

	"wallet-signal/internal/domain"
)

// Window bounds in seconds before AsOf.
const (
	recentWindow = 3 * 60
	wideWindow   = 10 * 60
)

// closeBalance is the balance at or below which a wallet counts as exited.
const closeBalance = 1e-10

type windowPick struct {
	timestamp   int64
	event       domain.EventKind
	openOrClose bool
}

// Fold derives a TokenContext from a merged trade history.
//
// Trades after asOf are ignored. Each wallet is classified once, from its
// first record in trades. Within each window a wallet is counted at most
// once, using its record closest to asOf.
func Fold(tokenAddress string, trades []domain.TradeRecord, asOf int64) domain.TokenContext {
	c := domain.TokenContext{
		TokenAddress:   tokenAddress,
		AsOf:           asOf,
		TotalTrades:    len(trades),
		FirstTradeTime: asOf,
	}

	classified := make(map[string]struct{})
	recent := make(map[string]windowPick)
	wide := make(map[string]windowPick)
	var buys []domain.TradeRecord

	for _, t := range trades {
		if t.Timestamp > asOf {
			continue
		}

		switch t.Event {
		case domain.EventBuy:
			c.TotalBuy++
			buys = append(buys, t)
		case domain.EventSell:
			c.TotalSell++
		}

		if t.Timestamp < c.FirstTradeTime {
			c.FirstTradeTime = t.Timestamp
		}

		pick := windowPick{timestamp: t.Timestamp, event: t.Event, openOrClose: t.OpenOrClose}
		switch age := asOf - t.Timestamp; {
		case age <= recentWindow:
			keepNewest(recent, t.Maker, pick)
		case age <= wideWindow:
			keepNewest(wide, t.Maker, pick)
		}

		if _, ok := classified[t.Maker]; ok {
			continue
		}
		classified[t.Maker] = struct{}{}
		c.AllWallets++
		switch {
		case t.Balance >= t.HistoryBoughtAmount:
			c.FullWallets++
		case t.Balance <= closeBalance:
			c.CloseWallets++
		default:
			c.HoldWallets++
		}
	}

	c.Buys3m, c.Closes3m = countWindow(recent)
	c.Buys10m, c.Closes10m = countWindow(wide)
	c.RecentBuyPrices = newestBuyPrices(buys, 2)
	return c
}

func keepNewest(window map[string]windowPick, wallet string, pick windowPick) {
	if cur, ok := window[wallet]; ok && cur.timestamp >= pick.timestamp {
		return
	}
	window[wallet] = pick
}

func countWindow(window map[string]windowPick) (buys, closes int) {
	for _, p := range window {
		switch {
		case p.event == domain.EventBuy:
			buys++
		case p.event == domain.EventSell && p.openOrClose:
			closes++
		}
	}
	return buys, closes
}

// newestBuyPrices returns up to n positive buy prices, newest first.
func newestBuyPrices(buys []domain.TradeRecord, n int) []float64 {
	sort.SliceStable(buys, func(i, j int) bool {
		return buys[i].Timestamp > buys[j].Timestamp
	})
	out := make([]float64, 0, n)
	for _, b := range buys {
		if b.PriceUSD <= 0 {
			continue
		}
		out = append(out, b.PriceUSD)
		if len(out) == n {
			break
		}
	}
	return out
}
