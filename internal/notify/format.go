// Package notify renders passing signals as Telegram markdown and delivers them.
package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wallet-signal/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
)

// Signal carries everything the formatter renders for one passing event.
type Signal struct {
	Event    *domain.RawActivityEvent
	Context  *domain.TokenContext
	Snapshot *domain.MarketSnapshot
	Score    domain.ScoreResult
	CostSOL  float64
}

// Formatter renders signals in a fixed timezone.
type Formatter struct {
	loc *time.Location
}

// NewFormatter creates a Formatter. A nil location means UTC.
func NewFormatter(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{loc: loc}
}

// Format renders the notification message for s.
func (f *Formatter) Format(s Signal) string {
	ev, tc, snap := s.Event, s.Context, s.Snapshot
	if tc == nil {
		tc = &domain.TokenContext{}
	}
	if snap == nil {
		snap = &domain.MarketSnapshot{PriceUSD: ev.PriceUSD}
	}
	ca := ev.TokenAddress

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**, **%s SOL**  ***%s(%s)***\n\n",
		ev.Position().Label(), decimal.NewFromFloat(s.CostSOL).StringFixed(3), ev.TokenSymbol, ev.TokenName)
	fmt.Fprintf(&b, "**Trade time**: %s\n", f.formatTime(ev.Timestamp))
	fmt.Fprintf(&b, "**CA**: `%s`\n", ca)
	fmt.Fprintf(&b, "***Market cap***: ***$%s*** ($%s)\n\n", FormatNumber(snap.MarketCap), FormatPrice(snap.PriceUSD))
	fmt.Fprintf(&b, "**10m buy wallets**: ***%d***; **10m closed wallets**: ***%d***\n\n", tc.Buys10m, tc.Closes10m)
	fmt.Fprintf(&b, "**First buy**: ***%s***\n", f.formatTime(tc.FirstTradeTime))
	fmt.Fprintf(&b, "**Buy wallets**: %s\n", squares(tc.AllWallets, "🟦"))
	fmt.Fprintf(&b, "**Full position**: %s\n", squares(tc.FullWallets, "🟩"))
	fmt.Fprintf(&b, "**Reduced**: %s\n", squares(tc.HoldWallets, "🟨"))
	fmt.Fprintf(&b, "**Closed**: %s\n", squares(tc.CloseWallets, "🟥"))
	fmt.Fprintf(&b, "**Holders**: %d, **TOP10**: %s\n", snap.HolderCount, formatRate(snap.Top10HolderRate))
	fmt.Fprintf(&b, "**Heat**: %s %d/10", strings.Repeat("🔥", s.Score.Heat), s.Score.Heat)
	if s.Score.Tag != "" {
		fmt.Fprintf(&b, ", **Rule**: %s %s", s.Score.Strategy, s.Score.Tag)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "**Wallet**: [%s](https://gmgn.ai/sol/address/%s)\n", ev.Wallet, ev.Wallet)
	fmt.Fprintf(&b, "🔗 Trade: [Trojan](https://t.me/solana_trojanbot?start=r-marcle253818-%s) | "+
		"[GMGN](https://t.me/GMGN_sol_bot?start=%s) | "+
		"[Pepe](https://t.me/pepeboost_sol12_bot?start=ref_0nh46x_ca_%s) | "+
		"[Cash](https://t.me/CashCash_trade_bot?start=ref_132dfe48-7_ca_%s) \n", ca, ca, ca, ca)
	fmt.Fprintf(&b, "🔗 Chart: [GMGN](https://gmgn.ai/sol/token/%s) \n", ca)
	return b.String()
}

func (f *Formatter) formatTime(unix int64) string {
	return time.Unix(unix, 0).In(f.loc).Format(timeLayout)
}

func squares(n int, glyph string) string {
	if n < 0 {
		n = 0
	}
	return fmt.Sprintf("**%d**%s", n, strings.Repeat(glyph, n))
}

// formatRate renders a 0..1 fraction as a percentage with two decimals.
func formatRate(rate float64) string {
	return decimal.NewFromFloat(rate).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

// FormatNumber abbreviates v with K, M or B suffixes.
func FormatNumber(v float64) string {
	d := decimal.NewFromFloat(v)
	switch {
	case d.LessThan(thousand):
		return d.StringFixed(0)
	case d.LessThan(million):
		return d.Div(thousand).StringFixed(2) + "K"
	case d.LessThan(billion):
		return d.Div(million).StringFixed(2) + "M"
	default:
		return d.Div(billion).StringFixed(2) + "B"
	}
}

// FormatPrice renders a price with four significant digits. Prices below
// 1e-4 compress their leading zeros: 0.0000012345 becomes "0.0{5}1234".
func FormatPrice(price float64) string {
	sci := strconv.FormatFloat(price, 'e', 10, 64)
	mantissa, expPart, _ := strings.Cut(sci, "e")
	exp, err := strconv.Atoi(expPart)
	if err != nil || exp >= -4 || price <= 0 {
		return strconv.FormatFloat(price, 'g', 4, 64)
	}

	digits := strings.Replace(strings.TrimRight(mantissa, "0"), ".", "", 1)
	if len(digits) > 4 {
		digits = digits[:4]
	}
	return fmt.Sprintf("0.0{%d}%s", -exp-1, digits)
}
