package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/storage"
)

// DefaultTopTokens is the number of token rows kept in a report.
const DefaultTopTokens = 20

// Generator produces reports from stored signals.
type Generator struct {
	signals   storage.SignalStore
	topTokens int
	now       func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(signals storage.SignalStore) *Generator {
	return &Generator{
		signals:   signals,
		topTokens: DefaultTopTokens,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithTopTokens sets how many token rows are kept. n <= 0 keeps all.
func (g *Generator) WithTopTokens(n int) *Generator {
	g.topTokens = n
	return g
}

// Generate builds a report for signals with event time in [start, end].
func (g *Generator) Generate(ctx context.Context, start, end int64) (*Report, error) {
	if end < start {
		return nil, fmt.Errorf("invalid range: end %d before start %d", end, start)
	}

	records, err := g.signals.GetByTimeRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}

	return &Report{
		GeneratedAt: g.now(),
		RangeStart:  start,
		RangeEnd:    end,
		Summary:     summarize(records),
		Strategies:  strategyRows(records),
		Heat:        heatBuckets(records),
		Tokens:      g.tokenRows(records),
	}, nil
}

// GenerateSince builds a report for the window ending now.
func (g *Generator) GenerateSince(ctx context.Context, window time.Duration) (*Report, error) {
	end := g.now().Unix()
	return g.Generate(ctx, end-int64(window/time.Second), end)
}

func summarize(records []*domain.SignalRecord) Summary {
	tokens := make(map[string]struct{})
	wallets := make(map[string]struct{})
	accounts := make(map[string]struct{})

	var s Summary
	for _, r := range records {
		s.Signals++
		if r.Pass {
			s.Passed++
		}
		tokens[r.TokenAddress] = struct{}{}
		wallets[r.Wallet] = struct{}{}
		accounts[r.Account] = struct{}{}
	}
	s.PassRate = rate(s.Passed, s.Signals)
	s.Tokens = len(tokens)
	s.Wallets = len(wallets)
	s.Accounts = len(accounts)
	return s
}

func strategyRows(records []*domain.SignalRecord) []StrategyRow {
	type acc struct {
		row     StrategyRow
		heatSum int
		caps    []float64
	}
	groups := make(map[string]*acc)
	for _, r := range records {
		a, ok := groups[r.Strategy]
		if !ok {
			a = &acc{row: StrategyRow{Strategy: r.Strategy}}
			groups[r.Strategy] = a
		}
		a.row.Signals++
		if r.Pass {
			a.row.Passed++
		}
		a.heatSum += r.Heat
		a.caps = append(a.caps, r.MarketCap)
	}

	rows := make([]StrategyRow, 0, len(groups))
	for _, a := range groups {
		a.row.PassRate = rate(a.row.Passed, a.row.Signals)
		a.row.MeanHeat = float64(a.heatSum) / float64(a.row.Signals)
		a.row.MedianMarketCap = median(a.caps)
		rows = append(rows, a.row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Strategy < rows[j].Strategy })
	return rows
}

func heatBuckets(records []*domain.SignalRecord) []HeatBucket {
	buckets := make([]HeatBucket, 10)
	for i := range buckets {
		buckets[i].Heat = i + 1
	}
	for _, r := range records {
		if r.Heat < 1 || r.Heat > 10 {
			continue
		}
		b := &buckets[r.Heat-1]
		b.Signals++
		if r.Pass {
			b.Passed++
		}
	}
	return buckets
}

func (g *Generator) tokenRows(records []*domain.SignalRecord) []TokenRow {
	type acc struct {
		row     TokenRow
		wallets map[string]struct{}
	}
	groups := make(map[string]*acc)
	for _, r := range records {
		a, ok := groups[r.TokenAddress]
		if !ok {
			a = &acc{
				row:     TokenRow{Token: r.TokenAddress, FirstSeen: r.EventTime, LastSeen: r.EventTime},
				wallets: make(map[string]struct{}),
			}
			groups[r.TokenAddress] = a
		}
		if r.TokenSymbol != "" {
			a.row.Symbol = r.TokenSymbol
		}
		a.row.Signals++
		if r.Pass {
			a.row.Passed++
		}
		if r.Heat > a.row.MaxHeat {
			a.row.MaxHeat = r.Heat
		}
		if r.EventTime < a.row.FirstSeen {
			a.row.FirstSeen = r.EventTime
		}
		if r.EventTime > a.row.LastSeen {
			a.row.LastSeen = r.EventTime
		}
		a.wallets[r.Wallet] = struct{}{}
	}

	rows := make([]TokenRow, 0, len(groups))
	for _, a := range groups {
		a.row.Wallets = len(a.wallets)
		rows = append(rows, a.row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Passed != rows[j].Passed {
			return rows[i].Passed > rows[j].Passed
		}
		if rows[i].Signals != rows[j].Signals {
			return rows[i].Signals > rows[j].Signals
		}
		return rows[i].Token < rows[j].Token
	})
	if g.topTokens > 0 && len(rows) > g.topTokens {
		rows = rows[:g.topTokens]
	}
	return rows
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
