package scoring

import "wallet-signal/internal/domain"

// Rule is one named branch of the composite strategy.
type Rule struct {
	Tag   string
	Match func(c *domain.TokenContext, s *domain.MarketSnapshot) bool
}

// CompositeStrategy evaluates rules in order; the first match wins.
type CompositeStrategy struct {
	Rules []Rule
}

// NewCompositeStrategy returns the composite strategy with its standard rules.
func NewCompositeStrategy() *CompositeStrategy {
	return &CompositeStrategy{Rules: []Rule{
		{Tag: "1.1", Match: func(c *domain.TokenContext, s *domain.MarketSnapshot) bool {
			return inBand(s.MarketCap, 10_000, 50_000) && s.NetInflow1m >= 1_000 &&
				c.AllWallets >= 2 && s.Safe()
		}},
		{Tag: "1.2", Match: func(c *domain.TokenContext, s *domain.MarketSnapshot) bool {
			return inBand(s.MarketCap, 10_000, 50_000) && c.PriceIncrease() >= 1.5 &&
				c.AllWallets >= 3
		}},
		{Tag: "2.1", Match: func(c *domain.TokenContext, s *domain.MarketSnapshot) bool {
			return inBand(s.MarketCap, 50_000, 200_000) && s.NetInflow5m >= 5_000 &&
				c.FullWallets >= 2
		}},
		{Tag: "2.2", Match: func(c *domain.TokenContext, s *domain.MarketSnapshot) bool {
			return inBand(s.MarketCap, 50_000, 200_000) && c.PriceIncrease() >= 1.75 && s.Safe()
		}},
		{Tag: "3", Match: func(c *domain.TokenContext, s *domain.MarketSnapshot) bool {
			return inBand(s.MarketCap, 200_000, 1_000_000) && s.NetInflow1m > 0 &&
				s.NetInflow5m >= 10_000 && c.Holding() >= 3
		}},
		{Tag: "4", Match: func(c *domain.TokenContext, s *domain.MarketSnapshot) bool {
			return c.AllWallets >= 5 && c.CloseWallets == 0
		}},
		{Tag: "5", Match: func(c *domain.TokenContext, s *domain.MarketSnapshot) bool {
			return c.RecentBuys() >= 3 && s.NetInflow5m > 0
		}},
		{Tag: "6", Match: func(c *domain.TokenContext, s *domain.MarketSnapshot) bool {
			return s.Safe() && s.MarketCap >= 1_000_000 && c.AllWallets >= 2
		}},
	}}
}

// Name returns the strategy name.
func (s *CompositeStrategy) Name() string {
	return "composite"
}

// Evaluate returns the first matching rule's tag.
func (s *CompositeStrategy) Evaluate(in Input) domain.ScoreResult {
	res := domain.ScoreResult{Strategy: s.Name()}
	for _, r := range s.Rules {
		if r.Match(in.Context, in.Snapshot) {
			res.Pass, res.Tag = true, r.Tag
			return res
		}
	}
	return res
}
