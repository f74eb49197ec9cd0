package scoring

import (
	"math"

	"wallet-signal/internal/domain"
)

// Heat bounds.
const (
	MinHeat = 1
	MaxHeat = 10
)

// Scorer applies the active strategy and computes heat.
type Scorer struct {
	strategy Strategy
	filter   bool
}

// NewScorer creates a scorer. With filter disabled every event passes.
func NewScorer(strategy Strategy, filter bool) *Scorer {
	return &Scorer{strategy: strategy, filter: filter}
}

// StrategyName returns the active strategy name.
func (s *Scorer) StrategyName() string {
	if !s.filter {
		return "unfiltered"
	}
	return s.strategy.Name()
}

// Score evaluates one event. Heat never affects Pass, and exit events
// never pass.
func (s *Scorer) Score(in Input) domain.ScoreResult {
	var res domain.ScoreResult
	switch {
	case in.Event != nil && !in.Event.Position().Notifiable():
		res = domain.ScoreResult{Strategy: s.StrategyName()}
	case s.filter:
		res = s.strategy.Evaluate(in)
	default:
		res = domain.ScoreResult{Pass: true, Strategy: s.StrategyName()}
	}
	res.Heat = Heat(in.Context)
	return res
}

// RawHeat is the unclamped heat value.
func RawHeat(c *domain.TokenContext) float64 {
	if c.AllWallets <= 0 {
		return 0
	}
	all := float64(c.AllWallets)
	recent := float64(c.Buys3m + c.Buys10m)
	return 4*recent/all +
		0.5*math.Min(all, 10) +
		3*float64(c.FullWallets)/all +
		float64(c.HoldWallets)/all -
		3*float64(c.CloseWallets)/all
}

// Heat returns RawHeat rounded and clamped to [MinHeat, MaxHeat].
func Heat(c *domain.TokenContext) int {
	return clampHeat(RawHeat(c))
}

func clampHeat(raw float64) int {
	h := int(math.Round(raw))
	if h < MinHeat {
		return MinHeat
	}
	if h > MaxHeat {
		return MaxHeat
	}
	return h
}
