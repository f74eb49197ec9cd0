// Package scoring decides whether an activity event becomes a notification.
//
// Exactly one Strategy is active per deployment. It is selected once at
// startup by FromConfig and evaluated per event by Scorer, which also
// attaches the display-only heat value.
package scoring

import (
	"errors"
	"fmt"

	"wallet-signal/internal/domain"
)

// ErrUnknownStrategy is returned by FromConfig for an unsupported kind.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Kind is the configured strategy number.
type Kind int

const (
	KindDefault   Kind = -1
	KindMomentum  Kind = 1
	KindComposite Kind = 2
	KindLargeCap  Kind = 3
)

// Input bundles everything a strategy looks at.
type Input struct {
	Event    *domain.RawActivityEvent
	Context  *domain.TokenContext
	Snapshot *domain.MarketSnapshot
}

// Strategy is one heuristic rule set.
type Strategy interface {
	// Name identifies the strategy in logs, metrics and signal history.
	Name() string

	// Evaluate returns the verdict and optional rule tag. Heat is left zero.
	Evaluate(in Input) domain.ScoreResult
}

// Thresholds are the operator-tunable limits used by the default strategy.
type Thresholds struct {
	MinBuyWallets    int
	MinMarketCap     float64
	MaxMarketCap     float64 // 0 means unbounded
	MaxCreateMinutes int     // 0 disables the age check
	RequireSocials   bool
	RequireAds       bool
	RejectLaunchpad  bool
}

// FromConfig creates the strategy for kind.
func FromConfig(kind Kind, t Thresholds) (Strategy, error) {
	switch kind {
	case KindDefault:
		return &DefaultStrategy{Thresholds: t}, nil
	case KindMomentum:
		return NewMomentumStrategy(), nil
	case KindComposite:
		return NewCompositeStrategy(), nil
	case KindLargeCap:
		return NewLargeCapStrategy(), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, kind)
	}
}

// inBand reports lo <= v < hi.
func inBand(v, lo, hi float64) bool {
	return v >= lo && v < hi
}
