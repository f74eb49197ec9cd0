// Package pipeline turns raw activity events into scored, recorded and
// delivered signals.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/feed"
	"wallet-signal/internal/idhash"
	"wallet-signal/internal/notify"
	"wallet-signal/internal/observability"
	"wallet-signal/internal/scoring"
	"wallet-signal/internal/storage"
	"wallet-signal/internal/trade"
)

// Default configuration values.
const (
	DefaultConcurrency = 8
	DefaultQueueSize   = 256
	DefaultTimeout     = 90 * time.Second
	DefaultDedupeSize  = 10_000
)

// Drop reasons reported to metrics.
const (
	dropExit      = "exit"
	dropStable    = "stable"
	dropDuplicate = "duplicate"
	dropQueueFull = "queue_full"
	dropEnrich    = "enrich_failed"
)

// Outcome is what Handle did with an event.
type Outcome int

const (
	OutcomeDropped  Outcome = iota // filtered before scoring
	OutcomeRejected                // scored, did not pass
	OutcomePassed                  // scored, passed and delivered
)

// String returns the string representation of Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return "rejected"
	case OutcomePassed:
		return "passed"
	default:
		return "dropped"
	}
}

// ContextSource aggregates trade history for a token.
type ContextSource interface {
	Aggregate(ctx context.Context, tokenAddress string, asOf time.Time) (*domain.TokenContext, error)
}

// SnapshotSource fetches market data for a token.
type SnapshotSource interface {
	Snapshot(ctx context.Context, tokenAddress string, priceUSD float64) (*domain.MarketSnapshot, error)
}

// PriceSource converts USD cost to SOL.
type PriceSource interface {
	CostSOL(costUSD float64) float64
}

// Deps are the collaborators of Processor. Executor and Signals are optional.
type Deps struct {
	Contexts  ContextSource
	Snapshots SnapshotSource
	Prices    PriceSource
	Scorer    *scoring.Scorer
	Formatter *notify.Formatter
	Notifier  notify.Notifier
	Executor  trade.Executor      // nil disables trading
	Signals   storage.SignalStore // nil disables signal history
}

// Options configures Processor.
type Options struct {
	Concurrency int
	QueueSize   int
	Timeout     time.Duration // per event
	DedupeSize  int
	Logger      *zerolog.Logger
}

// Processor runs the event pipeline on a bounded worker pool.
type Processor struct {
	deps    Deps
	queue   chan domain.RawActivityEvent
	seen    *recentSet
	workers int
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates a Processor.
func New(deps Deps, opts Options) (*Processor, error) {
	switch {
	case deps.Contexts == nil:
		return nil, errors.New("pipeline: context source is required")
	case deps.Snapshots == nil:
		return nil, errors.New("pipeline: snapshot source is required")
	case deps.Prices == nil:
		return nil, errors.New("pipeline: price source is required")
	case deps.Scorer == nil:
		return nil, errors.New("pipeline: scorer is required")
	case deps.Notifier == nil:
		return nil, errors.New("pipeline: notifier is required")
	}
	if deps.Formatter == nil {
		deps.Formatter = notify.NewFormatter(time.UTC)
	}

	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.DedupeSize <= 0 {
		opts.DedupeSize = DefaultDedupeSize
	}

	return &Processor{
		deps:    deps,
		queue:   make(chan domain.RawActivityEvent, opts.QueueSize),
		seen:    newRecentSet(opts.DedupeSize),
		workers: opts.Concurrency,
		timeout: opts.Timeout,
		logger:  logger.With().Str("component", "pipeline").Logger(),
		now:     time.Now,
	}, nil
}

// HandleFrame submits every event in frame. It never blocks and is used as
// the supervisor sink.
func (p *Processor) HandleFrame(frame feed.Frame) {
	for _, ev := range frame.Events {
		p.Submit(ev)
	}
}

// Submit queues ev for processing. Exit and stable-coin events are dropped
// here, before any fetch. Returns false when the event was not queued.
func (p *Processor) Submit(ev domain.RawActivityEvent) bool {
	observability.RecordEventReceived()
	if reason, drop := prefilter(&ev); drop {
		observability.RecordEventDropped(reason)
		return false
	}
	select {
	case p.queue <- ev:
		return true
	default:
		observability.RecordEventDropped(dropQueueFull)
		p.logger.Warn().Str("token", ev.TokenAddress).Str("wallet", ev.Wallet).Msg("event_queue_full")
		return false
	}
}

// Run processes queued events until ctx is done. Events already being
// processed run to completion on a context detached from ctx.
func (p *Processor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	wg.Wait()
	return nil
}

func (p *Processor) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.queue:
			evCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
			if _, err := p.Handle(evCtx, ev); err != nil {
				p.logger.Warn().Err(err).
					Str("token", ev.TokenAddress).
					Str("wallet", ev.Wallet).
					Msg("event_failed")
			}
			cancel()
		}
	}
}

// Handle runs one event through filter, enrichment, scoring, recording,
// trading and delivery.
func (p *Processor) Handle(ctx context.Context, ev domain.RawActivityEvent) (Outcome, error) {
	if _, drop := prefilter(&ev); drop {
		return OutcomeDropped, nil
	}

	position := ev.Position()
	signalID := idhash.ComputeSignalID(ev.TokenAddress, ev.Wallet, position.String(), ev.Timestamp)
	// Every stream following the wallet delivers the same event.
	if p.seen.Contains(signalID) {
		observability.RecordEventDropped(dropDuplicate)
		return OutcomeDropped, nil
	}

	start := p.now()
	tc, snap, err := p.enrich(ctx, &ev)
	if err != nil {
		// Not marked seen: another stream's copy may still succeed.
		observability.RecordEventDropped(dropEnrich)
		return OutcomeDropped, err
	}
	if !p.seen.Add(signalID) {
		observability.RecordEventDropped(dropDuplicate)
		return OutcomeDropped, nil
	}

	result := p.deps.Scorer.Score(scoring.Input{Event: &ev, Context: tc, Snapshot: snap})
	observability.RecordSignalScored(result.Strategy, result.Pass, p.now().Sub(start).Seconds())
	p.record(ctx, signalID, &ev, tc, snap, result)

	logEvent := p.logger.Info()
	if !result.Pass {
		logEvent = p.logger.Debug()
	}
	logEvent.
		Str("token", ev.TokenAddress).
		Str("symbol", ev.TokenSymbol).
		Str("wallet", ev.Wallet).
		Str("position", position.String()).
		Str("strategy", result.Strategy).
		Str("tag", result.Tag).
		Int("heat", result.Heat).
		Int("all_wallets", tc.AllWallets).
		Float64("market_cap", snap.MarketCap).
		Msg(verdictMessage(result.Pass))

	if !result.Pass {
		return OutcomeRejected, nil
	}

	if p.deps.Executor != nil {
		if err := p.deps.Executor.Execute(ctx, ev.TokenAddress, ev.PriceUSD); err != nil {
			p.logger.Error().Err(err).Str("token", ev.TokenAddress).Msg("trade_execute_failed")
		}
	}

	msg := p.deps.Formatter.Format(notify.Signal{
		Event:    &ev,
		Context:  tc,
		Snapshot: snap,
		Score:    result,
		CostSOL:  p.deps.Prices.CostSOL(ev.CostUSD),
	})
	if err := p.deps.Notifier.Notify(ctx, msg, ev.TokenAddress); err != nil {
		return OutcomePassed, fmt.Errorf("notify %s: %w", ev.TokenAddress, err)
	}
	return OutcomePassed, nil
}

// enrich fetches trade context and market snapshot concurrently.
func (p *Processor) enrich(ctx context.Context, ev *domain.RawActivityEvent) (*domain.TokenContext, *domain.MarketSnapshot, error) {
	var (
		tc   *domain.TokenContext
		snap *domain.MarketSnapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tc, err = p.deps.Contexts.Aggregate(gctx, ev.TokenAddress, ev.Time())
		if err != nil {
			return fmt.Errorf("aggregate %s: %w", ev.TokenAddress, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snap, err = p.deps.Snapshots.Snapshot(gctx, ev.TokenAddress, ev.PriceUSD)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", ev.TokenAddress, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return tc, snap, nil
}

func (p *Processor) record(ctx context.Context, signalID string, ev *domain.RawActivityEvent, tc *domain.TokenContext, snap *domain.MarketSnapshot, result domain.ScoreResult) {
	if p.deps.Signals == nil {
		return
	}
	rec := &domain.SignalRecord{
		SignalID:     signalID,
		TokenAddress: ev.TokenAddress,
		TokenSymbol:  ev.TokenSymbol,
		Wallet:       ev.Wallet,
		Account:      ev.Account,
		Position:     ev.Position().String(),
		Strategy:     result.Strategy,
		Tag:          result.Tag,
		Pass:         result.Pass,
		Heat:         result.Heat,
		PriceUSD:     ev.PriceUSD,
		MarketCap:    snap.MarketCap,
		AllWallets:   tc.AllWallets,
		FullWallets:  tc.FullWallets,
		HoldWallets:  tc.HoldWallets,
		CloseWallets: tc.CloseWallets,
		EventTime:    ev.Timestamp,
		ScoredAt:     p.now().UnixMilli(),
	}
	err := p.deps.Signals.Insert(ctx, rec)
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		p.logger.Warn().Err(err).Str("signal_id", signalID).Msg("signal_record_failed")
	}
}

// prefilter drops events that can never become notifications.
func prefilter(ev *domain.RawActivityEvent) (string, bool) {
	if !ev.Position().Notifiable() {
		return dropExit, true
	}
	if domain.IsStableToken(ev.TokenAddress) {
		return dropStable, true
	}
	return "", false
}

func verdictMessage(pass bool) string {
	if pass {
		return "signal_passed"
	}
	return "signal_rejected"
}
