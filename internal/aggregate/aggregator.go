// Package aggregate builds the per-token trade context used for scoring:
// it pages through every tracked account's followed-wallet trade history
// for a token and folds the merged list into wallet counters.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/gmgn"
	"wallet-signal/internal/observability"
)

// DefaultMaxPages bounds pagination per account.
const DefaultMaxPages = 50

// ErrNoHistory is returned when no account could fetch history.
var ErrNoHistory = errors.New("trade history unavailable for every account")

// HistorySource pages through a token's followed-wallet trades.
type HistorySource interface {
	TradeHistoryPage(ctx context.Context, token, tokenAddress, cursor string) (*gmgn.HistoryPage, error)
}

// Credentials provides per-account bearer tokens. Do refreshes the
// credential and retries fn once on an authorization failure.
type Credentials interface {
	Accounts() []string
	Do(ctx context.Context, address string, fn func(token string) error) error
}

// Options configures Aggregator.
type Options struct {
	MaxPages int
	Logger   *zerolog.Logger
}

// Aggregator computes TokenContext values.
type Aggregator struct {
	source   HistorySource
	creds    Credentials
	maxPages int
	logger   zerolog.Logger
}

// New creates an aggregator.
func New(source HistorySource, creds Credentials, opts Options) *Aggregator {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Aggregator{
		source:   source,
		creds:    creds,
		maxPages: maxPages,
		logger:   logger.With().Str("component", "aggregate").Logger(),
	}
}

// Aggregate fetches the merged history for tokenAddress and folds it as of asOf.
// Accounts whose fetch fails twice are skipped; the call fails only when
// every account failed.
func (a *Aggregator) Aggregate(ctx context.Context, tokenAddress string, asOf time.Time) (*domain.TokenContext, error) {
	accounts := a.creds.Accounts()
	perAccount := make([][]domain.TradeRecord, len(accounts))
	errs := make([]error, len(accounts))

	var g errgroup.Group
	for i, acct := range accounts {
		i, acct := i, acct
		g.Go(func() error {
			perAccount[i], errs[i] = a.fetchWithRetry(ctx, acct, tokenAddress)
			return nil
		})
	}
	g.Wait()

	var merged []domain.TradeRecord
	failed := 0
	for i, acct := range accounts {
		if errs[i] != nil {
			failed++
			a.logger.Warn().Err(errs[i]).Str("account", acct).Str("token", tokenAddress).Msg("history_fetch_failed")
			continue
		}
		merged = append(merged, perAccount[i]...)
	}
	if len(accounts) > 0 && failed == len(accounts) {
		return nil, fmt.Errorf("%w: %v", ErrNoHistory, errors.Join(errs...))
	}

	c := Fold(tokenAddress, merged, asOf.Unix())
	return &c, nil
}

// fetchWithRetry retries a failed fetch once. Authorization failures are
// not retried here: Credentials.Do has already refreshed and retried them.
func (a *Aggregator) fetchWithRetry(ctx context.Context, account, tokenAddress string) ([]domain.TradeRecord, error) {
	trades, err := a.fetchAll(ctx, account, tokenAddress)
	if err == nil || ctx.Err() != nil || gmgn.IsUnauthorized(err) {
		return trades, err
	}

	a.logger.Debug().Err(err).Str("account", account).Msg("history_fetch_retry")
	return a.fetchAll(ctx, account, tokenAddress)
}

// fetchAll follows the cursor until it is exhausted, repeats, or the page
// bound is hit.
func (a *Aggregator) fetchAll(ctx context.Context, account, tokenAddress string) ([]domain.TradeRecord, error) {
	var out []domain.TradeRecord
	seen := make(map[string]struct{})
	cursor := ""
	pages := 0

	for pages < a.maxPages {
		var page *gmgn.HistoryPage
		err := a.creds.Do(ctx, account, func(token string) error {
			var err error
			page, err = a.source.TradeHistoryPage(ctx, token, tokenAddress, cursor)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("history page %d: %w", pages+1, err)
		}
		pages++
		out = append(out, page.Trades...)

		if page.Next == "" {
			break
		}
		if _, dup := seen[page.Next]; dup {
			a.logger.Warn().Str("account", account).Str("cursor", page.Next).Msg("history_cursor_cycle")
			break
		}
		seen[page.Next] = struct{}{}
		cursor = page.Next
	}
	if pages == a.maxPages {
		a.logger.Debug().Str("account", account).Int("pages", pages).Msg("history_page_limit")
	}

	observability.RecordHistoryPages(pages)
	return out, nil
}
