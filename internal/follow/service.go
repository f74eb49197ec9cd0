// Package follow manages the wallets followed by each tracked account.
package follow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wallet-signal/internal/auth"
	"wallet-signal/internal/observability"
)

// DefaultRefreshInterval is how often follow counts are re-read upstream.
const DefaultRefreshInterval = 30 * time.Second

var (
	ErrNoAccounts      = errors.New("no tracked accounts")
	ErrInvalidWallet   = errors.New("invalid wallet address")
	ErrAlreadyFollowed = errors.New("wallet already followed")
)

// Credentials runs authenticated calls for an account.
type Credentials interface {
	Accounts() []string
	Do(ctx context.Context, address string, fn func(token string) error) error
}

// API is the upstream follow surface.
type API interface {
	FollowWallet(ctx context.Context, token, wallet string) error
	UnfollowWallet(ctx context.Context, token, wallet string) error
	FollowingWallets(ctx context.Context, token string) ([]string, error)
}

// Options configures Service.
type Options struct {
	Interval time.Duration
	Logger   *zerolog.Logger
}

// Service adds, removes and counts followed wallets across accounts.
type Service struct {
	creds    Credentials
	api      API
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.RWMutex
	wallets map[string]map[string]struct{} // account -> followed wallets
}

// New creates a Service.
func New(creds Credentials, api API, opts Options) *Service {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultRefreshInterval
	}
	return &Service{
		creds:    creds,
		api:      api,
		interval: opts.Interval,
		logger:   logger.With().Str("component", "follow").Logger(),
		wallets:  make(map[string]map[string]struct{}),
	}
}

// Add follows wallet on the account with the fewest followed wallets.
// Returns the account used.
func (s *Service) Add(ctx context.Context, wallet string) (string, error) {
	if !auth.ValidAddress(wallet) {
		return "", fmt.Errorf("%w: %s", ErrInvalidWallet, wallet)
	}
	accounts := s.creds.Accounts()
	if len(accounts) == 0 {
		return "", ErrNoAccounts
	}
	if holders := s.holders(wallet); len(holders) > 0 {
		return holders[0], ErrAlreadyFollowed
	}

	account := s.leastLoaded(accounts)
	err := s.creds.Do(ctx, account, func(token string) error {
		return s.api.FollowWallet(ctx, token, wallet)
	})
	if err != nil {
		return "", fmt.Errorf("follow %s on %s: %w", wallet, account, err)
	}

	s.mu.Lock()
	set := s.set(account)
	set[wallet] = struct{}{}
	n := len(set)
	s.mu.Unlock()

	observability.SetFollowedWallets(account, n)
	s.logger.Info().Str("account", account).Str("wallet", wallet).Msg("wallet_followed")
	return account, nil
}

// Remove unfollows wallet on every account known to follow it. When the cache
// has no holder, every account is tried. Returns the accounts that unfollowed.
func (s *Service) Remove(ctx context.Context, wallet string) ([]string, error) {
	if !auth.ValidAddress(wallet) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWallet, wallet)
	}
	targets := s.holders(wallet)
	if len(targets) == 0 {
		targets = s.creds.Accounts()
	}
	if len(targets) == 0 {
		return nil, ErrNoAccounts
	}

	var (
		removed []string
		errs    []error
	)
	for _, account := range targets {
		err := s.creds.Do(ctx, account, func(token string) error {
			return s.api.UnfollowWallet(ctx, token, wallet)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("unfollow %s on %s: %w", wallet, account, err))
			continue
		}
		s.mu.Lock()
		set := s.set(account)
		delete(set, wallet)
		n := len(set)
		s.mu.Unlock()

		observability.SetFollowedWallets(account, n)
		removed = append(removed, account)
	}

	if len(removed) > 0 {
		s.logger.Info().Strs("accounts", removed).Str("wallet", wallet).Msg("wallet_unfollowed")
	}
	return removed, errors.Join(errs...)
}

// Counts returns the followed wallet count per account.
func (s *Service) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.wallets))
	for account, set := range s.wallets {
		out[account] = len(set)
	}
	return out
}

// Wallets returns the sorted followed wallets of account.
func (s *Service) Wallets(account string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.wallets[account]))
	for w := range s.wallets[account] {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Refresh re-reads the followed wallets of every account. Accounts that fail
// keep their previous view.
func (s *Service) Refresh(ctx context.Context) error {
	var errs []error
	for _, account := range s.creds.Accounts() {
		var wallets []string
		err := s.creds.Do(ctx, account, func(token string) error {
			var err error
			wallets, err = s.api.FollowingWallets(ctx, token)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("following wallets %s: %w", account, err))
			continue
		}

		set := make(map[string]struct{}, len(wallets))
		for _, w := range wallets {
			set[w] = struct{}{}
		}
		s.mu.Lock()
		s.wallets[account] = set
		s.mu.Unlock()
		observability.SetFollowedWallets(account, len(set))
	}
	return errors.Join(errs...)
}

// Run refreshes counts immediately and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("follow_refresh_failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Service) holders(wallet string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, account := range s.creds.Accounts() {
		if _, ok := s.wallets[account][wallet]; ok {
			out = append(out, account)
		}
	}
	return out
}

// leastLoaded picks the account with the fewest follows; ties keep account order.
func (s *Service) leastLoaded(accounts []string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	best := accounts[0]
	for _, account := range accounts[1:] {
		if len(s.wallets[account]) < len(s.wallets[best]) {
			best = account
		}
	}
	return best
}

// set returns the wallet set for account, creating it. Caller holds mu.
func (s *Service) set(account string) map[string]struct{} {
	set, ok := s.wallets[account]
	if !ok {
		set = make(map[string]struct{})
		s.wallets[account] = set
	}
	return set
}
