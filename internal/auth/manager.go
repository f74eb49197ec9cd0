// Package auth manages per-account upstream credentials: the signed
// challenge/response login, the credential cache and reactive refresh.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/gmgn"
	"wallet-signal/internal/observability"
)

// loginTimeout bounds one challenge/response login.
const loginTimeout = 30 * time.Second

// Authenticator is the upstream login API.
type Authenticator interface {
	LoginNonce(ctx context.Context, address string) (string, error)
	Login(ctx context.Context, message, signature string) (string, error)
}

// Options configures Manager.
type Options struct {
	Logger *zerolog.Logger
	Now    func() time.Time
}

// Manager obtains and caches bearer credentials for tracked accounts.
// Concurrent refreshes of one account are coalesced into a single login.
type Manager struct {
	api      Authenticator
	store    *Store
	accounts map[string]domain.TrackedAccount
	logger   zerolog.Logger
	now      func() time.Time
	group    singleflight.Group
}

// NewManager creates a manager for accounts backed by store.
// Every account address must be present in store.
func NewManager(api Authenticator, store *Store, accounts []domain.TrackedAccount, opts Options) *Manager {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	byAddr := make(map[string]domain.TrackedAccount, len(accounts))
	for _, a := range accounts {
		byAddr[a.Address] = a
	}

	return &Manager{
		api:      api,
		store:    store,
		accounts: byAddr,
		logger:   logger.With().Str("component", "auth").Logger(),
		now:      now,
	}
}

// Store returns the underlying credential store.
func (m *Manager) Store() *Store {
	return m.store
}

// Accounts returns tracked account addresses in registration order.
func (m *Manager) Accounts() []string {
	return m.store.Addresses()
}

// Tokens returns the current address -> token snapshot.
func (m *Manager) Tokens() map[string]string {
	return m.store.Tokens()
}

// Get returns the cached credential for address, logging in on first use.
func (m *Manager) Get(ctx context.Context, address string) (string, error) {
	cred, err := m.store.Get(address)
	if err != nil {
		return "", err
	}
	if cred != nil {
		return cred.Token, nil
	}
	return m.refresh(ctx, address, "initial")
}

// ForceRefresh discards the cached credential for address and logs in again.
func (m *Manager) ForceRefresh(ctx context.Context, address string) (string, error) {
	return m.refresh(ctx, address, "forced")
}

// RefreshAll logs every account in again. Accounts that fail keep their
// previous credential; the joined error lists them.
func (m *Manager) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, addr := range m.store.Addresses() {
		if _, err := m.refresh(ctx, addr, "rotation"); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Do calls fn with the account's credential. If fn reports an authorization
// failure the credential is refreshed and fn is retried exactly once.
func (m *Manager) Do(ctx context.Context, address string, fn func(token string) error) error {
	token, err := m.Get(ctx, address)
	if err != nil {
		return err
	}

	err = fn(token)
	if !gmgn.IsUnauthorized(err) {
		return err
	}

	m.logger.Debug().Str("account", address).Msg("credential_rejected")
	token, err = m.ForceRefresh(ctx, address)
	if err != nil {
		return err
	}
	return fn(token)
}

// refresh logs in once for every concurrent caller. The login outlives
// the first caller's cancellation so coalesced waiters still get a token.
func (m *Manager) refresh(ctx context.Context, address, reason string) (string, error) {
	v, err, _ := m.group.Do(address, func() (interface{}, error) {
		loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loginTimeout)
		defer cancel()

		token, err := m.login(loginCtx, address)
		observability.RecordCredentialRefresh(reason, err)
		if err != nil {
			return "", err
		}
		if err := m.store.Replace(address, &domain.Credential{Token: token, AcquiredAt: m.now()}); err != nil {
			return "", err
		}
		m.logger.Info().Str("account", address).Str("reason", reason).Msg("credential_refreshed")
		return token, nil
	})
	if err != nil {
		m.logger.Warn().Err(err).Str("account", address).Str("reason", reason).Msg("credential_refresh_failed")
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) login(ctx context.Context, address string) (string, error) {
	account, ok := m.accounts[address]
	if !ok {
		return "", ErrUnknownAccount
	}

	nonce, err := m.api.LoginNonce(ctx, address)
	if err != nil {
		return "", fmt.Errorf("login nonce %s: %w", address, err)
	}

	message := gmgn.BuildSignInMessage(address, nonce, m.now())
	signature, err := Sign(account, message)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", address, err)
	}

	token, err := m.api.Login(ctx, message, signature)
	if err != nil {
		return "", fmt.Errorf("login %s: %w", address, err)
	}
	return token, nil
}
