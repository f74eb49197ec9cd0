package follow

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func walletAddr(seed byte) string {
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	pub := ed25519.NewKeyFromSeed(s).Public().(ed25519.PublicKey)
	return base58.Encode(pub)
}

type fakeCreds struct {
	accounts []string
}

func (f *fakeCreds) Accounts() []string { return f.accounts }

func (f *fakeCreds) Do(_ context.Context, address string, fn func(token string) error) error {
	return fn("tok-" + address)
}

type fakeAPI struct {
	mu        sync.Mutex
	following map[string]map[string]bool // token -> wallets
	failToken string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{following: make(map[string]map[string]bool)}
}

func (f *fakeAPI) FollowWallet(_ context.Context, token, wallet string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if token == f.failToken {
		return errors.New("upstream down")
	}
	if f.following[token] == nil {
		f.following[token] = make(map[string]bool)
	}
	f.following[token][wallet] = true
	return nil
}

func (f *fakeAPI) UnfollowWallet(_ context.Context, token, wallet string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if token == f.failToken {
		return errors.New("upstream down")
	}
	delete(f.following[token], wallet)
	return nil
}

func (f *fakeAPI) FollowingWallets(_ context.Context, token string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if token == f.failToken {
		return nil, errors.New("upstream down")
	}
	var out []string
	for w := range f.following[token] {
		out = append(out, w)
	}
	return out, nil
}

func TestService_AddBalancesAccounts(t *testing.T) {
	api := newFakeAPI()
	api.following["tok-A1"] = map[string]bool{walletAddr(100): true}
	svc := New(&fakeCreds{accounts: []string{"A1", "A2"}}, api, Options{})
	ctx := context.Background()
	require.NoError(t, svc.Refresh(ctx))

	account, err := svc.Add(ctx, walletAddr(1))
	require.NoError(t, err)
	assert.Equal(t, "A2", account)

	// Tie goes to the first account.
	account, err = svc.Add(ctx, walletAddr(2))
	require.NoError(t, err)
	assert.Equal(t, "A1", account)

	assert.Equal(t, map[string]int{"A1": 2, "A2": 1}, svc.Counts())
	assert.True(t, api.following["tok-A2"][walletAddr(1)])
}

func TestService_AddRejectsDuplicatesAndInvalid(t *testing.T) {
	svc := New(&fakeCreds{accounts: []string{"A1", "A2"}}, newFakeAPI(), Options{})
	ctx := context.Background()

	_, err := svc.Add(ctx, walletAddr(1))
	require.NoError(t, err)

	account, err := svc.Add(ctx, walletAddr(1))
	assert.ErrorIs(t, err, ErrAlreadyFollowed)
	assert.Equal(t, "A1", account)

	_, err = svc.Add(ctx, "not-base58-0OIl")
	assert.ErrorIs(t, err, ErrInvalidWallet)
}

func TestService_AddNoAccounts(t *testing.T) {
	svc := New(&fakeCreds{}, newFakeAPI(), Options{})
	_, err := svc.Add(context.Background(), walletAddr(1))
	assert.ErrorIs(t, err, ErrNoAccounts)
}

func TestService_Remove(t *testing.T) {
	api := newFakeAPI()
	w := walletAddr(7)
	api.following["tok-A1"] = map[string]bool{w: true}
	api.following["tok-A2"] = map[string]bool{w: true, walletAddr(8): true}
	svc := New(&fakeCreds{accounts: []string{"A1", "A2", "A3"}}, api, Options{})
	ctx := context.Background()
	require.NoError(t, svc.Refresh(ctx))

	removed, err := svc.Remove(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, removed)
	assert.Equal(t, map[string]int{"A1": 0, "A2": 1, "A3": 0}, svc.Counts())
	assert.Equal(t, []string{walletAddr(8)}, svc.Wallets("A2"))
}

func TestService_RemoveUnknownTriesAllAccounts(t *testing.T) {
	api := newFakeAPI()
	api.failToken = "tok-A2"
	svc := New(&fakeCreds{accounts: []string{"A1", "A2"}}, api, Options{})

	removed, err := svc.Remove(context.Background(), walletAddr(3))
	assert.Error(t, err)
	assert.Equal(t, []string{"A1"}, removed)
}

func TestService_RefreshKeepsFailedAccount(t *testing.T) {
	api := newFakeAPI()
	api.following["tok-A1"] = map[string]bool{walletAddr(1): true}
	api.following["tok-A2"] = map[string]bool{walletAddr(2): true, walletAddr(3): true}
	svc := New(&fakeCreds{accounts: []string{"A1", "A2"}}, api, Options{})
	ctx := context.Background()
	require.NoError(t, svc.Refresh(ctx))

	api.mu.Lock()
	api.failToken = "tok-A2"
	api.following["tok-A1"][walletAddr(4)] = true
	api.mu.Unlock()

	assert.Error(t, svc.Refresh(ctx))
	assert.Equal(t, map[string]int{"A1": 2, "A2": 2}, svc.Counts())
}

func TestService_RunRefreshesPeriodically(t *testing.T) {
	api := newFakeAPI()
	svc := New(&fakeCreds{accounts: []string{"A1"}}, api, Options{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	assert.Eventually(t, func() bool { return svc.Counts()["A1"] == 0 && len(svc.Counts()) == 1 }, time.Second, time.Millisecond)

	api.mu.Lock()
	api.following["tok-A1"] = map[string]bool{walletAddr(1): true}
	api.mu.Unlock()

	assert.Eventually(t, func() bool { return svc.Counts()["A1"] == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
