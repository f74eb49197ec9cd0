package gmgn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-signal/internal/domain"
)

func writeEnvelope(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code": code,
		"msg":  "success",
		"data": data,
	})
}

func newTestClient(url string) *Client {
	return NewClient(url, WithRetryDelay(time.Millisecond, 5*time.Millisecond))
}

func TestBuildSignInMessage(t *testing.T) {
	issued := time.Date(2024, 3, 1, 12, 30, 15, 123456000, time.UTC)
	msg := BuildSignInMessage("Addr111", "nonce-xyz", issued)

	want := "gmgn.ai wants you to sign in with your Solana account:\nAddr111\n\n" +
		"wallet_sign_statement\nURI: https://gmgn.ai\nVersion: 1\nChain ID: 900\n" +
		"Nonce: nonce-xyz\nIssued At: 2024-03-01T12:30:15.123456Z\n" +
		"Expiration Time: 2024-03-31T12:30:15.123456Z"
	assert.Equal(t, want, msg)
}

func TestClient_LoginFlow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/defi/auth/v1/login_nonce":
			assert.Equal(t, "Addr111", r.URL.Query().Get("address"))
			writeEnvelope(w, 0, map[string]string{"nonce": "n-1"})
		case "/defi/auth/v1/login":
			assert.Equal(t, http.MethodPost, r.Method)
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "msg", body["message"])
			assert.Equal(t, "sig", body["signature"])
			writeEnvelope(w, 0, map[string]string{"access_token": "tok-1"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	ctx := context.Background()

	nonce, err := c.LoginNonce(ctx, "Addr111")
	require.NoError(t, err)
	assert.Equal(t, "n-1", nonce)

	token, err := c.Login(ctx, "msg", "sig")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestClient_LoginNonce_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, map[string]string{})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).LoginNonce(context.Background(), "Addr111")
	assert.ErrorIs(t, err, ErrEmptyNonce)
}

func TestClient_UnauthorizedNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FollowingWallets(context.Background(), "stale")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeEnvelope(w, 0, map[string]interface{}{"eth_usd_price": "151.25"})
	}))
	defer server.Close()

	gas, err := newTestClient(server.URL).GasPrice(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 151.25, gas.NativeUSD, 1e-9)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":40001,"msg":"bad token","data":null}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).TokenInfo(context.Background(), "Tok")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 40001, apiErr.Code)
	assert.False(t, IsUnauthorized(err))
}

func TestClient_TokenInfo_FlexibleFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/defi/quotation/v1/tokens/sol/Tok", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":0,"msg":"ok","data":{"token":{
			"address":"Tok","symbol":"TK","total_supply":"1000000000",
			"holder_count":321,"top_10_holder_rate":"0.31",
			"creation_timestamp":1700000000,"open_timestamp":null,
			"pool_info":{"initial_quote_reserve":"79.005"},
			"launchpad":"pump","launchpad_status":1,
			"net_in_volume_1m":"1200.5","net_in_volume_5m":5400,
			"renounced_mint":1,"renounced_freeze_account":true,
			"burn_ratio":"1","burn_status":"burn",
			"dexscr_ad":0,"dexscr_update_link":"1","cto_flag":""}}}`))
	}))
	defer server.Close()

	info, err := newTestClient(server.URL).TokenInfo(context.Background(), "Tok")
	require.NoError(t, err)
	assert.Equal(t, "TK", info.Symbol)
	assert.InDelta(t, 1e9, info.TotalSupply, 1e-6)
	assert.Equal(t, 321, info.HolderCount)
	assert.Equal(t, int64(0), info.OpenTimestamp)
	assert.InDelta(t, 79.005, info.PoolInitialReserve, 1e-9)
	assert.Equal(t, 1, info.LaunchpadStatus)
	assert.InDelta(t, 1200.5, info.NetInVolume1m, 1e-9)
	assert.InDelta(t, 5400, info.NetInVolume5m, 1e-9)
	assert.True(t, info.RenouncedMint)
	assert.True(t, info.RenouncedFreeze)
	assert.Equal(t, "burn", info.BurnStatus)
	assert.False(t, info.DexscrAd)
	assert.True(t, info.DexscrUpdateLink)
	assert.False(t, info.CTOFlag)
}

func TestClient_TradeHistoryPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.URL.Query().Get("following"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))

		if r.URL.Query().Get("cursor") == "" {
			writeEnvelope(w, 0, map[string]interface{}{
				"history": []map[string]interface{}{
					{"maker": "W1", "event": "buy", "balance": "10", "history_bought_amount": "10",
						"price_usd": "0.0012", "timestamp": 1700000100, "is_open_or_close": 1},
				},
				"next": "c2",
			})
			return
		}
		assert.Equal(t, "c2", r.URL.Query().Get("cursor"))
		writeEnvelope(w, 0, map[string]interface{}{"history": []interface{}{}, "next": ""})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	page, err := c.TradeHistoryPage(context.Background(), "tok", "Tok", "")
	require.NoError(t, err)
	require.Len(t, page.Trades, 1)
	assert.Equal(t, "c2", page.Next)
	assert.Equal(t, domain.TradeRecord{
		Maker:               "W1",
		Event:               domain.EventBuy,
		Balance:             10,
		HistoryBoughtAmount: 10,
		PriceUSD:            0.0012,
		Timestamp:           1700000100,
		OpenOrClose:         true,
	}, page.Trades[0])

	page, err = c.TradeHistoryPage(context.Background(), "tok", "Tok", "c2")
	require.NoError(t, err)
	assert.Empty(t, page.Trades)
	assert.Empty(t, page.Next)
}

func TestClient_FollowActions(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "following_wallets") {
			writeEnvelope(w, 0, map[string]interface{}{
				"followings": []map[string]string{{"address": "W1"}, {"address": "W2"}},
			})
			return
		}
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "W9", body["address"])
		assert.Equal(t, "sol", body["network"])
		writeEnvelope(w, 0, nil)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	ctx := context.Background()

	require.NoError(t, c.FollowWallet(ctx, "tok", "W9"))
	require.NoError(t, c.UnfollowWallet(ctx, "tok", "W9"))
	wallets, err := c.FollowingWallets(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"W1", "W2"}, wallets)

	assert.Equal(t, []string{
		"/defi/quotation/v1/follow/sol/follow_wallet",
		"/defi/quotation/v1/follow/sol/unfollow_wallet",
		"/defi/quotation/v1/follow/sol/following_wallets",
	}, paths)
}

func TestStreamURL(t *testing.T) {
	assert.Equal(t, "wss://ws.gmgn.ai/stream?tk=a%2Bb", StreamURL("wss://ws.gmgn.ai/stream", "a+b"))
}
