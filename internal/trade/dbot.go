// Package trade places buy orders for passing signals through the DBot API.
package trade

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"wallet-signal/internal/observability"
)

const (
	DefaultBaseURL = "https://api-bot-v1.dbotx.com"
	DefaultTimeout = 15 * time.Second

	chainSolana = "solana"
)

// ErrRejected is returned when the API answers with err=true.
var ErrRejected = errors.New("order rejected")

// ErrNoWallet is returned when the account has no wallet for the chain.
var ErrNoWallet = errors.New("no dbot wallet")

// SwapOrder is one buy or sell request.
type SwapOrder struct {
	WalletID        string
	Pair            string // token address
	Type            string // buy | sell
	AmountOrPercent float64
}

// DBotClient calls the DBot REST API.
type DBotClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewDBotClient creates a client. A nil httpClient uses a default with timeout.
func NewDBotClient(baseURL, apiKey string, httpClient *http.Client) *DBotClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &DBotClient{baseURL: baseURL, apiKey: apiKey, client: httpClient}
}

type envelope struct {
	Err *bool           `json:"err"`
	Res json.RawMessage `json:"res"`
	Msg string          `json:"msg"`
}

// WalletIDs lists the account's wallet ids on Solana.
func (c *DBotClient) WalletIDs(ctx context.Context) ([]string, error) {
	q := url.Values{"type": {chainSolana}}
	res, err := c.do(ctx, http.MethodGet, "/account/wallets?"+q.Encode(), "wallets", nil)
	if err != nil {
		return nil, err
	}

	var wallets []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(res, &wallets); err != nil {
		return nil, fmt.Errorf("decode wallets: %w", err)
	}
	ids := make([]string, 0, len(wallets))
	for _, w := range wallets {
		if w.ID != "" {
			ids = append(ids, w.ID)
		}
	}
	return ids, nil
}

// Swap places a real order with Jito bundling.
func (c *DBotClient) Swap(ctx context.Context, o SwapOrder) error {
	body := map[string]interface{}{
		"chain":           chainSolana,
		"pair":            o.Pair,
		"walletId":        o.WalletID,
		"type":            o.Type,
		"amountOrPercent": o.AmountOrPercent,
		"priorityFee":     "",
		"jitoEnabled":     true,
		"jitoTip":         0.001,
		"maxSlippage":     0.5,
		"concurrentNodes": 2,
		"retries":         2,
	}
	_, err := c.do(ctx, http.MethodPost, "/automation/swap_order", "swap_order", body)
	return err
}

// SimulateSwap places a paper order.
func (c *DBotClient) SimulateSwap(ctx context.Context, o SwapOrder) error {
	body := map[string]interface{}{
		"chain":           chainSolana,
		"pair":            o.Pair,
		"walletId":        o.WalletID,
		"type":            o.Type,
		"amountOrPercent": o.AmountOrPercent,
		"priorityFee":     "",
		"slippage":        0.5,
	}
	_, err := c.do(ctx, http.MethodPost, "/simulator/sim_swap_order", "sim_swap_order", body)
	return err
}

func (c *DBotClient) do(ctx context.Context, method, path, endpoint string, body interface{}) (json.RawMessage, error) {
	start := time.Now()
	res, err := c.request(ctx, method, path, body)
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordUpstreamRequest("dbot_"+endpoint, status, time.Since(start).Seconds())
	return res, err
}

func (c *DBotClient) request(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	// A missing err flag counts as failure.
	if env.Err == nil || *env.Err {
		return nil, fmt.Errorf("%w: %s", ErrRejected, env.Msg)
	}
	return env.Res, nil
}
