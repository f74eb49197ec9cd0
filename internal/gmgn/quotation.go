package gmgn

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"wallet-signal/internal/domain"
)

// Chain is the only chain this service follows.
const Chain = "sol"

// HistoryPageSize is the page size requested from the trade history API.
const HistoryPageSize = 100

// HistoryPage is one page of a token's trade history.
type HistoryPage struct {
	Trades []domain.TradeRecord
	Next   string // empty when exhausted
}

// GasPrice fetches the chain gas price, which carries the SOL/USD price.
func (c *Client) GasPrice(ctx context.Context) (*GasPrice, error) {
	var data gasPriceWire
	err := c.do(ctx, request{
		name:   "gas_price",
		method: http.MethodGet,
		path:   "/defi/quotation/v1/chains/" + Chain + "/gas_price",
	}, &data)
	if err != nil {
		return nil, err
	}
	return &GasPrice{NativeUSD: float64(data.NativeUSD)}, nil
}

// TokenInfo fetches token metadata.
func (c *Client) TokenInfo(ctx context.Context, tokenAddress string) (*TokenInfo, error) {
	var data tokenInfoWire
	err := c.do(ctx, request{
		name:   "token_info",
		method: http.MethodGet,
		path:   "/defi/quotation/v1/tokens/" + Chain + "/" + url.PathEscape(tokenAddress),
	}, &data)
	if err != nil {
		return nil, err
	}
	info := data.toTokenInfo()
	if info.Address == "" {
		info.Address = tokenAddress
	}
	return info, nil
}

// TradeHistoryPage fetches one page of followed-wallet trades for a token.
// An empty cursor requests the first page.
func (c *Client) TradeHistoryPage(ctx context.Context, token, tokenAddress, cursor string) (*HistoryPage, error) {
	q := url.Values{
		"limit":     {strconv.Itoa(HistoryPageSize)},
		"maker":     {""},
		"following": {"true"},
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var data tradeHistoryWire
	err := c.do(ctx, request{
		name:   "trade_history",
		method: http.MethodGet,
		path:   "/defi/quotation/v1/trades/" + Chain + "/" + url.PathEscape(tokenAddress),
		query:  q,
		token:  token,
	}, &data)
	if err != nil {
		return nil, err
	}

	page := &HistoryPage{
		Trades: make([]domain.TradeRecord, 0, len(data.History)),
		Next:   string(data.Next),
	}
	for _, t := range data.History {
		page.Trades = append(page.Trades, domain.TradeRecord{
			Maker:               string(t.Maker),
			Event:               domain.EventKind(t.Event),
			Balance:             float64(t.Balance),
			HistoryBoughtAmount: float64(t.HistoryBoughtAmount),
			HistorySoldAmount:   float64(t.HistorySoldAmount),
			PriceUSD:            float64(t.PriceUSD),
			Timestamp:           int64(t.Timestamp),
			OpenOrClose:         bool(t.IsOpenOrClose),
		})
	}
	return page, nil
}

// FollowWallet follows a wallet on behalf of the credential's account.
func (c *Client) FollowWallet(ctx context.Context, token, wallet string) error {
	return c.followAction(ctx, "follow_wallet", token, wallet)
}

// UnfollowWallet unfollows a wallet on behalf of the credential's account.
func (c *Client) UnfollowWallet(ctx context.Context, token, wallet string) error {
	return c.followAction(ctx, "unfollow_wallet", token, wallet)
}

func (c *Client) followAction(ctx context.Context, action, token, wallet string) error {
	err := c.do(ctx, request{
		name:   action,
		method: http.MethodPost,
		path:   "/defi/quotation/v1/follow/" + Chain + "/" + action,
		token:  token,
		body: map[string]string{
			"address": wallet,
			"network": Chain,
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("%s %s: %w", action, wallet, err)
	}
	return nil
}

// FollowingWallets lists the wallets followed by the credential's account.
func (c *Client) FollowingWallets(ctx context.Context, token string) ([]string, error) {
	var data followingWire
	err := c.do(ctx, request{
		name:   "following_wallets",
		method: http.MethodGet,
		path:   "/defi/quotation/v1/follow/" + Chain + "/following_wallets",
		query:  url.Values{"network": {Chain}},
		token:  token,
	}, &data)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(data.Followings))
	for _, f := range data.Followings {
		out = append(out, f.Address)
	}
	return out, nil
}
